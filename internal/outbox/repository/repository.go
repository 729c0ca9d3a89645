package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/atelier/internal/outbox/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `SELECT id, kind, recipient, subject, html_body, payload, status, attempts, max_attempts,
		next_attempt_at, locked_until, last_error, created_at, sent_at
	 FROM outbox_messages`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, msg *domain.OutboxMessage) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO outbox_messages (id, kind, recipient, subject, html_body, payload, status, attempts,
			max_attempts, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.Kind,
		msg.Recipient,
		msg.Subject,
		msg.HTMLBody,
		msg.Payload,
		msg.Status,
		msg.Attempts,
		msg.MaxAttempts,
		msg.NextAttemptAt,
		msg.CreatedAt,
	).Error
}

func (r *repo) FindDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.OutboxMessage, error) {
	var items []domain.OutboxMessage
	err := db.WithContext(ctx).Raw(
		selectColumns+`
		 WHERE status = ? AND next_attempt_at <= ? AND (locked_until IS NULL OR locked_until < ?)
		 ORDER BY next_attempt_at ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending,
		now,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Claim takes a time-bounded lease on one row. It reports false when another
// dispatcher won the row first.
func (r *repo) Claim(ctx context.Context, db *gorm.DB, id int64, now, lockedUntil time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE outbox_messages SET locked_until = ?
		 WHERE id = ? AND status = ? AND (locked_until IS NULL OR locked_until < ?)`,
		lockedUntil,
		id,
		domain.StatusPending,
		now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkSent(ctx context.Context, db *gorm.DB, id int64, attempts int, sentAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_messages
		 SET status = ?, attempts = ?, sent_at = ?, locked_until = NULL, last_error = NULL
		 WHERE id = ?`,
		domain.StatusSent,
		attempts,
		sentAt,
		id,
	).Error
}

func (r *repo) MarkRetry(ctx context.Context, db *gorm.DB, id int64, attempts int, nextAttemptAt time.Time, lastError string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_messages
		 SET attempts = ?, next_attempt_at = ?, last_error = ?, locked_until = NULL
		 WHERE id = ?`,
		attempts,
		nextAttemptAt,
		lastError,
		id,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id int64, attempts int, lastError string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE outbox_messages
		 SET status = ?, attempts = ?, last_error = ?, locked_until = NULL
		 WHERE id = ?`,
		domain.StatusFailed,
		attempts,
		lastError,
		id,
	).Error
}

func (r *repo) Requeue(ctx context.Context, db *gorm.DB, id int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE outbox_messages
		 SET status = ?, attempts = 0, next_attempt_at = ?, locked_until = NULL
		 WHERE id = ? AND status = ?`,
		domain.StatusPending,
		now,
		id,
		domain.StatusFailed,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.OutboxMessage, error) {
	var msg domain.OutboxMessage
	err := db.WithContext(ctx).Raw(selectColumns+` WHERE id = ?`, id).Scan(&msg).Error
	if err != nil {
		return nil, err
	}
	if msg.ID == 0 {
		return nil, nil
	}
	return &msg, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, status domain.Status, limit int) ([]domain.OutboxMessage, error) {
	var items []domain.OutboxMessage
	stmt := db.WithContext(ctx).Model(&domain.OutboxMessage{})
	if status != "" {
		stmt = stmt.Where("status = ?", status)
	}
	if err := stmt.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
