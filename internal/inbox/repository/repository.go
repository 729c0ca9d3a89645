package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/atelier/internal/inbox/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertContact(ctx context.Context, db *gorm.DB, contact *domain.Contact) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contacts (id, name, email, phone, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		contact.ID,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Message,
		contact.Status,
		contact.CreatedAt,
	).Error
}

func (r *repo) ListContacts(ctx context.Context, db *gorm.DB) ([]domain.Contact, error) {
	var items []domain.Contact
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, phone, message, status, created_at
		 FROM contacts ORDER BY created_at DESC, id DESC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateContactStatus(ctx context.Context, db *gorm.DB, id int64, status string) (int64, error) {
	res := db.WithContext(ctx).Exec(`UPDATE contacts SET status = ? WHERE id = ?`, status, id)
	return res.RowsAffected, res.Error
}

func (r *repo) DeleteContact(ctx context.Context, db *gorm.DB, id int64) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM contacts WHERE id = ?`, id)
	return res.RowsAffected, res.Error
}

func (r *repo) InsertThread(ctx context.Context, db *gorm.DB, thread *domain.Thread) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO message_threads (id, contact_id, customer_name, customer_email, subject, status, last_message_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		thread.ID,
		thread.ContactID,
		thread.CustomerName,
		thread.CustomerEmail,
		thread.Subject,
		thread.Status,
		thread.LastMessageAt,
		thread.CreatedAt,
	).Error
}

func (r *repo) FindThread(ctx context.Context, db *gorm.DB, id int64) (*domain.Thread, error) {
	var t domain.Thread
	err := db.WithContext(ctx).Raw(
		`SELECT id, contact_id, customer_name, customer_email, subject, status, last_message_at, created_at
		 FROM message_threads WHERE id = ?`,
		id,
	).Scan(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) ListThreads(ctx context.Context, db *gorm.DB) ([]domain.ThreadSummary, error) {
	var items []domain.ThreadSummary
	err := db.WithContext(ctx).Raw(
		`SELECT t.id, t.contact_id, t.customer_name, t.customer_email, t.subject, t.status,
		        t.last_message_at, t.created_at,
		        (SELECT COUNT(*) FROM thread_messages m
		          WHERE m.thread_id = t.id AND m.sender_type = ? AND m.is_read = ?) AS unread_count
		 FROM message_threads t
		 ORDER BY t.last_message_at DESC, t.id DESC`,
		domain.SenderCustomer,
		false,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateThreadStatus(ctx context.Context, db *gorm.DB, id int64, status string) error {
	return db.WithContext(ctx).Exec(`UPDATE message_threads SET status = ? WHERE id = ?`, status, id).Error
}

func (r *repo) TouchThread(ctx context.Context, db *gorm.DB, id int64, at time.Time) error {
	return db.WithContext(ctx).Exec(`UPDATE message_threads SET last_message_at = ? WHERE id = ?`, at, id).Error
}

func (r *repo) InsertMessage(ctx context.Context, db *gorm.DB, msg *domain.Message) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO thread_messages (id, thread_id, sender_type, body, attachments, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		msg.ThreadID,
		msg.SenderType,
		msg.Body,
		msg.Attachments,
		msg.IsRead,
		msg.CreatedAt,
	).Error
}

func (r *repo) Messages(ctx context.Context, db *gorm.DB, threadID int64) ([]domain.Message, error) {
	var items []domain.Message
	err := db.WithContext(ctx).Raw(
		`SELECT id, thread_id, sender_type, body, attachments, is_read, created_at
		 FROM thread_messages WHERE thread_id = ? ORDER BY created_at ASC, id ASC`,
		threadID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkCustomerMessagesRead(ctx context.Context, db *gorm.DB, threadID int64) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE thread_messages SET is_read = ? WHERE thread_id = ? AND sender_type = ? AND is_read = ?`,
		true,
		threadID,
		domain.SenderCustomer,
		false,
	)
	return res.RowsAffected, res.Error
}
