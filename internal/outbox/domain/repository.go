package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, msg *OutboxMessage) error
	FindDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]OutboxMessage, error)
	Claim(ctx context.Context, db *gorm.DB, id int64, now, lockedUntil time.Time) (bool, error)
	MarkSent(ctx context.Context, db *gorm.DB, id int64, attempts int, sentAt time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, id int64, attempts int, nextAttemptAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, db *gorm.DB, id int64, attempts int, lastError string) error
	Requeue(ctx context.Context, db *gorm.DB, id int64, now time.Time) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*OutboxMessage, error)
	List(ctx context.Context, db *gorm.DB, status Status, limit int) ([]OutboxMessage, error)
}
