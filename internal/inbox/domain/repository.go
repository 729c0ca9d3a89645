package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	InsertContact(ctx context.Context, db *gorm.DB, contact *Contact) error
	ListContacts(ctx context.Context, db *gorm.DB) ([]Contact, error)
	UpdateContactStatus(ctx context.Context, db *gorm.DB, id int64, status string) (int64, error)
	DeleteContact(ctx context.Context, db *gorm.DB, id int64) (int64, error)

	InsertThread(ctx context.Context, db *gorm.DB, thread *Thread) error
	FindThread(ctx context.Context, db *gorm.DB, id int64) (*Thread, error)
	ListThreads(ctx context.Context, db *gorm.DB) ([]ThreadSummary, error)
	UpdateThreadStatus(ctx context.Context, db *gorm.DB, id int64, status string) error
	TouchThread(ctx context.Context, db *gorm.DB, id int64, at time.Time) error

	InsertMessage(ctx context.Context, db *gorm.DB, msg *Message) error
	Messages(ctx context.Context, db *gorm.DB, threadID int64) ([]Message, error)
	MarkCustomerMessagesRead(ctx context.Context, db *gorm.DB, threadID int64) (int64, error)
}
