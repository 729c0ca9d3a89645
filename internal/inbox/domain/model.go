package domain

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ContactNew  = "nouveau"
	ContactRead = "lu"
)

const (
	ThreadOpen   = "open"
	ThreadClosed = "closed"
)

const (
	SenderCustomer = "customer"
	SenderAdmin    = "admin"
)

type Contact struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	Email     string    `json:"email" gorm:"type:varchar(255);not null"`
	Phone     *string   `json:"phone,omitempty" gorm:"type:varchar(64)"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	Status    string    `json:"status" gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (Contact) TableName() string { return "contacts" }

type Thread struct {
	ID            int64     `json:"id" gorm:"primaryKey"`
	ContactID     *int64    `json:"contact_id,omitempty"`
	CustomerName  string    `json:"customer_name" gorm:"type:varchar(255);not null"`
	CustomerEmail string    `json:"customer_email" gorm:"type:varchar(255);not null"`
	Subject       string    `json:"subject" gorm:"type:varchar(255);not null"`
	Status        string    `json:"status" gorm:"type:varchar(16);not null"`
	LastMessageAt time.Time `json:"last_message_at" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
}

func (Thread) TableName() string { return "message_threads" }

// ThreadSummary is a thread row with its count of unread customer messages.
type ThreadSummary struct {
	Thread
	UnreadCount int64
}

type Message struct {
	ID          int64          `json:"id" gorm:"primaryKey"`
	ThreadID    int64          `json:"thread_id" gorm:"not null;index"`
	SenderType  string         `json:"sender_type" gorm:"type:varchar(16);not null"`
	Body        string         `json:"body" gorm:"type:text;not null"`
	Attachments datatypes.JSON `json:"attachments"`
	IsRead      bool           `json:"is_read" gorm:"not null"`
	CreatedAt   time.Time      `json:"created_at" gorm:"not null"`
}

func (Message) TableName() string { return "thread_messages" }
