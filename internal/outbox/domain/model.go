package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Kinds of outbound messages.
const (
	KindOrderStatus   = "order_status"
	KindSellerOrder   = "seller_new_order"
	KindContactNotice = "operator_new_contact"
	KindThreadReply   = "thread_reply"
)

type OutboxMessage struct {
	ID            int64          `gorm:"primaryKey"`
	Kind          string         `gorm:"type:varchar(64);not null"`
	Recipient     string         `gorm:"type:varchar(255);not null"`
	Subject       string         `gorm:"type:varchar(255);not null"`
	HTMLBody      string         `gorm:"column:html_body;type:text;not null"`
	Payload       datatypes.JSON `gorm:"type:text"`
	Status        Status         `gorm:"type:varchar(16);not null"`
	Attempts      int            `gorm:"not null"`
	MaxAttempts   int            `gorm:"not null"`
	NextAttemptAt time.Time      `gorm:"not null"`
	LockedUntil   *time.Time
	LastError     *string `gorm:"type:text"`
	CreatedAt     time.Time
	SentAt        *time.Time
}

func (OutboxMessage) TableName() string { return "outbox_messages" }
