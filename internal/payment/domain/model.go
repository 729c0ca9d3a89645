package domain

import (
	"time"

	"gorm.io/datatypes"
)

type EventRecord struct {
	ID               int64          `json:"id" gorm:"primaryKey"`
	Provider         string         `json:"provider" gorm:"type:text;not null"`
	ProviderEventID  string         `json:"provider_event_id" gorm:"type:text;not null"`
	EventType        string         `json:"event_type" gorm:"type:text;not null"`
	PaymentReference string         `json:"payment_reference" gorm:"type:text;not null"`
	Payload          datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt       time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt      *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// PaymentEvent is the canonical payment event parsed by a gateway.
type PaymentEvent struct {
	Provider         string
	ProviderEventID  string
	PaymentReference string
	Type             string
	Amount           int64
	Currency         string
	OccurredAt       time.Time
	RawPayload       []byte
}

// Intent is a payment the storefront confirms client side.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}
