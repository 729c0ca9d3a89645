package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultMaxAttempts = 8
	BaseBackoff        = 30 * time.Second
	MaxBackoff         = time.Hour
	ClaimTTL           = 2 * time.Minute
)

type Service interface {
	// Enqueue persists messages on tx so they commit or roll back with the caller's write.
	Enqueue(ctx context.Context, tx *gorm.DB, msgs ...Message) error
	Dispatch(ctx context.Context, limit int) (DispatchResult, error)
	List(ctx context.Context, status string) ([]Response, error)
	Retry(ctx context.Context, id string) (*Response, error)
}

type Message struct {
	Kind      string
	Recipient string
	Subject   string
	HTMLBody  string
	Payload   map[string]any
}

type DispatchResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
}

type Response struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Recipient     string     `json:"recipient"`
	Subject       string     `json:"subject"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	MaxAttempts   int        `json:"max_attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

var (
	ErrInvalidRecipient = errors.New("invalid_recipient")
	ErrInvalidKind      = errors.New("invalid_kind")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
	ErrNotRetryable     = errors.New("not_retryable")
)

// Backoff returns the delay before the next attempt after attempts failures
// have already been recorded: 30s, 1m, 2m, ... capped at one hour.
func Backoff(attempts int) time.Duration {
	if attempts <= 0 {
		return BaseBackoff
	}
	delay := BaseBackoff
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= MaxBackoff {
			return MaxBackoff
		}
	}
	return delay
}
