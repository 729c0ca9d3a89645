package domain

import (
	"context"
	"errors"
)

// Gateway talks to the payment provider.
type Gateway interface {
	Provider() string
	CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error)
	ParseWebhook(payload []byte, signature string) (*PaymentEvent, error)
}

type Service interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*IntentResponse, error)
	PublicKey(ctx context.Context) (*PublicKeyResponse, error)
	IngestWebhook(ctx context.Context, payload []byte, signature string) error
}

type CreateIntentRequest struct {
	Amount float64 `json:"amount"`
}

type IntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type PublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

var (
	ErrNotConfigured    = errors.New("payment_not_configured")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrOrderNotFound    = errors.New("order_not_found")
)
