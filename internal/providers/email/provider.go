package email

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("email: no recipient")

// Provider delivers one HTML message. Callers go through the outbox, which
// owns retries.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NoOpProvider accepts every message without delivering it. With Log set,
// each message is logged so local setups without SMTP can follow the order
// and contact notifications.
type NoOpProvider struct {
	Log *zap.Logger
}

func (p *NoOpProvider) Send(_ context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipient
	}
	if p.Log != nil {
		p.Log.Debug("email not sent, delivery disabled",
			zap.Int("recipients", len(to)),
			zap.String("subject", subject),
			zap.Int("body_bytes", len(htmlBody)),
		)
	}
	return nil
}
