package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/atelier/internal/config"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
)

const provider = "stripe"

type Gateway struct {
	intents       *paymentintent.Client
	configured    bool
	webhookSecret string
}

func New(cfg config.Config) paymentdomain.Gateway {
	key := strings.TrimSpace(cfg.Stripe.SecretKey)
	return &Gateway{
		intents:       &paymentintent.Client{B: stripego.GetBackend(stripego.APIBackend), Key: key},
		configured:    key != "",
		webhookSecret: strings.TrimSpace(cfg.Stripe.WebhookSecret),
	}
}

func (g *Gateway) Provider() string {
	return provider
}

// CreateIntent opens a PaymentIntent for amount minor units with the
// payment methods enabled on the dashboard.
func (g *Gateway) CreateIntent(ctx context.Context, amount int64, currency string) (*paymentdomain.Intent, error) {
	if !g.configured {
		return nil, paymentdomain.ErrNotConfigured
	}
	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(amount),
		Currency: stripego.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Context = ctx

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, err
	}
	return &paymentdomain.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (*paymentdomain.PaymentEvent, error) {
	if g.webhookSecret == "" {
		return nil, paymentdomain.ErrNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) || errors.Is(err, webhook.ErrInvalidHeader) ||
			errors.Is(err, webhook.ErrNoValidSignature) || errors.Is(err, webhook.ErrTooOld) {
			return nil, paymentdomain.ErrInvalidSignature
		}
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var eventType string
	switch string(event.Type) {
	case "payment_intent.succeeded":
		eventType = paymentdomain.EventTypePaymentSucceeded
	case "payment_intent.payment_failed":
		eventType = paymentdomain.EventTypePaymentFailed
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	var intent stripego.PaymentIntent
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &intent) != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	return &paymentdomain.PaymentEvent{
		Provider:         provider,
		ProviderEventID:  event.ID,
		PaymentReference: intent.ID,
		Type:             eventType,
		Amount:           amount,
		Currency:         strings.ToUpper(string(intent.Currency)),
		OccurredAt:       timestamp(intent.Created, event.Created),
		RawPayload:       payload,
	}, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}
