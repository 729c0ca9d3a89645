package stripe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/smallbiznis/atelier/internal/config"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
)

const secret = "whsec_test"

func newGateway(webhookSecret string) paymentdomain.Gateway {
	return New(config.Config{Stripe: config.StripeConfig{WebhookSecret: webhookSecret}})
}

func signed(t *testing.T, key string, event map[string]any) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    key,
		Timestamp: time.Now(),
	})
	return sp.Payload, sp.Header
}

func intentEvent(eventType string) map[string]any {
	return map[string]any{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"created":     1767225600,
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": map[string]any{
				"id":              "pi_123",
				"object":          "payment_intent",
				"amount":          4350,
				"amount_received": 4350,
				"currency":        "eur",
				"created":         1767225500,
			},
		},
	}
}

func TestParseWebhookPaymentIntentEvents(t *testing.T) {
	gw := newGateway(secret)

	tests := []struct {
		stripeType string
		want       string
	}{
		{"payment_intent.succeeded", paymentdomain.EventTypePaymentSucceeded},
		{"payment_intent.payment_failed", paymentdomain.EventTypePaymentFailed},
	}
	for _, tt := range tests {
		t.Run(tt.stripeType, func(t *testing.T) {
			payload, header := signed(t, secret, intentEvent(tt.stripeType))
			event, err := gw.ParseWebhook(payload, header)
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Type)
			assert.Equal(t, "pi_123", event.PaymentReference)
			assert.Equal(t, "evt_1", event.ProviderEventID)
			assert.Equal(t, int64(4350), event.Amount)
			assert.Equal(t, "EUR", event.Currency)
			assert.Equal(t, time.Unix(1767225500, 0).UTC(), event.OccurredAt)
		})
	}
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	gw := newGateway(secret)

	payload, header := signed(t, "whsec_other", intentEvent("payment_intent.succeeded"))
	_, err := gw.ParseWebhook(payload, header)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = gw.ParseWebhook(payload, "")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	gw := newGateway(secret)

	payload, header := signed(t, secret, intentEvent("charge.refunded"))
	_, err := gw.ParseWebhook(payload, header)
	assert.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestUnconfiguredGateway(t *testing.T) {
	gw := newGateway("")

	_, err := gw.CreateIntent(context.Background(), 1000, "eur")
	assert.ErrorIs(t, err, paymentdomain.ErrNotConfigured)

	_, err = gw.ParseWebhook([]byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, paymentdomain.ErrNotConfigured)
}
