package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       paymentdomain.Repository
	Gateway    paymentdomain.Gateway
	OrderSvc   orderdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	gateway    paymentdomain.Gateway
	orderSvc   orderdomain.Service
	obsMetrics *obsmetrics.Metrics
	publicKey  string
	currency   string
}

func NewService(p Params) paymentdomain.Service {
	currency := strings.ToLower(strings.TrimSpace(p.Cfg.Stripe.Currency))
	if currency == "" {
		currency = "eur"
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		gateway:    p.Gateway,
		orderSvc:   p.OrderSvc,
		obsMetrics: p.ObsMetrics,
		publicKey:  strings.TrimSpace(p.Cfg.Stripe.PublicKey),
		currency:   currency,
	}
}

// CreateIntent converts the euro amount to cents and returns the client
// secret the storefront confirms the card with.
func (s *Service) CreateIntent(ctx context.Context, req paymentdomain.CreateIntentRequest) (*paymentdomain.IntentResponse, error) {
	if math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) || req.Amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	cents := int64(math.Round(req.Amount * 100))
	if cents <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	intent, err := s.gateway.CreateIntent(ctx, cents, s.currency)
	if err != nil {
		if !errors.Is(err, paymentdomain.ErrNotConfigured) {
			obslogger.WithContext(ctx, s.log).Error("create payment intent failed", zap.Int64("amount", cents), zap.Error(err))
		}
		return nil, err
	}
	obslogger.WithContext(ctx, s.log).Info("payment intent created",
		zap.String("payment_reference", intent.ID),
		zap.Int64("amount", cents),
		zap.String("currency", s.currency),
	)
	return &paymentdomain.IntentResponse{ClientSecret: intent.ClientSecret}, nil
}

func (s *Service) PublicKey(ctx context.Context) (*paymentdomain.PublicKeyResponse, error) {
	if s.publicKey == "" {
		return nil, paymentdomain.ErrNotConfigured
	}
	return &paymentdomain.PublicKeyResponse{PublicKey: s.publicKey}, nil
}

// IngestWebhook verifies and records a provider event, then applies it to
// the order carrying the same payment reference. Replays of a processed
// event are ignored; an event whose order does not exist yet stays
// unprocessed so the provider retry can apply it.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string) error {
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	event, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			return nil
		}
		return err
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	now := s.clock.Now()
	received := paymentdomain.EventRecord{
		ID:               s.genID.Generate().Int64(),
		Provider:         event.Provider,
		ProviderEventID:  event.ProviderEventID,
		EventType:        event.Type,
		PaymentReference: event.PaymentReference,
		Payload:          datatypes.JSON(payload),
		ReceivedAt:       now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			obslogger.WithContext(ctx, s.log).Info("payment event already processed",
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return nil
		}
	}

	if err := s.orderSvc.MarkPayment(ctx, event.PaymentReference, paymentStatus(event.Type)); err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			obslogger.WithContext(ctx, s.log).Warn("payment event without order",
				zap.String("provider_event_id", event.ProviderEventID),
				zap.String("payment_reference", event.PaymentReference),
			)
			return paymentdomain.ErrOrderNotFound
		}
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, now); err != nil {
		return err
	}

	if inserted {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	}
	obslogger.WithContext(ctx, s.log).Info("payment event processed",
		zap.String("provider", event.Provider),
		zap.String("event_type", event.Type),
		zap.String("payment_reference", event.PaymentReference),
	)
	return nil
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	event.PaymentReference = strings.TrimSpace(event.PaymentReference)
	if event.Provider == "" || event.ProviderEventID == "" || event.PaymentReference == "" {
		return paymentdomain.ErrInvalidEvent
	}
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded, paymentdomain.EventTypePaymentFailed:
		return nil
	default:
		return paymentdomain.ErrInvalidEvent
	}
}

func paymentStatus(eventType string) string {
	if eventType == paymentdomain.EventTypePaymentSucceeded {
		return orderdomain.PaymentPaid
	}
	return orderdomain.PaymentFailed
}
