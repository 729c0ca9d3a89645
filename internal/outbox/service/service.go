package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/internal/observability/tracing"
	"github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/smallbiznis/atelier/internal/providers/email"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxErrorLength = 1000

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Email   email.Provider
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	email   email.Provider
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("outbox.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		email:   p.Email,
		metrics: p.Metrics,
	}
}

func (s *Service) Enqueue(ctx context.Context, tx *gorm.DB, msgs ...domain.Message) error {
	if tx == nil {
		tx = s.db
	}
	now := s.clock.Now()
	for _, m := range msgs {
		recipient := strings.TrimSpace(m.Recipient)
		if _, err := mail.ParseAddress(recipient); err != nil {
			return domain.ErrInvalidRecipient
		}
		kind := strings.TrimSpace(m.Kind)
		if kind == "" {
			return domain.ErrInvalidKind
		}

		row := &domain.OutboxMessage{
			ID:            s.genID.Generate().Int64(),
			Kind:          kind,
			Recipient:     recipient,
			Subject:       m.Subject,
			HTMLBody:      m.HTMLBody,
			Status:        domain.StatusPending,
			MaxAttempts:   domain.DefaultMaxAttempts,
			NextAttemptAt: now,
			CreatedAt:     now,
		}
		if len(m.Payload) > 0 {
			raw, err := json.Marshal(m.Payload)
			if err != nil {
				return fmt.Errorf("encode outbox payload: %w", err)
			}
			row.Payload = datatypes.JSON(raw)
		}
		if err := s.repo.Insert(ctx, tx, row); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch sends up to limit due messages. Delivery failures are rescheduled
// and reported as a single error wrapping metrics.ErrDelivery.
func (s *Service) Dispatch(ctx context.Context, limit int) (domain.DispatchResult, error) {
	var result domain.DispatchResult
	if limit <= 0 {
		limit = 50
	}

	ctx, span := tracing.Start(ctx, "outbox.dispatch", attribute.Int("outbox.limit", limit))
	defer func() {
		span.SetAttributes(
			attribute.Int("outbox.sent", result.Sent),
			attribute.Int("outbox.retried", result.Retried),
			attribute.Int("outbox.failed", result.Failed),
		)
		span.End()
	}()

	now := s.clock.Now()
	due, err := s.repo.FindDue(ctx, s.db, now, limit)
	if err != nil {
		return result, err
	}

	log := obslogger.WithContext(ctx, s.log)
	for _, msg := range due {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		claimed, err := s.repo.Claim(ctx, s.db, msg.ID, now, now.Add(domain.ClaimTTL))
		if err != nil {
			return result, err
		}
		if !claimed {
			continue
		}
		result.Claimed++

		attempts := msg.Attempts + 1
		sendErr := s.email.Send(ctx, []string{msg.Recipient}, msg.Subject, msg.HTMLBody)
		if sendErr == nil {
			if err := s.repo.MarkSent(ctx, s.db, msg.ID, attempts, s.clock.Now()); err != nil {
				return result, err
			}
			result.Sent++
			s.metrics.RecordOutboxDelivery(ctx, msg.Kind, "sent")
			continue
		}

		lastError := truncate(sendErr.Error(), maxErrorLength)
		fields := []zap.Field{
			zap.String("outbox_id", snowflake.ID(msg.ID).String()),
			zap.String("kind", msg.Kind),
			zap.Int("attempts", attempts),
			zap.Error(sendErr),
		}
		if attempts >= msg.MaxAttempts {
			if err := s.repo.MarkFailed(ctx, s.db, msg.ID, attempts, lastError); err != nil {
				return result, err
			}
			result.Failed++
			s.metrics.RecordOutboxDelivery(ctx, msg.Kind, "failed")
			log.Error("outbox message abandoned", fields...)
			continue
		}

		next := s.clock.Now().Add(domain.Backoff(msg.Attempts))
		if err := s.repo.MarkRetry(ctx, s.db, msg.ID, attempts, next, lastError); err != nil {
			return result, err
		}
		result.Retried++
		s.metrics.RecordOutboxDelivery(ctx, msg.Kind, "retry")
		log.Warn("outbox delivery failed, rescheduled", append(fields, zap.Time("next_attempt_at", next))...)
	}

	if result.Retried+result.Failed > 0 {
		return result, fmt.Errorf("%w: %d of %d messages", obsmetrics.ErrDelivery, result.Retried+result.Failed, result.Claimed)
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, status string) ([]domain.Response, error) {
	st := domain.Status(strings.TrimSpace(status))
	switch st {
	case "", domain.StatusPending, domain.StatusSent, domain.StatusFailed:
	default:
		return nil, domain.ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, s.db, st, 200)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

// Retry puts a failed message back in the queue with a fresh attempt budget.
func (s *Service) Retry(ctx context.Context, id string) (*domain.Response, error) {
	msgID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	ok, err := s.repo.Requeue(ctx, s.db, msgID.Int64(), s.clock.Now())
	if err != nil {
		return nil, err
	}
	msg, err := s.repo.FindByID(ctx, s.db, msgID.Int64())
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, domain.ErrNotFound
	}
	if !ok {
		return nil, domain.ErrNotRetryable
	}
	resp := toResponse(msg)
	return &resp, nil
}

func toResponse(m *domain.OutboxMessage) domain.Response {
	return domain.Response{
		ID:            snowflake.ID(m.ID).String(),
		Kind:          m.Kind,
		Recipient:     m.Recipient,
		Subject:       m.Subject,
		Status:        string(m.Status),
		Attempts:      m.Attempts,
		MaxAttempts:   m.MaxAttempts,
		NextAttemptAt: m.NextAttemptAt,
		LastError:     m.LastError,
		CreatedAt:     m.CreatedAt,
		SentAt:        m.SentAt,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
