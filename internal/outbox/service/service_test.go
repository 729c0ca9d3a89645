package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/smallbiznis/atelier/internal/outbox/repository"
	"github.com/smallbiznis/atelier/internal/outbox/service"
	"github.com/smallbiznis/atelier/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingProvider struct {
	mu   sync.Mutex
	sent []string
	fail error
}

func (p *recordingProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, to[0]+"|"+subject)
	return nil
}

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	email *recordingProvider
	svc   domain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	provider := &recordingProvider{}
	svc := service.New(service.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Email: provider,
	})
	return fixture{db: conn, clock: clk, email: provider, svc: svc}
}

func statusOf(t *testing.T, conn *gorm.DB) (string, int) {
	t.Helper()
	var row struct {
		Status   string
		Attempts int
	}
	require.NoError(t, conn.Raw(`SELECT status, attempts FROM outbox_messages LIMIT 1`).Scan(&row).Error)
	return row.Status, row.Attempts
}

func TestEnqueueValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Enqueue(ctx, nil, domain.Message{Kind: domain.KindOrderStatus, Recipient: "not-an-address"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecipient)

	err = f.svc.Enqueue(ctx, nil, domain.Message{Recipient: "client@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM outbox_messages`)
}

func TestEnqueueRollsBackWithTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.Enqueue(ctx, tx, domain.Message{
			Kind:      domain.KindOrderStatus,
			Recipient: "client@example.com",
			Subject:   "Commande confirmée",
			HTMLBody:  "<p>ok</p>",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM outbox_messages`)
}

func TestDispatchSendsDueMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Enqueue(ctx, nil,
		domain.Message{Kind: domain.KindOrderStatus, Recipient: "a@example.com", Subject: "A", HTMLBody: "a", Payload: map[string]any{"order_id": "1"}},
		domain.Message{Kind: domain.KindSellerOrder, Recipient: "b@example.com", Subject: "B", HTMLBody: "b"},
	))

	res, err := f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchResult{Claimed: 2, Sent: 2}, res)
	assert.ElementsMatch(t, []string{"a@example.com|A", "b@example.com|B"}, f.email.sent)

	res, err = f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Claimed, "sent messages are not dispatched twice")
}

func TestDispatchBacksOffThenFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.email.fail = errors.New("smtp 451")

	require.NoError(t, f.svc.Enqueue(ctx, nil, domain.Message{
		Kind: domain.KindOrderStatus, Recipient: "a@example.com", Subject: "A", HTMLBody: "a",
	}))

	res, err := f.svc.Dispatch(ctx, 10)
	require.ErrorIs(t, err, obsmetrics.ErrDelivery)
	assert.Equal(t, 1, res.Retried)
	status, attempts := statusOf(t, f.db)
	assert.Equal(t, "pending", status)
	assert.Equal(t, 1, attempts)

	res, err = f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Claimed, "not due before the backoff elapses")

	for i := 1; i < domain.DefaultMaxAttempts; i++ {
		f.clock.Advance(domain.MaxBackoff)
		_, err = f.svc.Dispatch(ctx, 10)
		require.Error(t, err)
	}

	status, attempts = statusOf(t, f.db)
	assert.Equal(t, "failed", status)
	assert.Equal(t, domain.DefaultMaxAttempts, attempts)

	failed, err := f.svc.List(ctx, "failed")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].LastError)
	assert.Contains(t, *failed[0].LastError, "smtp 451")

	f.email.fail = nil
	retried, err := f.svc.Retry(ctx, failed[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", retried.Status)
	assert.Zero(t, retried.Attempts)

	res, err = f.svc.Dispatch(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
}

func TestRetryRejectsNonFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.Enqueue(ctx, nil, domain.Message{
		Kind: domain.KindOrderStatus, Recipient: "a@example.com", Subject: "A", HTMLBody: "a",
	}))
	items, err := f.svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = f.svc.Retry(ctx, items[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotRetryable)

	_, err = f.svc.Retry(ctx, "123")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Retry(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = f.svc.List(ctx, "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
