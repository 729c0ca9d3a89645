package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	authdomain "github.com/smallbiznis/atelier/internal/auth/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunJobTimeoutIsSoft(t *testing.T) {
	registry := prometheus.NewRegistry()
	t.Cleanup(swapPrometheusRegistry(registry))
	obsmetrics.ResetSchedulerMetricsForTest()
	obsmetrics.SchedulerWithConfig(obsmetrics.Config{ServiceName: "atelier", Environment: "test"})

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	s := &Scheduler{log: zap.NewNop(), genID: node, clock: clock.NewFakeClock(time.Time{}), cfg: DefaultConfig()}

	err = s.runJob(context.Background(), JobOutboxDispatch, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)

	base := map[string]string{"service": "atelier", "env": "test", "job": JobOutboxDispatch}
	assert.Equal(t, 1.0, counterValue(t, registry, "atelier_scheduler_job_timeouts_total", base))
	assert.Equal(t, 1.0, counterValue(t, registry, "atelier_scheduler_job_errors_total", withLabels(base, map[string]string{
		"error_type": obsmetrics.SchedulerErrorTypeDeadlineExceeded,
		"reason":     obsmetrics.SchedulerJobReasonDeadlineExceeded,
	})))
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer, oldGatherer := prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	prometheus.DefaultRegisterer, prometheus.DefaultGatherer = registry, registry
	return func() {
		prometheus.DefaultRegisterer, prometheus.DefaultGatherer = oldRegisterer, oldGatherer
		obsmetrics.ResetSchedulerMetricsForTest()
	}
}

func withLabels(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// counterValue finds the counter series of name whose label set equals labels.
func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if sameLabels(m.GetLabel(), labels) {
				require.NotNil(t, m.GetCounter(), "%s is not a counter", name)
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func sameLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

type fakeOutbox struct {
	outboxdomain.Service
	batches []outboxdomain.DispatchResult
	limits  []int
	err     error
}

func (f *fakeOutbox) Dispatch(_ context.Context, limit int) (outboxdomain.DispatchResult, error) {
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return outboxdomain.DispatchResult{}, f.err
	}
	if len(f.batches) == 0 {
		return outboxdomain.DispatchResult{}, nil
	}
	res := f.batches[0]
	f.batches = f.batches[1:]
	return res, nil
}

type fakeAuth struct {
	authdomain.Service
	purged int64
	calls  int
	err    error
}

func (f *fakeAuth) PurgeExpired(context.Context) (int64, error) {
	f.calls++
	return f.purged, f.err
}

type fakeLocker struct {
	held     map[string]bool
	released []string
}

func (l *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if l.held[key] {
		return "", false, nil
	}
	return "token", true, nil
}

func (l *fakeLocker) Release(_ context.Context, key, _ string) error {
	l.released = append(l.released, key)
	return nil
}

func newTestScheduler(t *testing.T, outbox *fakeOutbox, auth *fakeAuth, cfg Config) *Scheduler {
	t.Helper()
	registry := prometheus.NewRegistry()
	t.Cleanup(swapPrometheusRegistry(registry))
	obsmetrics.ResetSchedulerMetricsForTest()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	s, err := New(Params{
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewFakeClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)),
		OutboxSvc: outbox,
		AuthSvc:   auth,
		Config:    cfg,
	})
	require.NoError(t, err)
	return s
}

func TestNewRequiresServices(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceDrainsOutboxUntilShortBatch(t *testing.T) {
	outbox := &fakeOutbox{batches: []outboxdomain.DispatchResult{
		{Claimed: 2, Sent: 2},
		{Claimed: 2, Sent: 1, Retried: 1},
		{Claimed: 1, Sent: 1},
	}}
	auth := &fakeAuth{purged: 3}
	s := newTestScheduler(t, outbox, auth, Config{BatchSize: 2})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []int{2, 2, 2}, outbox.limits)
	assert.Equal(t, 1, auth.calls)
}

func TestRunOnceHonoursEnabledJobs(t *testing.T) {
	outbox := &fakeOutbox{}
	auth := &fakeAuth{}
	s := newTestScheduler(t, outbox, auth, Config{EnabledJobs: []string{"SESSION_CLEANUP"}})

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, outbox.limits)
	assert.Equal(t, 1, auth.calls)
}

func TestRunOnceJoinsJobErrors(t *testing.T) {
	outbox := &fakeOutbox{err: errors.New("db down")}
	auth := &fakeAuth{err: errors.New("db down")}
	s := newTestScheduler(t, outbox, auth, Config{})

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobOutboxDispatch)
	assert.Contains(t, err.Error(), JobSessionCleanup)
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	outbox := &fakeOutbox{}
	auth := &fakeAuth{}
	s := newTestScheduler(t, outbox, auth, Config{})
	locker := &fakeLocker{held: map[string]bool{lockPrefix + JobOutboxDispatch: true}}
	s.locker = locker

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, outbox.limits)
	assert.Equal(t, 1, auth.calls)
	assert.Equal(t, []string{lockPrefix + JobSessionCleanup}, locker.released)
}

func TestRunOnceSkipsJobsWhileLocksHeld(t *testing.T) {
	outbox := &fakeOutbox{}
	auth := &fakeAuth{}
	s := newTestScheduler(t, outbox, auth, Config{})
	s.locker = &fakeLocker{held: map[string]bool{
		lockPrefix + JobOutboxDispatch: true,
		lockPrefix + JobSessionCleanup: true,
	}}

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, auth.calls)
}

func TestSessionCleanupJobRunsStandalone(t *testing.T) {
	auth := &fakeAuth{purged: 4}
	s := newTestScheduler(t, &fakeOutbox{}, auth, Config{})

	require.NoError(t, s.SessionCleanupJob(context.Background()))
	assert.Equal(t, 1, auth.calls)
}
