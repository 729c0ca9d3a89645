package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/atelier/internal/auth/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobOutboxDispatch = "outbox_dispatch"
	JobSessionCleanup = "session_cleanup"

	lockPrefix = "scheduler:"
)

var ErrInvalidConfig = errors.New("scheduler: invalid config")

// Locker is satisfied by *ratelimit.Locker.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	OutboxSvc outboxdomain.Service
	AuthSvc   authdomain.Service
	Locker    *ratelimit.Locker `optional:"true"`
	Config    Config            `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	outboxSvc outboxdomain.Service
	authSvc   authdomain.Service
	locker    Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.OutboxSvc == nil || p.AuthSvc == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		outboxSvc: p.OutboxSvc,
		authSvc:   p.AuthSvc,
	}
	// A nil *ratelimit.Locker must stay a nil interface.
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if s.locker != nil {
		key := lockPrefix + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("scheduler lock unavailable", zap.String("job", name), zap.Error(err))
		} else if !ok {
			obsmetrics.Scheduler().IncBatchDeferred(name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
			return nil
		} else {
			defer func() {
				if err := s.locker.Release(context.Background(), key, token); err != nil {
					s.log.Warn("scheduler lock release failed", zap.String("job", name), zap.Error(err))
				}
			}()
		}
	}

	ctx, run, owner := s.beginRun(ctx, name)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		s.endRun(run, err)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks the work up again
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		run.log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobOutboxDispatch, s.OutboxDispatchJob},
		{JobSessionCleanup, s.SessionCleanupJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// OutboxDispatchJob drains pending outbox messages in batches until a batch
// comes back short.
func (s *Scheduler) OutboxDispatchJob(ctx context.Context) (err error) {
	ctx, run, owner := s.beginRun(ctx, JobOutboxDispatch)
	if owner {
		defer func() { s.endRun(run, err) }()
	}
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := s.outboxSvc.Dispatch(ctx, s.cfg.BatchSize)
		run.processed += res.Sent
		schedMetrics.AddBatchProcessed(JobOutboxDispatch, "outbox_messages", res.Claimed)
		if err != nil {
			run.fail("outbox dispatch failed", err)
			return err
		}
		if res.Claimed < s.cfg.BatchSize {
			return nil
		}
	}
}

// SessionCleanupJob purges expired admin sessions.
func (s *Scheduler) SessionCleanupJob(ctx context.Context) (err error) {
	ctx, run, owner := s.beginRun(ctx, JobSessionCleanup)
	if owner {
		defer func() { s.endRun(run, err) }()
	}

	n, err := s.authSvc.PurgeExpired(ctx)
	if err != nil {
		run.fail("session cleanup failed", err)
		return err
	}
	run.processed += int(n)
	obsmetrics.Scheduler().AddBatchProcessed(JobSessionCleanup, "admin_sessions", int(n))
	return nil
}
