package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tracks one execution of a job. Jobs called from runJob share the
// run opened there; jobs invoked directly open their own.
type jobRun struct {
	job       string
	id        string
	started   time.Time
	processed int
	failures  int
	log       *zap.Logger
}

type runKey struct{}

func (s *Scheduler) beginRun(ctx context.Context, job string) (context.Context, *jobRun, bool) {
	if run, ok := ctx.Value(runKey{}).(*jobRun); ok {
		return ctx, run, false
	}

	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	run := &jobRun{
		job:     job,
		id:      s.genID.Generate().String(),
		started: s.clock.Now(),
	}
	run.log = obslogger.WithContext(ctx, s.log).With(
		zap.String("job", job),
		zap.String("run_id", run.id),
	)
	run.log.Debug("job started", zap.Int("batch_size", s.cfg.BatchSize))
	return context.WithValue(ctx, runKey{}, run), run, true
}

func (s *Scheduler) endRun(run *jobRun, err error) {
	if err != nil && run.failures == 0 {
		run.failures++
	}
	fields := []zap.Field{
		zap.Duration("elapsed", s.clock.Now().Sub(run.started)),
		zap.Int("processed", run.processed),
		zap.Int("failures", run.failures),
	}
	switch {
	case run.failures > 0:
		run.log.Warn("job finished with failures", fields...)
	case run.processed > 0:
		run.log.Info("job finished", fields...)
	default:
		run.log.Debug("job finished", fields...)
	}
}

func (r *jobRun) fail(msg string, err error) {
	r.failures++
	r.log.Error(msg,
		zap.Error(err),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
	)
}
