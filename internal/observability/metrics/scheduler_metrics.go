package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Error types attached to scheduler logs and the job error counter.
const (
	SchedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	SchedulerErrorTypeDB               = "db"
	SchedulerErrorTypeDelivery         = "delivery"
	SchedulerErrorTypeUnknown          = "unknown"
)

// Reasons refine an error type on the job error counter.
const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBBusy               = "db_busy"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonDelivery             = "delivery"
	SchedulerJobReasonUnknown              = "unknown"

	SchedulerBatchDeferredReasonLockHeld = "lock_held"
)

// ErrDelivery marks failures of an outbound channel (smtp, sns) rather than
// of storage. Delivery failures are retried by the outbox itself.
var ErrDelivery = errors.New("delivery_failed")

// SchedulerMetrics are Prometheus collectors for the outbox and session
// cleanup jobs, served on /metrics.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	batchDeferred  *prometheus.CounterVec
	runLoopLag     prometheus.Histogram
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the process-wide collectors, registering them on first use.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig registers the collectors with service and env labels
// taken from cfg. Only the first call's cfg is used.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func NewSchedulerMetricsForTest(registerer prometheus.Registerer) *SchedulerMetrics {
	return newSchedulerMetrics(registerer, Config{ServiceName: "atelier", Environment: "test"})
}

func newSchedulerMetrics(reg prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := constLabelsFor(cfg)
	counter := func(name, help string, keys ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "atelier",
			Subsystem:   "scheduler",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, keys)
	}

	m := &SchedulerMetrics{
		jobRuns:        counter("job_runs_total", "Job executions.", "job"),
		jobTimeouts:    counter("job_timeouts_total", "Jobs stopped by their soft timeout.", "job"),
		jobErrors:      counter("job_errors_total", "Job failures by type and reason.", "job", "error_type", "reason"),
		batchProcessed: counter("batch_processed_total", "Rows handled by job batches.", "job", "resource"),
		batchDeferred:  counter("batch_deferred_total", "Job runs skipped, for instance while another replica holds the lock.", "job", "reason"),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "atelier",
			Subsystem:   "scheduler",
			Name:        "job_duration_seconds",
			Help:        "Job wall time.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			ConstLabels: labels,
		}, []string{"job"}),
		runLoopLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "atelier",
			Subsystem:   "scheduler",
			Name:        "runloop_lag_seconds",
			Help:        "Delay between a planned tick and the start of its run.",
			Buckets:     []float64{0.01, 0.1, 0.5, 1, 5, 15, 60},
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.jobRuns, m.jobDuration, m.jobTimeouts, m.jobErrors, m.batchProcessed, m.batchDeferred, m.runLoopLag)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m != nil {
		m.jobRuns.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m != nil {
		m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
	}
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m != nil {
		m.jobTimeouts.WithLabelValues(job).Inc()
	}
}

func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	c := classify(err)
	m.jobErrors.WithLabelValues(job, c.errType, c.reason).Inc()
}

// AddBatchProcessed ignores non-positive counts.
func (m *SchedulerMetrics) AddBatchProcessed(job, resource string, count int) {
	if m != nil && count > 0 {
		m.batchProcessed.WithLabelValues(job, resource).Add(float64(count))
	}
}

func (m *SchedulerMetrics) IncBatchDeferred(job, reason string) {
	if m != nil {
		m.batchDeferred.WithLabelValues(job, reason).Inc()
	}
}

func (m *SchedulerMetrics) ObserveRunLoopLag(d time.Duration) {
	if m != nil {
		m.runLoopLag.Observe(max(d, 0).Seconds())
	}
}

type classification struct {
	errType   string
	reason    string
	retryable bool
}

// errorRules are checked in order; the first match wins.
var errorRules = []struct {
	match func(error) bool
	classification
}{
	{isCanceled, classification{SchedulerErrorTypeDeadlineExceeded, SchedulerJobReasonDeadlineExceeded, true}},
	{func(err error) bool { return errors.Is(err, ErrDelivery) }, classification{SchedulerErrorTypeDelivery, SchedulerJobReasonDelivery, true}},
	{func(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }, classification{SchedulerErrorTypeUnknown, SchedulerJobReasonUnknown, false}},
	{pgCode("55P03"), classification{SchedulerErrorTypeDB, SchedulerJobReasonDBLockTimeout, true}},
	{pgCode("40001"), classification{SchedulerErrorTypeDB, SchedulerJobReasonSerializationFailure, true}},
	{isUniqueViolation, classification{SchedulerErrorTypeDB, SchedulerJobReasonUniqueViolation, true}},
	{isSQLiteBusy, classification{SchedulerErrorTypeDB, SchedulerJobReasonDBBusy, true}},
	{isGormError, classification{SchedulerErrorTypeDB, SchedulerJobReasonUnknown, true}},
}

func classify(err error) classification {
	if err != nil {
		for _, rule := range errorRules {
			if rule.match(err) {
				return rule.classification
			}
		}
	}
	return classification{SchedulerErrorTypeUnknown, SchedulerJobReasonUnknown, false}
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logs.
func ClassifySchedulerErrorType(err error) string { return classify(err).errType }

// ClassifySchedulerJobReason returns the counter reason label for err.
func ClassifySchedulerJobReason(err error) string { return classify(err).reason }

// IsSchedulerErrorRetryable reports whether the next tick may succeed where
// this one failed.
func IsSchedulerErrorRetryable(err error) bool { return classify(err).retryable }

func isCanceled(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func pgCode(code string) func(error) bool {
	return func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == code
	}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || pgCode("23505")(err)
}

// isSQLiteBusy matches SQLITE_BUSY from the embedded driver, which only
// surfaces as text.
func isSQLiteBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func isGormError(err error) bool {
	for _, target := range []error{gorm.ErrInvalidDB, gorm.ErrInvalidTransaction, gorm.ErrInvalidData, gorm.ErrMissingWhereClause} {
		if errors.Is(err, target) {
			return true
		}
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
