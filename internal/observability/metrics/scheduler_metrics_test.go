package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifySchedulerErrors(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		errType   string
		reason    string
		retryable bool
	}{
		{"deadline", fmt.Errorf("outbox_dispatch: %w", context.DeadlineExceeded), SchedulerErrorTypeDeadlineExceeded, SchedulerJobReasonDeadlineExceeded, true},
		{"delivery", fmt.Errorf("%w: 2 of 5 messages", ErrDelivery), SchedulerErrorTypeDelivery, SchedulerJobReasonDelivery, true},
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, SchedulerErrorTypeDB, SchedulerJobReasonDBLockTimeout, true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, SchedulerErrorTypeDB, SchedulerJobReasonSerializationFailure, true},
		{"duplicate key", gorm.ErrDuplicatedKey, SchedulerErrorTypeDB, SchedulerJobReasonUniqueViolation, true},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), SchedulerErrorTypeDB, SchedulerJobReasonDBBusy, true},
		{"invalid transaction", gorm.ErrInvalidTransaction, SchedulerErrorTypeDB, SchedulerJobReasonUnknown, true},
		{"record not found", gorm.ErrRecordNotFound, SchedulerErrorTypeUnknown, SchedulerJobReasonUnknown, false},
		{"other", errors.New("boom"), SchedulerErrorTypeUnknown, SchedulerJobReasonUnknown, false},
		{"nil", nil, SchedulerErrorTypeUnknown, SchedulerJobReasonUnknown, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.errType, ClassifySchedulerErrorType(tc.err))
			assert.Equal(t, tc.reason, ClassifySchedulerJobReason(tc.err))
			assert.Equal(t, tc.retryable, IsSchedulerErrorRetryable(tc.err))
		})
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	m := NewSchedulerMetricsForTest(prometheus.NewRegistry())

	m.IncJobRun("outbox_dispatch")
	m.IncJobRun("outbox_dispatch")
	m.AddBatchProcessed("outbox_dispatch", "outbox_messages", 4)
	m.AddBatchProcessed("outbox_dispatch", "outbox_messages", 0)
	m.IncJobError("outbox_dispatch", context.DeadlineExceeded)
	m.IncJobError("outbox_dispatch", nil)
	m.IncBatchDeferred("session_cleanup", SchedulerBatchDeferredReasonLockHeld)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("outbox_dispatch")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.batchProcessed.WithLabelValues("outbox_dispatch", "outbox_messages")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobErrors.WithLabelValues("outbox_dispatch", SchedulerErrorTypeDeadlineExceeded, SchedulerJobReasonDeadlineExceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchDeferred.WithLabelValues("session_cleanup", SchedulerBatchDeferredReasonLockHeld)))
}

func TestNilSchedulerMetricsIsSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("outbox_dispatch")
	m.IncJobError("outbox_dispatch", errors.New("boom"))
	m.ObserveRunLoopLag(-1)
}
