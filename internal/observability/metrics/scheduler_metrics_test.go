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

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "canceled", err: fmt.Errorf("reconcile: %w", context.Canceled), want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySchedulerJobReason(tc.err))
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "catalyser", Environment: "test"})

	m.AddBatchProcessed("ledger_drift", "accounts", 3)
	m.AddBatchProcessed("ledger_drift", "accounts", 0)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchProcessed.WithLabelValues("ledger_drift", "accounts")))
}

func TestIncLedgerDrift(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{})

	m.IncLedgerDrift("balance")
	m.IncLedgerDrift("balance")
	m.IncLedgerDrift("chain")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.driftDetected.WithLabelValues("balance")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.driftDetected.WithLabelValues("chain")))
}
