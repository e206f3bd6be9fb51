package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("entry_type", "CONSUMPTION"),
		attribute.String("user_id", "user_123"),
		attribute.String("reason", "insufficient_credits"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("entry_type"), attrs[0].Key)
	assert.Equal(t, attribute.Key("reason"), attrs[1].Key)
}

func TestRecordGrantAndDebit(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := New(Config{ServiceName: "catalyser"}, provider)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordGrant(ctx, "GRANT", 20)
	m.RecordDebit(ctx, "CONSUMPTION", 1)
	m.RecordDebit(ctx, "CONSUMPTION", 1)
	m.RecordPriceComputation(ctx, "ok", "usd", 5*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, md := range scope.Metrics {
			sum, ok := md.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[md.Name] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(20), sums["catalyser_credits_granted_total"])
	assert.Equal(t, int64(2), sums["catalyser_credits_debited_total"])
	assert.Equal(t, int64(3), sums["catalyser_credit_ledger_entries_total"])
	assert.Equal(t, int64(1), sums["catalyser_price_computations_total"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordGrant(context.Background(), "GRANT", 1)
		m.RecordDebitRejected(context.Background(), "CONSUMPTION", "insufficient_credits")
		m.RecordPricingRefund(context.Background(), "invalid_input")
	})
}
