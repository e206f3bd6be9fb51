package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes the credit and pricing instruments.
type Metrics struct {
	creditsGranted    metric.Int64Counter
	creditsDebited    metric.Int64Counter
	debitsRejected    metric.Int64Counter
	ledgerEntries     metric.Int64Counter
	priceComputations metric.Int64Counter
	pricingRefunds    metric.Int64Counter
	priceDuration     metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New creates the domain instruments on the given provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "catalyser"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	var err error
	if m.creditsGranted, err = meter.Int64Counter("catalyser_credits_granted_total",
		metric.WithDescription("Credits added to balances."), metric.WithUnit("{credit}")); err != nil {
		return nil, err
	}
	if m.creditsDebited, err = meter.Int64Counter("catalyser_credits_debited_total",
		metric.WithDescription("Credits removed from balances."), metric.WithUnit("{credit}")); err != nil {
		return nil, err
	}
	if m.debitsRejected, err = meter.Int64Counter("catalyser_credit_debits_rejected_total",
		metric.WithDescription("Debit attempts refused for lack of credits.")); err != nil {
		return nil, err
	}
	if m.ledgerEntries, err = meter.Int64Counter("catalyser_credit_ledger_entries_total"); err != nil {
		return nil, err
	}
	if m.priceComputations, err = meter.Int64Counter("catalyser_price_computations_total"); err != nil {
		return nil, err
	}
	if m.pricingRefunds, err = meter.Int64Counter("catalyser_pricing_refunds_total",
		metric.WithDescription("Compensating grants issued after a failed computation.")); err != nil {
		return nil, err
	}
	if m.priceDuration, err = meter.Float64Histogram("catalyser_priced_view_duration_seconds",
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordGrant counts a committed grant of amount credits.
func (m *Metrics) RecordGrant(ctx context.Context, entryType string, amount int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("entry_type", strings.TrimSpace(entryType)))...)
	m.creditsGranted.Add(ctx, amount, attrs)
	m.ledgerEntries.Add(ctx, 1, attrs)
}

// RecordDebit counts a committed debit of amount credits.
func (m *Metrics) RecordDebit(ctx context.Context, entryType string, amount int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("entry_type", strings.TrimSpace(entryType)))...)
	m.creditsDebited.Add(ctx, amount, attrs)
	m.ledgerEntries.Add(ctx, 1, attrs)
}

// RecordDebitRejected counts a debit refused without mutating the balance.
func (m *Metrics) RecordDebitRejected(ctx context.Context, entryType, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("entry_type", strings.TrimSpace(entryType)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.debitsRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPriceComputation counts a priced view by outcome and currency.
func (m *Metrics) RecordPriceComputation(ctx context.Context, outcome, currency string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("currency", strings.ToUpper(strings.TrimSpace(currency))),
	)...)
	m.priceComputations.Add(ctx, 1, attrs)
	m.priceDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordPricingRefund counts a compensating grant.
func (m *Metrics) RecordPricingRefund(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.pricingRefunds.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// User ids are deliberately absent: one series per account would explode cardinality.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"entry_type":  {},
	"reason":      {},
	"outcome":     {},
	"currency":    {},
	"endpoint":    {},
	"status_code": {},
	"subject":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
