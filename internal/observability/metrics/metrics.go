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

const exportInterval = 30 * time.Second

// Config configures the OTLP meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics holds the shop's business instruments. A nil *Metrics records
// nothing, which keeps services usable in tests without a provider.
type Metrics struct {
	ordersCreated    metric.Int64Counter
	orderValue       metric.Float64Histogram
	checkoutRejected metric.Int64Counter
	statusChanges    metric.Int64Counter
	outboxDeliveries metric.Int64Counter
	paymentEvents    metric.Int64Counter
	rateLimit        metric.Int64Counter
}

// NewProvider returns a no-op provider unless OTLP export is enabled.
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
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)
	otel.SetMeterProvider(provider)
	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	if log != nil {
		log.Info("otlp metrics export enabled",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}
	return provider, nil
}

// New registers the storefront instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "atelier"
	}
	meter := provider.Meter(name)

	var (
		m   Metrics
		err error
	)
	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	m.ordersCreated = counter("atelier_orders_created_total", "Orders accepted at checkout.")
	m.checkoutRejected = counter("atelier_checkout_rejected_total", "Checkouts refused before any write.")
	m.statusChanges = counter("atelier_status_changes_total", "Applied order and thread status transitions.")
	m.outboxDeliveries = counter("atelier_outbox_deliveries_total", "Outbox email send attempts.")
	m.paymentEvents = counter("atelier_payment_events_total", "Processed payment provider events.")
	m.rateLimit = counter("atelier_rate_limit_decisions_total", "Rate limit decisions on public endpoints.")
	if err != nil {
		return nil, err
	}

	m.orderValue, err = meter.Float64Histogram("atelier_order_value_eur",
		metric.WithDescription("Order totals in euros, shipping included."),
		metric.WithUnit("EUR"),
		metric.WithExplicitBucketBoundaries(25, 50, 100, 200, 400, 800, 1600),
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Metrics) add(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
}

// RecordOrderCreated counts an accepted checkout and observes its total.
func (m *Metrics) RecordOrderCreated(ctx context.Context, total float64) {
	if m == nil {
		return
	}
	m.add(ctx, m.ordersCreated)
	m.orderValue.Record(ctx, total)
}

func (m *Metrics) RecordCheckoutRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.add(ctx, m.checkoutRejected, attribute.String("reason", reason))
}

// RecordStatusChange counts a transition; resource is "order" or "thread".
func (m *Metrics) RecordStatusChange(ctx context.Context, resource, status string) {
	if m == nil {
		return
	}
	m.add(ctx, m.statusChanges, attribute.String("resource", resource), attribute.String("status", status))
}

// RecordOutboxDelivery counts a send attempt; result is sent, retry or failed.
func (m *Metrics) RecordOutboxDelivery(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	m.add(ctx, m.outboxDeliveries, attribute.String("kind", kind), attribute.String("result", result))
}

func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	m.add(ctx, m.paymentEvents, attribute.String("provider", provider), attribute.String("event_type", eventType))
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.add(ctx, m.rateLimit, attribute.String("endpoint", endpoint), attribute.String("result", "allowed"))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	m.add(ctx, m.rateLimit,
		attribute.String("endpoint", endpoint),
		attribute.String("result", "denied"),
		attribute.String("reason", reason),
	)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

// Label keys exported on storefront instruments. Anything else, customer
// emails or order ids in particular, is dropped.
var allowedLabelKeys = map[attribute.Key]bool{
	"endpoint":    true,
	"status_code": true,
	"provider":    true,
	"event_type":  true,
	"reason":      true,
	"resource":    true,
	"status":      true,
	"kind":        true,
	"result":      true,
}

// FilterAttributes keeps only allowed label keys and trims their values.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if !allowedLabelKeys[attr.Key] {
			continue
		}
		if attr.Value.Type() == attribute.STRING {
			attr = attr.Key.String(strings.TrimSpace(attr.Value.AsString()))
		}
		out = append(out, attr)
	}
	return out
}
