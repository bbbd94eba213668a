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

// Metrics exposes application-level instruments.
type Metrics struct {
	eventsApplied    metric.Int64Counter
	ledgerEntries    metric.Int64Counter
	jobsEnqueued     metric.Int64Counter
	matchesConfirmed metric.Int64Counter
	anomalies        metric.Int64Counter
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

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "ledgerlink"
	}
	meter := provider.Meter(name)

	eventsApplied, err := meter.Int64Counter("ledgerlink_events_applied_total")
	if err != nil {
		return nil, err
	}
	ledgerEntries, err := meter.Int64Counter("ledgerlink_ledger_entries_total")
	if err != nil {
		return nil, err
	}
	jobsEnqueued, err := meter.Int64Counter("ledgerlink_jobs_enqueued_total")
	if err != nil {
		return nil, err
	}
	matchesConfirmed, err := meter.Int64Counter("ledgerlink_reconciliation_matches_total")
	if err != nil {
		return nil, err
	}
	anomalies, err := meter.Int64Counter("ledgerlink_apply_anomalies_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsApplied:    eventsApplied,
		ledgerEntries:    ledgerEntries,
		jobsEnqueued:     jobsEnqueued,
		matchesConfirmed: matchesConfirmed,
		anomalies:        anomalies,
	}, nil
}

// RecordEventApplied increments applied canonical event counts.
func (m *Metrics) RecordEventApplied(ctx context.Context, provider, domainType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("domain_type", strings.TrimSpace(domainType)),
	)
	m.eventsApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerEntry increments ledger entry counts.
func (m *Metrics) RecordLedgerEntry(ctx context.Context, category string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("category", strings.TrimSpace(category)))
	m.ledgerEntries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobEnqueued increments enqueued job counts.
func (m *Metrics) RecordJobEnqueued(ctx context.Context, jobType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("job_type", strings.TrimSpace(jobType)))
	m.jobsEnqueued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMatchConfirmed increments confirmed reconciliation match counts.
func (m *Metrics) RecordMatchConfirmed(ctx context.Context) {
	if m == nil {
		return
	}
	m.matchesConfirmed.Add(ctx, 1)
}

// RecordAnomaly increments apply anomaly counts.
func (m *Metrics) RecordAnomaly(ctx context.Context, entityType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("entity_type", strings.TrimSpace(entityType)))
	m.anomalies.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"provider":    {},
	"domain_type": {},
	"job_type":    {},
	"category":    {},
	"entity_type": {},
	"reason":      {},
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
