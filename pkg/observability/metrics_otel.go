package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the login and directory metrics as OpenTelemetry
// instruments and exports connection pool gauges
type OTelMetrics struct {
	logins            metric.Int64Counter
	directoryDuration metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on meter
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	m.logins, err = meter.Int64Counter(
		"sitemgmt.logins",
		metric.WithDescription("Completed login callbacks by outcome"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logins counter: %w", err)
	}

	m.directoryDuration, err = meter.Float64Histogram(
		"sitemgmt.directory.duration",
		metric.WithDescription("Admin directory operation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory duration histogram: %w", err)
	}

	return m, nil
}

// RecordLogin counts a finished login callback
func (m *OTelMetrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDirectoryOperation records the latency of a directory call
func (m *OTelMetrics) RecordDirectoryOperation(ctx context.Context, operation, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.directoryDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("result", result),
	))
}

// RegisterDBPoolMetrics reports db's connection pool through observable
// gauges read at collection time
func RegisterDBPoolMetrics(meter metric.Meter, db *sql.DB) error {
	inUse, err := meter.Int64ObservableGauge("sitemgmt.db.connections.in_use",
		metric.WithDescription("Database connections currently in use"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create in-use connections gauge: %w", err)
	}
	idle, err := meter.Int64ObservableGauge("sitemgmt.db.connections.idle",
		metric.WithDescription("Idle database connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return fmt.Errorf("failed to create idle connections gauge: %w", err)
	}
	waits, err := meter.Int64ObservableCounter("sitemgmt.db.connections.waits",
		metric.WithDescription("Connections waited for since the pool opened"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return fmt.Errorf("failed to create connection waits counter: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := db.Stats()
		o.ObserveInt64(inUse, int64(stats.InUse))
		o.ObserveInt64(idle, int64(stats.Idle))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, inUse, idle, waits)
	if err != nil {
		return fmt.Errorf("failed to register pool callback: %w", err)
	}
	return nil
}
