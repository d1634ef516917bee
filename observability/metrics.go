package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records sigbus metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEmit records one completed emit pipeline pass.
	RecordEmit(ctx context.Context, signalType string, duration time.Duration, err error)

	// RecordTick records one fired clock tick.
	RecordTick(ctx context.Context, clockName, reason string, driftMs float64)

	// RecordDrop records a tick dropped by a back-pressure policy.
	RecordDrop(ctx context.Context, clockName string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	emitted     metric.Int64Counter
	emitLatency metric.Float64Histogram
	emitErrors  metric.Int64Counter
	ticks       metric.Int64Counter
	tickDrift   metric.Float64Histogram
	drops       metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("sigbus")

	emitted, err := meter.Int64Counter("sigbus.bus.emitted",
		metric.WithDescription("Number of signals emitted"),
	)
	if err != nil {
		return nil, err
	}

	emitLatency, err := meter.Float64Histogram("sigbus.bus.emit_latency_ms",
		metric.WithDescription("Emit pipeline latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	emitErrors, err := meter.Int64Counter("sigbus.bus.errors",
		metric.WithDescription("Number of emit pipeline failures"),
	)
	if err != nil {
		return nil, err
	}

	ticks, err := meter.Int64Counter("sigbus.clock.ticks",
		metric.WithDescription("Number of clock ticks fired"),
	)
	if err != nil {
		return nil, err
	}

	tickDrift, err := meter.Float64Histogram("sigbus.clock.drift_ms",
		metric.WithDescription("Tick drift in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	drops, err := meter.Int64Counter("sigbus.clock.dropped_ticks",
		metric.WithDescription("Number of ticks dropped by a back-pressure policy"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		emitted:     emitted,
		emitLatency: emitLatency,
		emitErrors:  emitErrors,
		ticks:       ticks,
		tickDrift:   tickDrift,
		drops:       drops,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordEmit records an emit pipeline pass.
func (m *otelMetrics) RecordEmit(ctx context.Context, signalType string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{attribute.String("signal_type", signalType)}

	m.emitted.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.emitLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.emitErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordTick records a fired tick.
func (m *otelMetrics) RecordTick(ctx context.Context, clockName, reason string, driftMs float64) {
	attrs := []attribute.KeyValue{
		attribute.String("clock", clockName),
		attribute.String("reason", reason),
	}
	m.ticks.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.tickDrift.Record(ctx, driftMs, metric.WithAttributes(attrs...))
}

// RecordDrop records a dropped tick.
func (m *otelMetrics) RecordDrop(ctx context.Context, clockName string) {
	m.drops.Add(ctx, 1, metric.WithAttributes(attribute.String("clock", clockName)))
}
