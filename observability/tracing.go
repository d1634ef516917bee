package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the sigbus tracer instance, using the global OTel tracer
// provider.
var tracer = otel.Tracer("sigbus")

// SpanManager handles trace span lifecycle for emits and ticks.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartEmitSpan starts a span for one emit pipeline pass.
	StartEmitSpan(ctx context.Context, signalType, signalID string) (context.Context, trace.Span)

	// StartTickSpan starts a span for one fired tick's handler
	// invocation.
	StartTickSpan(ctx context.Context, clockName string, seq uint64) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartEmitSpan starts a span for an emit pipeline pass.
func (m *otelSpanManager) StartEmitSpan(ctx context.Context, signalType, signalID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sigbus.emit",
		trace.WithAttributes(
			attribute.String("signal.type", signalType),
			attribute.String("signal.id", signalID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartTickSpan starts a span for a fired tick's handler invocation.
func (m *otelSpanManager) StartTickSpan(ctx context.Context, clockName string, seq uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sigbus.tick",
		trace.WithAttributes(
			attribute.String("clock.name", clockName),
			attribute.Int64("clock.seq", int64(seq)),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
