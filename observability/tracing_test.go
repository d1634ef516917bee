package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a test tracer provider with an in-memory span recorder.
func setupTracingTest(t *testing.T) (*tracetest.InMemoryExporter, func()) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	originalProvider := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = otel.Tracer("sigbus")

	cleanup := func() {
		otel.SetTracerProvider(originalProvider)
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("error shutting down tracer provider: %v", err)
		}
	}

	return exporter, cleanup
}

func TestSpanManager_StartEmitSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("creates span with correct name and attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartEmitSpan(ctx, "order.created", "sig-123")
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "sigbus.emit", s.Name)

		var signalType, signalID string
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "signal.type":
				signalType = attr.Value.AsString()
			case "signal.id":
				signalID = attr.Value.AsString()
			}
		}
		assert.Equal(t, "order.created", signalType)
		assert.Equal(t, "sig-123", signalID)
	})

	t.Run("returns context carrying the span", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		newCtx, span := sm.StartEmitSpan(ctx, "order.paid", "sig-456")

		assert.NotEqual(t, ctx, newCtx)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
	})
}

func TestSpanManager_StartTickSpan(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("creates span with clock attributes", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartTickSpan(ctx, "heartbeat", 7)
		require.NotNil(t, span)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, "sigbus.tick", s.Name)

		var clockName string
		var seq int64
		for _, attr := range s.Attributes {
			switch attr.Key {
			case "clock.name":
				clockName = attr.Value.AsString()
			case "clock.seq":
				seq = attr.Value.AsInt64()
			}
		}
		assert.Equal(t, "heartbeat", clockName)
		assert.Equal(t, int64(7), seq)
	})

	t.Run("child spans carry a valid parent", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		ctx, emitSpan := sm.StartEmitSpan(ctx, "order.created", "sig-1")
		_, tickSpan := sm.StartTickSpan(ctx, "heartbeat", 1)
		tickSpan.End()
		emitSpan.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 2)

		var tickSpanData *tracetest.SpanStub
		for i := range spans {
			if spans[i].Name == "sigbus.tick" {
				tickSpanData = &spans[i]
			}
		}
		require.NotNil(t, tickSpanData)
		assert.True(t, tickSpanData.Parent.IsValid())
	})
}

func TestSpanManager_EndSpanWithError(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("sets OK status for nil error", func(t *testing.T) {
		ctx := context.Background()
		_, span := sm.StartEmitSpan(ctx, "t", "1")

		sm.EndSpanWithError(span, nil)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Ok, spans[0].Status.Code)
	})

	t.Run("sets Error status and records error", func(t *testing.T) {
		exporter.Reset()

		ctx := context.Background()
		_, span := sm.StartEmitSpan(ctx, "t", "2")
		testErr := errors.New("handler failed")

		sm.EndSpanWithError(span, testErr)

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		assert.Equal(t, codes.Error, s.Status.Code)
		assert.Equal(t, "handler failed", s.Status.Description)

		found := false
		for _, event := range s.Events {
			if event.Name == "exception" {
				found = true
			}
		}
		assert.True(t, found, "expected exception event")
	})

	t.Run("nil span does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, nil)
		})
		assert.NotPanics(t, func() {
			sm.EndSpanWithError(nil, errors.New("test"))
		})
	})
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := NewSpanManager()

	t.Run("adds event to current span", func(t *testing.T) {
		ctx := context.Background()
		ctx, span := sm.StartEmitSpan(ctx, "t", "1")

		sm.AddSpanEvent(ctx, "retry_scheduled",
			attribute.Int("attempt", 2),
			attribute.Int64("backoff_ms", 200),
		)

		span.End()

		spans := exporter.GetSpans()
		require.Len(t, spans, 1)

		s := spans[0]
		require.NotEmpty(t, s.Events)

		var found bool
		for _, event := range s.Events {
			if event.Name == "retry_scheduled" {
				found = true
				var attempt int64
				var backoffMs int64
				for _, attr := range event.Attributes {
					switch attr.Key {
					case "attempt":
						attempt = attr.Value.AsInt64()
					case "backoff_ms":
						backoffMs = attr.Value.AsInt64()
					}
				}
				assert.Equal(t, int64(2), attempt)
				assert.Equal(t, int64(200), backoffMs)
			}
		}
		assert.True(t, found, "expected retry_scheduled event")
	})

	t.Run("no panic with no current span", func(t *testing.T) {
		ctx := context.Background()
		assert.NotPanics(t, func() {
			sm.AddSpanEvent(ctx, "test_event")
		})
	})
}

func TestOtelSpanManager_EndSpanWithError_PreservesMessage(t *testing.T) {
	exporter, cleanup := setupTracingTest(t)
	defer cleanup()

	sm := &otelSpanManager{}

	ctx := context.Background()
	_, span := sm.StartEmitSpan(ctx, "t", "1")

	wrappedErr := errors.New("wrapped: inner error")
	sm.EndSpanWithError(span, wrappedErr)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans)
	assert.Contains(t, spans[0].Status.Description, "wrapped: inner error")
}
