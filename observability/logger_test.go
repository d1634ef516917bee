package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds component and name", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "bus", "orders")
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "bus", record["component"])
		assert.Equal(t, "orders", record["name"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		enriched := EnrichLogger(nil, "bus", "orders")
		assert.Nil(t, enriched)
	})
}

func TestLogEmit(t *testing.T) {
	t.Run("logs at DEBUG level on success", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogEmit(logger, "order.created", "sig-1", 12.5, nil)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "signal emitted", record["msg"])
		assert.Equal(t, "order.created", record["signal_type"])
		assert.Equal(t, "sig-1", record["signal_id"])
		assert.Equal(t, 12.5, record["duration_ms"])
	})

	t.Run("logs at ERROR level on failure", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogEmit(logger, "order.created", "sig-1", 12.5, errors.New("handler panic"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "signal emit failed", record["msg"])
		assert.Equal(t, "handler panic", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogEmit(nil, "type", "id", 0, nil)
		})
	})
}

func TestLogDispatchError(t *testing.T) {
	t.Run("logs handler label and error", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogDispatchError(logger, "order.created", "billing", errors.New("timeout"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "signal handler failed", record["msg"])
		assert.Equal(t, "order.created", record["signal_type"])
		assert.Equal(t, "billing", record["handler"])
		assert.Equal(t, "timeout", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDispatchError(nil, "t", "h", errors.New("err"))
		})
	})
}

func TestLogReplay(t *testing.T) {
	t.Run("logs count at INFO on success", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogReplay(logger, 7, nil)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "INFO", record["level"])
		assert.Equal(t, "replay completed", record["msg"])
		assert.Equal(t, float64(7), record["count"])
	})

	t.Run("logs at ERROR on failure", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogReplay(logger, 0, errors.New("store unavailable"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "replay failed", record["msg"])
		assert.Equal(t, "store unavailable", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogReplay(nil, 1, nil)
		})
	})
}

func TestLogTick(t *testing.T) {
	t.Run("logs at DEBUG level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogTick(logger, "heartbeat", "fixed", 42, 15)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "tick fired", record["msg"])
		assert.Equal(t, "heartbeat", record["clock"])
		assert.Equal(t, "fixed", record["reason"])
		assert.Equal(t, float64(42), record["seq"])
		assert.Equal(t, float64(15), record["drift_ms"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogTick(nil, "c", "r", 0, 0)
		})
	})
}

func TestLogDriftWarning(t *testing.T) {
	t.Run("logs at WARN level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogDriftWarning(logger, "heartbeat", 820)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "sustained clock drift", record["msg"])
		assert.Equal(t, "heartbeat", record["clock"])
		assert.Equal(t, float64(820), record["drift_ms"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDriftWarning(nil, "c", 0)
		})
	})
}

func TestLogClockError(t *testing.T) {
	t.Run("logs at ERROR level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogClockError(logger, "heartbeat", errors.New("handler panicked"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "clock handler failed", record["msg"])
		assert.Equal(t, "heartbeat", record["clock"])
		assert.Equal(t, "handler panicked", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogClockError(nil, "c", errors.New("err"))
		})
	})
}

func TestTimedOperation(t *testing.T) {
	t.Run("measures duration", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(10 * time.Millisecond)
		duration := done()

		assert.GreaterOrEqual(t, duration, 10.0)
		assert.Less(t, duration, 200.0)
	})

	t.Run("can be called multiple times", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(5 * time.Millisecond)
		d1 := done()
		time.Sleep(5 * time.Millisecond)
		d2 := done()

		assert.Greater(t, d2, d1)
	})
}
