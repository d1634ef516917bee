// Package observability provides structured logging, metrics, and tracing
// for sigbus: the signal bus and the clock subsystem.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger attaches bus/clock identity to a logger.
func EnrichLogger(logger *slog.Logger, component, name string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("component", component),
		slog.String("name", name),
	)
}

// LogEmit logs a completed emit pipeline pass.
func LogEmit(logger *slog.Logger, signalType, signalID string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("signal emit failed",
			slog.String("signal_type", signalType),
			slog.String("signal_id", signalID),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("signal emitted",
		slog.String("signal_type", signalType),
		slog.String("signal_id", signalID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDispatchError logs a handler or any-handler failure caught during
// dispatch (these never fail emit; they are reported here and via
// onError).
func LogDispatchError(logger *slog.Logger, signalType, label string, err error) {
	if logger == nil {
		return
	}
	logger.Error("signal handler failed",
		slog.String("signal_type", signalType),
		slog.String("handler", label),
		slog.String("error", err.Error()),
	)
}

// LogReplay logs the outcome of a bus replay pass.
func LogReplay(logger *slog.Logger, count int, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("replay failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("replay completed", slog.Int("count", count))
}

// LogTick logs a fired clock tick.
func LogTick(logger *slog.Logger, clockName, reason string, seq uint64, driftMs int64) {
	if logger == nil {
		return
	}
	logger.Debug("tick fired",
		slog.String("clock", clockName),
		slog.String("reason", reason),
		slog.Uint64("seq", seq),
		slog.Int64("drift_ms", driftMs),
	)
}

// LogDriftWarning logs a sustained-drift warning from the interval clock.
func LogDriftWarning(logger *slog.Logger, clockName string, driftMs int64) {
	if logger == nil {
		return
	}
	logger.Warn("sustained clock drift",
		slog.String("clock", clockName),
		slog.Int64("drift_ms", driftMs),
	)
}

// LogClockError logs a handler failure caught by a clock (never propagated
// to the caller of Start).
func LogClockError(logger *slog.Logger, clockName string, err error) {
	if logger == nil {
		return
	}
	logger.Error("clock handler failed",
		slog.String("clock", clockName),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
