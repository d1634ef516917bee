package clock

import (
	"log/slog"

	"github.com/randalmurphal/sigbus/observability"
)

// BackpressurePolicy selects how the interval clock behaves when a handler
// invocation is still running at the next scheduled fire time.
type BackpressurePolicy string

const (
	// PolicyBlock uses fixed-delay scheduling: the next tick is scheduled
	// intervalMs after the previous handler completes. Immune to
	// spiral-of-death by construction; never drops. This is the default.
	PolicyBlock BackpressurePolicy = "block"
	// PolicyDrop uses fixed-rate scheduling with skip: if a handler is
	// still running at the next ideal fire time, that tick is dropped.
	PolicyDrop BackpressurePolicy = "drop"
	// PolicyAdaptive uses fixed-rate scheduling with an elapsed-time
	// accumulator, firing catch-up ticks to absorb small delays before
	// falling back to dropping.
	PolicyAdaptive BackpressurePolicy = "adaptive"
)

// IntervalOption configures an IntervalClock at construction.
type IntervalOption func(*intervalConfig)

type intervalConfig struct {
	backpressure    BackpressurePolicy
	maxCatchUpTicks int
	onDriftWarning  func(driftMs int64)
	onError         func(err error)
	name            string
	logger          *slog.Logger
	metrics         observability.MetricsRecorder
	spans           observability.SpanManager
}

func defaultIntervalConfig() *intervalConfig {
	return &intervalConfig{
		backpressure:    PolicyBlock,
		maxCatchUpTicks: 3,
		name:            "interval",
	}
}

// WithBackpressure sets the scheduling policy. Default: PolicyBlock.
func WithBackpressure(p BackpressurePolicy) IntervalOption {
	return func(c *intervalConfig) { c.backpressure = p }
}

// WithMaxCatchUpTicks bounds how many catch-up ticks the drop and adaptive
// policies may fire per cycle: the drop policy fires at most n, the
// adaptive policy at most n+1. Default: 3.
func WithMaxCatchUpTicks(n int) IntervalOption {
	return func(c *intervalConfig) { c.maxCatchUpTicks = n }
}

// WithOnDriftWarning registers a callback invoked when the drift-warning
// detector latches (5 consecutive ticks with |drift| > 0.8*intervalMs).
func WithOnDriftWarning(fn func(driftMs int64)) IntervalOption {
	return func(c *intervalConfig) { c.onDriftWarning = fn }
}

// WithOnError registers a callback invoked whenever a handler invocation
// returns an error. Handler errors are always caught; this is the only way
// to observe them for a real (non-test) clock.
func WithOnError(fn func(err error)) IntervalOption {
	return func(c *intervalConfig) { c.onError = fn }
}

// WithName sets the clock's identity for logging and metrics. Default:
// "interval".
func WithName(name string) IntervalOption {
	return func(c *intervalConfig) { c.name = name }
}

// WithLogger attaches structured logging to the clock.
func WithLogger(logger *slog.Logger) IntervalOption {
	return func(c *intervalConfig) { c.logger = logger }
}

// WithMetrics attaches a metrics recorder to the clock.
func WithMetrics(m observability.MetricsRecorder) IntervalOption {
	return func(c *intervalConfig) { c.metrics = m }
}

// WithSpans attaches a span manager to the clock.
func WithSpans(s observability.SpanManager) IntervalOption {
	return func(c *intervalConfig) { c.spans = s }
}
