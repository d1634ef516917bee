package clock

import (
	"log/slog"

	"github.com/randalmurphal/sigbus/observability"
)

// testConfig holds TestClock construction options.
type testConfig struct {
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// TestOption configures a TestClock.
type TestOption func(*testConfig)

// WithTestName sets the test clock's identity for logging and metrics.
// Default: "test".
func WithTestName(name string) TestOption {
	return func(c *testConfig) { c.name = name }
}

// WithTestLogger attaches structured logging to the test clock.
func WithTestLogger(logger *slog.Logger) TestOption {
	return func(c *testConfig) { c.logger = logger }
}

// WithTestMetrics attaches a metrics recorder to the test clock.
func WithTestMetrics(m observability.MetricsRecorder) TestOption {
	return func(c *testConfig) { c.metrics = m }
}

// bridgeConfig holds BridgeClock construction options.
type bridgeConfig struct {
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	onError func(err error)
}

// BridgeOption configures a BridgeClock.
type BridgeOption func(*bridgeConfig)

// WithBridgeName sets the bridge clock's identity for logging and
// metrics. Default: "bridge".
func WithBridgeName(name string) BridgeOption {
	return func(c *bridgeConfig) { c.name = name }
}

// WithBridgeLogger attaches structured logging to the bridge clock.
func WithBridgeLogger(logger *slog.Logger) BridgeOption {
	return func(c *bridgeConfig) { c.logger = logger }
}

// WithBridgeMetrics attaches a metrics recorder to the bridge clock.
func WithBridgeMetrics(m observability.MetricsRecorder) BridgeOption {
	return func(c *bridgeConfig) { c.metrics = m }
}

// WithBridgeOnError registers a callback invoked whenever a pushed
// handler invocation returns an error. Handler errors are always caught;
// this is the only way to observe them.
func WithBridgeOnError(fn func(err error)) BridgeOption {
	return func(c *bridgeConfig) { c.onError = fn }
}
