package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/sigbus/observability"
)

// BridgeClock is an externally-pushed clock: each call to Push produces
// exactly one tick. It takes no configuration. Push never blocks on the
// handler; handler completion (and the stats update that follows) happens
// in the background.
type BridgeClock struct {
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	onError func(err error)

	mu      sync.Mutex
	running bool
	handler Handler
	seq     uint64
	stats   TickStats
	// last is closed when the most recently pushed handler invocation
	// finishes; the next invocation waits on it, so handlers run in seq
	// order.
	last chan struct{}
}

// NewBridge constructs a BridgeClock.
func NewBridge(opts ...BridgeOption) *BridgeClock {
	cfg := &bridgeConfig{name: "bridge"}
	for _, opt := range opts {
		opt(cfg)
	}

	return &BridgeClock{
		name:    cfg.name,
		logger:  observability.EnrichLogger(cfg.logger, "clock", cfg.name),
		metrics: cfg.metrics,
		onError: cfg.onError,
	}
}

// Start implements Clock.
func (c *BridgeClock) Start(handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.handler = handler
	c.seq = 0
	c.stats = TickStats{}
	return nil
}

// Stop implements Clock. Idempotent.
func (c *BridgeClock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.handler = nil
	return nil
}

// Now implements Clock, returning real wall-clock time.
func (c *BridgeClock) Now() int64 { return nowMs() }

// Stats implements Clock.
func (c *BridgeClock) Stats() TickStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot()
}

// Running implements Clock.
func (c *BridgeClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Seq implements Clock.
func (c *BridgeClock) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Push fires one tick with reason "bridge". A silent no-op if the clock
// is not running or no handler is registered. The handler runs in the
// background; Push returns without waiting for it, and the resulting
// stats update (and onError callback, if the handler fails) land
// whenever the handler completes. Handler invocations from successive
// pushes run one at a time, in seq order.
func (c *BridgeClock) Push() {
	c.mu.Lock()
	if !c.running || c.handler == nil {
		c.mu.Unlock()
		return
	}
	ts := nowMs()
	seq := c.seq
	c.seq++
	c.stats.recordTick(ts, 0, false)
	handler := c.handler
	prev := c.last
	done := make(chan struct{})
	c.last = done
	c.mu.Unlock()

	tick := Tick{Ts: ts, Seq: seq, Reason: ReasonBridge}
	observability.LogTick(c.logger, c.name, string(ReasonBridge), seq, 0)

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		start := time.Now()
		err := handler(tick)
		elapsedMs := time.Since(start).Milliseconds()

		c.mu.Lock()
		c.stats.recordHandler(elapsedMs, err)
		c.mu.Unlock()

		if err != nil {
			observability.LogClockError(c.logger, c.name, err)
			if c.onError != nil {
				c.onError(err)
			}
		}
		if c.metrics != nil {
			c.metrics.RecordTick(context.Background(), c.name, string(ReasonBridge), 0)
		}
	}()
}

var _ Clock = (*BridgeClock)(nil)
