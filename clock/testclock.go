package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/sigbus/observability"
)

// TestClock is a virtual-time clock for deterministic tests. It never uses
// real timers: time only advances when the caller calls Tick, AdvanceBy,
// or Flush. Unlike the real clocks, it rethrows handler errors so tests
// can assert on them.
type TestClock struct {
	intervalMs int64
	name       string
	logger     *slog.Logger
	metrics    observability.MetricsRecorder

	mu          sync.Mutex
	running     bool
	handler     Handler
	virtualTime int64
	seq         uint64
	accumulator int64
	stats       TickStats
}

// NewTest constructs a TestClock. intervalMs defaults to 1000 if <= 0.
func NewTest(intervalMs int64, opts ...TestOption) *TestClock {
	if intervalMs <= 0 {
		intervalMs = 1000
	}

	cfg := &testConfig{name: "test"}
	for _, opt := range opts {
		opt(cfg)
	}

	return &TestClock{
		intervalMs: intervalMs,
		name:       cfg.name,
		logger:     observability.EnrichLogger(cfg.logger, "clock", cfg.name),
		metrics:    cfg.metrics,
	}
}

// Start implements Clock. It only registers the handler; no ticks are
// produced until Tick, AdvanceBy, or Flush is called.
func (c *TestClock) Start(handler Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}
	c.running = true
	c.handler = handler
	return nil
}

// Stop implements Clock. It clears the handler and zeros the accumulator;
// virtualTime, seq, and stats survive until Reset.
func (c *TestClock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.handler = nil
	c.accumulator = 0
	return nil
}

// Now implements Clock, returning virtual time.
func (c *TestClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.virtualTime
}

// Stats implements Clock.
func (c *TestClock) Stats() TickStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot()
}

// Running implements Clock.
func (c *TestClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Seq implements Clock.
func (c *TestClock) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Tick fires count ticks (default 1 if count <= 0), each advancing
// virtualTime by intervalMs. Requires the clock to be running. Unlike
// real clocks, handler errors propagate out of Tick in addition to being
// counted.
func (c *TestClock) Tick(count int) error {
	if count <= 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		if err := c.fireDelta(c.intervalMs); err != nil {
			return err
		}
	}
	return nil
}

// AdvanceBy adds ms to the accumulator and fires
// floor(accumulator/intervalMs) ticks, each advancing virtualTime by
// intervalMs. Residual accumulator carries across calls. Requires the
// clock to be running.
func (c *TestClock) AdvanceBy(ms int64) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.accumulator += ms
	c.mu.Unlock()

	for {
		c.mu.Lock()
		if c.accumulator < c.intervalMs {
			c.mu.Unlock()
			break
		}
		c.accumulator -= c.intervalMs
		c.mu.Unlock()

		if err := c.fireDelta(c.intervalMs); err != nil {
			return err
		}
	}
	return nil
}

// Flush fires exactly one tick for any residual accumulator, advancing
// virtualTime by the residual amount (which need not be a multiple of
// intervalMs) and zeroing the accumulator. A no-op if the accumulator is
// zero. Requires the clock to be running.
func (c *TestClock) Flush() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	if c.accumulator <= 0 {
		c.mu.Unlock()
		return nil
	}
	delta := c.accumulator
	c.accumulator = 0
	c.mu.Unlock()

	return c.fireDelta(delta)
}

// Reset zeros virtualTime, seq, accumulator, and all stats.
func (c *TestClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.virtualTime = 0
	c.seq = 0
	c.accumulator = 0
	c.stats = TickStats{}
}

// PendingTicks reports floor(accumulator/intervalMs): the number of ticks
// a Flush or further AdvanceBy would still owe.
func (c *TestClock) PendingTicks() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accumulator <= 0 {
		return 0
	}
	return uint64(c.accumulator / c.intervalMs)
}

func (c *TestClock) fireDelta(delta int64) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return ErrNotRunning
	}
	c.virtualTime += delta
	ts := c.virtualTime
	seq := c.seq
	c.seq++
	c.stats.recordTick(ts, 0, false)
	handler := c.handler
	c.mu.Unlock()

	tick := Tick{Ts: ts, Seq: seq, Reason: ReasonManual}
	observability.LogTick(c.logger, c.name, string(ReasonManual), seq, 0)

	var err error
	start := time.Now()
	if handler != nil {
		err = handler(tick)
	}
	elapsedMs := time.Since(start).Milliseconds()

	c.mu.Lock()
	c.stats.recordHandler(elapsedMs, err)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordTick(context.Background(), c.name, string(ReasonManual), 0)
	}
	return err
}

var _ Clock = (*TestClock)(nil)
