package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/sigbus/observability"
)

const (
	driftWarningRatio     = 0.8
	driftWarningThreshold = 5
)

// IntervalClock is a periodic tick generator with three back-pressure
// policies (block, drop, adaptive). All three use single-shot chained
// timers (time.AfterFunc), never a repeating ticker, so the scheduler is
// always exactly one tick ahead of itself and Stop always lands cleanly
// between cycles.
type IntervalClock struct {
	intervalMs      int64
	policy          BackpressurePolicy
	maxCatchUpTicks int
	onDriftWarning  func(driftMs int64)
	onError         func(err error)
	name            string
	logger          *slog.Logger
	metrics         observability.MetricsRecorder
	spans           observability.SpanManager

	mu      sync.Mutex
	running bool
	// epoch is bumped on every Start and Stop. Scheduled timer callbacks
	// capture the epoch active when they were armed and check it under
	// lock before doing anything, so a timer left over from a stopped (or
	// since-restarted) epoch is inert.
	epoch   uint64
	handler Handler
	seq     uint64
	stats   TickStats
	timer   *time.Timer

	// drop/adaptive scheduling state.
	nextIdealTime int64
	accumulator   int64
	busy          bool

	consecutiveHighDrift int
}

// NewInterval constructs an IntervalClock. intervalMs must be positive.
func NewInterval(intervalMs int64, opts ...IntervalOption) (*IntervalClock, error) {
	if intervalMs <= 0 {
		return nil, newConfigError("intervalMs must be positive")
	}

	cfg := defaultIntervalConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &IntervalClock{
		intervalMs:      intervalMs,
		policy:          cfg.backpressure,
		maxCatchUpTicks: cfg.maxCatchUpTicks,
		onDriftWarning:  cfg.onDriftWarning,
		onError:         cfg.onError,
		name:            cfg.name,
		logger:          observability.EnrichLogger(cfg.logger, "clock", cfg.name),
		metrics:         cfg.metrics,
		spans:           cfg.spans,
	}, nil
}

func nowMs() int64 { return time.Now().UnixMilli() }

// Start implements Clock.
func (c *IntervalClock) Start(handler Handler) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}

	c.running = true
	c.epoch++
	epoch := c.epoch
	c.handler = handler
	c.seq = 0
	c.stats = TickStats{}
	c.consecutiveHighDrift = 0
	c.busy = false

	now := nowMs()
	switch c.policy {
	case PolicyDrop, PolicyAdaptive:
		c.nextIdealTime = now + c.intervalMs
		c.accumulator = 0
	}
	c.mu.Unlock()

	switch c.policy {
	case PolicyDrop:
		c.scheduleDrop(epoch)
	case PolicyAdaptive:
		c.scheduleAdaptive(epoch)
	default:
		c.scheduleBlock(epoch, c.intervalMs)
	}
	return nil
}

// Stop implements Clock. Idempotent.
func (c *IntervalClock) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false
	c.epoch++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	return nil
}

// Now implements Clock, returning real wall-clock time.
func (c *IntervalClock) Now() int64 { return nowMs() }

// Stats implements Clock.
func (c *IntervalClock) Stats() TickStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats.snapshot()
}

// Running implements Clock.
func (c *IntervalClock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Seq implements Clock, returning the sequence number of the next tick.
func (c *IntervalClock) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// fireTick is the common fire procedure shared by all three policies. It
// returns false without side effects if the clock has stopped or moved to
// a new epoch since the caller decided to fire.
func (c *IntervalClock) fireTick(epoch uint64, reason Reason, drift int64, hasDrift bool) bool {
	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return false
	}

	ts := nowMs()
	seq := c.seq
	c.seq++
	c.stats.recordTick(ts, drift, hasDrift)
	handler := c.handler

	shouldWarn := false
	if hasDrift {
		shouldWarn = c.updateDriftDetectorLocked(drift)
	}
	c.mu.Unlock()

	tick := Tick{Ts: ts, Seq: seq, Reason: reason, Drift: drift, HasDrift: hasDrift}
	observability.LogTick(c.logger, c.name, string(reason), seq, drift)

	if shouldWarn {
		observability.LogDriftWarning(c.logger, c.name, drift)
		if c.onDriftWarning != nil {
			c.onDriftWarning(drift)
		}
	}

	var err error
	start := time.Now()
	if handler != nil {
		err = handler(tick)
	}
	elapsedMs := time.Since(start).Milliseconds()

	c.mu.Lock()
	if c.epoch == epoch {
		c.stats.recordHandler(elapsedMs, err)
	}
	c.mu.Unlock()

	if err != nil {
		observability.LogClockError(c.logger, c.name, err)
		if c.onError != nil {
			c.onError(err)
		}
	}
	if c.metrics != nil {
		c.metrics.RecordTick(context.Background(), c.name, string(reason), float64(drift))
	}
	return true
}

// updateDriftDetectorLocked updates the consecutive-high-drift counter and
// reports whether it is at or past the drift-warning threshold, so every
// high-drift tick from the fifth onward warns. Caller must hold c.mu.
func (c *IntervalClock) updateDriftDetectorLocked(drift int64) bool {
	abs := drift
	if abs < 0 {
		abs = -abs
	}
	threshold := int64(float64(c.intervalMs) * driftWarningRatio)
	if abs > threshold {
		c.consecutiveHighDrift++
		return c.consecutiveHighDrift >= driftWarningThreshold
	}
	c.consecutiveHighDrift = 0
	return false
}

// --- block policy: fixed-delay ---

func (c *IntervalClock) scheduleBlock(epoch uint64, delayMs int64) {
	if delayMs < 0 {
		delayMs = 0
	}
	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.timer = time.AfterFunc(time.Duration(delayMs)*time.Millisecond, func() {
		c.fireTick(epoch, ReasonInterval, 0, false)

		c.mu.Lock()
		stillRunning := c.running && c.epoch == epoch
		c.mu.Unlock()
		if stillRunning {
			c.scheduleBlock(epoch, c.intervalMs)
		}
	})
	c.mu.Unlock()
}

// --- drop policy: fixed-rate with skip ---

func (c *IntervalClock) scheduleDrop(epoch uint64) {
	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	delay := c.nextIdealTime - nowMs()
	if delay < 0 {
		delay = 0
	}
	c.timer = time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		c.dropCycle(epoch)
	})
	c.mu.Unlock()
}

func (c *IntervalClock) dropCycle(epoch uint64) {
	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	now := nowMs()
	drift := now - c.nextIdealTime
	c.nextIdealTime += c.intervalMs
	c.mu.Unlock()

	// Schedule the next cycle before handling: fixed-rate.
	c.scheduleDrop(epoch)

	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	if c.busy {
		c.stats.DroppedTicks++
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RecordDrop(context.Background(), c.name)
		}
		return
	}
	c.busy = true
	c.mu.Unlock()

	c.fireTick(epoch, ReasonInterval, drift, true)

	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()

	c.dropCatchUp(epoch, drift)
}

func (c *IntervalClock) dropCatchUp(epoch uint64, drift int64) {
	for i := 0; i < c.maxCatchUpTicks; i++ {
		c.mu.Lock()
		if !c.running || c.epoch != epoch {
			c.mu.Unlock()
			return
		}
		if c.nextIdealTime > nowMs() {
			c.mu.Unlock()
			break
		}
		c.nextIdealTime += c.intervalMs
		c.mu.Unlock()

		c.fireTick(epoch, ReasonCatchup, drift, true)
	}

	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	now := nowMs()
	if c.nextIdealTime < now {
		skipped := (now - c.nextIdealTime) / c.intervalMs
		if skipped > 0 {
			c.stats.DroppedTicks += uint64(skipped)
			c.nextIdealTime += skipped * c.intervalMs
		}
	}
	c.mu.Unlock()
}

// --- adaptive policy: fixed-rate with accumulator ---

func (c *IntervalClock) scheduleAdaptive(epoch uint64) {
	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	delay := c.nextIdealTime - nowMs()
	if delay < 0 {
		delay = 0
	}
	c.timer = time.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		c.adaptiveCycle(epoch)
	})
	c.mu.Unlock()
}

func (c *IntervalClock) adaptiveCycle(epoch uint64) {
	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	now := nowMs()
	drift := now - c.nextIdealTime
	c.accumulator += c.intervalMs + drift
	c.mu.Unlock()

	firedCount := 0
	for {
		c.mu.Lock()
		if !c.running || c.epoch != epoch {
			c.mu.Unlock()
			return
		}
		if c.accumulator < c.intervalMs || firedCount > c.maxCatchUpTicks+1 {
			c.mu.Unlock()
			break
		}
		c.accumulator -= c.intervalMs
		c.mu.Unlock()

		reason := ReasonCatchup
		fireDrift := int64(0)
		if firedCount == 0 {
			reason = ReasonInterval
			fireDrift = drift
		}
		c.fireTick(epoch, reason, fireDrift, true)
		firedCount++
	}

	c.mu.Lock()
	if !c.running || c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	if c.accumulator >= c.intervalMs {
		skipped := c.accumulator / c.intervalMs
		c.stats.DroppedTicks += uint64(skipped)
		c.accumulator -= skipped * c.intervalMs
	}
	residual := c.intervalMs - c.accumulator
	if residual < 0 {
		residual = 0
	}
	c.nextIdealTime = nowMs() + residual
	c.mu.Unlock()

	c.scheduleAdaptive(epoch)
}

var _ Clock = (*IntervalClock)(nil)
