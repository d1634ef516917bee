// Package clock provides the tick contract shared by all sigbus clocks,
// and the three clock implementations built on it: the interval clock (with
// block/drop/adaptive back-pressure policies and a drift-warning detector),
// the virtual-time test clock, and the externally-pushed bridge clock.
package clock

// Reason identifies why a Tick fired.
type Reason string

const (
	// ReasonInterval marks a tick fired on its regular schedule.
	ReasonInterval Reason = "interval"
	// ReasonCatchup marks a tick fired to compensate for a previously
	// delayed one, within a policy's catch-up budget.
	ReasonCatchup Reason = "catchup"
	// ReasonManual marks a tick fired by the test clock's tick/advanceBy/flush.
	ReasonManual Reason = "manual"
	// ReasonBridge marks a tick fired by the bridge clock's Push.
	ReasonBridge Reason = "bridge"
)

// Tick is an immutable record produced by a clock.
type Tick struct {
	// Ts is wall-clock milliseconds since the epoch for real clocks, or
	// virtual milliseconds for the test clock.
	Ts int64
	// Seq is monotonically non-negative, zero on the first tick after Start
	// for the interval and bridge clocks; the test clock's seq runs on
	// from its previous value until Reset.
	Seq uint64
	// Reason is why this tick fired.
	Reason Reason
	// Drift is the signed deviation from the ideal fire time, in
	// milliseconds. Only meaningful when HasDrift is true (interval and
	// catch-up ticks).
	Drift int64
	// HasDrift reports whether Drift is populated.
	HasDrift bool
}

// TickStats holds a clock's running counters. The interval and bridge
// clocks zero them at every Start; the test clock zeroes them only on
// Reset.
type TickStats struct {
	TickCount    uint64
	DroppedTicks uint64
	Errors       uint64
	LastTickAt   int64
	MaxHandlerMs int64
	AvgHandlerMs float64
	AvgDriftMs   float64

	totalHandlerMs int64
	totalDriftMs   int64
	driftSamples   uint64
}

// snapshot returns a copy of s with the running-mean fields computed and
// the internal accumulators stripped, safe to hand to callers.
func (s TickStats) snapshot() TickStats {
	out := s
	out.totalHandlerMs = 0
	out.totalDriftMs = 0
	out.driftSamples = 0
	if s.TickCount > 0 {
		out.AvgHandlerMs = float64(s.totalHandlerMs) / float64(s.TickCount)
	}
	if s.driftSamples > 0 {
		out.AvgDriftMs = float64(s.totalDriftMs) / float64(s.driftSamples)
	}
	return out
}

func (s *TickStats) recordTick(ts int64, drift int64, hasDrift bool) {
	s.TickCount++
	s.LastTickAt = ts
	if hasDrift {
		abs := drift
		if abs < 0 {
			abs = -abs
		}
		s.totalDriftMs += abs
		s.driftSamples++
	}
}

func (s *TickStats) recordHandler(elapsedMs int64, err error) {
	s.totalHandlerMs += elapsedMs
	if elapsedMs > s.MaxHandlerMs {
		s.MaxHandlerMs = elapsedMs
	}
	if err != nil {
		s.Errors++
	}
}

// Handler processes one fired tick. Real clocks catch and count handler
// errors; the test clock rethrows them.
type Handler func(tick Tick) error

// Clock is the contract shared by IntervalClock, TestClock, and
// BridgeClock.
type Clock interface {
	// Start registers handler and begins producing ticks. Returns an
	// error if the clock is already running.
	Start(handler Handler) error
	// Stop halts tick production. Idempotent.
	Stop() error
	// Now returns the clock's current time in milliseconds: wall-clock
	// for real clocks, virtual for the test clock.
	Now() int64
	// Stats returns a snapshot of the clock's counters.
	Stats() TickStats
	// Running reports whether the clock is between Start and Stop.
	Running() bool
	// Seq returns the sequence number of the next tick to be fired.
	Seq() uint64
}
