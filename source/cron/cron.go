// Package cron wraps a caller-supplied schedule into a sigbus.Source. It
// ships no calendar-expression parser: Schedule is an interface a host
// program implements.
package cron

import (
	"context"
	"time"

	"github.com/randalmurphal/sigbus"
	"github.com/randalmurphal/sigbus/clock"
)

// Schedule reports the next fire time, in epoch milliseconds, strictly
// after the given epoch-millisecond time.
type Schedule interface {
	Next(after int64) int64
}

// Source wraps a Schedule into a sigbus.Source, driving a clock.BridgeClock
// from a single background goroutine that sleeps until the schedule's next
// fire time and pushes.
type Source struct {
	sigbus.BaseSource
	schedule Schedule
	toSignal func(firedAt int64) sigbus.Signal
	bridge   *clock.BridgeClock
}

// New constructs a cron Source. toSignal converts each fire time (epoch
// milliseconds) into the signal to emit.
func New(schedule Schedule, toSignal func(firedAt int64) sigbus.Signal) *Source {
	return &Source{
		BaseSource: sigbus.NewBaseSource("cron"),
		schedule:   schedule,
		toSignal:   toSignal,
		bridge:     clock.NewBridge(clock.WithBridgeName("cron")),
	}
}

// Start implements sigbus.Source. It runs until ctx is cancelled or Stop is
// called.
func (s *Source) Start(ctx context.Context, emit sigbus.EmitFunc) error {
	runCtx, release, err := s.Guard(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.bridge.Start(func(tk clock.Tick) error {
		return emit(runCtx, s.toSignal(tk.Ts))
	}); err != nil {
		return err
	}
	defer s.bridge.Stop()

	for {
		now := time.Now().UnixMilli()
		next := s.schedule.Next(now)
		delay := time.Duration(next-now) * time.Millisecond
		if delay < 0 {
			delay = 0
		}

		timer := time.NewTimer(delay)
		select {
		case <-runCtx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.bridge.Push()
		}
	}
}

// Stop implements sigbus.Source.
func (s *Source) Stop() error {
	if err := s.bridge.Stop(); err != nil {
		return err
	}
	return s.BaseSource.Stop()
}

var _ sigbus.Source = (*Source)(nil)
