// Package source adapts external producers — clocks, file watchers, cron
// schedules — into sigbus.Source implementations.
package source

import (
	"context"

	"github.com/randalmurphal/sigbus"
	"github.com/randalmurphal/sigbus/clock"
)

// Option configures a ClockSource.
type Option func(*clockSourceConfig)

type clockSourceConfig struct {
	name string
}

// WithName overrides the source's name. Default: "clock".
func WithName(name string) Option {
	return func(c *clockSourceConfig) { c.name = name }
}

// ClockSource adapts a clock.Clock into a sigbus.Source: each fired tick is
// converted to a signal via toSignal and handed to the bus's emit function.
type ClockSource struct {
	sigbus.BaseSource
	clock    clock.Clock
	toSignal func(clock.Tick) sigbus.Signal
}

// NewClockSource constructs a ClockSource wrapping c. toSignal converts
// each fired tick into the signal to emit.
func NewClockSource(c clock.Clock, toSignal func(clock.Tick) sigbus.Signal, opts ...Option) *ClockSource {
	cfg := &clockSourceConfig{name: "clock"}
	for _, opt := range opts {
		opt(cfg)
	}
	return &ClockSource{
		BaseSource: sigbus.NewBaseSource(cfg.name),
		clock:      c,
		toSignal:   toSignal,
	}
}

// Start implements sigbus.Source. It runs until ctx is cancelled or Stop is
// called, at which point the underlying clock is stopped and Start returns.
func (s *ClockSource) Start(ctx context.Context, emit sigbus.EmitFunc) error {
	runCtx, release, err := s.Guard(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.clock.Start(func(tk clock.Tick) error {
		return emit(runCtx, s.toSignal(tk))
	}); err != nil {
		return err
	}

	<-runCtx.Done()
	return s.clock.Stop()
}

// Stop implements sigbus.Source.
func (s *ClockSource) Stop() error {
	if err := s.clock.Stop(); err != nil {
		return err
	}
	return s.BaseSource.Stop()
}

var _ sigbus.Source = (*ClockSource)(nil)
