package clock

import sigerrors "github.com/randalmurphal/sigbus/errors"

// ErrAlreadyRunning is returned by Start when called on a running clock.
var ErrAlreadyRunning = sigerrors.NewLifecycle("Clock already running")

// ErrNotRunning is returned by TestClock's tick/advanceBy/flush when the
// clock has not been started.
var ErrNotRunning = sigerrors.NewLifecycle("Clock not running")

// newConfigError builds a ConfigError for invalid clock construction
// arguments.
func newConfigError(message string) error {
	return sigerrors.NewConfig(message)
}
