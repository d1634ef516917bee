package sigbus

import (
	"context"
	"fmt"
	"sync"

	sigerrors "github.com/randalmurphal/sigbus/errors"
)

// ErrSourceAlreadyStarted is returned by Start when called on a Source that
// is already running.
var ErrSourceAlreadyStarted = sigerrors.NewLifecycle("Source already started")

// EmitFunc is the function a Source uses to hand a produced signal to its
// consumer. The consumer is responsible for persisting and dispatching it.
type EmitFunc func(ctx context.Context, sig Signal) error

// Source is the start/stop contract used by external signal producers
// (clock adapters, file watchers, cron schedules, ...).
type Source interface {
	// Name identifies the source, e.g. for logging.
	Name() string

	// Start begins producing signals via emit. It returns once the source
	// has stopped, either via Stop or a fatal internal error. Calling
	// Start on an already-running source returns ErrSourceAlreadyStarted.
	Start(ctx context.Context, emit EmitFunc) error

	// Stop halts production. It is idempotent: calling Stop on a source
	// that is not running is a no-op.
	Stop() error
}

// BaseSource provides the start/stop bookkeeping shared by Source
// implementations: a single-flight start guard and an idempotent stop.
// Embed it in a concrete Source and drive its run loop off the context
// returned by Guard.
type BaseSource struct {
	name string

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewBaseSource returns a BaseSource with the given name.
func NewBaseSource(name string) BaseSource {
	return BaseSource{name: name}
}

// Name implements Source.
func (b *BaseSource) Name() string { return b.name }

// Guard marks the source running and returns a derived context plus a
// release function the caller must invoke (typically via defer) when its
// run loop exits. It returns ErrSourceAlreadyStarted if already running.
func (b *BaseSource) Guard(ctx context.Context) (runCtx context.Context, release func(), err error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil, nil, fmt.Errorf("%s: %w", b.name, ErrSourceAlreadyStarted)
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cancel = cancel
	b.mu.Unlock()

	release = func() {
		b.mu.Lock()
		b.running = false
		b.cancel = nil
		b.mu.Unlock()
	}
	return runCtx, release, nil
}

// Stop implements Source. Idempotent.
func (b *BaseSource) Stop() error {
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// IsRunning reports whether the source is currently started.
func (b *BaseSource) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}
