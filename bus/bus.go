// Package bus implements the signal dispatch pipeline: emit, typed and
// any-handler subscription, middleware, and at-least-once replay.
package bus

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/randalmurphal/sigbus"
	sigerrors "github.com/randalmurphal/sigbus/errors"
	"github.com/randalmurphal/sigbus/executor"
	"github.com/randalmurphal/sigbus/observability"
	"github.com/randalmurphal/sigbus/store"
	"github.com/randalmurphal/sigbus/transport"
)

// Handler processes a dispatched signal.
type Handler func(ctx context.Context, sig sigbus.Signal) error

// NextFunc continues a middleware chain.
type NextFunc func(ctx context.Context, sig sigbus.Signal) error

// Middleware wraps a signal's dispatch. Calling next runs the remainder of
// the chain; not calling it short-circuits every downstream middleware and
// handler. Middleware errors propagate out of Emit (they are not caught
// the way handler errors are).
type Middleware func(ctx context.Context, sig sigbus.Signal, next NextFunc) error

// Unsubscribe removes a single registration. Idempotent: calling it more
// than once after the first has no further effect.
type Unsubscribe func()

// Stats is a snapshot of the bus's lifetime counters and current
// registration sizes. Counters are never reset by the bus itself.
type Stats struct {
	Emitted     uint64
	Handled     uint64
	Errors      uint64
	Handlers    int
	AnyHandlers int
	Middleware  int
}

// OnErrorFunc is invoked whenever a handler invocation fails, after the
// failure has been counted into Stats.Errors.
type OnErrorFunc func(sig sigbus.Signal, label string, err error)

// Option configures a Bus at construction.
type Option func(*busConfig)

type busConfig struct {
	onError OnErrorFunc
	name    string
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

func defaultBusConfig() *busConfig {
	return &busConfig{name: "bus"}
}

// WithOnError registers a callback invoked on every handler failure.
func WithOnError(fn OnErrorFunc) Option {
	return func(c *busConfig) { c.onError = fn }
}

// WithName sets the bus's identity for logging and metrics. Default: "bus".
func WithName(name string) Option {
	return func(c *busConfig) { c.name = name }
}

// WithLogger attaches structured logging to the bus.
func WithLogger(logger *slog.Logger) Option {
	return func(c *busConfig) { c.logger = logger }
}

// WithMetrics attaches a metrics recorder to the bus.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *busConfig) { c.metrics = m }
}

// WithSpans attaches a span manager to the bus.
func WithSpans(s observability.SpanManager) Option {
	return func(c *busConfig) { c.spans = s }
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// Bus is the signal dispatch pipeline: it persists every emitted signal to
// its store, delivers it through its transport to an internal dispatch
// subscriber, folds the current middleware list into a fresh chain at
// every dispatch, and runs the resulting typed- and any-handlers through
// its executor.
type Bus struct {
	transport transport.Transport
	store     store.SignalStore
	executor  executor.HandlerExecutor
	onError   OnErrorFunc
	name      string
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager

	mu           sync.Mutex
	typeHandlers map[string][]handlerEntry
	anyHandlers  []handlerEntry
	middleware   []Middleware
	stats        Stats
	nextID       uint64
}

// New constructs a Bus over the given transport, store, and executor. It
// installs exactly one subscription on the transport, routing every signal
// the transport delivers through the bus's own middleware chain and
// handler tables.
func New(tr transport.Transport, st store.SignalStore, ex executor.HandlerExecutor, opts ...Option) *Bus {
	cfg := defaultBusConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	b := &Bus{
		transport:    tr,
		store:        st,
		executor:     ex,
		onError:      cfg.onError,
		name:         cfg.name,
		logger:       observability.EnrichLogger(cfg.logger, "bus", cfg.name),
		metrics:      cfg.metrics,
		spans:        cfg.spans,
		typeHandlers: make(map[string][]handlerEntry),
	}
	tr.Subscribe(b.dispatch)
	return b
}

// dispatch is the bus's single transport subscription: it folds the
// current middleware list into a fresh chain and runs it. Any error
// escaping the chain can only originate from a middleware that returned
// one directly (the terminal step never does), so it is wrapped as a
// MiddlewareError before propagating to the caller of Emit/Replay.
func (b *Bus) dispatch(ctx context.Context, sig sigbus.Signal) error {
	if err := b.buildChain()(ctx, sig); err != nil {
		return sigerrors.NewMiddleware(err)
	}
	return nil
}

// On registers a handler for one signal type. Re-registering the same
// handler yields two independent entries; the returned Unsubscribe removes
// only this registration.
func (b *Bus) On(signalType string, h Handler) Unsubscribe {
	id := atomic.AddUint64(&b.nextID, 1)

	b.mu.Lock()
	b.typeHandlers[signalType] = append(b.typeHandlers[signalType], handlerEntry{id: id, fn: h})
	b.stats.Handlers++
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			entries := b.typeHandlers[signalType]
			for i, e := range entries {
				if e.id == id {
					b.typeHandlers[signalType] = append(entries[:i:i], entries[i+1:]...)
					b.stats.Handlers--
					return
				}
			}
		})
	}
}

// OnAny registers a handler invoked for every signal, after that signal's
// typed handlers.
func (b *Bus) OnAny(h Handler) Unsubscribe {
	id := atomic.AddUint64(&b.nextID, 1)

	b.mu.Lock()
	b.anyHandlers = append(b.anyHandlers, handlerEntry{id: id, fn: h})
	b.stats.AnyHandlers++
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, e := range b.anyHandlers {
				if e.id == id {
					b.anyHandlers = append(b.anyHandlers[:i:i], b.anyHandlers[i+1:]...)
					b.stats.AnyHandlers--
					return
				}
			}
		})
	}
}

// Use appends middleware to the chain. There is no unregister; Clear is the
// only removal path.
func (b *Bus) Use(mw Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, mw)
	b.stats.Middleware++
}

// Clear empties typeHandlers, anyHandlers, and middleware. Counters in
// Stats are untouched.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.typeHandlers = make(map[string][]handlerEntry)
	b.anyHandlers = nil
	b.middleware = nil
	b.stats.Handlers = 0
	b.stats.AnyHandlers = 0
	b.stats.Middleware = 0
}

// Stats returns a snapshot of the bus's counters and current registration
// sizes.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Emit persists sig, dispatches it through the transport to the bus's
// internal handler chain, and marks it acked. Store, transport, and
// middleware errors propagate; handler errors are caught, counted, and
// reported via OnErrorFunc.
func (b *Bus) Emit(ctx context.Context, sig sigbus.Signal) error {
	b.mu.Lock()
	b.stats.Emitted++
	b.mu.Unlock()

	if err := b.store.Save(sig); err != nil {
		return err
	}

	if err := b.transport.Emit(ctx, sig); err != nil {
		return err
	}

	return b.store.MarkAcked(sig.ID())
}

// Replay fetches every unacked signal from the store, in save order, and
// republishes each through the transport directly (bypassing Save), then
// acks it. Returns the number of signals replayed.
func (b *Bus) Replay(ctx context.Context) (int, error) {
	unacked, err := b.store.GetUnacked()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, sig := range unacked {
		if err := b.transport.Emit(ctx, sig); err != nil {
			return count, err
		}
		if err := b.store.MarkAcked(sig.ID()); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// buildChain folds the current middleware list, outermost first, around a
// terminal step that runs typed handlers then any-handlers. It is rebuilt
// on every call so a use() after registration is immediately reflected —
// the chain is never precomputed and cached.
func (b *Bus) buildChain() NextFunc {
	b.mu.Lock()
	mws := append([]Middleware(nil), b.middleware...)
	b.mu.Unlock()

	chain := NextFunc(b.terminal)
	for i := len(mws) - 1; i >= 0; i-- {
		mw := mws[i]
		next := chain
		chain = func(ctx context.Context, sig sigbus.Signal) error {
			return mw(ctx, sig, next)
		}
	}
	return chain
}

// terminal runs every typed handler for sig.Type() followed by every
// any-handler, in registration order, via the executor. It never returns
// an error: handler failures are caught, counted, and reported.
func (b *Bus) terminal(ctx context.Context, sig sigbus.Signal) error {
	b.mu.Lock()
	typed := append([]handlerEntry(nil), b.typeHandlers[sig.Type()]...)
	any := append([]handlerEntry(nil), b.anyHandlers...)
	b.mu.Unlock()

	for i, e := range typed {
		b.runOne(ctx, sig, e.fn, labelFor("type", sig.Type(), i))
	}
	for i, e := range any {
		b.runOne(ctx, sig, e.fn, labelFor("any", "", i))
	}
	return nil
}

func (b *Bus) runOne(ctx context.Context, sig sigbus.Signal, h Handler, label string) {
	err := b.executor.Execute(ctx, func(ctx context.Context) error {
		return h(ctx, sig)
	})

	b.mu.Lock()
	if err != nil {
		b.stats.Errors++
	} else {
		b.stats.Handled++
	}
	b.mu.Unlock()

	if err != nil {
		handlerErr := sigerrors.NewHandler(label, err)
		observability.LogDispatchError(b.logger, sig.Type(), label, handlerErr)
		if b.onError != nil {
			b.onError(sig, label, handlerErr)
		}
	}
}

func labelFor(kind, signalType string, index int) string {
	if kind == "any" {
		return "any:" + strconv.Itoa(index)
	}
	return "type:" + signalType
}
