// Package fswatch adapts fsnotify filesystem events into a sigbus.Source.
package fswatch

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/randalmurphal/sigbus"
	"github.com/randalmurphal/sigbus/observability"
)

// Option configures a Watcher.
type Option func(*watcherConfig)

type watcherConfig struct {
	name    string
	logger  *slog.Logger
	onError func(error)
}

// WithName overrides the source's name. Default: "fswatch".
func WithName(name string) Option {
	return func(c *watcherConfig) { c.name = name }
}

// WithLogger attaches structured logging to the watcher.
func WithLogger(logger *slog.Logger) Option {
	return func(c *watcherConfig) { c.logger = logger }
}

// WithOnError registers a callback invoked whenever fsnotify reports an
// error on its Errors channel. The watch loop continues regardless.
func WithOnError(fn func(error)) Option {
	return func(c *watcherConfig) { c.onError = fn }
}

// Watcher is a sigbus.Source backed by fsnotify, converting each filesystem
// event on the watched paths into a signal via toSignal.
type Watcher struct {
	sigbus.BaseSource
	paths    []string
	toSignal func(fsnotify.Event) sigbus.Signal
	logger   *slog.Logger
	onError  func(error)
}

// New constructs a Watcher over paths. toSignal converts each fsnotify
// event into the signal to emit.
func New(paths []string, toSignal func(fsnotify.Event) sigbus.Signal, opts ...Option) *Watcher {
	cfg := &watcherConfig{name: "fswatch"}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Watcher{
		BaseSource: sigbus.NewBaseSource(cfg.name),
		paths:      paths,
		toSignal:   toSignal,
		logger:     observability.EnrichLogger(cfg.logger, "source", cfg.name),
		onError:    cfg.onError,
	}
}

// Start implements sigbus.Source. It adds all configured paths to a new
// fsnotify watcher and runs the event loop until ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context, emit sigbus.EmitFunc) error {
	runCtx, release, err := w.Guard(ctx)
	if err != nil {
		return err
	}
	defer release()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, p := range w.paths {
		if err := watcher.Add(p); err != nil {
			return err
		}
	}

	for {
		select {
		case <-runCtx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if err := emit(runCtx, w.toSignal(event)); err != nil && w.logger != nil {
				w.logger.Error("emit failed", "error", err, "event", event.String())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil && w.onError != nil {
				w.onError(err)
			}
		}
	}
}

var _ sigbus.Source = (*Watcher)(nil)
