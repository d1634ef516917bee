package executor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	sigerrors "github.com/randalmurphal/sigbus/errors"
)

// Option configures a WorkerPoolExecutor.
type Option func(*poolConfig)

type poolConfig struct {
	retry   sigerrors.RetryConfig
	timeout time.Duration
}

// WithRetry sets the retry policy applied to every submitted handler.
// Default: sigerrors.NoRetry (no retries).
func WithRetry(cfg sigerrors.RetryConfig) Option {
	return func(c *poolConfig) { c.retry = cfg }
}

// WithTimeout bounds each handler invocation's context. Zero (the default)
// means no timeout is applied.
func WithTimeout(d time.Duration) Option {
	return func(c *poolConfig) { c.timeout = d }
}

type job struct {
	fn   HandlerFunc
	done chan error
}

// WorkerPoolExecutor runs handlers across a bounded pool of goroutines,
// draining a buffered job channel. Submitted jobs optionally retry on
// transient failure using the teacher's exponential-backoff-with-jitter
// machinery.
type WorkerPoolExecutor struct {
	size    int
	retry   sigerrors.RetryConfig
	timeout time.Duration

	jobs       chan job
	queued     int64
	processing int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewWorkerPool constructs a WorkerPoolExecutor with size worker
// goroutines. A size below 1 is treated as 1.
func NewWorkerPool(size int, opts ...Option) *WorkerPoolExecutor {
	if size <= 0 {
		size = 1
	}

	cfg := &poolConfig{retry: sigerrors.NoRetry}
	for _, opt := range opts {
		opt(cfg)
	}

	e := &WorkerPoolExecutor{
		size:    size,
		retry:   cfg.retry,
		timeout: cfg.timeout,
		jobs:    make(chan job, size*4),
		done:    make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		go e.worker()
	}
	return e
}

func (e *WorkerPoolExecutor) worker() {
	for {
		select {
		case <-e.done:
			return
		case j, ok := <-e.jobs:
			if !ok {
				return
			}
			atomic.AddInt64(&e.queued, -1)
			atomic.AddInt64(&e.processing, 1)
			j.done <- e.run(j.fn)
			atomic.AddInt64(&e.processing, -1)
		}
	}
}

func (e *WorkerPoolExecutor) run(fn HandlerFunc) error {
	ctx := context.Background()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result := sigerrors.WithRetryContext(ctx, e.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return result.Err
}

// Execute implements HandlerExecutor. It queues fn and blocks until a
// worker completes it (or the pool has been closed).
func (e *WorkerPoolExecutor) Execute(ctx context.Context, fn HandlerFunc) error {
	select {
	case <-e.done:
		return sigerrors.NewLifecycle("executor closed")
	default:
	}

	j := job{fn: fn, done: make(chan error, 1)}
	atomic.AddInt64(&e.queued, 1)

	select {
	case e.jobs <- j:
	case <-e.done:
		atomic.AddInt64(&e.queued, -1)
		return sigerrors.NewLifecycle("executor closed")
	case <-ctx.Done():
		atomic.AddInt64(&e.queued, -1)
		return ctx.Err()
	}

	select {
	case err := <-j.done:
		return err
	case <-e.done:
		return sigerrors.NewLifecycle("executor closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats implements HandlerExecutor.
func (e *WorkerPoolExecutor) Stats() Stats {
	return Stats{
		Queued:     int(atomic.LoadInt64(&e.queued)),
		Processing: int(atomic.LoadInt64(&e.processing)),
	}
}

// Close stops accepting new work and shuts down the worker goroutines.
// Idempotent.
func (e *WorkerPoolExecutor) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

var _ HandlerExecutor = (*WorkerPoolExecutor)(nil)
