// Package executor provides the handler-execution contract used by the bus
// for dispatch concurrency, and two implementations: a sequential default
// and a bounded worker pool.
package executor

import (
	"context"
	"sync/atomic"
)

// HandlerFunc runs a single dispatched handler invocation.
type HandlerFunc func(ctx context.Context) error

// Stats reports an executor's current load.
type Stats struct {
	// Queued is the number of submitted jobs not yet started.
	Queued int
	// Processing is the number of jobs currently executing.
	Processing int
}

// HandlerExecutor runs handler invocations, optionally concurrently. It is
// a delegation point for handler concurrency only: the bus's own dispatch
// pipeline ordering (type handlers before any-handlers, in registration
// order) is unaffected by which executor is in use.
type HandlerExecutor interface {
	// Execute runs fn and returns once it completes (or is rejected).
	// Sequential executors run fn inline; concurrent executors may queue
	// it and block the caller until a worker is free.
	Execute(ctx context.Context, fn HandlerFunc) error

	// Stats returns a snapshot of current load.
	Stats() Stats
}

// SequentialExecutor runs every handler inline on the caller's goroutine.
// Queued is always 0; handler errors propagate directly to the caller.
type SequentialExecutor struct {
	processing int32
}

// NewSequential constructs a SequentialExecutor.
func NewSequential() *SequentialExecutor { return &SequentialExecutor{} }

// Execute implements HandlerExecutor.
func (e *SequentialExecutor) Execute(ctx context.Context, fn HandlerFunc) error {
	atomic.AddInt32(&e.processing, 1)
	defer atomic.AddInt32(&e.processing, -1)
	return fn(ctx)
}

// Stats implements HandlerExecutor.
func (e *SequentialExecutor) Stats() Stats {
	return Stats{Processing: int(atomic.LoadInt32(&e.processing))}
}

var _ HandlerExecutor = (*SequentialExecutor)(nil)
