package executor_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sigerrors "github.com/randalmurphal/sigbus/errors"
	"github.com/randalmurphal/sigbus/executor"
)

func TestSequentialExecutor_RunsInline(t *testing.T) {
	e := executor.NewSequential()
	called := false
	err := e.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to run")
	}
	if s := e.Stats(); s.Queued != 0 || s.Processing != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
}

func TestSequentialExecutor_PropagatesError(t *testing.T) {
	e := executor.NewSequential()
	boom := errors.New("boom")
	err := e.Execute(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected boom error, got %v", err)
	}
}

func TestWorkerPoolExecutor_RunsConcurrently(t *testing.T) {
	e := executor.NewWorkerPool(4)
	defer e.Close()

	var wg sync.WaitGroup
	var concurrent int64
	var maxConcurrent int64

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Execute(context.Background(), func(context.Context) error {
				n := atomic.AddInt64(&concurrent, 1)
				for {
					old := atomic.LoadInt64(&maxConcurrent)
					if n <= old || atomic.CompareAndSwapInt64(&maxConcurrent, old, n) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt64(&concurrent, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if atomic.LoadInt64(&maxConcurrent) < 2 {
		t.Errorf("expected some concurrent execution, max observed %d", maxConcurrent)
	}
}

func TestWorkerPoolExecutor_RetriesTransientFailures(t *testing.T) {
	e := executor.NewWorkerPool(1, executor.WithRetry(sigerrors.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2,
	}))
	defer e.Close()

	var attempts int32
	err := e.Execute(context.Background(), func(context.Context) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return sigerrors.Transient(errors.New("try again"), "flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWorkerPoolExecutor_StatsReflectBacklog(t *testing.T) {
	e := executor.NewWorkerPool(1)
	defer e.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go e.Execute(context.Background(), func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	done := make(chan struct{})
	go func() {
		e.Execute(context.Background(), func(context.Context) error { return nil })
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	stats := e.Stats()
	if stats.Processing < 1 {
		t.Errorf("expected at least 1 processing job, got %d", stats.Processing)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second job never completed")
	}
}

func TestWorkerPoolExecutor_CloseRejectsFurtherWork(t *testing.T) {
	e := executor.NewWorkerPool(1)
	e.Close()

	err := e.Execute(context.Background(), func(context.Context) error { return nil })
	if err == nil {
		t.Error("expected error submitting work to a closed executor")
	}
}
