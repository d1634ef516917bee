// Package transport provides the fan-out contract between a bus and its
// subscribers, and the default in-process implementation.
package transport

import (
	"context"
	"sync"

	"github.com/randalmurphal/sigbus"
)

// Subscriber receives a dispatched signal.
type Subscriber func(ctx context.Context, sig sigbus.Signal) error

// Transport fans a signal out to every currently registered subscriber. A
// bus installs exactly one subscription at construction; Transport does
// not key subscriptions by signal type, since that filtering is the bus's
// own concern.
type Transport interface {
	// Emit delivers sig to every subscriber currently registered, in
	// registration order.
	Emit(ctx context.Context, sig sigbus.Signal) error

	// Subscribe registers sub and returns a func that removes it.
	// Unsubscribe is idempotent.
	Subscribe(sub Subscriber) (unsubscribe func())
}

type subEntry struct {
	id int64
	fn Subscriber
}

// LocalTransport is the default in-process transport: it awaits each
// subscriber sequentially, in registration order, and returns the first
// error encountered without calling the remaining subscribers — matching
// the bus's own single-threaded cooperative dispatch contract.
type LocalTransport struct {
	mu     sync.Mutex
	subs   []subEntry
	nextID int64
}

// NewLocal constructs a LocalTransport.
func NewLocal() *LocalTransport { return &LocalTransport{} }

// Emit implements Transport.
func (t *LocalTransport) Emit(ctx context.Context, sig sigbus.Signal) error {
	t.mu.Lock()
	subs := append([]subEntry(nil), t.subs...)
	t.mu.Unlock()

	for _, sub := range subs {
		if err := sub.fn(ctx, sig); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe implements Transport.
func (t *LocalTransport) Subscribe(sub Subscriber) func() {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subEntry{id: id, fn: sub})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, e := range t.subs {
				if e.id == id {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

var _ Transport = (*LocalTransport)(nil)
