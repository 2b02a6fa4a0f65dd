// Package eventbus implements an in-process fan-out publish/subscribe bus.
// Delivery never blocks the publisher: a subscriber whose buffer is full
// misses the event and the drop is counted.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the channel capacity of every subscription.
const DefaultBuffer = 64

// Event represents an arbitrary event passed on the bus.
type Event = any

// EventBus is the untyped bus used to connect producers such as the
// simulation service and the control loop to collectors.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the untyped bus implementation.
type Bus = TypedBus[Event]

// New creates an untyped bus.
func New() *Bus { return NewTyped[Event]() }

// TypedBus is a publish/subscribe bus for events of type T.
type TypedBus[T any] struct {
	mu      sync.RWMutex
	subs    []chan T
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// NewTyped creates a bus with DefaultBuffer sized subscriptions.
func NewTyped[T any]() *TypedBus[T] { return NewTypedSize[T](DefaultBuffer) }

// NewTypedSize creates a bus whose subscriptions buffer n events.
func NewTypedSize[T any](n int) *TypedBus[T] {
	if n < 0 {
		n = 0
	}
	return &TypedBus[T]{buffer: n}
}

// Publish sends e to every subscriber that has room for it.
func (b *TypedBus[T]) Publish(e T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber. Subscribing to a closed bus returns a
// closed channel.
func (b *TypedBus[T]) Subscribe() <-chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *TypedBus[T]) Unsubscribe(sub <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes every subscription. Later publishes are ignored.
func (b *TypedBus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}

// Dropped returns the number of deliveries skipped because a subscriber
// buffer was full.
func (b *TypedBus[T]) Dropped() uint64 { return b.dropped.Load() }
