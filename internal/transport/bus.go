package transport

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 128

// Bus fans events out to subscribers in publish order.
// Publish blocks while a subscriber's buffer is full; status events are not
// droppable.
type Bus struct {
	mu     sync.RWMutex
	subs   []*subscription
	closed bool
	size   int

	sequence atomic.Uint64
}

type subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewBus creates a bus. size <= 0 means DefaultBufferSize.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{size: size}
}

// Subscribe returns a channel receiving every event published after the
// call, and a function that unsubscribes and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	sub := &subscription{
		ch:   make(chan Event, b.size),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub.ch, func() { b.unsubscribe(sub) }
}

func (b *Bus) unsubscribe(sub *subscription) {
	sub.once.Do(func() {
		// Unblock a Publish stuck on this subscriber before taking the
		// write lock.
		close(sub.done)

		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == sub {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	})
}

// Publish assigns the next sequence number and delivers ev.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	ev.Seq = b.sequence.Add(1)
	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
	}
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	subs := append([]*subscription(nil), b.subs...)
	b.mu.Unlock()

	for _, sub := range subs {
		b.unsubscribe(sub)
	}
}
