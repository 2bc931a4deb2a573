// Package bus carries change notifications between the execution pipeline
// and interested listeners such as live query blocks. Delivery is
// synchronous and in subscription order; handlers must not block.
package bus

import (
	"strings"
	"sync"

	"github.com/nestdb/nestdb/core"
)

// Handler receives a change event. Handlers run on the publisher's
// goroutine, so slow work belongs on the handler's own goroutine.
type Handler func(core.ChangeEvent)

// Bus is a minimal in-process publish/subscribe hub for change events.
// The zero value is ready to use.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers []subscription
}

type subscription struct {
	id int
	fn Handler
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a handler and returns a token for Unsubscribe.
func (b *Bus) Subscribe(fn Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers = append(b.handlers, subscription{id: b.nextID, fn: fn})
	return b.nextID
}

// Unsubscribe removes the handler registered under token. Unknown tokens
// are ignored.
func (b *Bus) Unsubscribe(token int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.handlers {
		if sub.id == token {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every subscriber in registration order.
// Table names are lower-cased before delivery so subscribers can match
// without case folding of their own.
func (b *Bus) Publish(ev core.ChangeEvent) {
	if len(ev.Tables) > 0 {
		lowered := make([]string, len(ev.Tables))
		for i, t := range ev.Tables {
			lowered[i] = strings.ToLower(t)
		}
		ev.Tables = lowered
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.handlers))
	copy(subs, b.handlers)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

// Len reports the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
