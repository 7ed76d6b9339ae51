package events

import (
	"sort"
	"sync"
)

// LocalBus is an in-process Bus. Delivery is synchronous: Publish invokes
// every subscriber inline before returning, which preserves the ordering
// the session engine depends on (gameEnded before the following
// gameStarted, for example).
type LocalBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]Handler
}

// NewLocalBus creates an empty LocalBus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[int]Handler)}
}

// Publish delivers env to all current subscribers in subscription order.
//
// Postcondition: Never returns a non-nil error.
func (b *LocalBus) Publish(env Envelope) error {
	b.mu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	// Map iteration order is random; deliver in subscription order.
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(env)
	}
	return nil
}

// Subscribe registers fn and returns an idempotent unsubscribe handle.
func (b *LocalBus) Subscribe(fn Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}, nil
}
