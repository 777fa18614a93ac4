package feed

import (
	"context"
	"sync"
)

// MemoryBroker is an in-process Broker for tests and single-node runs.
// Events are delivered synchronously on the publisher's goroutine.
type MemoryBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler // collection -> subscription id -> handler
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]Handler)}
}

var _ Broker = (*MemoryBroker)(nil)

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[ev.Collection]))
	for _, h := range b.subs[ev.Collection] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, collection string, h Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[int]Handler)
	}
	b.subs[collection][id] = h
	return &memorySubscription{broker: b, collection: collection, id: id}, nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]Handler)
	b.closed = true
	return nil
}

type memorySubscription struct {
	broker     *MemoryBroker
	collection string
	id         int
	once       sync.Once
}

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		if handlers := s.broker.subs[s.collection]; handlers != nil {
			delete(handlers, s.id)
			if len(handlers) == 0 {
				delete(s.broker.subs, s.collection)
			}
		}
	})
	return nil
}
