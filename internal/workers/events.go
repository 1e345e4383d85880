package workers

import (
	"context"
	"sync"

	"giveflow/internal/models"
)

// EventHandler consumes one domain event.
type EventHandler func(ctx context.Context, tx models.Transaction)

// EventBus fans domain events out to subscribers on the worker pool, so a
// slow consumer never blocks the publisher.
type EventBus struct {
	pool *Pool
	mu   sync.RWMutex
	subs map[string][]EventHandler
}

func NewEventBus(pool *Pool) *EventBus {
	return &EventBus{pool: pool, subs: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for an event name. Not safe to call after
// publishing starts from multiple goroutines has begun; wire subscriptions
// during startup.
func (b *EventBus) Subscribe(name string, h EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[name] = append(b.subs[name], h)
}

// Publish dispatches the event to every subscriber as a pool job. Implements
// the ledger's Publisher interface.
func (b *EventBus) Publish(ctx context.Context, name string, tx models.Transaction) {
	b.mu.RLock()
	handlers := b.subs[name]
	b.mu.RUnlock()

	for _, h := range handlers {
		handler := h
		b.pool.Submit(func(jobCtx context.Context) {
			handler(jobCtx, tx)
		})
	}
}
