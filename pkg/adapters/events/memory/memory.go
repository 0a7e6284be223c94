package memory

import (
	"context"
	"sync"

	"github.com/duragraph/duragraph/pkg/domain"
	"github.com/duragraph/duragraph/pkg/ports"
)

// Bus implements ports.EventBus using in-memory handlers
// This is for testing purposes only
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]ports.EventHandler
	dispatches  []domain.RunDispatch
	published   map[string][]domain.Event
}

// NewBus creates a new in-memory event bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]ports.EventHandler),
		published:   make(map[string][]domain.Event),
	}
}

// Dispatch records a run instruction
func (b *Bus) Dispatch(ctx context.Context, d domain.RunDispatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dispatches = append(b.dispatches, d)
	return nil
}

// Dispatches returns all recorded run instructions
func (b *Bus) Dispatches() []domain.RunDispatch {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dispatches := make([]domain.RunDispatch, len(b.dispatches))
	copy(dispatches, b.dispatches)
	return dispatches
}

// Publish delivers an event synchronously to all subscribers of a subject
func (b *Bus) Publish(ctx context.Context, subject string, event domain.Event) error {
	b.mu.Lock()
	b.published[subject] = append(b.published[subject], event)
	handlers := make([]ports.EventHandler, len(b.subscribers[subject]))
	copy(handlers, b.subscribers[subject])
	b.mu.Unlock()

	for _, handler := range handlers {
		_ = handler(ctx, event)
	}
	return nil
}

// Published returns all events published on a subject
func (b *Bus) Published(subject string) []domain.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := make([]domain.Event, len(b.published[subject]))
	copy(events, b.published[subject])
	return events
}

// Subscribe registers a handler for a subject
func (b *Bus) Subscribe(ctx context.Context, subject string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers[subject] = append(b.subscribers[subject], handler)
	return nil
}

// Subscribers returns the number of handlers registered on a subject
func (b *Bus) Subscribers(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.subscribers[subject])
}

// Healthy always reports true for the in-memory bus
func (b *Bus) Healthy() bool {
	return true
}

// Close clears all subscribers
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subscribers = make(map[string][]ports.EventHandler)
	return nil
}
