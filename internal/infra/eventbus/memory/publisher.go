// Package memory provides an in-memory implementation of the event publisher.
// It offers a lightweight, non-persistent publisher suitable for testing and
// development environments where durability is not required.
package memory

import (
	"context"
	"sync"

	"github.com/forensiq/collectq/internal/domain/events"
)

// Verify Publisher implements events.DomainEventPublisher.
var _ events.DomainEventPublisher = (*Publisher)(nil)

// Publisher records published events in memory. Safe for concurrent use.
type Publisher struct {
	mu       sync.RWMutex
	events   []events.DomainEvent
	handlers []func(events.DomainEvent) error
}

// NewPublisher creates an empty in-memory publisher.
func NewPublisher() *Publisher { return &Publisher{} }

// PublishDomainEvent records the event and invokes any registered handlers.
func (p *Publisher) PublishDomainEvent(ctx context.Context, event events.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	p.events = append(p.events, event)
	handlers := make([]func(events.DomainEvent) error, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.Unlock()

	for _, h := range handlers {
		if err := h(event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers a handler invoked synchronously for every published event.
func (p *Publisher) Subscribe(handler func(events.DomainEvent) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
}

// Events returns a snapshot of everything published so far.
func (p *Publisher) Events() []events.DomainEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]events.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}
