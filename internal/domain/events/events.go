// Package events provides domain event handling for communicating state
// changes across system boundaries in a decoupled way.
package events

import (
	"context"
	"time"
)

// EventType identifies the category of an event for routing and handling.
type EventType string

// DomainEvent encapsulates all event data flowing out of the system, providing
// a standardized format for event processing and distribution.
type DomainEvent struct {
	// Type identifies the category of this event.
	Type EventType

	// Key enables consistent event routing, typically containing a business
	// identifier like a request id that events can be partitioned by.
	Key string

	// Timestamp records when this event was created.
	Timestamp time.Time

	// Payload contains the actual event data. The concrete type depends on
	// the EventType.
	Payload any
}

// DomainEventPublisher publishes domain events to notify other parts of the
// system about important domain changes. It provides a technology-agnostic
// interface to decouple event producers from the underlying messaging
// infrastructure.
type DomainEventPublisher interface {
	// PublishDomainEvent sends a domain event to interested subscribers.
	// Returns an error if publishing fails.
	PublishDomainEvent(ctx context.Context, event DomainEvent) error
}
