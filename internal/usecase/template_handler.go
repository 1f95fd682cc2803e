package usecase

import (
	"context"
	"time"

	"tripdesk-service/internal/domain/entity"
)

// EventHandler defines the interface for domain event consumers
type EventHandler interface {
	// CanHandle determines if this handler reacts to the given event type
	CanHandle(eventType entity.EventType) bool

	// Handle processes one event. Errors are logged by the dispatcher, never surfaced to the engine.
	Handle(ctx context.Context, event entity.Event) error
}

// EventRouter routes events to the handlers registered for them
type EventRouter interface {
	// Register registers a handler
	Register(handler EventHandler)

	// Handlers returns every handler accepting eventType
	Handlers(eventType entity.EventType) []EventHandler
}

// EventPublisher accepts events emitted after successful engine mutations
type EventPublisher interface {
	Publish(ctx context.Context, event entity.Event)
}

// Authorizer is the identity/role gate supplied by the authorization layer
type Authorizer interface {
	// CanActAsOwnerOrElevated reports whether actor owns the resource or holds the elevated capability.
	// An empty ownerID asks for the elevated capability alone.
	CanActAsOwnerOrElevated(actor entity.Actor, ownerID string) bool
}

// OwnershipAuthorizer grants access to the owning agent or to actors that may view all
type OwnershipAuthorizer struct{}

// CanActAsOwnerOrElevated implements Authorizer
func (OwnershipAuthorizer) CanActAsOwnerOrElevated(actor entity.Actor, ownerID string) bool {
	if actor.CanViewAll {
		return true
	}
	return ownerID != "" && actor.ID == ownerID
}

// Clock returns the current time
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
