package router

import (
	"fmt"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/internal/usecase"
	"tripdesk-service/pkg/logger"
)

// EventRouter routes domain events to every handler that accepts their type
type EventRouter struct {
	handlers []usecase.EventHandler
	logger   logger.Logger
}

// NewEventRouter creates a new event router
func NewEventRouter(logger logger.Logger) *EventRouter {
	return &EventRouter{
		handlers: make([]usecase.EventHandler, 0),
		logger:   logger,
	}
}

// Register registers a handler. Call before the dispatcher starts.
func (r *EventRouter) Register(handler usecase.EventHandler) {
	r.handlers = append(r.handlers, handler)
	r.logger.Info("Registered event handler", "handler", fmt.Sprintf("%T", handler))
}

// Handlers returns the handlers for eventType in registration order
func (r *EventRouter) Handlers(eventType entity.EventType) []usecase.EventHandler {
	var matched []usecase.EventHandler
	for _, handler := range r.handlers {
		if handler.CanHandle(eventType) {
			matched = append(matched, handler)
		}
	}
	return matched
}
