package usecase

import (
	"context"
	"fmt"
	"time"

	"tripdesk-service/internal/domain/entity"
	"tripdesk-service/pkg/logger"
	"tripdesk-service/pkg/metrics"
)

// EventDispatcher queues domain events and delivers them to routed handlers on a worker loop
type EventDispatcher struct {
	queue   chan entity.Event
	router  EventRouter
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewEventDispatcher creates a new event dispatcher with a bounded queue
func NewEventDispatcher(
	router EventRouter,
	queueSize int,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *EventDispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &EventDispatcher{
		queue:   make(chan entity.Event, queueSize),
		router:  router,
		logger:  logger,
		metrics: metrics,
	}
}

// Publish enqueues the event without blocking. A full queue drops the event.
func (d *EventDispatcher) Publish(ctx context.Context, event entity.Event) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("Event queue full, dropping event", "type", event.Type)
		d.metrics.EventsFailed.WithLabelValues(string(event.Type)).Inc()
	}
}

// Run delivers events until ctx is cancelled, then drains what is already queued
func (d *EventDispatcher) Run(ctx context.Context) {
	d.logger.Info("Event dispatcher started")
	for {
		select {
		case event := <-d.queue:
			d.Dispatch(ctx, event)
		case <-ctx.Done():
			d.drain()
			d.logger.Info("Event dispatcher stopped")
			return
		}
	}
}

func (d *EventDispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for {
		select {
		case event := <-d.queue:
			d.Dispatch(ctx, event)
		default:
			return
		}
	}
}

// Dispatch runs every handler routed for the event. Handler failures are logged and counted.
func (d *EventDispatcher) Dispatch(ctx context.Context, event entity.Event) {
	handlers := d.router.Handlers(event.Type)
	if len(handlers) == 0 {
		d.logger.Debug("No handler found for event", "type", event.Type)
		return
	}

	for _, handler := range handlers {
		handlerType := fmt.Sprintf("%T", handler)
		if err := d.handle(ctx, handler, event); err != nil {
			d.logger.Error("Handler failed to process event",
				"type", event.Type,
				"handler", handlerType,
				"error", err)
			d.metrics.EventsFailed.WithLabelValues(string(event.Type)).Inc()
			continue
		}
		d.metrics.EventsDispatched.WithLabelValues(string(event.Type)).Inc()
	}
}

func (d *EventDispatcher) handle(ctx context.Context, handler EventHandler, event entity.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}
