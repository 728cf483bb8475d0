package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/pkg/logger"
)

// EventHandler processes a domain event.
type EventHandler func(ctx context.Context, event *DomainEvent) error

// EventDispatcher routes change notifications to explicitly registered
// observers. There is no process-wide broadcast: only components holding the
// dispatcher can observe.
type EventDispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
}

// NewEventDispatcher creates a new EventDispatcher.
func NewEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Register adds an observer for one event type. Observers run in registration order.
func (d *EventDispatcher) Register(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch runs every observer of event.EventType sequentially. A failing or
// panicking observer does not stop the rest; all failures are joined.
func (d *EventDispatcher) Dispatch(ctx context.Context, event *DomainEvent) error {
	if d == nil || event == nil {
		return nil
	}
	d.mu.RLock()
	handlers := append([]EventHandler(nil), d.handlers[event.EventType]...)
	d.mu.RUnlock()

	log := logger.FromContext(ctx, nil).With(
		zap.String("event_type", string(event.EventType)),
		zap.String("event_id", event.EventID),
	)
	if len(handlers) == 0 {
		log.Debug("No observers for event")
		return nil
	}

	var errs []error
	for i, handler := range handlers {
		if err := runHandler(ctx, handler, event); err != nil {
			log.Error("Event observer failed", zap.Int("observer", i), zap.Error(err))
			errs = append(errs, fmt.Errorf("observer %d for %s: %w", i, event.EventType, err))
		}
	}
	return errors.Join(errs...)
}

func runHandler(ctx context.Context, handler EventHandler, event *DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return handler(ctx, event)
}
