// Package events fans change events out to in-process subscribers.
package events

import (
	"context"
	"sync"

	"crmtriage/internal/models"
)

// EventHandler is invoked for every event matching a subscription.
type EventHandler func(ctx context.Context, event *models.ChangeEvent)

// Filter defines criteria for matching events.
type Filter struct {
	// EventTypes filters by event type (nil = all types).
	EventTypes []models.ChangeEventType

	// BoardID filters to one board (empty = all).
	BoardID string

	// MessageID filters to one message (empty = all).
	MessageID string
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event *models.ChangeEvent) bool {
	if event == nil {
		return false
	}

	if len(f.EventTypes) > 0 {
		matched := false
		for _, t := range f.EventTypes {
			if event.Type == t {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.BoardID != "" && event.BoardID != f.BoardID {
		return false
	}
	if f.MessageID != "" && event.MessageID != f.MessageID {
		return false
	}
	return true
}

type subscription struct {
	id      string
	filter  Filter
	handler EventHandler
}

// Bus is an in-process publish/subscribe hub. It satisfies service.Notifier.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	order         []string
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subscriptions: make(map[string]*subscription)}
}

// Publish delivers event to every matching subscriber, synchronously and
// in subscription order.
func (b *Bus) Publish(ctx context.Context, event *models.ChangeEvent) {
	if event == nil {
		return
	}

	b.mu.RLock()
	var handlers []EventHandler
	for _, id := range b.order {
		sub := b.subscriptions[id]
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	// Handlers run outside the lock so they may subscribe or unsubscribe.
	for _, handler := range handlers {
		handler(ctx, event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (b *Bus) Subscribe(id string, filter Filter, handler EventHandler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}
	b.subscriptions[id] = &subscription{id: id, filter: filter, handler: handler}
	b.order = append(b.order, id)
	return nil
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}
	delete(b.subscriptions, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}

// Errors for bus operations.
var (
	ErrInvalidSubscriptionID = &BusError{Message: "subscription ID is required"}
	ErrNilHandler            = &BusError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &BusError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &BusError{Message: "subscription not found"}
)

// BusError represents an error from bus operations.
type BusError struct {
	Message string
}

func (e *BusError) Error() string {
	return e.Message
}
