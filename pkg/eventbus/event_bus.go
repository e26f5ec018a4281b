// Package eventbus provides asynchronous delivery of vault and engine events.
package eventbus

import (
	"context"

	"github.com/vaultpilot/automations/pkg/events"
)

// Event is anything that can travel on the bus.
type Event interface {
	GetType() events.EventType
}

// EventHandler processes one decoded event.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	// Publish sends an event keyed by an ordering key (usually a path or
	// automation id).
	Publish(ctx context.Context, key string, event Event) error

	// Handle registers the handler for an event type. Must be called before
	// Subscribe.
	Handle(eventType events.EventType, handler EventHandler)

	// Subscribe starts delivery; handlers run until the context is done or
	// the bus is closed.
	Subscribe(ctx context.Context) error

	GenerateID() string

	Close() error
}
