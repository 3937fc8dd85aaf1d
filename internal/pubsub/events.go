// Package pubsub provides a generic publish/subscribe event system.
//
// Every notification source in MermaidPad (editing-surface changes, document
// property changes, render readiness, file-watcher hits, window activation)
// is a Broker. The wiring manager subscribes to brokers on attach and cancels
// the subscriptions on detach.
package pubsub

import (
	"context"
	"time"
)

// EventType classifies a published event within its broker.
type EventType string

const (
	// ChangedEvent signals that the payload's source mutated.
	ChangedEvent EventType = "changed"
	// ReadyEvent signals that the payload's source completed startup.
	ReadyEvent EventType = "ready"
	// ErrorEvent carries a non-fatal failure notification.
	ErrorEvent EventType = "error"
)

// Event is a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
