package events

import (
	"context"
	"time"
)

// SubjectPrefix namespaces event subjects on every bus; AllEvents matches
// any of them.
const (
	SubjectPrefix = "chatedge."
	AllEvents     = SubjectPrefix + ">"
)

const (
	UserRegistered        = "USER_REGISTERED"
	UserLogin             = "USER_LOGIN"
	ChatExchangeCompleted = "CHAT_EXCHANGE_COMPLETED"
	ChatHistoryCleared    = "CHAT_HISTORY_CLEARED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "USER_LOGIN").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Handler processes one event. A returned error asks the bus to redeliver
// where it supports that.
type Handler func(ctx context.Context, event Event) error

// Publisher is satisfied by the NATS publisher, LocalBus and NopPublisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events; used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error {
	return nil
}
