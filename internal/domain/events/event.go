package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event is a fact about an aggregate that other systems may consume.
type Event interface {
	ID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	EventType() string
	Version() int
	CreatedAt() time.Time
	Metadata() map[string]string
}

// BaseEvent carries the envelope fields shared by all events. Concrete
// events embed it and add their payload as exported fields.
type BaseEvent struct {
	id            uuid.UUID
	aggregateID   uuid.UUID
	aggregateType string
	eventType     string
	version       int
	createdAt     time.Time
	metadata      map[string]string
}

// NewBaseEvent creates a base event stamped with a fresh id and the current time.
func NewBaseEvent(aggregateID uuid.UUID, aggregateType, eventType string, version int) BaseEvent {
	return BaseEvent{
		id:            uuid.New(),
		aggregateID:   aggregateID,
		aggregateType: aggregateType,
		eventType:     eventType,
		version:       version,
		createdAt:     time.Now().UTC(),
		metadata:      make(map[string]string),
	}
}

func (e BaseEvent) ID() uuid.UUID          { return e.id }
func (e BaseEvent) AggregateID() uuid.UUID { return e.aggregateID }
func (e BaseEvent) AggregateType() string  { return e.aggregateType }
func (e BaseEvent) EventType() string      { return e.eventType }
func (e BaseEvent) Version() int           { return e.version }
func (e BaseEvent) CreatedAt() time.Time   { return e.createdAt }

// Metadata returns the event metadata. The map is shared with the event.
func (e BaseEvent) Metadata() map[string]string {
	return e.metadata
}

// SetMetadata sets a metadata entry.
func (e *BaseEvent) SetMetadata(key, value string) {
	if e.metadata == nil {
		e.metadata = make(map[string]string)
	}
	e.metadata[key] = value
}

// EventPublisher publishes events to a broker.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event Event) error
}

// Publishers fans an event out to several publishers. Every publisher is
// attempted; the returned error joins the individual failures.
type Publishers []EventPublisher

// PublishEvent implements EventPublisher.
func (p Publishers) PublishEvent(ctx context.Context, event Event) error {
	var errs []error
	for _, pub := range p {
		if err := pub.PublishEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Message is the broker representation of an event.
type Message struct {
	ID            uuid.UUID         `json:"id"`
	AggregateID   uuid.UUID         `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	EventType     string            `json:"event_type"`
	Version       int               `json:"version"`
	Data          interface{}       `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewMessage builds the broker message for event.
func NewMessage(event Event) Message {
	return Message{
		ID:            event.ID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		EventType:     event.EventType(),
		Version:       event.Version(),
		Data:          event,
		Metadata:      event.Metadata(),
		CreatedAt:     event.CreatedAt(),
	}
}
