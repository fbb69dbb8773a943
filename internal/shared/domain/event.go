package domain

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate and relayed through the
// outbox. RoutingKey doubles as the event type on the wire.
type DomainEvent interface {
	EventID() uuid.UUID
	AggregateID() uuid.UUID
	AggregateType() string
	RoutingKey() string
	OccurredAt() time.Time
	Metadata() EventMetadata
}

// EventMetadata ties an event to the request that caused it.
type EventMetadata struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	CausationID   uuid.UUID `json:"causation_id"`
	UserID        uuid.UUID `json:"user_id"`
}

// IsZero reports whether no field is set.
func (m EventMetadata) IsZero() bool {
	return m == EventMetadata{}
}

// merge overlays the non-nil fields of o onto m.
func (m EventMetadata) merge(o EventMetadata) EventMetadata {
	if o.CorrelationID != uuid.Nil {
		m.CorrelationID = o.CorrelationID
	}
	if o.CausationID != uuid.Nil {
		m.CausationID = o.CausationID
	}
	if o.UserID != uuid.Nil {
		m.UserID = o.UserID
	}
	return m
}

// BaseEvent is embedded by concrete events for the envelope accessors.
// Event IDs are UUIDv7 so they sort in creation order, which keeps outbox
// rows written in one transaction in a stable sequence.
type BaseEvent struct {
	id         uuid.UUID
	aggregate  uuid.UUID
	kind       string
	routingKey string
	at         time.Time
	meta       EventMetadata
}

func NewBaseEvent(aggregateID uuid.UUID, aggregateType, routingKey string) BaseEvent {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return BaseEvent{
		id:         id,
		aggregate:  aggregateID,
		kind:       aggregateType,
		routingKey: routingKey,
		at:         time.Now().UTC(),
	}
}

func (e BaseEvent) EventID() uuid.UUID      { return e.id }
func (e BaseEvent) AggregateID() uuid.UUID  { return e.aggregate }
func (e BaseEvent) AggregateType() string   { return e.kind }
func (e BaseEvent) RoutingKey() string      { return e.routingKey }
func (e BaseEvent) OccurredAt() time.Time   { return e.at }
func (e BaseEvent) Metadata() EventMetadata { return e.meta }

// SetMetadata stamps request metadata onto the event. Fields left nil in
// metadata keep their current value, so a later stamp cannot erase the
// correlation an earlier one recorded.
func (e *BaseEvent) SetMetadata(metadata EventMetadata) {
	e.meta = e.meta.merge(metadata)
}
