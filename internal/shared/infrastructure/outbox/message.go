package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/shared/domain"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/eventbus"
)

// Message is a domain event waiting in the outbox table for relay.
type Message struct {
	ID             int64
	EventID        uuid.UUID
	AggregateType  string
	AggregateID    uuid.UUID
	RoutingKey     string
	Payload        json.RawMessage
	Metadata       json.RawMessage
	CreatedAt      time.Time
	PublishedAt    *time.Time
	RetryCount     int
	NextRetryAt    *time.Time
	LastError      *string
	DeadLetteredAt *time.Time
}

// NewMessage serializes a domain event into an outbox message.
func NewMessage(event domain.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	metadata, err := json.Marshal(event.Metadata())
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		RoutingKey:    event.RoutingKey(),
		Payload:       payload,
		Metadata:      metadata,
		CreatedAt:     event.OccurredAt(),
	}, nil
}

// NewMessages serializes a batch of events, failing on the first error.
func NewMessages(events []domain.DomainEvent) ([]*Message, error) {
	msgs := make([]*Message, 0, len(events))
	for _, event := range events {
		msg, err := NewMessage(event)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// IsPublished returns true if the message has been relayed.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// Envelope builds the broker body for this message.
func (m *Message) Envelope() ([]byte, error) {
	return json.Marshal(eventbus.Envelope{
		EventID:       m.EventID,
		AggregateID:   m.AggregateID,
		AggregateType: m.AggregateType,
		RoutingKey:    m.RoutingKey,
		OccurredAt:    m.CreatedAt,
		Payload:       m.Payload,
		Metadata:      m.Metadata,
	})
}
