package eventbus

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire form of a domain event: routing information plus the
// event body and its tracing metadata.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// Handler reacts to published events on the in-process bus.
type Handler interface {
	// RoutingKeys returns the keys this handler subscribes to.
	RoutingKeys() []string
	Handle(ctx context.Context, event *Envelope) error
}

// DecodeEnvelope parses an envelope published by the outbox relay.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
