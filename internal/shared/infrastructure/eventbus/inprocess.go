package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// InProcessBus replaces RabbitMQ in local mode. Published envelopes are
// dispatched synchronously to the handlers registered for their routing key.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   *slog.Logger
}

// NewInProcessBus creates an empty in-process bus.
func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{handlers: make(map[string][]Handler), logger: logger}
}

// Register subscribes h to each of its routing keys.
func (b *InProcessBus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range h.RoutingKeys() {
		b.handlers[key] = append(b.handlers[key], h)
	}
}

// HandlerCount returns the number of registrations across all keys.
func (b *InProcessBus) HandlerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, hs := range b.handlers {
		n += len(hs)
	}
	return n
}

// Publish decodes body and runs every matching handler. Undecodable bodies
// and handler failures are logged; they are not returned, so the outbox
// marks the message published either way.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, body []byte) error {
	env, err := DecodeEnvelope(body)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to decode envelope", "routing_key", routingKey, "error", err)
		return nil
	}
	if env.RoutingKey == "" {
		env.RoutingKey = routingKey
	}

	if err := b.Dispatch(ctx, env); err != nil {
		b.logger.ErrorContext(ctx, "event dispatch failed",
			"routing_key", env.RoutingKey,
			"event_id", env.EventID,
			"error", err,
		)
	}
	return nil
}

// Dispatch runs the handlers for env and joins their errors.
func (b *InProcessBus) Dispatch(ctx context.Context, env *Envelope) error {
	b.mu.RLock()
	handlers := b.handlers[env.RoutingKey]
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *InProcessBus) Close() error { return nil }
