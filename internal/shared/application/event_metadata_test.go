package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/shared/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	domain.BaseEvent
}

func TestNewEventMetadata(t *testing.T) {
	t.Run("generates correlation ID when context has none", func(t *testing.T) {
		userID := uuid.New()

		first := NewEventMetadata(context.Background(), userID)
		second := NewEventMetadata(context.Background(), userID)

		assert.Equal(t, userID, first.UserID)
		assert.NotEqual(t, uuid.Nil, first.CorrelationID)
		assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
		assert.NotEqual(t, first.CausationID, second.CausationID)
	})

	t.Run("reuses correlation ID from context", func(t *testing.T) {
		correlationID := uuid.New()
		ctx := observability.WithCorrelationID(context.Background(), correlationID.String())

		metadata := NewEventMetadata(ctx, uuid.New())

		assert.Equal(t, correlationID, metadata.CorrelationID)
	})

	t.Run("ignores non-UUID correlation ID", func(t *testing.T) {
		ctx := observability.WithCorrelationID(context.Background(), "cron-run-7")

		metadata := NewEventMetadata(ctx, uuid.New())

		assert.NotEqual(t, uuid.Nil, metadata.CorrelationID)
	})
}

func TestApplyEventMetadata(t *testing.T) {
	t.Run("applies metadata to every event", func(t *testing.T) {
		userID := uuid.New()
		first := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "test", "test.first")}
		second := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "test", "test.second")}
		metadata := NewEventMetadata(context.Background(), userID)

		ApplyEventMetadata([]domain.DomainEvent{first, second}, metadata)

		assert.Equal(t, userID, first.Metadata().UserID)
		assert.Equal(t, metadata.CorrelationID, second.Metadata().CorrelationID)
	})

	t.Run("handles nil event list", func(t *testing.T) {
		metadata := NewEventMetadata(context.Background(), uuid.New())

		require.NotPanics(t, func() {
			ApplyEventMetadata(nil, metadata)
		})
	})
}
