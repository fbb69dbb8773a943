package subscribers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/eventbus"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// LifecycleSubscriber records subscription events delivered on the
// in-process bus. Billing failures are logged at warn level so local runs
// surface them without a broker.
type LifecycleSubscriber struct {
	logger  *slog.Logger
	metrics observability.Metrics
}

// NewLifecycleSubscriber creates a new lifecycle subscriber.
func NewLifecycleSubscriber(logger *slog.Logger, metrics observability.Metrics) *LifecycleSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &LifecycleSubscriber{logger: logger, metrics: metrics}
}

// RoutingKeys returns the event types this subscriber handles.
func (s *LifecycleSubscriber) RoutingKeys() []string {
	return []string{
		domain.RoutingKeyCreated,
		domain.RoutingKeyPaused,
		domain.RoutingKeyResumed,
		domain.RoutingKeyCanceled,
		domain.RoutingKeyCompleted,
		domain.RoutingKeySkipped,
		domain.RoutingKeyRenewed,
		domain.RoutingKeyRescheduled,
		domain.RoutingKeyBillingFail,
	}
}

// Handle processes one event.
func (s *LifecycleSubscriber) Handle(ctx context.Context, event *eventbus.Envelope) error {
	s.metrics.Counter(observability.MetricEventsHandled, 1, observability.T("routing_key", event.RoutingKey))

	if event.RoutingKey != domain.RoutingKeyBillingFail {
		s.logger.InfoContext(ctx, "subscription event",
			"routing_key", event.RoutingKey,
			"subscription_id", event.AggregateID,
			"event_id", event.EventID,
		)
		return nil
	}

	var failed domain.BillingFailed
	if err := json.Unmarshal(event.Payload, &failed); err != nil {
		return fmt.Errorf("decode billing failure %s: %w", event.EventID, err)
	}
	s.logger.WarnContext(ctx, "subscription billing failed",
		"subscription_id", failed.SubscriptionID,
		"user_id", failed.UserID,
		"reference", failed.Reference,
		"due_date", failed.DueDate,
		"reason", failed.Reason,
	)
	return nil
}
