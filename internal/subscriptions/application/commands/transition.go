package commands

import (
	"context"

	"github.com/google/uuid"
	sharedApplication "github.com/manish0301/subscription-pro/internal/shared/application"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// transition runs one state machine operation: load, authorize, mutate,
// conditionally update and queue events, all in one unit of work.
type transition struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
}

func newTransition(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) transition {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return transition{repo: repo, outboxRepo: outboxRepo, uow: uow, metrics: metrics}
}

func (t transition) apply(
	ctx context.Context,
	operation string,
	id uuid.UUID,
	actor domain.Actor,
	mutate func(*domain.Subscription) error,
) (*queries.SubscriptionDTO, error) {
	var sub *domain.Subscription
	err := sharedApplication.WithUnitOfWork(ctx, t.uow, func(txCtx context.Context) error {
		var err error
		sub, err = t.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(sub) {
			return domain.ErrUnauthorized
		}

		expected := sub.Precondition()
		if err := mutate(sub); err != nil {
			return err
		}

		updated, err := t.repo.ConditionalUpdate(txCtx, sub, expected)
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrConcurrentUpdate
		}

		return saveEvents(txCtx, t.outboxRepo, sub, actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	t.metrics.Counter(observability.MetricSubscriptionTransitions, 1,
		observability.T("operation", operation),
		observability.T("status", string(sub.Status())),
	)
	return queries.ToSubscriptionDTO(sub), nil
}

// saveEvents drains the aggregate's events into the outbox of the
// transaction in ctx.
func saveEvents(ctx context.Context, outboxRepo outbox.Repository, sub *domain.Subscription, userID uuid.UUID) error {
	events := sub.PullDomainEvents()
	if len(events) == 0 {
		return nil
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, userID))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := outboxRepo.SaveBatch(ctx, msgs); err != nil {
		return domain.Unavailable(err)
	}
	return nil
}
