package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	sharedApplication "github.com/manish0301/subscription-pro/internal/shared/application"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// ChangeScheduleCommand switches a subscription to a new delivery schedule.
type ChangeScheduleCommand struct {
	SubscriptionID uuid.UUID
	Actor          domain.Actor
	Frequency      string
	Weekdays       []time.Weekday
	// AsOf is the day the change takes effect; zero means today.
	AsOf time.Time
}

// ChangeScheduleHandler handles the ChangeScheduleCommand.
type ChangeScheduleHandler struct {
	transition
}

// NewChangeScheduleHandler creates a new ChangeScheduleHandler.
func NewChangeScheduleHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *ChangeScheduleHandler {
	return &ChangeScheduleHandler{newTransition(repo, outboxRepo, uow, metrics)}
}

// Handle executes the ChangeScheduleCommand. The schedule is validated
// before any lookup.
func (h *ChangeScheduleHandler) Handle(ctx context.Context, cmd ChangeScheduleCommand) (*queries.SubscriptionDTO, error) {
	frequency, err := domain.ParseFrequency(cmd.Frequency)
	if err != nil {
		return nil, err
	}
	schedule, err := domain.NewSchedule(frequency, cmd.Weekdays)
	if err != nil {
		return nil, err
	}

	asOf := cmd.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	return h.apply(ctx, "change_schedule", cmd.SubscriptionID, cmd.Actor, func(s *domain.Subscription) error {
		return s.ChangeSchedule(schedule, asOf)
	})
}
