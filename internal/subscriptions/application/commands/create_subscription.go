package commands

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	sharedApplication "github.com/manish0301/subscription-pro/internal/shared/application"
	"github.com/manish0301/subscription-pro/internal/shared/infrastructure/outbox"
	"github.com/manish0301/subscription-pro/internal/subscriptions/application/queries"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// CreateSubscriptionCommand contains the data needed to create a subscription.
type CreateSubscriptionCommand struct {
	Actor             domain.Actor
	UserID            uuid.UUID // defaults to the actor
	ProductID         uuid.UUID
	Frequency         string
	Weekdays          []time.Weekday
	Quantity          int
	Amount            string
	Currency          string // defaults to the handler's currency
	StartDate         time.Time
	FirstDeliveryDate *time.Time
	EndDate           *time.Time
}

// CreateSubscriptionHandler handles the CreateSubscriptionCommand.
type CreateSubscriptionHandler struct {
	repo            domain.Repository
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
	metrics         observability.Metrics
	defaultCurrency string
}

// NewCreateSubscriptionHandler creates a new CreateSubscriptionHandler.
func NewCreateSubscriptionHandler(
	repo domain.Repository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	metrics observability.Metrics,
	defaultCurrency string,
) *CreateSubscriptionHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &CreateSubscriptionHandler{
		repo:            repo,
		outboxRepo:      outboxRepo,
		uow:             uow,
		metrics:         metrics,
		defaultCurrency: defaultCurrency,
	}
}

// Handle executes the CreateSubscriptionCommand.
func (h *CreateSubscriptionHandler) Handle(ctx context.Context, cmd CreateSubscriptionCommand) (*queries.SubscriptionDTO, error) {
	userID := cmd.UserID
	if userID == uuid.Nil {
		userID = cmd.Actor.UserID
	}
	if userID != cmd.Actor.UserID && !cmd.Actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}

	frequency, err := domain.ParseFrequency(cmd.Frequency)
	if err != nil {
		return nil, err
	}
	schedule, err := domain.NewSchedule(frequency, cmd.Weekdays)
	if err != nil {
		return nil, err
	}

	currency := strings.TrimSpace(cmd.Currency)
	if currency == "" {
		currency = h.defaultCurrency
	}
	price, err := domain.ParseMoney(cmd.Amount, currency)
	if err != nil {
		return nil, err
	}

	sub, err := domain.NewSubscription(domain.NewSubscriptionParams{
		UserID:            userID,
		ProductID:         cmd.ProductID,
		Schedule:          schedule,
		Quantity:          cmd.Quantity,
		Price:             price,
		StartDate:         cmd.StartDate,
		FirstDeliveryDate: cmd.FirstDeliveryDate,
		EndDate:           cmd.EndDate,
	})
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.repo.Save(txCtx, sub); err != nil {
			return err
		}
		return saveEvents(txCtx, h.outboxRepo, sub, cmd.Actor.UserID)
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricSubscriptionsCreated, 1, observability.T("frequency", string(frequency)))
	return queries.ToSubscriptionDTO(sub), nil
}
