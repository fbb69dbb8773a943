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

// PauseSubscriptionCommand pauses an active subscription.
type PauseSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	Actor          domain.Actor
}

// PauseSubscriptionHandler handles the PauseSubscriptionCommand.
type PauseSubscriptionHandler struct {
	transition
}

// NewPauseSubscriptionHandler creates a new PauseSubscriptionHandler.
func NewPauseSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *PauseSubscriptionHandler {
	return &PauseSubscriptionHandler{newTransition(repo, outboxRepo, uow, metrics)}
}

// Handle executes the PauseSubscriptionCommand.
func (h *PauseSubscriptionHandler) Handle(ctx context.Context, cmd PauseSubscriptionCommand) (*queries.SubscriptionDTO, error) {
	return h.apply(ctx, "pause", cmd.SubscriptionID, cmd.Actor, (*domain.Subscription).Pause)
}

// ResumeSubscriptionCommand reactivates a paused subscription.
type ResumeSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	Actor          domain.Actor
}

// ResumeSubscriptionHandler handles the ResumeSubscriptionCommand.
type ResumeSubscriptionHandler struct {
	transition
}

// NewResumeSubscriptionHandler creates a new ResumeSubscriptionHandler.
func NewResumeSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *ResumeSubscriptionHandler {
	return &ResumeSubscriptionHandler{newTransition(repo, outboxRepo, uow, metrics)}
}

// Handle executes the ResumeSubscriptionCommand.
func (h *ResumeSubscriptionHandler) Handle(ctx context.Context, cmd ResumeSubscriptionCommand) (*queries.SubscriptionDTO, error) {
	return h.apply(ctx, "resume", cmd.SubscriptionID, cmd.Actor, (*domain.Subscription).Resume)
}

// CancelSubscriptionCommand ends a subscription for good.
type CancelSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	Actor          domain.Actor
	Reason         string
}

// CancelSubscriptionHandler handles the CancelSubscriptionCommand.
type CancelSubscriptionHandler struct {
	transition
}

// NewCancelSubscriptionHandler creates a new CancelSubscriptionHandler.
func NewCancelSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *CancelSubscriptionHandler {
	return &CancelSubscriptionHandler{newTransition(repo, outboxRepo, uow, metrics)}
}

// Handle executes the CancelSubscriptionCommand.
func (h *CancelSubscriptionHandler) Handle(ctx context.Context, cmd CancelSubscriptionCommand) (*queries.SubscriptionDTO, error) {
	return h.apply(ctx, "cancel", cmd.SubscriptionID, cmd.Actor, func(s *domain.Subscription) error {
		return s.Cancel(cmd.Reason)
	})
}

// SkipDeliveryCommand skips the next delivery without charging.
type SkipDeliveryCommand struct {
	SubscriptionID uuid.UUID
	Actor          domain.Actor
}

// SkipDeliveryHandler handles the SkipDeliveryCommand.
type SkipDeliveryHandler struct {
	transition
}

// NewSkipDeliveryHandler creates a new SkipDeliveryHandler.
func NewSkipDeliveryHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, metrics observability.Metrics) *SkipDeliveryHandler {
	return &SkipDeliveryHandler{newTransition(repo, outboxRepo, uow, metrics)}
}

// Handle executes the SkipDeliveryCommand.
func (h *SkipDeliveryHandler) Handle(ctx context.Context, cmd SkipDeliveryCommand) (*queries.SubscriptionDTO, error) {
	return h.apply(ctx, "skip", cmd.SubscriptionID, cmd.Actor, (*domain.Subscription).Skip)
}
