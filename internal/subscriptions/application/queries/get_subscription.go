package queries

import (
	"context"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// GetSubscriptionQuery fetches one subscription on behalf of an actor.
type GetSubscriptionQuery struct {
	SubscriptionID uuid.UUID
	Actor          domain.Actor
}

// GetSubscriptionHandler handles the GetSubscriptionQuery.
type GetSubscriptionHandler struct {
	repo domain.Repository
}

// NewGetSubscriptionHandler creates a new GetSubscriptionHandler.
func NewGetSubscriptionHandler(repo domain.Repository) *GetSubscriptionHandler {
	return &GetSubscriptionHandler{repo: repo}
}

// Handle executes the GetSubscriptionQuery. Subscriptions the actor may not
// manage are reported as not found.
func (h *GetSubscriptionHandler) Handle(ctx context.Context, query GetSubscriptionQuery) (*SubscriptionDTO, error) {
	sub, err := h.repo.FindByID(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !query.Actor.CanManage(sub) {
		return nil, domain.ErrSubscriptionNotFound
	}
	return ToSubscriptionDTO(sub), nil
}
