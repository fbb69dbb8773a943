package queries

import (
	"context"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// ListSubscriptionsQuery lists one user's subscriptions.
type ListSubscriptionsQuery struct {
	Actor  domain.Actor
	UserID uuid.UUID // defaults to the actor
	Status *domain.Status
}

// ListSubscriptionsHandler handles the ListSubscriptionsQuery.
type ListSubscriptionsHandler struct {
	repo domain.Repository
}

// NewListSubscriptionsHandler creates a new ListSubscriptionsHandler.
func NewListSubscriptionsHandler(repo domain.Repository) *ListSubscriptionsHandler {
	return &ListSubscriptionsHandler{repo: repo}
}

// Handle executes the ListSubscriptionsQuery.
func (h *ListSubscriptionsHandler) Handle(ctx context.Context, query ListSubscriptionsQuery) ([]*SubscriptionDTO, error) {
	userID := query.UserID
	if userID == uuid.Nil {
		userID = query.Actor.UserID
	}
	if userID == uuid.Nil {
		return nil, domain.ErrMissingUser
	}
	if userID != query.Actor.UserID && !query.Actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}

	subs, err := h.repo.FindByUserID(ctx, userID, query.Status)
	if err != nil {
		return nil, err
	}

	dtos := make([]*SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		dtos = append(dtos, ToSubscriptionDTO(sub))
	}
	return dtos, nil
}
