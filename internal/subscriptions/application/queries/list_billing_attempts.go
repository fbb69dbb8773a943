package queries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

const defaultAttemptLimit = 50

// ListBillingAttemptsQuery returns the ledger of one subscription.
type ListBillingAttemptsQuery struct {
	SubscriptionID uuid.UUID
	Actor          domain.Actor
	Limit          int
}

// ListBillingAttemptsHandler handles the ListBillingAttemptsQuery.
type ListBillingAttemptsHandler struct {
	repo     domain.Repository
	attempts domain.AttemptRepository
}

// NewListBillingAttemptsHandler creates a new ListBillingAttemptsHandler.
func NewListBillingAttemptsHandler(repo domain.Repository, attempts domain.AttemptRepository) *ListBillingAttemptsHandler {
	return &ListBillingAttemptsHandler{repo: repo, attempts: attempts}
}

// Handle executes the ListBillingAttemptsQuery, newest attempt first.
func (h *ListBillingAttemptsHandler) Handle(ctx context.Context, query ListBillingAttemptsQuery) ([]BillingAttemptDTO, error) {
	sub, err := h.repo.FindByID(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if !query.Actor.CanManage(sub) {
		return nil, domain.ErrSubscriptionNotFound
	}

	attempts, err := h.attempts.ListBySubscription(ctx, sub.ID(), limitOrDefault(query.Limit))
	if err != nil {
		return nil, err
	}
	return toAttemptDTOs(attempts), nil
}

// ListBillingFailuresQuery returns recent failed charges across all
// subscriptions. Admin only.
type ListBillingFailuresQuery struct {
	Actor domain.Actor
	Since time.Time
	Limit int
}

// ListBillingFailuresHandler handles the ListBillingFailuresQuery.
type ListBillingFailuresHandler struct {
	attempts domain.AttemptRepository
}

// NewListBillingFailuresHandler creates a new ListBillingFailuresHandler.
func NewListBillingFailuresHandler(attempts domain.AttemptRepository) *ListBillingFailuresHandler {
	return &ListBillingFailuresHandler{attempts: attempts}
}

// Handle executes the ListBillingFailuresQuery. A zero Since means the last 30 days.
func (h *ListBillingFailuresHandler) Handle(ctx context.Context, query ListBillingFailuresQuery) ([]BillingAttemptDTO, error) {
	if !query.Actor.IsAdmin() {
		return nil, domain.ErrUnauthorized
	}
	since := query.Since
	if since.IsZero() {
		since = time.Now().UTC().AddDate(0, 0, -30)
	}

	attempts, err := h.attempts.ListFailed(ctx, since, limitOrDefault(query.Limit))
	if err != nil {
		return nil, err
	}
	return toAttemptDTOs(attempts), nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultAttemptLimit
	}
	return limit
}
