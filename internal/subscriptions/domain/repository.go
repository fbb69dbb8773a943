package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for subscription persistence.
// Implementations wrap infrastructure failures with Unavailable.
type Repository interface {
	// Save inserts a new subscription.
	Save(ctx context.Context, s *Subscription) error

	// FindByID returns ErrSubscriptionNotFound when no row matches.
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByUserID lists a user's subscriptions, optionally filtered by status.
	FindByUserID(ctx context.Context, userID uuid.UUID, status *Status) ([]*Subscription, error)

	// FindDue lists active subscriptions whose next delivery is on or before asOf.
	// A limit of zero or less means no limit.
	FindDue(ctx context.Context, asOf time.Time, limit int) ([]*Subscription, error)

	// ConditionalUpdate writes s only if the stored row still matches expected.
	// It reports false, without error, when the precondition no longer holds.
	ConditionalUpdate(ctx context.Context, s *Subscription, expected Precondition) (bool, error)
}
