package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AttemptStatus is the outcome of one billing attempt.
type AttemptStatus string

const (
	AttemptSucceeded AttemptStatus = "success"
	AttemptFailed    AttemptStatus = "failed"
	AttemptConflict  AttemptStatus = "conflict"
)

// BillingAttempt is one row of the billing ledger.
type BillingAttempt struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	AmountMinor    int64
	Currency       string
	Status         AttemptStatus
	Reference      string
	TransactionID  string
	Reason         string
	DueDate        time.Time
	AsOf           time.Time
	AttemptedAt    time.Time
}

// NewBillingAttempt creates a ledger entry for the subscription's current cycle.
func NewBillingAttempt(req ChargeRequest, dueDate, asOf time.Time, status AttemptStatus) *BillingAttempt {
	return &BillingAttempt{
		ID:             uuid.New(),
		SubscriptionID: req.SubscriptionID,
		UserID:         req.UserID,
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Status:         status,
		Reference:      req.Reference,
		DueDate:        DateOf(dueDate),
		AsOf:           DateOf(asOf),
		AttemptedAt:    time.Now().UTC(),
	}
}

// AttemptRepository stores the billing ledger.
type AttemptRepository interface {
	Record(ctx context.Context, attempt *BillingAttempt) error
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*BillingAttempt, error)
	// ListFailed returns failed attempts made at or after since, newest first.
	ListFailed(ctx context.Context, since time.Time, limit int) ([]*BillingAttempt, error)
}
