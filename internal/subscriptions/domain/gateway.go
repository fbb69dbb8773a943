package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ChargeRequest asks a payment gateway to collect one cycle.
type ChargeRequest struct {
	SubscriptionID uuid.UUID
	UserID         uuid.UUID
	AmountMinor    int64
	Currency       string
	Reference      string
}

// ChargeResult is returned by a successful charge.
type ChargeResult struct {
	TransactionID string
}

// PaymentGateway charges customers. A returned error means the charge did
// not succeed.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// ChargeReference derives the idempotency reference for the cycle due on
// dueDate, so a retried cycle reuses the same reference.
func ChargeReference(subscriptionID uuid.UUID, dueDate time.Time) string {
	return fmt.Sprintf("sub_%s_%s", subscriptionID, DateOf(dueDate).Format("20060102"))
}

// NewChargeRequest builds the charge for the subscription's current cycle.
func NewChargeRequest(s *Subscription) ChargeRequest {
	return ChargeRequest{
		SubscriptionID: s.ID(),
		UserID:         s.UserID(),
		AmountMinor:    s.Price().MinorUnits(),
		Currency:       s.Price().Currency(),
		Reference:      ChargeReference(s.ID(), s.NextDeliveryDate()),
	}
}
