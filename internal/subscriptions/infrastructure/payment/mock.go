package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// MockGateway accepts every charge except those for subscriptions marked
// with Decline. It is the default provider outside production.
type MockGateway struct {
	mu       sync.Mutex
	declined map[uuid.UUID]string
	charges  []domain.ChargeRequest
}

// NewMockGateway creates a new MockGateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{declined: make(map[uuid.UUID]string)}
}

// Decline makes future charges for the subscription fail with reason.
func (g *MockGateway) Decline(subscriptionID uuid.UUID, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.declined[subscriptionID] = reason
}

// Charge records the request and returns a transaction id derived from the
// reference, so retries of the same cycle see the same id.
func (g *MockGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChargeResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if reason, ok := g.declined[req.SubscriptionID]; ok {
		return domain.ChargeResult{}, declined(reason)
	}
	return domain.ChargeResult{TransactionID: "mock_" + req.Reference}, nil
}

// Charges returns every request seen so far.
func (g *MockGateway) Charges() []domain.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ChargeRequest, len(g.charges))
	copy(out, g.charges)
	return out
}
