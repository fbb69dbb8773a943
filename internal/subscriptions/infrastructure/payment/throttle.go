package payment

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// ThrottledGateway caps the request rate sent to a provider. Charge blocks
// until a token is available or ctx is done.
type ThrottledGateway struct {
	next    domain.PaymentGateway
	limiter *rate.Limiter
}

// NewThrottledGateway wraps next with a token bucket of perSecond tokens and
// the given burst.
func NewThrottledGateway(next domain.PaymentGateway, perSecond float64, burst int) *ThrottledGateway {
	if burst < 1 {
		burst = 1
	}
	return &ThrottledGateway{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (g *ThrottledGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return domain.ChargeResult{}, fmt.Errorf("payment throttle: %w", err)
	}
	return g.next.Charge(ctx, req)
}
