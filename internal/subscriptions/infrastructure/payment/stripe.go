package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

// StripeGateway charges through Stripe payment intents, using the charge
// reference as the idempotency key.
type StripeGateway struct {
	client paymentintent.Client
}

// NewStripeGateway creates a StripeGateway for the live API.
func NewStripeGateway(apiKey string) *StripeGateway {
	return NewStripeGatewayWithBackend(apiKey, stripe.GetBackend(stripe.APIBackend))
}

// NewStripeGatewayWithBackend creates a StripeGateway on a custom backend.
func NewStripeGatewayWithBackend(apiKey string, backend stripe.Backend) *StripeGateway {
	return &StripeGateway{client: paymentintent.Client{B: backend, Key: apiKey}}
}

// Charge creates and confirms a payment intent for the cycle amount.
func (g *StripeGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String("Subscription " + req.SubscriptionID.String()),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	params.AddMetadata("subscription_id", req.SubscriptionID.String())
	params.AddMetadata("user_id", req.UserID.String())
	params.AddMetadata("reference", req.Reference)

	pi, err := g.client.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return domain.ChargeResult{}, declined(stripeErr.Msg)
		}
		return domain.ChargeResult{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	if pi.Status == stripe.PaymentIntentStatusCanceled {
		return domain.ChargeResult{}, declined("payment intent canceled")
	}
	return domain.ChargeResult{TransactionID: pi.ID}, nil
}
