package payment

import (
	"errors"
	"fmt"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
)

var (
	// ErrGatewayUnavailable is returned while the circuit breaker is open.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown payment provider")
)

func declined(reason string) error {
	if reason == "" {
		return domain.ErrPaymentDeclined
	}
	return fmt.Errorf("%w: %s", domain.ErrPaymentDeclined, reason)
}

// IsDecline reports whether err is a definitive refusal by the provider
// rather than a transport or availability problem.
func IsDecline(err error) bool {
	return errors.Is(err, domain.ErrPaymentDeclined)
}
