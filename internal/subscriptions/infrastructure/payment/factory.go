package payment

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/config"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// New builds the configured provider wrapped in the rate limiter and the
// circuit breaker. The mock provider is returned unwrapped.
func New(cfg *config.Config, logger *slog.Logger, metrics observability.Metrics) (domain.PaymentGateway, error) {
	var provider domain.PaymentGateway
	switch cfg.PaymentProvider {
	case config.ProviderMock:
		return NewMockGateway(), nil
	case config.ProviderRazorpay:
		provider = NewRazorpayGateway(RazorpayConfig{
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			BaseURL:   cfg.RazorpayBaseURL,
			Timeout:   cfg.GatewayTimeout,
		})
	case config.ProviderStripe:
		provider = NewStripeGateway(cfg.StripeAPIKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.PaymentProvider)
	}

	if cfg.GatewayRatePerSecond > 0 {
		provider = NewThrottledGateway(provider, cfg.GatewayRatePerSecond, int(math.Ceil(cfg.GatewayRatePerSecond)))
	}

	threshold := cfg.GatewayBreakerThreshold
	if threshold < 1 {
		threshold = 1
	}
	logger.Info("payment gateway configured", "provider", cfg.PaymentProvider)
	return NewBreakerGateway(provider, BreakerConfig{
		Name:             cfg.PaymentProvider,
		FailureThreshold: uint32(threshold),
		Timeout:          cfg.GatewayBreakerTimeout,
	}, logger, metrics), nil
}
