package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/manish0301/subscription-pro/internal/subscriptions/domain"
	"github.com/manish0301/subscription-pro/pkg/observability"
)

// BreakerConfig configures the circuit breaker around a gateway.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
	MaxRequests      uint32
}

// BreakerGateway stops calling a failing provider until it recovers.
// Declines count as successful calls: the provider answered.
type BreakerGateway struct {
	next    domain.PaymentGateway
	breaker *gobreaker.CircuitBreaker[domain.ChargeResult]
}

// NewBreakerGateway wraps next with a circuit breaker.
func NewBreakerGateway(next domain.PaymentGateway, cfg BreakerConfig, logger *slog.Logger, metrics observability.Metrics) *BreakerGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsDecline(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("payment gateway circuit breaker state changed",
				"gateway", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.Counter(observability.MetricGatewayBreakerState, 1, observability.T("gateway", name), observability.T("state", to.String()))
		},
	}

	return &BreakerGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[domain.ChargeResult](settings),
	}
}

// Charge forwards to the wrapped gateway unless the breaker is open.
func (g *BreakerGateway) Charge(ctx context.Context, req domain.ChargeRequest) (domain.ChargeResult, error) {
	result, err := g.breaker.Execute(func() (domain.ChargeResult, error) {
		return g.next.Charge(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.ChargeResult{}, ErrGatewayUnavailable
	}
	return result, err
}

// State returns the breaker state name.
func (g *BreakerGateway) State() string {
	return g.breaker.State().String()
}
