package broker

import (
	"context"

	"wheel-trader/internal/models"
	"wheel-trader/internal/resilience"
	"wheel-trader/pkg/utils"
)

// ResilientBroker decorates a Broker with retry-with-backoff and a
// circuit breaker. The wrapped broker stays free of retry logic.
type ResilientBroker struct {
	inner   Broker
	breaker *resilience.CircuitBreaker
	retry   utils.RetryConfig
}

// NewResilientBroker wraps the given broker.
func NewResilientBroker(inner Broker, breaker *resilience.CircuitBreaker, retry utils.RetryConfig) *ResilientBroker {
	return &ResilientBroker{
		inner:   inner,
		breaker: breaker,
		retry:   retry,
	}
}

// BreakerState exposes the circuit state for status reporting.
func (r *ResilientBroker) BreakerState() resilience.CircuitState {
	return r.breaker.State()
}

func (r *ResilientBroker) GetMargins(ctx context.Context) (*models.Margins, error) {
	return resilience.ExecuteWithResult(r.breaker, ctx, func() (*models.Margins, error) {
		return utils.RetryWithResult(ctx, r.retry, func() (*models.Margins, error) {
			return r.inner.GetMargins(ctx)
		})
	})
}

func (r *ResilientBroker) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	return resilience.ExecuteWithResult(r.breaker, ctx, func() (*models.Quote, error) {
		return utils.RetryWithResult(ctx, r.retry, func() (*models.Quote, error) {
			return r.inner.GetQuote(ctx, symbol)
		})
	})
}

func (r *ResilientBroker) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	return resilience.ExecuteWithResult(r.breaker, ctx, func() ([]models.Instrument, error) {
		return utils.RetryWithResult(ctx, r.retry, func() ([]models.Instrument, error) {
			return r.inner.GetInstruments(ctx, exchange)
		})
	})
}

// PlaceOrder is not retried: a timeout after submission could otherwise
// double-place. Only the circuit breaker applies.
func (r *ResilientBroker) PlaceOrder(ctx context.Context, intent *models.OrderIntent) (*OrderResult, error) {
	return resilience.ExecuteWithResult(r.breaker, ctx, func() (*OrderResult, error) {
		return r.inner.PlaceOrder(ctx, intent)
	})
}

// Ensure ResilientBroker implements Broker interface
var _ Broker = (*ResilientBroker)(nil)
