package chain

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
	"wheel-trader/internal/resilience"
	"wheel-trader/pkg/utils"
)

// Source fetches a full option chain for an underlying.
type Source interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (*models.OptionChain, error)
}

// Provider serves option chains from an ordered list of sources with a
// TTL cache. Each source sits behind its own circuit breaker so a dead
// primary stops being probed while the fallback carries the load.
type Provider struct {
	sources  []sourceEntry
	ttl      time.Duration
	retry    utils.RetryConfig
	logger   zerolog.Logger
	now      func() time.Time
	breakers *resilience.CircuitBreakerRegistry

	mu    sync.Mutex
	cache map[string]*models.OptionChain
}

type sourceEntry struct {
	source  Source
	breaker *resilience.CircuitBreaker
}

// NewProvider creates a provider over the given sources, consulted in
// order. ttl is how long a fetched chain stays fresh.
func NewProvider(ttl time.Duration, retry utils.RetryConfig, logger zerolog.Logger, sources ...Source) *Provider {
	p := &Provider{
		ttl:      ttl,
		retry:    retry,
		logger:   logger,
		now:      time.Now,
		breakers: resilience.NewCircuitBreakerRegistry(resilience.DefaultCircuitBreakerConfig()),
		cache:    make(map[string]*models.OptionChain),
	}
	for _, s := range sources {
		p.sources = append(p.sources, sourceEntry{
			source:  s,
			breaker: p.breakers.Get("chain:" + s.Name()),
		})
	}
	return p
}

// SourceStats reports the circuit breaker state of every source.
func (p *Provider) SourceStats() []resilience.CircuitBreakerStats {
	return p.breakers.AllStats()
}

// GetChain returns the option chain for the symbol, from cache when
// fresh, otherwise from the first source that succeeds. When every
// source fails the error unwraps to ErrDataUnavailable.
func (p *Provider) GetChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	p.mu.Lock()
	if cached, ok := p.cache[symbol]; ok && p.now().Sub(cached.FetchedAt) < p.ttl {
		p.mu.Unlock()
		return cached, nil
	}
	p.mu.Unlock()

	var lastErr error
	for _, entry := range p.sources {
		chain, err := resilience.ExecuteWithResult(entry.breaker, ctx, func() (*models.OptionChain, error) {
			return utils.RetryWithResult(ctx, p.retry, func() (*models.OptionChain, error) {
				return entry.source.Fetch(ctx, symbol)
			})
		})
		if err != nil {
			lastErr = err
			p.logger.Warn().
				Str("source", entry.source.Name()).
				Str("symbol", symbol).
				Err(err).
				Msg("Chain source failed, trying next")
			continue
		}

		chain.FetchedAt = p.now()
		p.mu.Lock()
		p.cache[symbol] = chain
		p.mu.Unlock()
		return chain, nil
	}

	return nil, apperrors.NewDataError("provider", symbol, "all chain sources failed", lastErr)
}

// Invalidate drops the cached chain for a symbol.
func (p *Provider) Invalidate(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.cache, symbol)
}

// SetClock overrides the provider's time source, for tests.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}
