package backtest

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"wheel-trader/internal/models"
)

// SynthConfig controls synthetic chain generation.
type SynthConfig struct {
	Symbol       string
	LotSize      int
	StrikeStep   float64 // 0 picks a step from the spot magnitude
	StrikeSpan   int     // strikes on each side of ATM
	Volatility   float64 // annualized, drives the premium model
	MaxOI        int64   // open interest at the money
	WeeklyExpiry time.Weekday
}

// DefaultSynthConfig returns NIFTY-ish defaults.
func DefaultSynthConfig(symbol string, lotSize int) SynthConfig {
	return SynthConfig{
		Symbol:       symbol,
		LotSize:      lotSize,
		StrikeSpan:   8,
		Volatility:   0.18,
		MaxOI:        500000,
		WeeklyExpiry: time.Thursday,
	}
}

// SynthProvider generates deterministic option chains from the current
// underlying bar, so the wheel can run over bare OHLC history. It
// implements the engine's ChainProvider.
type SynthProvider struct {
	cfg SynthConfig

	mu   sync.RWMutex
	spot float64
	now  time.Time
}

// NewSynthProvider creates a synthetic chain provider.
func NewSynthProvider(cfg SynthConfig) *SynthProvider {
	return &SynthProvider{cfg: cfg}
}

// Advance moves the provider to a new bar.
func (p *SynthProvider) Advance(now time.Time, spot float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
	p.spot = spot
}

// GetChain generates the chain for the current bar. Two expiries are
// produced so roll logic has somewhere to go.
func (p *SynthProvider) GetChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	p.mu.RLock()
	spot, now := p.spot, p.now
	p.mu.RUnlock()

	if spot <= 0 {
		return nil, fmt.Errorf("synthetic chain requested before first bar")
	}

	front := nextWeekday(now, p.cfg.WeeklyExpiry)
	back := front.AddDate(0, 0, 7)

	chain := &models.OptionChain{
		Symbol:    symbol,
		SpotPrice: spot,
		Expiry:    front,
		FetchedAt: now,
	}

	step := p.cfg.StrikeStep
	if step <= 0 {
		step = strikeStepFor(spot)
	}
	atm := math.Round(spot/step) * step

	for _, expiry := range []time.Time{front, back} {
		dte := math.Max(expiry.Sub(now).Hours()/24, 0.5)
		for i := -p.cfg.StrikeSpan; i <= p.cfg.StrikeSpan; i++ {
			strike := atm + float64(i)*step
			if strike <= 0 {
				continue
			}
			chain.Contracts = append(chain.Contracts,
				p.contract(models.OptionPut, spot, strike, expiry, dte, atm, step),
				p.contract(models.OptionCall, spot, strike, expiry, dte, atm, step),
			)
		}
	}

	return chain, nil
}

// Invalidate is a no-op: the chain is regenerated per bar anyway.
func (p *SynthProvider) Invalidate(symbol string) {}

func (p *SynthProvider) contract(typ models.OptionType, spot, strike float64, expiry time.Time, dte, atm, step float64) models.OptionContract {
	t := dte / 365.0
	sigma := p.cfg.Volatility * spot * math.Sqrt(t)

	// Standardized distance from the money
	var d float64
	if sigma > 0 {
		d = (strike - spot) / sigma
	}

	var intrinsic float64
	switch typ {
	case models.OptionPut:
		intrinsic = math.Max(0, strike-spot)
	case models.OptionCall:
		intrinsic = math.Max(0, spot-strike)
	}

	// Bell-shaped time value, largest at the money
	timeValue := 0.4 * sigma * math.Exp(-0.5*d*d)
	premium := round2(intrinsic + timeValue)
	if premium < 0.05 {
		premium = 0.05
	}

	// Liquidity decays with distance from ATM
	distanceSteps := math.Abs(strike-atm) / step
	oi := int64(float64(p.cfg.MaxOI) * math.Exp(-distanceSteps/3))

	delta := syntheticDelta(typ, d)

	return models.OptionContract{
		Symbol:        p.cfg.Symbol,
		Tradingsymbol: fmt.Sprintf("%s%s%.0f%s", p.cfg.Symbol, expiry.Format("06Jan"), strike, typ),
		Type:          typ,
		Strike:        strike,
		Expiry:        expiry,
		LotSize:       p.cfg.LotSize,
		LastPrice:     premium,
		Bid:           round2(premium * 0.99),
		Ask:           round2(premium * 1.01),
		OpenInterest:  oi,
		Volume:        oi / 10,
		Delta:         &delta,
	}
}

// syntheticDelta maps standardized distance to a signed delta via the
// logistic curve: calls positive, puts negative, 0.5 magnitude ATM.
func syntheticDelta(typ models.OptionType, d float64) float64 {
	callDelta := 1 / (1 + math.Exp(1.7*d))
	if typ == models.OptionCall {
		return callDelta
	}
	return callDelta - 1
}

func strikeStepFor(spot float64) float64 {
	switch {
	case spot >= 10000:
		return 100
	case spot >= 2000:
		return 50
	case spot >= 500:
		return 10
	default:
		return 5
	}
}

func nextWeekday(from time.Time, day time.Weekday) time.Time {
	d := (int(day) - int(from.Weekday()) + 7) % 7
	if d == 0 {
		d = 7
	}
	next := from.AddDate(0, 0, d)
	return time.Date(next.Year(), next.Month(), next.Day(), 15, 30, 0, 0, from.Location())
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
