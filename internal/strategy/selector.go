// Package strategy implements the options wheel: strike selection,
// position sizing, risk gating, the cycle state machine and rolling.
package strategy

import (
	"math"
	"time"

	"wheel-trader/internal/chain"
	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// SelectorConfig holds strike eligibility parameters.
type SelectorConfig struct {
	DeltaLow        float64
	DeltaHigh       float64
	MinOpenInterest int64
}

// StrikeSelector picks the strike to sell from an option chain.
type StrikeSelector struct {
	cfg SelectorConfig
}

// NewStrikeSelector creates a selector for the given delta band.
func NewStrikeSelector(cfg SelectorConfig) *StrikeSelector {
	return &StrikeSelector{cfg: cfg}
}

// Select returns the best contract of the given type for the chain's
// nearest expiry, or ErrNoEligibleStrike.
//
// Eligibility: out of the money, absolute delta (published or estimated)
// inside the band, open interest at or above the floor, and a positive
// premium. Among eligible strikes the one whose delta sits closest to
// the band midpoint wins; ties break to higher open interest, then to
// higher premium.
func (s *StrikeSelector) Select(oc *models.OptionChain, typ models.OptionType) (*models.OptionContract, error) {
	mid := (s.cfg.DeltaLow + s.cfg.DeltaHigh) / 2

	candidates := oc.Puts()
	if typ == models.OptionCall {
		candidates = oc.Calls()
	}

	var best *models.OptionContract
	var bestDelta float64

	for i := range candidates {
		c := &candidates[i]
		if !sameDay(c.Expiry, oc.Expiry) {
			continue
		}
		if !c.IsOTM(oc.SpotPrice) {
			continue
		}
		if c.LastPrice <= 0 {
			continue
		}
		if c.OpenInterest < s.cfg.MinOpenInterest {
			continue
		}
		delta := chain.AbsDelta(*c, oc.SpotPrice)
		if delta < s.cfg.DeltaLow || delta > s.cfg.DeltaHigh {
			continue
		}

		if best == nil || closer(delta, *c, bestDelta, *best, mid) {
			best = c
			bestDelta = delta
		}
	}

	if best == nil {
		return nil, apperrors.Wrapf(apperrors.ErrNoEligibleStrike, "%s %s in delta band [%.2f, %.2f]", oc.Symbol, typ, s.cfg.DeltaLow, s.cfg.DeltaHigh)
	}
	return best, nil
}

// closer reports whether candidate beats incumbent under the midpoint
// distance ordering with OI and premium tie-breaks.
func closer(candDelta float64, cand models.OptionContract, incDelta float64, inc models.OptionContract, mid float64) bool {
	cd := math.Abs(candDelta - mid)
	id := math.Abs(incDelta - mid)
	if cd != id {
		return cd < id
	}
	if cand.OpenInterest != inc.OpenInterest {
		return cand.OpenInterest > inc.OpenInterest
	}
	return cand.LastPrice > inc.LastPrice
}

func sameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
