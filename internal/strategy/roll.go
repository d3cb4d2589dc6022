package strategy

import (
	"fmt"
	"time"

	"wheel-trader/internal/chain"
	"wheel-trader/internal/models"
)

// RollConfig holds auto-roll parameters. The delta band is the same
// one the strike selector trades.
type RollConfig struct {
	Enabled         bool
	ThresholdDays   int
	MinOpenInterest int64
	DeltaLow        float64
	DeltaHigh       float64
}

// RollEvaluator decides whether an open short leg should be rolled:
// close to expiry and under water, move the put down-and-out or the
// call up-and-out to the next expiry.
type RollEvaluator struct {
	cfg RollConfig
}

// NewRollEvaluator creates a roll evaluator.
func NewRollEvaluator(cfg RollConfig) *RollEvaluator {
	return &RollEvaluator{cfg: cfg}
}

// Evaluate returns the roll decision for an open position given the
// current chain and per-unit premium. RollOut is only returned with a
// concrete replacement contract; when none qualifies the decision
// degrades to RollClose.
func (r *RollEvaluator) Evaluate(pos *models.Position, oc *models.OptionChain, currentPremium float64, now time.Time) models.RollDecision {
	if !r.cfg.Enabled {
		return models.RollDecision{Action: models.RollHold, Reason: "auto-roll disabled"}
	}

	dte := models.OptionContract{Expiry: pos.Expiry}.DaysToExpiry(now)
	if dte > r.cfg.ThresholdDays {
		return models.RollDecision{Action: models.RollHold, Reason: fmt.Sprintf("%d days to expiry, above threshold %d", dte, r.cfg.ThresholdDays)}
	}

	if currentPremium <= pos.EntryPremium {
		return models.RollDecision{Action: models.RollHold, Reason: "position profitable, letting it decay"}
	}

	replacement := r.findReplacement(pos, oc)
	if replacement == nil {
		return models.RollDecision{
			Action: models.RollClose,
			Reason: "no eligible strike to roll into, closing instead",
		}
	}

	return models.RollDecision{
		Action:      models.RollOut,
		Reason:      fmt.Sprintf("%d days to expiry and under water, rolling %.2f -> %.2f", dte, pos.Strike, replacement.Strike),
		Replacement: replacement,
	}
}

// findReplacement picks the nearest qualifying strike in a later
// expiry: strictly lower for puts, strictly higher for calls, with
// enough open interest and an absolute delta inside the band.
func (r *RollEvaluator) findReplacement(pos *models.Position, oc *models.OptionChain) *models.OptionContract {
	var best *models.OptionContract
	for i := range oc.Contracts {
		c := &oc.Contracts[i]
		if c.Type != pos.Type {
			continue
		}
		if !c.Expiry.After(pos.Expiry) {
			continue
		}
		if c.OpenInterest < r.cfg.MinOpenInterest {
			continue
		}
		if c.LastPrice <= 0 {
			continue
		}
		delta := chain.AbsDelta(*c, oc.SpotPrice)
		if delta < r.cfg.DeltaLow || delta > r.cfg.DeltaHigh {
			continue
		}

		switch pos.Type {
		case models.OptionPut:
			if c.Strike >= pos.Strike {
				continue
			}
			// nearest strike below the current one
			if best == nil || c.Strike > best.Strike {
				best = c
			}
		case models.OptionCall:
			if c.Strike <= pos.Strike {
				continue
			}
			if best == nil || c.Strike < best.Strike {
				best = c
			}
		}
	}
	return best
}
