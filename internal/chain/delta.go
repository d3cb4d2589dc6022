// Package chain provides option chain data sourcing and greeks
// estimation for the wheel engine.
package chain

import "wheel-trader/internal/models"

// EstimateDelta approximates the absolute delta of a contract from
// moneyness when the data source publishes no greeks. The linear model
// pins delta to 0.5 at the money and steepens with distance from it:
//
//	puts:  m = spot / strike
//	calls: m = strike / spot
//	delta = clamp(0.5 + (m - 1) * 2, 0, 1)
//
// It is a crude heuristic, but it only has to rank strikes within one
// chain consistently.
func EstimateDelta(c models.OptionContract, spot float64) float64 {
	if spot <= 0 || c.Strike <= 0 {
		return 0
	}

	var m float64
	switch c.Type {
	case models.OptionPut:
		m = spot / c.Strike
	case models.OptionCall:
		m = c.Strike / spot
	default:
		return 0
	}

	delta := 0.5 + (m-1)*2
	if delta < 0 {
		return 0
	}
	if delta > 1 {
		return 1
	}
	return delta
}

// AbsDelta returns the contract's published absolute delta when
// available, otherwise the moneyness estimate.
func AbsDelta(c models.OptionContract, spot float64) float64 {
	if c.Delta != nil {
		d := *c.Delta
		if d < 0 {
			d = -d
		}
		return d
	}
	return EstimateDelta(c, spot)
}
