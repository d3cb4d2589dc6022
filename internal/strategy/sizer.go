package strategy

import "math"

// PositionSizer converts a risk budget into a contract quantity.
type PositionSizer struct {
	riskPerTrade float64 // fraction of portfolio value
	lotSize      int
}

// NewPositionSizer creates a sizer.
func NewPositionSizer(riskPerTrade float64, lotSize int) *PositionSizer {
	return &PositionSizer{
		riskPerTrade: riskPerTrade,
		lotSize:      lotSize,
	}
}

// Quantity returns the contract quantity for a cash-secured put at the
// given strike: the largest whole-lot quantity whose full assignment
// value fits inside the per-trade risk budget. Zero when even one lot
// exceeds the budget.
func (s *PositionSizer) Quantity(portfolioValue, strike float64) int {
	if portfolioValue <= 0 || strike <= 0 || s.lotSize <= 0 {
		return 0
	}

	maxRisk := portfolioValue * s.riskPerTrade
	lotNotional := strike * float64(s.lotSize)
	maxLots := int(math.Floor(maxRisk / lotNotional))
	if maxLots < 0 {
		maxLots = 0
	}
	return maxLots * s.lotSize
}

// LotSize returns the configured lot size.
func (s *PositionSizer) LotSize() int {
	return s.lotSize
}
