// Package backtest provides historical replay of the wheel strategy:
// fill simulation with slippage, the Indian F&O cost model, synthetic
// option chains over bare OHLC history, and performance metrics.
package backtest

import (
	"math"

	"wheel-trader/internal/config"
	"wheel-trader/internal/models"
)

// FeeSchedule computes Indian F&O transaction costs per order leg.
type FeeSchedule struct {
	BrokerageFlat    float64 // cap per order
	BrokeragePercent float64 // of notional
	STTPercent       float64 // of sell-side premium
	ExchangePercent  float64 // of notional
	GSTPercent       float64 // of brokerage
	StampDutyPercent float64 // of buy-side notional
}

// NewFeeSchedule builds a schedule from configuration.
func NewFeeSchedule(cfg config.FeeConfig) *FeeSchedule {
	return &FeeSchedule{
		BrokerageFlat:    cfg.BrokerageFlat,
		BrokeragePercent: cfg.BrokeragePercent,
		STTPercent:       cfg.STTPercent,
		ExchangePercent:  cfg.ExchangePercent,
		GSTPercent:       cfg.GSTPercent,
		StampDutyPercent: cfg.StampDutyPercent,
	}
}

// FeeBreakdown itemizes the cost of one order leg.
type FeeBreakdown struct {
	Brokerage      float64
	STT            float64
	ExchangeCharge float64
	GST            float64
	StampDuty      float64
}

// Total sums the breakdown.
func (f FeeBreakdown) Total() float64 {
	return f.Brokerage + f.STT + f.ExchangeCharge + f.GST + f.StampDuty
}

// Breakdown computes the itemized costs for an order leg. STT applies
// to the sell-side premium only; stamp duty to the buy side.
func (s *FeeSchedule) Breakdown(side models.OrderSide, price float64, quantity int) FeeBreakdown {
	notional := price * float64(quantity)
	if notional <= 0 {
		return FeeBreakdown{}
	}

	b := FeeBreakdown{
		Brokerage:      math.Min(s.BrokerageFlat, s.BrokeragePercent*notional),
		ExchangeCharge: s.ExchangePercent * notional,
	}
	b.GST = s.GSTPercent * b.Brokerage

	switch side {
	case models.OrderSideSell:
		b.STT = s.STTPercent * notional
	case models.OrderSideBuy:
		b.StampDuty = s.StampDutyPercent * notional
	}

	return b
}

// Charge returns the total cost for an order leg.
func (s *FeeSchedule) Charge(side models.OrderSide, price float64, quantity int) float64 {
	return s.Breakdown(side, price, quantity).Total()
}

// ZeroFees is a FeeSchedule charging nothing, for fee-free backtests.
var ZeroFees = &FeeSchedule{}
