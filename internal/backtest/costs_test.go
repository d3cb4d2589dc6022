package backtest

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"wheel-trader/internal/config"
	"wheel-trader/internal/models"
)

func discountSchedule() *FeeSchedule {
	return NewFeeSchedule(config.FeeConfig{
		BrokerageFlat:    20.0,
		BrokeragePercent: 0.0003,
		STTPercent:       0.000625,
		ExchangePercent:  0.00053,
		GSTPercent:       0.18,
		StampDutyPercent: 0.00003,
	})
}

func TestFeeBreakdownSell(t *testing.T) {
	// Sell 75 contracts at 42.50: notional 3187.50
	fees := discountSchedule()
	b := fees.Breakdown(models.OrderSideSell, 42.50, 75)

	// 0.03% of notional is 0.95625, well under the 20 cap
	assert.InDelta(t, 0.95625, b.Brokerage, 1e-6)
	assert.InDelta(t, 3187.50*0.000625, b.STT, 1e-6)
	assert.InDelta(t, 3187.50*0.00053, b.ExchangeCharge, 1e-6)
	assert.InDelta(t, 0.18*0.95625, b.GST, 1e-6)
	assert.Zero(t, b.StampDuty) // buy side only

	assert.InDelta(t, b.Brokerage+b.STT+b.ExchangeCharge+b.GST, b.Total(), 1e-9)
	assert.InDelta(t, b.Total(), fees.Charge(models.OrderSideSell, 42.50, 75), 1e-9)
}

func TestFeeBreakdownBuy(t *testing.T) {
	fees := discountSchedule()
	b := fees.Breakdown(models.OrderSideBuy, 42.50, 75)

	assert.Zero(t, b.STT) // sell side only
	assert.InDelta(t, 3187.50*0.00003, b.StampDuty, 1e-6)
}

func TestBrokerageCapsAtFlat(t *testing.T) {
	// Large notional: 0.03% of 750,000 is 225, capped at the 20 flat
	fees := discountSchedule()
	b := fees.Breakdown(models.OrderSideSell, 500, 1500)

	assert.Equal(t, 20.0, b.Brokerage)
	assert.InDelta(t, 0.18*20.0, b.GST, 1e-9)
}

func TestZeroNotionalChargesNothing(t *testing.T) {
	fees := discountSchedule()
	assert.Zero(t, fees.Charge(models.OrderSideSell, 0, 75))
	assert.Zero(t, fees.Charge(models.OrderSideBuy, 42.50, 0))
	assert.Zero(t, ZeroFees.Charge(models.OrderSideSell, 42.50, 75))
}

// Fees are non-negative, grow with notional on the same side, and the
// breakdown always sums to the charge.
func TestFeeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	fees := discountSchedule()
	sides := gen.OneConstOf(models.OrderSideBuy, models.OrderSideSell)

	properties.Property("charge is never negative", prop.ForAll(
		func(side models.OrderSide, price float64, qty int) bool {
			return fees.Charge(side, price, qty) >= 0
		},
		sides,
		gen.Float64Range(0.05, 1000),
		gen.IntRange(1, 10000),
	))

	properties.Property("breakdown sums to the charge", prop.ForAll(
		func(side models.OrderSide, price float64, qty int) bool {
			b := fees.Breakdown(side, price, qty)
			return b.Total() == fees.Charge(side, price, qty)
		},
		sides,
		gen.Float64Range(0.05, 1000),
		gen.IntRange(1, 10000),
	))

	properties.Property("more quantity never costs less", prop.ForAll(
		func(side models.OrderSide, price float64, qty int) bool {
			return fees.Charge(side, price, qty+100) >= fees.Charge(side, price, qty)
		},
		sides,
		gen.Float64Range(0.05, 1000),
		gen.IntRange(1, 10000),
	))

	properties.TestingRun(t)
}
