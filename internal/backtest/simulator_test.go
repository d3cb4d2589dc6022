package backtest

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

func TestSlippedPriceExamples(t *testing.T) {
	sim := NewSimulator(5, 0)

	// 5 bps against a sell of 50: receive 49.975
	assert.InDelta(t, 49.975, sim.SlippedPrice(models.OrderSideSell, 50), 1e-9)
	// Buys pay more
	assert.InDelta(t, 50.025, sim.SlippedPrice(models.OrderSideBuy, 50), 1e-9)

	// Zero slippage is a passthrough
	free := NewSimulator(0, 0)
	assert.Equal(t, 50.0, free.SlippedPrice(models.OrderSideSell, 50))
}

// Slippage always moves the price against the order, never in its favor.
func TestSlippageDirectionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("sell receives at most the quote", prop.ForAll(
		func(price, bps float64) bool {
			sim := NewSimulator(bps, 0)
			return sim.SlippedPrice(models.OrderSideSell, price) <= price
		},
		gen.Float64Range(0.05, 10000),
		gen.Float64Range(0, 100),
	))

	properties.Property("buy pays at least the quote", prop.ForAll(
		func(price, bps float64) bool {
			sim := NewSimulator(bps, 0)
			return sim.SlippedPrice(models.OrderSideBuy, price) >= price
		},
		gen.Float64Range(0.05, 10000),
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}

func TestFillAtRange(t *testing.T) {
	sim := NewSimulator(5, 0)
	r := PriceRange{Low: 49.0, High: 51.0, Volume: 10000}

	price, err := sim.FillAt(models.OrderSideSell, 50, r)
	require.NoError(t, err)
	assert.InDelta(t, 49.975, price, 1e-9)

	// Slipped price below the bar's low: no fill
	_, err = sim.FillAt(models.OrderSideSell, 48, r)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoFill))

	// Above the high
	_, err = sim.FillAt(models.OrderSideBuy, 52, r)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoFill))
}

func TestFillOrderSplitsAcrossBars(t *testing.T) {
	// 10% cap on 1000-volume bars allows 100 per bar
	sim := NewSimulator(0, 0.10)
	bars := []PriceRange{
		{Low: 49, High: 51, Volume: 1000},
		{Low: 49, High: 51, Volume: 1000},
		{Low: 49, High: 51, Volume: 1000},
	}

	fills, err := sim.FillOrder(models.OrderSideSell, 50, 250, bars)
	require.NoError(t, err)
	require.Len(t, fills, 3)
	assert.Equal(t, 100, fills[0].Quantity)
	assert.Equal(t, 100, fills[1].Quantity)
	assert.Equal(t, 50, fills[2].Quantity)
}

func TestFillOrderPartialReturnsNoFill(t *testing.T) {
	sim := NewSimulator(0, 0.10)
	bars := []PriceRange{{Low: 49, High: 51, Volume: 1000}}

	fills, err := sim.FillOrder(models.OrderSideSell, 50, 250, bars)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoFill))
	// Partial fills still come back with the error
	require.Len(t, fills, 1)
	assert.Equal(t, 100, fills[0].Quantity)
}

func TestFillOrderSkipsBarsOutOfRange(t *testing.T) {
	sim := NewSimulator(0, 0)
	bars := []PriceRange{
		{Low: 60, High: 70, Volume: 1000}, // gap, skipped
		{Low: 49, High: 51, Volume: 1000},
	}

	fills, err := sim.FillOrder(models.OrderSideSell, 50, 150, bars)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, 150, fills[0].Quantity)
}

func TestFillOrderDegenerateInputs(t *testing.T) {
	sim := NewSimulator(0, 0)

	_, err := sim.FillOrder(models.OrderSideSell, 50, 0, []PriceRange{{Low: 49, High: 51}})
	assert.True(t, apperrors.Is(err, apperrors.ErrNoFill))

	_, err = sim.FillOrder(models.OrderSideSell, 50, 100, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoFill))
}

// A completed multi-bar fill always covers exactly the requested
// quantity and every slice respects the per-bar cap.
func TestFillOrderProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	sim := NewSimulator(0, 0.10)

	properties.Property("filled quantity adds up", prop.ForAll(
		func(quantity int, barCount int, volume int64) bool {
			bars := make([]PriceRange, barCount)
			for i := range bars {
				bars[i] = PriceRange{Low: 49, High: 51, Volume: volume}
			}

			fills, err := sim.FillOrder(models.OrderSideSell, 50, quantity, bars)
			total := 0
			for _, f := range fills {
				total += f.Quantity
				if volume > 0 && f.Quantity > int(0.10*float64(volume)) {
					return false
				}
			}
			if err != nil {
				return apperrors.Is(err, apperrors.ErrNoFill) && total < quantity
			}
			return total == quantity
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 20),
		gen.Int64Range(0, 100000),
	))

	properties.TestingRun(t)
}

func TestAveragePriceVWAP(t *testing.T) {
	fills := []Fill{
		{Quantity: 100, Price: 50},
		{Quantity: 300, Price: 54},
	}
	assert.InDelta(t, 53.0, AveragePrice(fills), 1e-9)
	assert.Zero(t, AveragePrice(nil))
}

func TestRangeFromContract(t *testing.T) {
	// Depth available: bid/ask band
	c := models.OptionContract{LastPrice: 50, Bid: 49.5, Ask: 50.5, Volume: 1200}
	r := RangeFromContract(c)
	assert.Equal(t, 49.5, r.Low)
	assert.Equal(t, 50.5, r.High)
	assert.Equal(t, int64(1200), r.Volume)

	// No depth: synthetic band around the last trade
	c = models.OptionContract{LastPrice: 100}
	r = RangeFromContract(c)
	assert.InDelta(t, 97.0, r.Low, 1e-9)
	assert.InDelta(t, 103.0, r.High, 1e-9)
}
