package chain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"wheel-trader/internal/models"
)

func putAt(strike float64) models.OptionContract {
	return models.OptionContract{Type: models.OptionPut, Strike: strike}
}

func callAt(strike float64) models.OptionContract {
	return models.OptionContract{Type: models.OptionCall, Strike: strike}
}

// The moneyness estimate must always land inside [0, 1]: it feeds the
// band filter directly and an out-of-range value would make every
// strike ineligible.
func TestEstimateDeltaBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("put delta stays in [0, 1]", prop.ForAll(
		func(spot, strike float64) bool {
			d := EstimateDelta(putAt(strike), spot)
			return d >= 0 && d <= 1
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(1, 100000),
	))

	properties.Property("call delta stays in [0, 1]", prop.ForAll(
		func(spot, strike float64) bool {
			d := EstimateDelta(callAt(strike), spot)
			return d >= 0 && d <= 1
		},
		gen.Float64Range(1, 100000),
		gen.Float64Range(1, 100000),
	))

	properties.Property("at the money pins to 0.5", prop.ForAll(
		func(spot float64) bool {
			return EstimateDelta(putAt(spot), spot) == 0.5 &&
				EstimateDelta(callAt(spot), spot) == 0.5
		},
		gen.Float64Range(1, 100000),
	))

	// Moving a put strike further below spot raises the estimate, so
	// ranking within one chain is consistent
	properties.Property("put delta monotonic in strike distance", prop.ForAll(
		func(spot, nearPct, step float64) bool {
			near := spot * nearPct
			far := near - spot*step
			if far <= 0 {
				return true
			}
			return EstimateDelta(putAt(far), spot) >= EstimateDelta(putAt(near), spot)
		},
		gen.Float64Range(100, 10000),
		gen.Float64Range(0.5, 1.0),
		gen.Float64Range(0.0, 0.2),
	))

	properties.TestingRun(t)
}

func TestEstimateDeltaExamples(t *testing.T) {
	// Put 5% below spot
	assert.InDelta(t, 0.605, EstimateDelta(putAt(95), 100), 0.001)

	// Symmetric call 5% above spot
	assert.InDelta(t, 0.6, EstimateDelta(callAt(105), 100), 0.001)

	// Degenerate inputs
	assert.Zero(t, EstimateDelta(putAt(0), 100))
	assert.Zero(t, EstimateDelta(putAt(95), 0))
	assert.Zero(t, EstimateDelta(models.OptionContract{Type: "XX", Strike: 95}, 100))
}

func TestAbsDeltaPrefersPublished(t *testing.T) {
	published := -0.32
	c := putAt(95)
	c.Delta = &published

	// Published delta wins over the estimate, as absolute value
	assert.Equal(t, 0.32, AbsDelta(c, 100))

	c.Delta = nil
	assert.InDelta(t, 0.605, AbsDelta(c, 100), 0.001)
}
