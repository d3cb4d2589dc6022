package strategy

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// Sized quantity must always be whole lots and its assignment value must
// never exceed the per-trade risk budget.
func TestSizerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("notional fits inside the risk budget", prop.ForAll(
		func(portfolio, riskPct, strike float64, lotSize int) bool {
			sizer := NewPositionSizer(riskPct, lotSize)
			qty := sizer.Quantity(portfolio, strike)
			if qty == 0 {
				return true
			}
			return strike*float64(qty) <= portfolio*riskPct
		},
		gen.Float64Range(100000, 100000000),
		gen.Float64Range(0.001, 0.10),
		gen.Float64Range(10, 20000),
		gen.IntRange(1, 1000),
	))

	properties.Property("quantity is a whole number of lots", prop.ForAll(
		func(portfolio, riskPct, strike float64, lotSize int) bool {
			sizer := NewPositionSizer(riskPct, lotSize)
			return sizer.Quantity(portfolio, strike)%lotSize == 0
		},
		gen.Float64Range(100000, 100000000),
		gen.Float64Range(0.001, 0.10),
		gen.Float64Range(10, 20000),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestSizerExamples(t *testing.T) {
	// One lot at strike 2000 x 150 = 3,00,000 but the budget is only
	// 10,00,000 x 1% = 10,000: too small for even one lot
	sizer := NewPositionSizer(0.01, 150)
	assert.Equal(t, 0, sizer.Quantity(1000000, 2000))

	// Budget 10,00,000 x 5% = 50,000 fits one lot of 150 at strike 300
	sizer = NewPositionSizer(0.05, 150)
	assert.Equal(t, 150, sizer.Quantity(1000000, 300))

	// Two lots fit at strike 150 (45,000 total)
	assert.Equal(t, 300, sizer.Quantity(1000000, 150))

	// Degenerate inputs size to zero
	assert.Equal(t, 0, sizer.Quantity(0, 300))
	assert.Equal(t, 0, sizer.Quantity(1000000, 0))
	assert.Equal(t, 0, NewPositionSizer(0.05, 0).Quantity(1000000, 300))
}
