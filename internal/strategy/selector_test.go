package strategy

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-trader/internal/chain"
	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

var testExpiry = time.Date(2025, 10, 30, 15, 30, 0, 0, time.UTC)

func testChain(spot float64, contracts ...models.OptionContract) *models.OptionChain {
	return &models.OptionChain{
		Symbol:    "NIFTY",
		SpotPrice: spot,
		Expiry:    testExpiry,
		Contracts: contracts,
	}
}

func put(strike, premium float64, oi int64) models.OptionContract {
	return models.OptionContract{
		Symbol:       "NIFTY",
		Type:         models.OptionPut,
		Strike:       strike,
		Expiry:       testExpiry,
		LastPrice:    premium,
		OpenInterest: oi,
	}
}

func call(strike, premium float64, oi int64) models.OptionContract {
	c := put(strike, premium, oi)
	c.Type = models.OptionCall
	return c
}

func withDelta(c models.OptionContract, d float64) models.OptionContract {
	c.Delta = &d
	return c
}

// Whatever the selector returns must itself pass every eligibility
// check: right type, same expiry day, OTM, positive premium, OI at or
// above the floor and absolute delta inside the band.
func TestSelectorResultIsEligible(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	cfg := SelectorConfig{DeltaLow: 0.55, DeltaHigh: 0.75, MinOpenInterest: 500}
	selector := NewStrikeSelector(cfg)

	properties.Property("selected put satisfies all filters", prop.ForAll(
		func(spot float64, offsets []int, premium float64, oi int64) bool {
			contracts := make([]models.OptionContract, 0, len(offsets))
			for _, off := range offsets {
				contracts = append(contracts, put(spot-float64(off), premium, oi))
			}
			oc := testChain(spot, contracts...)

			c, err := selector.Select(oc, models.OptionPut)
			if err != nil {
				return apperrors.Is(err, apperrors.ErrNoEligibleStrike)
			}
			delta := chain.AbsDelta(*c, spot)
			return c.Type == models.OptionPut &&
				c.IsOTM(spot) &&
				c.LastPrice > 0 &&
				c.OpenInterest >= cfg.MinOpenInterest &&
				delta >= cfg.DeltaLow && delta <= cfg.DeltaHigh
		},
		gen.Float64Range(500, 25000),
		gen.SliceOf(gen.IntRange(-200, 2000)),
		gen.Float64Range(0.05, 500),
		gen.Int64Range(0, 100000),
	))

	properties.TestingRun(t)
}

func TestSelectorPicksClosestToMidpoint(t *testing.T) {
	// Band [0.15, 0.35], midpoint 0.25
	selector := NewStrikeSelector(SelectorConfig{DeltaLow: 0.15, DeltaHigh: 0.35, MinOpenInterest: 100})
	oc := testChain(1000,
		withDelta(put(850, 4.0, 5000), -0.20),
		withDelta(put(875, 6.0, 5000), -0.25),
		withDelta(put(900, 9.0, 5000), -0.30),
	)

	c, err := selector.Select(oc, models.OptionPut)
	require.NoError(t, err)
	assert.Equal(t, 875.0, c.Strike)
}

func TestSelectorTieBreaks(t *testing.T) {
	selector := NewStrikeSelector(SelectorConfig{DeltaLow: 0.15, DeltaHigh: 0.35, MinOpenInterest: 0})

	// 0.20 and 0.30 are equidistant from the midpoint: higher OI wins
	oc := testChain(1000,
		withDelta(put(850, 4.0, 9000), -0.20),
		withDelta(put(900, 9.0, 3000), -0.30),
	)
	c, err := selector.Select(oc, models.OptionPut)
	require.NoError(t, err)
	assert.Equal(t, 850.0, c.Strike)

	// Same delta distance and same OI: higher premium wins
	oc = testChain(1000,
		withDelta(put(850, 4.0, 5000), -0.20),
		withDelta(put(900, 9.0, 5000), -0.30),
	)
	c, err = selector.Select(oc, models.OptionPut)
	require.NoError(t, err)
	assert.Equal(t, 900.0, c.Strike)
}

func TestSelectorBandBoundsInclusive(t *testing.T) {
	// Deltas exactly on the band edges stay eligible; both are the same
	// distance from the midpoint so OI decides
	selector := NewStrikeSelector(SelectorConfig{DeltaLow: 0.20, DeltaHigh: 0.30, MinOpenInterest: 0})
	oc := testChain(1000,
		withDelta(put(850, 4.0, 9000), -0.20),
		withDelta(put(900, 9.0, 3000), -0.30),
	)

	c, err := selector.Select(oc, models.OptionPut)
	require.NoError(t, err)
	assert.Equal(t, 850.0, c.Strike)
}

func TestSelectorRejections(t *testing.T) {
	// Under the moneyness estimate a put at strike 940 on spot 1000
	// carries delta ~0.628, inside [0.55, 0.75]; strike 990 sits at
	// ~0.52 below the band and strike 600 clamps to 1.0 above it
	selector := NewStrikeSelector(SelectorConfig{DeltaLow: 0.55, DeltaHigh: 0.75, MinOpenInterest: 500})

	cases := []struct {
		name string
		oc   *models.OptionChain
	}{
		{"empty chain", testChain(1000)},
		{"only calls when puts requested", testChain(1000, call(1060, 5.0, 5000))},
		{"in the money", testChain(1000, put(1100, 120.0, 5000))},
		{"zero premium", testChain(1000, put(940, 0, 5000))},
		{"open interest below floor", testChain(1000, put(940, 6.0, 499))},
		{"delta below band", testChain(1000, put(990, 30.0, 5000))},
		{"delta above band", testChain(1000, put(600, 0.5, 5000))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := selector.Select(tc.oc, models.OptionPut)
			assert.True(t, apperrors.Is(err, apperrors.ErrNoEligibleStrike))
		})
	}
}

func TestSelectorIgnoresOtherExpiries(t *testing.T) {
	selector := NewStrikeSelector(SelectorConfig{DeltaLow: 0.15, DeltaHigh: 0.35, MinOpenInterest: 0})

	farWeek := withDelta(put(875, 12.0, 9000), -0.25)
	farWeek.Expiry = testExpiry.AddDate(0, 0, 7)

	// Only the far-week strike would be eligible, but it is not on the
	// chain's front expiry
	oc := testChain(1000, farWeek)
	_, err := selector.Select(oc, models.OptionPut)
	assert.True(t, apperrors.Is(err, apperrors.ErrNoEligibleStrike))

	// Alongside a front-expiry strike the far week never wins even with
	// better OI and premium
	oc = testChain(1000, farWeek, withDelta(put(850, 4.0, 100), -0.30))
	c, err := selector.Select(oc, models.OptionPut)
	require.NoError(t, err)
	assert.Equal(t, 850.0, c.Strike)
	assert.True(t, c.Expiry.Equal(testExpiry))
}

func TestSelectorPrefersPublishedDelta(t *testing.T) {
	selector := NewStrikeSelector(SelectorConfig{DeltaLow: 0.15, DeltaHigh: 0.35, MinOpenInterest: 0})

	// The estimate would put this strike outside the band, but the
	// source publishes a delta inside it
	oc := testChain(1000, withDelta(put(990, 30.0, 5000), -0.25))
	c, err := selector.Select(oc, models.OptionPut)
	require.NoError(t, err)
	assert.Equal(t, 990.0, c.Strike)
}

func TestSelectorCoveredCallSide(t *testing.T) {
	selector := NewStrikeSelector(SelectorConfig{DeltaLow: 0.15, DeltaHigh: 0.35, MinOpenInterest: 0})
	oc := testChain(1000,
		call(1125, 6.0, 5000), // estimate 0.75, outside the band
		withDelta(call(1150, 4.0, 5000), 0.25),
		withDelta(put(875, 6.0, 5000), -0.25),
	)

	c, err := selector.Select(oc, models.OptionCall)
	require.NoError(t, err)
	assert.Equal(t, models.OptionCall, c.Type)
	assert.Equal(t, 1150.0, c.Strike)
}
