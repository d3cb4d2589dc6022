package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-trader/internal/models"
)

func TestSynthChainBeforeFirstBarFails(t *testing.T) {
	p := NewSynthProvider(DefaultSynthConfig("NIFTY", 75))
	_, err := p.GetChain(context.Background(), "NIFTY")
	assert.Error(t, err)
}

func TestSynthChainShape(t *testing.T) {
	p := NewSynthProvider(DefaultSynthConfig("NIFTY", 75))
	// Tuesday
	now := time.Date(2025, 10, 28, 10, 30, 0, 0, time.UTC)
	p.Advance(now, 24812)

	oc, err := p.GetChain(context.Background(), "NIFTY")
	require.NoError(t, err)

	assert.Equal(t, "NIFTY", oc.Symbol)
	assert.Equal(t, 24812.0, oc.SpotPrice)

	// Front expiry is the coming Thursday at close
	front := time.Date(2025, 10, 30, 15, 30, 0, 0, time.UTC)
	assert.True(t, oc.Expiry.Equal(front))

	expiries := map[time.Time]bool{}
	for _, c := range oc.Contracts {
		expiries[c.Expiry] = true
	}
	assert.Len(t, expiries, 2)
	assert.True(t, expiries[front])
	assert.True(t, expiries[front.AddDate(0, 0, 7)])

	// 8 strikes each side of ATM plus ATM, puts and calls, two expiries
	assert.Len(t, oc.Contracts, 17*2*2)

	// Spot 24812 rounds to ATM 24800 on the 100-point grid
	atmSeen := false
	for _, c := range oc.Contracts {
		if c.Strike == 24800 {
			atmSeen = true
		}
		assert.Zero(t, int(c.Strike)%100)
	}
	assert.True(t, atmSeen)
}

func TestSynthContractsAreTradeable(t *testing.T) {
	p := NewSynthProvider(DefaultSynthConfig("NIFTY", 75))
	p.Advance(time.Date(2025, 10, 28, 10, 30, 0, 0, time.UTC), 24812)

	oc, err := p.GetChain(context.Background(), "NIFTY")
	require.NoError(t, err)

	for _, c := range oc.Contracts {
		assert.GreaterOrEqual(t, c.LastPrice, 0.05)
		assert.Greater(t, c.Ask, 0.0)
		assert.LessOrEqual(t, c.Bid, c.Ask)
		assert.Equal(t, 75, c.LotSize)
		assert.GreaterOrEqual(t, c.OpenInterest, int64(0))

		require.NotNil(t, c.Delta)
		d := *c.Delta
		switch c.Type {
		case models.OptionPut:
			assert.LessOrEqual(t, d, 0.0)
			assert.GreaterOrEqual(t, d, -1.0)
		case models.OptionCall:
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 1.0)
		}
	}
}

func TestSynthDeltaShape(t *testing.T) {
	// ATM pins to half a unit on either side
	assert.InDelta(t, 0.5, syntheticDelta(models.OptionCall, 0), 1e-9)
	assert.InDelta(t, -0.5, syntheticDelta(models.OptionPut, 0), 1e-9)

	// Calls decay as the strike moves above spot, puts deepen
	assert.Less(t, syntheticDelta(models.OptionCall, 2), 0.5)
	assert.Greater(t, syntheticDelta(models.OptionCall, -2), 0.5)
	assert.Greater(t, syntheticDelta(models.OptionPut, 2), -0.5)
}

func TestSynthLiquidityDecaysFromATM(t *testing.T) {
	p := NewSynthProvider(DefaultSynthConfig("NIFTY", 75))
	p.Advance(time.Date(2025, 10, 28, 10, 30, 0, 0, time.UTC), 24800)

	oc, err := p.GetChain(context.Background(), "NIFTY")
	require.NoError(t, err)

	var atmOI, farOI int64
	for _, c := range oc.Contracts {
		if c.Type != models.OptionPut || !c.Expiry.Equal(oc.Expiry) {
			continue
		}
		switch c.Strike {
		case 24800:
			atmOI = c.OpenInterest
		case 24000:
			farOI = c.OpenInterest
		}
	}
	assert.Greater(t, atmOI, farOI)
	assert.Greater(t, farOI, int64(0))
}

func TestStrikeStepTiers(t *testing.T) {
	assert.Equal(t, 100.0, strikeStepFor(24800))
	assert.Equal(t, 50.0, strikeStepFor(3500))
	assert.Equal(t, 10.0, strikeStepFor(900))
	assert.Equal(t, 5.0, strikeStepFor(120))
}

func TestNextWeekdayRolls(t *testing.T) {
	tue := time.Date(2025, 10, 28, 10, 30, 0, 0, time.UTC)
	thu := nextWeekday(tue, time.Thursday)
	assert.Equal(t, time.Thursday, thu.Weekday())
	assert.Equal(t, 30, thu.Day())
	assert.Equal(t, 15, thu.Hour())

	// On the expiry weekday itself the next week's contract is current
	next := nextWeekday(thu, time.Thursday)
	assert.Equal(t, time.Thursday, next.Weekday())
	assert.Equal(t, 6, next.Day())
	assert.Equal(t, time.November, next.Month())
}
