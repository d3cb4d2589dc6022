package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-trader/internal/models"
)

func rollConfig() RollConfig {
	return RollConfig{Enabled: true, ThresholdDays: 2, MinOpenInterest: 500, DeltaLow: 0.15, DeltaHigh: 0.80}
}

func openPut(strike, entryPremium float64, expiry time.Time) *models.Position {
	return &models.Position{
		Symbol:       "NIFTY",
		Type:         models.OptionPut,
		Strike:       strike,
		Expiry:       expiry,
		EntryPremium: entryPremium,
		Status:       models.PositionOpen,
	}
}

func nextWeek(strike, premium float64, oi int64, typ models.OptionType) models.OptionContract {
	c := put(strike, premium, oi)
	c.Type = typ
	c.Expiry = testExpiry.AddDate(0, 0, 7)
	return c
}

func TestRollHolds(t *testing.T) {
	now := testExpiry.AddDate(0, 0, -1)
	oc := testChain(950, nextWeek(900, 30, 9000, models.OptionPut))

	t.Run("disabled", func(t *testing.T) {
		ev := NewRollEvaluator(RollConfig{Enabled: false, ThresholdDays: 2})
		d := ev.Evaluate(openPut(950, 20, testExpiry), oc, 45, now)
		assert.Equal(t, models.RollHold, d.Action)
	})

	t.Run("far from expiry", func(t *testing.T) {
		ev := NewRollEvaluator(rollConfig())
		d := ev.Evaluate(openPut(950, 20, testExpiry.AddDate(0, 0, 10)), oc, 45, now)
		assert.Equal(t, models.RollHold, d.Action)
	})

	t.Run("profitable leg decays instead", func(t *testing.T) {
		ev := NewRollEvaluator(rollConfig())
		d := ev.Evaluate(openPut(950, 20, testExpiry), oc, 12, now)
		assert.Equal(t, models.RollHold, d.Action)
	})

	t.Run("break-even counts as profitable", func(t *testing.T) {
		ev := NewRollEvaluator(rollConfig())
		d := ev.Evaluate(openPut(950, 20, testExpiry), oc, 20, now)
		assert.Equal(t, models.RollHold, d.Action)
	})
}

func TestRollPutDownAndOut(t *testing.T) {
	ev := NewRollEvaluator(rollConfig())
	now := testExpiry.AddDate(0, 0, -1)

	// Candidates in the next expiry; nearest strike below 950 wins
	oc := testChain(950,
		nextWeek(850, 18, 9000, models.OptionPut),
		nextWeek(900, 25, 9000, models.OptionPut),
		nextWeek(925, 30, 400, models.OptionPut),  // OI below floor
		nextWeek(975, 55, 9000, models.OptionPut), // not below current strike
		nextWeek(940, 0, 9000, models.OptionPut),  // no price
	)

	d := ev.Evaluate(openPut(950, 20, testExpiry), oc, 45, now)
	require.Equal(t, models.RollOut, d.Action)
	require.NotNil(t, d.Replacement)
	assert.Equal(t, 900.0, d.Replacement.Strike)
	assert.True(t, d.Replacement.Expiry.After(testExpiry))
}

func TestRollCallUpAndOut(t *testing.T) {
	ev := NewRollEvaluator(rollConfig())
	now := testExpiry.AddDate(0, 0, -1)

	pos := openPut(1000, 15, testExpiry)
	pos.Type = models.OptionCall

	oc := testChain(1020,
		nextWeek(1050, 22, 9000, models.OptionCall),
		nextWeek(1100, 14, 9000, models.OptionCall),
		nextWeek(950, 80, 9000, models.OptionCall), // not above current strike
		nextWeek(1040, 30, 9000, models.OptionPut), // wrong type
	)

	d := ev.Evaluate(pos, oc, 35, now)
	require.Equal(t, models.RollOut, d.Action)
	require.NotNil(t, d.Replacement)
	assert.Equal(t, 1050.0, d.Replacement.Strike)
}

func TestRollSkipsStrikesOutsideDeltaBand(t *testing.T) {
	ev := NewRollEvaluator(RollConfig{Enabled: true, ThresholdDays: 2, MinOpenInterest: 500, DeltaLow: 0.15, DeltaHigh: 0.35})
	now := testExpiry.AddDate(0, 0, -1)
	pos := openPut(950, 20, testExpiry)

	t.Run("picks the in-band strike over a nearer out-of-band one", func(t *testing.T) {
		oc := testChain(950,
			withDelta(nextWeek(850, 18, 9000, models.OptionPut), -0.55),
			withDelta(nextWeek(800, 12, 9000, models.OptionPut), -0.25),
		)
		d := ev.Evaluate(pos, oc, 45, now)
		require.Equal(t, models.RollOut, d.Action)
		require.NotNil(t, d.Replacement)
		assert.Equal(t, 800.0, d.Replacement.Strike)
	})

	t.Run("closes when every candidate is out of band", func(t *testing.T) {
		oc := testChain(950,
			withDelta(nextWeek(850, 18, 9000, models.OptionPut), -0.55),
		)
		d := ev.Evaluate(pos, oc, 45, now)
		assert.Equal(t, models.RollClose, d.Action)
		assert.Nil(t, d.Replacement)
	})
}

func TestRollClosesWithoutReplacement(t *testing.T) {
	ev := NewRollEvaluator(rollConfig())
	now := testExpiry.AddDate(0, 0, -1)

	// Same-expiry strikes never qualify as roll targets
	oc := testChain(950, put(900, 25, 9000))

	d := ev.Evaluate(openPut(950, 20, testExpiry), oc, 45, now)
	assert.Equal(t, models.RollClose, d.Action)
	assert.Nil(t, d.Replacement)
}

func TestRollThresholdBoundary(t *testing.T) {
	ev := NewRollEvaluator(rollConfig())
	oc := testChain(950, nextWeek(900, 25, 9000, models.OptionPut))
	pos := openPut(950, 20, testExpiry)

	// Exactly at the threshold triggers evaluation
	now := testExpiry.Add(-48 * time.Hour)
	d := ev.Evaluate(pos, oc, 45, now)
	assert.Equal(t, models.RollOut, d.Action)

	// One day beyond holds
	now = testExpiry.Add(-73 * time.Hour)
	d = ev.Evaluate(pos, oc, 45, now)
	assert.Equal(t, models.RollHold, d.Action)
}
