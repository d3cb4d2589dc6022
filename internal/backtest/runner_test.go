package backtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheel-trader/internal/config"
	apperrors "wheel-trader/internal/errors"
	"wheel-trader/pkg/utils"
)

func writeBars(t *testing.T, csv string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))
	return path
}

func TestLoadBars(t *testing.T) {
	path := writeBars(t, `date,open,high,low,close,volume
2025-10-27,24650,24900,24600,24850,185000000
2025-10-28,24850,24950,24700,24812,162000000
`)

	bars, err := LoadBars(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2025-10-27", bars[0].Date)
	assert.Equal(t, 24850.0, bars[0].Close)
	assert.Equal(t, int64(162000000), bars[1].Volume)
}

func TestLoadBarsEmptyFile(t *testing.T) {
	path := writeBars(t, "date,open,high,low,close,volume\n")
	_, err := LoadBars(path)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientData))
}

func TestLoadBarsMissingFile(t *testing.T) {
	_, err := LoadBars(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}

func TestBarDayParsesIST(t *testing.T) {
	day, err := Bar{Date: "2025-10-28"}.Day()
	require.NoError(t, err)
	assert.Equal(t, 2025, day.Year())
	assert.Equal(t, time.October, day.Month())
	assert.Equal(t, 28, day.Day())
	assert.Equal(t, utils.IndiaLocation, day.Location())

	_, err = Bar{Date: "28-10-2025"}.Day()
	assert.Error(t, err)
}

func TestRunnerReplaysBars(t *testing.T) {
	cfg := config.Default()
	cfg.Strategy.Symbol = "NIFTY"
	cfg.Strategy.QuantityPerLot = 75
	cfg.Backtest.InitialCapital = 2000000
	cfg.Risk.MaxDailyLossLimit = 1e7
	cfg.Risk.MaxPortfolioRisk = 1.0
	cfg.Risk.RiskPerTradePercent = 0.10

	// Two quiet weeks of flat-ish closes: sold premium decays, no
	// assignment pressure
	path := writeBars(t, `date,open,high,low,close,volume
2025-10-06,24800,24900,24700,24810,180000000
2025-10-07,24810,24880,24760,24790,175000000
2025-10-08,24790,24850,24740,24820,168000000
2025-10-09,24820,24870,24750,24800,172000000
2025-10-10,24800,24860,24730,24780,160000000
2025-10-13,24780,24840,24720,24805,158000000
2025-10-14,24805,24890,24770,24830,166000000
2025-10-15,24830,24900,24780,24815,171000000
2025-10-16,24815,24870,24760,24795,169000000
2025-10-17,24795,24850,24740,24810,163000000
`)

	metrics, err := NewRunner(cfg, zerolog.Nop()).Run(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.Equal(t, 2000000.0, metrics.InitialCapital)
	assert.Len(t, metrics.EquityCurve, 10)
	assert.Greater(t, metrics.FinalEquity, 0.0)
}

func TestRunnerSkipsWeekendBars(t *testing.T) {
	cfg := config.Default()
	cfg.Strategy.Symbol = "NIFTY"
	cfg.Strategy.QuantityPerLot = 75

	// Saturday and Sunday rows produce no trades but still mark equity
	path := writeBars(t, `date,open,high,low,close,volume
2025-10-11,24800,24800,24800,24800,0
2025-10-12,24800,24800,24800,24800,0
`)

	metrics, err := NewRunner(cfg, zerolog.Nop()).Run(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, metrics.EquityCurve, 2)
	assert.Zero(t, metrics.TotalTrades)
	assert.InDelta(t, cfg.Backtest.InitialCapital, metrics.FinalEquity, 1e-6)
}

func TestRunnerHonorsContextCancellation(t *testing.T) {
	cfg := config.Default()
	path := writeBars(t, `date,open,high,low,close,volume
2025-10-06,24800,24900,24700,24810,180000000
`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(cfg, zerolog.Nop()).Run(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
