package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Strategy.Mode = "yolo" }},
		{"zero lot quantity", func(c *Config) { c.Strategy.QuantityPerLot = 0 }},
		{"half-set delta band", func(c *Config) { c.Strategy.OTMDeltaRangeLow = 0.15 }},
		{"inverted delta band", func(c *Config) {
			c.Strategy.OTMDeltaRangeLow = 0.35
			c.Strategy.OTMDeltaRangeHigh = 0.15
		}},
		{"delta band above one", func(c *Config) {
			c.Strategy.OTMDeltaRangeLow = 0.5
			c.Strategy.OTMDeltaRangeHigh = 1.5
		}},
		{"profit target above one", func(c *Config) { c.Strategy.ProfitTargetPercentage = 1.5 }},
		{"zero loss limit", func(c *Config) { c.Strategy.LossLimitPercentage = 0 }},
		{"negative open interest floor", func(c *Config) { c.Strategy.MinOpenInterest = -1 }},
		{"risk per trade above cap", func(c *Config) { c.Risk.RiskPerTradePercent = 0.25 }},
		{"portfolio risk above one", func(c *Config) { c.Risk.MaxPortfolioRisk = 1.5 }},
		{"zero concurrent positions", func(c *Config) { c.Risk.MaxConcurrentPositions = 0 }},
		{"negative cash reserve", func(c *Config) { c.Risk.MinCashReserve = -1 }},
		{"zero run interval", func(c *Config) { c.Engine.RunIntervalSeconds = 0 }},
		{"negative slippage", func(c *Config) { c.Backtest.SlippageBps = -1 }},
		{"zero capital", func(c *Config) { c.Backtest.InitialCapital = 0 }},
		{"unknown notification level", func(c *Config) { c.Notifications.Level = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveDeltaBand(t *testing.T) {
	cfg := Default()

	// Mode presets
	cfg.Strategy.Mode = "conservative"
	assert.Equal(t, DeltaBand{Low: 0.10, High: 0.15}, cfg.ResolveDeltaBand())

	cfg.Strategy.Mode = "balanced"
	assert.Equal(t, DeltaBand{Low: 0.15, High: 0.25}, cfg.ResolveDeltaBand())

	cfg.Strategy.Mode = "aggressive"
	assert.Equal(t, DeltaBand{Low: 0.25, High: 0.35}, cfg.ResolveDeltaBand())

	// An explicit range beats the mode preset
	cfg.Strategy.OTMDeltaRangeLow = 0.12
	cfg.Strategy.OTMDeltaRangeHigh = 0.22
	assert.Equal(t, DeltaBand{Low: 0.12, High: 0.22}, cfg.ResolveDeltaBand())

	// Unknown mode falls back to balanced
	cfg = Default()
	cfg.Strategy.Mode = "unknown"
	assert.Equal(t, modeBands["balanced"], cfg.ResolveDeltaBand())
}

func TestLoadSeedsTemplates(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	// First run writes template files and returns defaults
	assert.FileExists(t, filepath.Join(dir, "wheel.toml"))
	assert.FileExists(t, filepath.Join(dir, "credentials.toml"))
	assert.Equal(t, "TCS", cfg.Strategy.Symbol)
	assert.Equal(t, 1000000.0, cfg.Backtest.InitialCapital)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYMBOL", "RELIANCE")
	t.Setenv("STRATEGY_MODE", "aggressive")
	t.Setenv("RISK_PER_TRADE_PERCENT", "0.02")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("MIN_OPEN_INTEREST", "2500")

	cfg := Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, "RELIANCE", cfg.Strategy.Symbol)
	assert.Equal(t, "aggressive", cfg.Strategy.Mode)
	assert.Equal(t, 0.02, cfg.Risk.RiskPerTradePercent)
	assert.True(t, cfg.Engine.DryRun)
	assert.Equal(t, int64(2500), cfg.Strategy.MinOpenInterest)

	// Malformed numbers are ignored, not fatal
	t.Setenv("RISK_PER_TRADE_PERCENT", "lots")
	cfg = Default()
	applyEnvOverrides(cfg)
	assert.Equal(t, 0.01, cfg.Risk.RiskPerTradePercent)
}

func TestValidateAcceptsExplicitBand(t *testing.T) {
	cfg := Default()
	cfg.Strategy.OTMDeltaRangeLow = 0.15
	cfg.Strategy.OTMDeltaRangeHigh = 0.35
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigDir(t *testing.T) {
	dir := DefaultConfigDir()
	assert.NotEmpty(t, dir)
	assert.Contains(t, dir, "wheel-trader")
}
