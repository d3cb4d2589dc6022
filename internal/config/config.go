// Package config provides configuration management for the wheel engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Strategy      StrategyConfig     `mapstructure:"strategy"`
	Risk          RiskConfig         `mapstructure:"risk"`
	Market        MarketConfig       `mapstructure:"market"`
	Engine        EngineConfig       `mapstructure:"engine"`
	Backtest      BacktestConfig     `mapstructure:"backtest"`
	Fees          FeeConfig          `mapstructure:"fees"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately
}

// StrategyConfig holds wheel strategy parameters.
type StrategyConfig struct {
	Symbol                  string  `mapstructure:"symbol"`
	Exchange                string  `mapstructure:"exchange"`
	QuantityPerLot          int     `mapstructure:"quantity_per_lot"`
	Mode                    string  `mapstructure:"mode"` // conservative, balanced, aggressive
	OTMDeltaRangeLow        float64 `mapstructure:"otm_delta_range_low"`
	OTMDeltaRangeHigh       float64 `mapstructure:"otm_delta_range_high"`
	MinOpenInterest         int64   `mapstructure:"min_open_interest"`
	ProfitTargetPercentage  float64 `mapstructure:"profit_target_percentage"`
	LossLimitPercentage     float64 `mapstructure:"loss_limit_percentage"`
	EnableAutoRoll          bool    `mapstructure:"enable_auto_roll"`
	RollThresholdDays       int     `mapstructure:"roll_threshold_days"`
}

// RiskConfig holds risk management limits.
type RiskConfig struct {
	RiskPerTradePercent    float64 `mapstructure:"risk_per_trade_percent"`
	MinCashReserve         float64 `mapstructure:"min_cash_reserve"`
	MaxConcurrentPositions int     `mapstructure:"max_concurrent_positions"`
	MaxDailyLossLimit      float64 `mapstructure:"max_daily_loss_limit"`
	MaxPortfolioRisk       float64 `mapstructure:"max_portfolio_risk"`
}

// MarketConfig holds market session parameters.
type MarketConfig struct {
	OpenHour           int    `mapstructure:"open_hour"`
	OpenMinute         int    `mapstructure:"open_minute"`
	CloseHour          int    `mapstructure:"close_hour"`
	CloseMinute        int    `mapstructure:"close_minute"`
	UseHolidayCalendar bool   `mapstructure:"use_holiday_calendar"`
	HolidayFilePath    string `mapstructure:"holiday_file_path"`
}

// EngineConfig holds cycle loop parameters.
type EngineConfig struct {
	RunIntervalSeconds  int    `mapstructure:"run_interval_seconds"`
	DataRefreshInterval int    `mapstructure:"data_refresh_interval"` // seconds, chain cache TTL
	KillSwitchFile      string `mapstructure:"kill_switch_file"`
	MaxConsecutiveErrs  int    `mapstructure:"max_consecutive_errors"`
	DryRun              bool   `mapstructure:"dry_run"`
	DatabasePath        string `mapstructure:"database_path"`
	LogLevel            string `mapstructure:"log_level"`
}

// BacktestConfig holds backtest execution parameters.
type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	SlippageBps    float64 `mapstructure:"slippage_bps"`
	IncludeFees    bool    `mapstructure:"include_fees"`
	BarVolumeCap   float64 `mapstructure:"bar_volume_cap"` // max fraction of bar volume per fill
}

// FeeConfig holds the Indian F&O transaction cost schedule. Rates are
// fractions, not percentages.
type FeeConfig struct {
	BrokerageFlat    float64 `mapstructure:"brokerage_flat"`
	BrokeragePercent float64 `mapstructure:"brokerage_percent"`
	STTPercent       float64 `mapstructure:"stt_percent"` // sell-side premium only
	ExchangePercent  float64 `mapstructure:"exchange_percent"`
	GSTPercent       float64 `mapstructure:"gst_percent"`        // on brokerage
	StampDutyPercent float64 `mapstructure:"stamp_duty_percent"` // buy side
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Level   string        `mapstructure:"level"` // all, trades_only, errors_only
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// Credentials holds API credentials.
type Credentials struct {
	Zerodha ZerodhaCredentials `mapstructure:"zerodha"`
}

// ZerodhaCredentials holds Zerodha API credentials.
type ZerodhaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	UserID    string `mapstructure:"user_id"`
}

// DeltaBand is the resolved absolute-delta selection band.
type DeltaBand struct {
	Low  float64
	High float64
}

// Preset delta bands per strategy mode.
var modeBands = map[string]DeltaBand{
	"conservative": {Low: 0.10, High: 0.15},
	"balanced":     {Low: 0.15, High: 0.25},
	"aggressive":   {Low: 0.25, High: 0.35},
}

// ResolveDeltaBand returns the delta band in effect: explicit range when
// both bounds are set, otherwise the preset for the configured mode.
func (c *Config) ResolveDeltaBand() DeltaBand {
	if c.Strategy.OTMDeltaRangeLow > 0 && c.Strategy.OTMDeltaRangeHigh > 0 {
		return DeltaBand{Low: c.Strategy.OTMDeltaRangeLow, High: c.Strategy.OTMDeltaRangeHigh}
	}
	if band, ok := modeBands[c.Strategy.Mode]; ok {
		return band
	}
	return modeBands["balanced"]
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/wheel-trader"
	}
	return filepath.Join(home, ".config", "wheel-trader")
}

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	cfg.Strategy = StrategyConfig{
		Symbol:                 "TCS",
		Exchange:               "NFO",
		QuantityPerLot:         150,
		Mode:                   "balanced",
		MinOpenInterest:        1000,
		ProfitTargetPercentage: 0.50,
		LossLimitPercentage:    1.00,
		EnableAutoRoll:         false,
		RollThresholdDays:      2,
	}
	cfg.Risk = RiskConfig{
		RiskPerTradePercent:    0.01,
		MinCashReserve:         10000,
		MaxConcurrentPositions: 5,
		MaxDailyLossLimit:      5000,
		MaxPortfolioRisk:       0.02,
	}
	cfg.Market = MarketConfig{
		OpenHour:           9,
		OpenMinute:         15,
		CloseHour:          15,
		CloseMinute:        30,
		UseHolidayCalendar: true,
		HolidayFilePath:    "./data/nse_holidays.csv",
	}
	cfg.Engine = EngineConfig{
		RunIntervalSeconds:  300,
		DataRefreshInterval: 60,
		KillSwitchFile:      "STOP_TRADING",
		MaxConsecutiveErrs:  5,
		DryRun:              false,
		DatabasePath:        filepath.Join(DefaultConfigDir(), "wheeler.db"),
		LogLevel:            "info",
	}
	cfg.Backtest = BacktestConfig{
		InitialCapital: 1000000,
		SlippageBps:    5,
		IncludeFees:    true,
		BarVolumeCap:   0.10,
	}
	cfg.Fees = FeeConfig{
		BrokerageFlat:    20.0,
		BrokeragePercent: 0.0003,
		STTPercent:       0.000625,
		ExchangePercent:  0.00053,
		GSTPercent:       0.18,
		StampDutyPercent: 0.00003,
	}
	cfg.Notifications = NotificationConfig{
		Enabled: true,
		Level:   "all",
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "wheel", cfg); err != nil {
		return nil, fmt.Errorf("loading wheel.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target interface{}) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateConfig(configDir, name)
		}
		return err
	}

	return v.Unmarshal(target)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envInt64 := func(key string, dst *int64) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}
	envFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	envStr("ZERODHA_API_KEY", &cfg.Credentials.Zerodha.APIKey)
	envStr("ZERODHA_API_SECRET", &cfg.Credentials.Zerodha.APISecret)
	envStr("ZERODHA_USER_ID", &cfg.Credentials.Zerodha.UserID)

	envStr("SYMBOL", &cfg.Strategy.Symbol)
	envInt("QUANTITY_PER_LOT", &cfg.Strategy.QuantityPerLot)
	envStr("STRATEGY_MODE", &cfg.Strategy.Mode)
	envFloat("OTM_DELTA_RANGE_LOW", &cfg.Strategy.OTMDeltaRangeLow)
	envFloat("OTM_DELTA_RANGE_HIGH", &cfg.Strategy.OTMDeltaRangeHigh)
	envInt64("MIN_OPEN_INTEREST", &cfg.Strategy.MinOpenInterest)
	envFloat("PROFIT_TARGET_PERCENTAGE", &cfg.Strategy.ProfitTargetPercentage)
	envFloat("LOSS_LIMIT_PERCENTAGE", &cfg.Strategy.LossLimitPercentage)
	envBool("ENABLE_AUTO_ROLL", &cfg.Strategy.EnableAutoRoll)
	envInt("ROLL_THRESHOLD_DAYS", &cfg.Strategy.RollThresholdDays)

	envFloat("RISK_PER_TRADE_PERCENT", &cfg.Risk.RiskPerTradePercent)
	envFloat("MIN_CASH_RESERVE", &cfg.Risk.MinCashReserve)
	envInt("MAX_CONCURRENT_POSITIONS", &cfg.Risk.MaxConcurrentPositions)
	envFloat("MAX_DAILY_LOSS_LIMIT", &cfg.Risk.MaxDailyLossLimit)
	envFloat("MAX_PORTFOLIO_RISK", &cfg.Risk.MaxPortfolioRisk)

	envInt("STRATEGY_RUN_INTERVAL_SECONDS", &cfg.Engine.RunIntervalSeconds)
	envInt("DATA_REFRESH_INTERVAL", &cfg.Engine.DataRefreshInterval)
	envStr("KILL_SWITCH_FILE", &cfg.Engine.KillSwitchFile)
	envInt("MAX_CONSECUTIVE_ERRORS", &cfg.Engine.MaxConsecutiveErrs)
	envBool("DRY_RUN", &cfg.Engine.DryRun)
	envStr("LOG_LEVEL", &cfg.Engine.LogLevel)

	envFloat("SLIPPAGE_BPS", &cfg.Backtest.SlippageBps)
	envBool("INCLUDE_FEES_IN_BACKTEST", &cfg.Backtest.IncludeFees)
	envFloat("INITIAL_CAPITAL", &cfg.Backtest.InitialCapital)

	envInt("MARKET_OPEN_HOUR", &cfg.Market.OpenHour)
	envInt("MARKET_OPEN_MINUTE", &cfg.Market.OpenMinute)
	envInt("MARKET_CLOSE_HOUR", &cfg.Market.CloseHour)
	envInt("MARKET_CLOSE_MINUTE", &cfg.Market.CloseMinute)
	envBool("USE_HOLIDAY_CALENDAR", &cfg.Market.UseHolidayCalendar)
	envStr("HOLIDAY_FILE_PATH", &cfg.Market.HolidayFilePath)

	envFloat("BROKERAGE_FLAT", &cfg.Fees.BrokerageFlat)
	envFloat("BROKERAGE_PERCENT", &cfg.Fees.BrokeragePercent)
	envFloat("STT_PERCENT", &cfg.Fees.STTPercent)
	envFloat("EXCHANGE_PERCENT", &cfg.Fees.ExchangePercent)
	envFloat("GST_PERCENT", &cfg.Fees.GSTPercent)
	envFloat("STAMP_DUTY_PERCENT", &cfg.Fees.StampDutyPercent)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, ok := modeBands[c.Strategy.Mode]; !ok {
		return fmt.Errorf("invalid strategy mode: %s (must be conservative, balanced or aggressive)", c.Strategy.Mode)
	}
	if c.Strategy.QuantityPerLot <= 0 {
		return fmt.Errorf("quantity_per_lot must be positive")
	}
	if c.Strategy.OTMDeltaRangeLow != 0 || c.Strategy.OTMDeltaRangeHigh != 0 {
		if c.Strategy.OTMDeltaRangeLow <= 0 || c.Strategy.OTMDeltaRangeHigh <= 0 {
			return fmt.Errorf("otm delta range bounds must both be positive when set")
		}
		if c.Strategy.OTMDeltaRangeLow >= c.Strategy.OTMDeltaRangeHigh {
			return fmt.Errorf("otm_delta_range_low must be less than otm_delta_range_high")
		}
		if c.Strategy.OTMDeltaRangeHigh > 1 {
			return fmt.Errorf("otm_delta_range_high must not exceed 1")
		}
	}
	if c.Strategy.ProfitTargetPercentage <= 0 || c.Strategy.ProfitTargetPercentage > 1 {
		return fmt.Errorf("profit_target_percentage must be in (0, 1]")
	}
	if c.Strategy.LossLimitPercentage <= 0 {
		return fmt.Errorf("loss_limit_percentage must be positive")
	}
	if c.Strategy.MinOpenInterest < 0 {
		return fmt.Errorf("min_open_interest must be non-negative")
	}
	if c.Risk.RiskPerTradePercent <= 0 || c.Risk.RiskPerTradePercent > 0.10 {
		return fmt.Errorf("risk_per_trade_percent must be in (0, 0.10]")
	}
	if c.Risk.MaxPortfolioRisk <= 0 || c.Risk.MaxPortfolioRisk > 1 {
		return fmt.Errorf("max_portfolio_risk must be in (0, 1]")
	}
	if c.Risk.MaxConcurrentPositions <= 0 {
		return fmt.Errorf("max_concurrent_positions must be positive")
	}
	if c.Risk.MinCashReserve < 0 {
		return fmt.Errorf("min_cash_reserve must be non-negative")
	}
	if c.Engine.RunIntervalSeconds <= 0 {
		return fmt.Errorf("run_interval_seconds must be positive")
	}
	if c.Backtest.SlippageBps < 0 {
		return fmt.Errorf("slippage_bps must be non-negative")
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive")
	}
	if lvl := c.Notifications.Level; lvl != "all" && lvl != "trades_only" && lvl != "errors_only" {
		return fmt.Errorf("invalid notification level: %s", lvl)
	}
	return nil
}
