package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Wheel Trader Configuration

[strategy]
# Underlying symbol to run the wheel on
symbol = "TCS"
# F&O exchange
exchange = "NFO"
# Contract lot size for the underlying
quantity_per_lot = 150
# Strategy mode: conservative, balanced, aggressive
mode = "balanced"
# Explicit delta band; leave at 0 to use the mode preset
otm_delta_range_low = 0.0
otm_delta_range_high = 0.0
# Minimum open interest for an eligible strike
min_open_interest = 1000
# Close when premium has decayed by this fraction
profit_target_percentage = 0.50
# Stop out when premium has risen by this fraction
loss_limit_percentage = 1.00
# Roll losing positions near expiry instead of closing
enable_auto_roll = false
# Days to expiry at or below which a losing position is rolled
roll_threshold_days = 2

[risk]
# Fraction of portfolio risked per trade
risk_per_trade_percent = 0.01
# Cash that must remain free after margin
min_cash_reserve = 10000.0
# Maximum number of open option positions
max_concurrent_positions = 5
# Daily realized+projected loss limit in INR
max_daily_loss_limit = 5000.0
# Maximum fraction of portfolio at risk across open positions
max_portfolio_risk = 0.02

[market]
open_hour = 9
open_minute = 15
close_hour = 15
close_minute = 30
use_holiday_calendar = true
holiday_file_path = "./data/nse_holidays.csv"

[engine]
# Seconds between strategy cycles
run_interval_seconds = 300
# Option chain cache TTL in seconds
data_refresh_interval = 60
# Presence of this file halts trading at the next cycle boundary
kill_switch_file = "STOP_TRADING"
# Critical alert after this many consecutive cycle errors
max_consecutive_errors = 5
# Log and record intents without placing broker orders
dry_run = false
log_level = "info"

[backtest]
initial_capital = 1000000.0
# Slippage in basis points applied against the order
slippage_bps = 5.0
include_fees = true
# Max fraction of a bar's volume one fill may consume
bar_volume_cap = 0.10

[fees]
brokerage_flat = 20.0
brokerage_percent = 0.0003
stt_percent = 0.000625
exchange_percent = 0.00053
gst_percent = 0.18
stamp_duty_percent = 0.00003

[notifications]
enabled = true
# all, trades_only, errors_only
level = "all"

[notifications.webhook]
enabled = false
url = ""
`

const credentialsTemplate = `# Wheel Trader Credentials
# Keep this file private (chmod 600).

[zerodha]
api_key = ""
api_secret = ""
user_id = ""
`

func createTemplateConfig(configDir, name string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

func createTemplateCredentials(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "credentials.toml")
	if err := os.WriteFile(path, []byte(credentialsTemplate), 0600); err != nil {
		return fmt.Errorf("writing credentials template: %w", err)
	}

	return nil
}
