// Package cli provides the command-line interface for the wheel trader.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"wheel-trader/internal/broker"
	"wheel-trader/internal/config"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/store"
)

// Version information
const (
	Version = "0.3.0"
)

// App holds the application dependencies.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Zerodha *broker.ZerodhaBroker
	Store   store.DataStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Credentials.Zerodha.APIKey != "" {
		app.Zerodha = broker.NewZerodhaBroker(broker.ZerodhaConfig{
			APIKey:    cfg.Credentials.Zerodha.APIKey,
			APISecret: cfg.Credentials.Zerodha.APISecret,
			UserID:    cfg.Credentials.Zerodha.UserID,
		})
		logger.Debug().Msg("Zerodha broker initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "wheeler",
		Short: "Wheeler - options wheel strategy engine for Indian F&O",
		Long: `Wheeler runs the options wheel strategy on the Indian stock market:
sell cash-secured puts, take assignment, sell covered calls, repeat.

It integrates with Zerodha Kite Connect for live trading and includes a
backtest mode that replays the same strategy over historical bars.

Use 'wheeler help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/wheel-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAuthCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newPositionsCmd(app))
	rootCmd.AddCommand(newTradesCmd(app))

	return rootCmd
}

// openStore lazily opens the SQLite store at the configured path.
func (app *App) openStore() (store.DataStore, error) {
	if app.Store != nil {
		return app.Store, nil
	}
	st, err := store.NewSQLiteStore(app.Config.Engine.DatabasePath)
	if err != nil {
		return nil, err
	}
	app.Store = st
	return st, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("Wheeler v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	band := cfg.ResolveDeltaBand()

	output.Bold("Strategy Configuration")
	output.Printf("  Symbol:          %s\n", cfg.Strategy.Symbol)
	output.Printf("  Lot Size:        %d\n", cfg.Strategy.QuantityPerLot)
	output.Printf("  Mode:            %s\n", cfg.Strategy.Mode)
	output.Printf("  Delta Band:      %.2f - %.2f\n", band.Low, band.High)
	output.Printf("  Min OI:          %s\n", FormatOI(cfg.Strategy.MinOpenInterest))
	output.Printf("  Profit Target:   %.0f%%\n", cfg.Strategy.ProfitTargetPercentage*100)
	output.Printf("  Loss Limit:      %.0f%%\n", cfg.Strategy.LossLimitPercentage*100)
	output.Printf("  Auto Roll:       %v (%d days)\n", cfg.Strategy.EnableAutoRoll, cfg.Strategy.RollThresholdDays)
	output.Println()

	output.Bold("Risk Configuration")
	output.Printf("  Risk Per Trade:  %.2f%%\n", cfg.Risk.RiskPerTradePercent*100)
	output.Printf("  Cash Reserve:    %s\n", FormatIndianCurrency(cfg.Risk.MinCashReserve))
	output.Printf("  Max Positions:   %d\n", cfg.Risk.MaxConcurrentPositions)
	output.Printf("  Daily Loss Limit: %s\n", FormatIndianCurrency(cfg.Risk.MaxDailyLossLimit))
	output.Printf("  Portfolio Risk:  %.1f%%\n", cfg.Risk.MaxPortfolioRisk*100)
	output.Println()

	output.Bold("Engine Configuration")
	output.Printf("  Run Interval:    %ds\n", cfg.Engine.RunIntervalSeconds)
	output.Printf("  Chain Cache TTL: %ds\n", cfg.Engine.DataRefreshInterval)
	output.Printf("  Kill Switch:     %s\n", cfg.Engine.KillSwitchFile)
	output.Printf("  Dry Run:         %v\n", cfg.Engine.DryRun)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:         %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:           %s\n", cfg.Notifications.Level)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)

	return nil
}
