// Package cli provides the command-line interface for the wheel trader.
package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wheel-trader/internal/backtest"
	"wheel-trader/internal/broker"
	"wheel-trader/internal/chain"
	"wheel-trader/internal/models"
	"wheel-trader/internal/notify"
	"wheel-trader/internal/resilience"
	"wheel-trader/internal/strategy"
	"wheel-trader/pkg/utils"
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the wheel strategy loop",
		Long: `Run the wheel strategy loop against the configured symbol.

The engine cycles at the configured interval: it fetches the option
chain, advances the wheel state machine, and places orders through
Zerodha. With --dry-run (or dry_run in wheel.toml) decisions are logged
and recorded but no orders reach the broker.

Create the kill-switch file (STOP_TRADING by default) to halt trading;
the engine checks for it at the start of every cycle.`,
		Example: `  wheeler run
  wheeler run --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			dryRun = dryRun || app.Config.Engine.DryRun

			engine, chains, err := buildEngine(app, dryRun)
			if err != nil {
				output.Error("Failed to build engine: %v", err)
				return err
			}

			mode := "LIVE"
			if dryRun {
				mode = "DRY RUN"
			}
			output.Info("Starting wheel engine [%s] on %s, interval %ds",
				mode, app.Config.Strategy.Symbol, app.Config.Engine.RunIntervalSeconds)
			output.Dim("Kill switch: %s", app.Config.Engine.KillSwitchFile)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = engine.Run(ctx)
			for _, s := range chains.SourceStats() {
				app.Logger.Info().
					Str("source", s.Name).
					Str("state", string(s.State)).
					Int64("failures", s.TotalFailures).
					Msg("Chain source final state")
			}
			if err == context.Canceled {
				output.Info("Shutting down")
				return nil
			}
			return err
		},
	}
	cmd.Flags().Bool("dry-run", false, "log decisions without placing orders")
	return cmd
}

// buildEngine wires the live (or dry-run) strategy engine from config.
func buildEngine(app *App, dryRun bool) (*strategy.Engine, *chain.Provider, error) {
	cfg := app.Config

	var b broker.Broker
	switch {
	case dryRun:
		// Paper broker with live-sized capital, orders fill at intent price
		b = broker.NewPaperBroker(cfg.Backtest.InitialCapital, nil)
	case app.Zerodha == nil:
		return nil, nil, fmt.Errorf("broker not configured, check credentials.toml")
	case !app.Zerodha.IsAuthenticated():
		return nil, nil, fmt.Errorf("not authenticated, run 'wheeler auth login'")
	default:
		b = broker.NewResilientBroker(
			app.Zerodha,
			resilience.NewCircuitBreaker("zerodha", resilience.DefaultCircuitBreakerConfig()),
			utils.DefaultRetryConfig(),
		)
	}

	// NSE website is the primary chain source, Kite the fallback
	sources := []chain.Source{chain.NewNSESource(cfg.Strategy.QuantityPerLot, 10 * time.Second)}
	if app.Zerodha != nil && app.Zerodha.IsAuthenticated() {
		sources = append(sources, chain.NewKiteSource(app.Zerodha))
	}
	chains := chain.NewProvider(
		time.Duration(cfg.Engine.DataRefreshInterval)*time.Second,
		utils.DefaultRetryConfig(),
		app.Logger,
		sources...,
	)

	st, err := app.openStore()
	if err != nil {
		return nil, nil, err
	}

	notifier := notify.NewMultiNotifier(&cfg.Notifications)
	notifier.AddChannel(notify.NewTerminalNotifier(cfg.Notifications.Enabled))

	var holidays *utils.HolidayCalendar
	if cfg.Market.UseHolidayCalendar && cfg.Market.HolidayFilePath != "" {
		holidays, err = utils.LoadHolidayCalendar(cfg.Market.HolidayFilePath)
		if err != nil {
			return nil, nil, fmt.Errorf("loading holiday calendar: %w", err)
		}
	}
	clock := utils.NewMarketClock(cfg.Market.OpenHour, cfg.Market.OpenMinute,
		cfg.Market.CloseHour, cfg.Market.CloseMinute, holidays)

	band := cfg.ResolveDeltaBand()
	engine := strategy.NewEngine(
		strategy.EngineConfig{
			Symbol:               cfg.Strategy.Symbol,
			Exchange:             models.NFO,
			LotSize:              cfg.Strategy.QuantityPerLot,
			ProfitTarget:         cfg.Strategy.ProfitTargetPercentage,
			LossLimit:            cfg.Strategy.LossLimitPercentage,
			DryRun:               dryRun,
			KillSwitchFile:       cfg.Engine.KillSwitchFile,
			MaxConsecutiveErrors: cfg.Engine.MaxConsecutiveErrs,
			RunInterval:          time.Duration(cfg.Engine.RunIntervalSeconds) * time.Second,
		},
		b,
		chains,
		st,
		notifier,
		strategy.NewStrikeSelector(strategy.SelectorConfig{
			DeltaLow:        band.Low,
			DeltaHigh:       band.High,
			MinOpenInterest: cfg.Strategy.MinOpenInterest,
		}),
		strategy.NewPositionSizer(cfg.Risk.RiskPerTradePercent, cfg.Strategy.QuantityPerLot),
		strategy.NewRiskGate(strategy.Limits{
			MinCashReserve:         cfg.Risk.MinCashReserve,
			MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
			MaxDailyLossLimit:      cfg.Risk.MaxDailyLossLimit,
			MaxPortfolioRisk:       cfg.Risk.MaxPortfolioRisk,
		}),
		strategy.NewRollEvaluator(strategy.RollConfig{
			Enabled:         cfg.Strategy.EnableAutoRoll,
			ThresholdDays:   cfg.Strategy.RollThresholdDays,
			MinOpenInterest: cfg.Strategy.MinOpenInterest,
			DeltaLow:        band.Low,
			DeltaHigh:       band.High,
		}),
		clock,
		backtest.NewFeeSchedule(cfg.Fees),
		app.Logger,
	)
	return engine, chains, nil
}
