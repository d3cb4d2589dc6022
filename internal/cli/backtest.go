// Package cli provides the command-line interface for the wheel trader.
package cli

import (
	"context"
	"math"

	"github.com/spf13/cobra"

	"wheel-trader/internal/backtest"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest <bars.csv>",
		Short: "Replay the strategy over historical bars",
		Long: `Replay the wheel strategy over daily OHLCV bars from a CSV file.

The CSV needs date,open,high,low,close,volume columns. The same engine
that trades live runs against a paper broker with synthetic option
chains derived from each bar; fills are simulated with slippage and the
configured fee schedule.`,
		Example: `  wheeler backtest data/TCS_daily.csv
  wheeler backtest data/TCS_daily.csv --capital 2000000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			if capital, _ := cmd.Flags().GetFloat64("capital"); capital > 0 {
				app.Config.Backtest.InitialCapital = capital
			}
			if noFees, _ := cmd.Flags().GetBool("no-fees"); noFees {
				app.Config.Backtest.IncludeFees = false
			}

			runner := backtest.NewRunner(app.Config, app.Logger)
			metrics, err := runner.Run(context.Background(), args[0])
			if err != nil {
				output.Error("Backtest failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(metrics)
			}
			printMetrics(output, metrics)
			return nil
		},
	}
	cmd.Flags().Float64("capital", 0, "override initial capital")
	cmd.Flags().Bool("no-fees", false, "skip transaction costs")
	return cmd
}

func printMetrics(output *Output, m *backtest.Metrics) {
	output.Bold("Backtest Results")
	output.Println()

	output.Printf("  Initial Capital:   %s\n", FormatIndianCurrency(m.InitialCapital))
	output.Printf("  Final Equity:      %s\n", FormatIndianCurrency(m.FinalEquity))
	output.Printf("  Total Return:      %s\n", output.ColoredString(output.PnLColor(m.TotalReturn), FormatPercent(m.TotalReturn*100)))
	output.Printf("  Annualized Return: %s\n", FormatPercent(m.AnnualizedReturn*100))
	output.Printf("  Volatility:        %.2f%%\n", m.Volatility*100)
	output.Printf("  Sharpe Ratio:      %.2f\n", m.SharpeRatio)
	output.Printf("  Max Drawdown:      %.2f%%\n", m.MaxDrawdown*100)
	output.Println()

	output.Printf("  Closed Positions:  %d\n", m.TotalTrades)
	output.Printf("  Win Rate:          %.1f%%\n", m.WinRate*100)
	if math.IsInf(m.ProfitFactor, 1) {
		output.Printf("  Profit Factor:     ∞ (no losers)\n")
	} else {
		output.Printf("  Profit Factor:     %.2f\n", m.ProfitFactor)
	}
	output.Printf("  Total Fees:        %s\n", FormatIndianCurrency(m.TotalFees))

	if len(m.EquityCurve) > 0 {
		output.Println()
		output.Dim("  %d bars, %s to %s",
			len(m.EquityCurve),
			FormatDate(m.EquityCurve[0].Timestamp),
			FormatDate(m.EquityCurve[len(m.EquityCurve)-1].Timestamp))
	}
}
