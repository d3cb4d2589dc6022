// Package cli provides the command-line interface for the wheel trader.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wheel-trader/internal/models"
	"wheel-trader/pkg/utils"
)

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wheel state and risk utilization",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := app.openStore()
			if err != nil {
				return err
			}

			state, err := st.GetState(ctx, app.Config.Strategy.Symbol)
			if err != nil {
				return err
			}
			open, err := st.GetOpenPositions(ctx, "")
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"state":          state,
					"open_positions": open,
				})
			}

			clock := utils.NewMarketClock(
				app.Config.Market.OpenHour, app.Config.Market.OpenMinute,
				app.Config.Market.CloseHour, app.Config.Market.CloseMinute, nil)

			output.Bold("Wheel Status: %s", state.Symbol)
			output.Printf("  Market:        %s\n", output.MarketStatus(clock.IsOpen()))
			output.Printf("  Phase:         %s\n", phaseLabel(state.Phase))
			if state.SharesQuantity > 0 {
				output.Printf("  Shares Held:   %d @ %s\n",
					state.SharesQuantity, FormatIndianCurrency(state.ShareEntryPrice))
			}
			output.Printf("  Cycles Run:    %d\n", state.CyclesRun)
			if !state.LastCycleAt.IsZero() {
				output.Printf("  Last Cycle:    %s\n", FormatDateTime(state.LastCycleAt))
			}
			output.Println()

			if len(open) == 0 {
				output.Dim("No open positions")
			} else {
				output.Bold("Open Positions")
				table := NewTable(output, "SYMBOL", "TYPE", "STRIKE", "EXPIRY", "QTY", "ENTRY", "MAX LOSS")
				for _, p := range open {
					table.AddRow(
						p.Tradingsymbol,
						string(p.Type),
						fmt.Sprintf("%.2f", p.Strike),
						FormatDate(p.Expiry),
						fmt.Sprintf("%d", p.Quantity),
						fmt.Sprintf("%.2f", p.EntryPremium),
						FormatIndianCurrency(p.MaxLoss()),
					)
				}
				table.Render()
			}

			// Margin-backed risk report only works with a live session
			if app.Zerodha != nil && app.Zerodha.IsAuthenticated() {
				margins, err := app.Zerodha.GetMargins(ctx)
				if err != nil {
					output.Warning("Could not fetch margins: %v", err)
					return nil
				}
				output.Println()
				output.Bold("Account")
				output.Printf("  Cash:          %s\n", FormatIndianCurrency(margins.Cash))
				output.Printf("  Collateral:    %s\n", FormatIndianCurrency(margins.Collateral))
				output.Printf("  Used Margin:   %s\n", FormatIndianCurrency(margins.Used))
				output.Printf("  Available:     %s\n", FormatIndianCurrency(margins.Available()))
			}
			return nil
		},
	}
}

func phaseLabel(phase models.StrategyPhase) string {
	switch phase {
	case models.PhaseNoPosition:
		return "NO_POSITION (ready to sell put)"
	case models.PhasePutOpen:
		return "PUT_OPEN (short put working)"
	case models.PhaseAssignedShares:
		return "ASSIGNED_SHARES (ready to sell call)"
	case models.PhaseCallOpen:
		return "CALL_OPEN (covered call working)"
	default:
		return string(phase)
	}
}
