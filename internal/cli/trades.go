// Package cli provides the command-line interface for the wheel trader.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"wheel-trader/internal/models"
	"wheel-trader/internal/store"
)

func newTradesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List executed trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := app.openStore()
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			symbol, _ := cmd.Flags().GetString("symbol")
			trades, err := st.GetTrades(ctx, store.TradeFilter{Symbol: symbol, Limit: limit})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trades)
			}

			if len(trades) == 0 {
				output.Dim("No trades recorded")
				return nil
			}

			table := NewTable(output, "TIME", "SYMBOL", "SIDE", "QTY", "PRICE", "FEES", "TYPE")
			for _, t := range trades {
				sym := t.Tradingsymbol
				if t.Simulated {
					sym += " (sim)"
				}
				table.AddRow(
					FormatDateTime(t.Timestamp),
					sym,
					string(t.Side),
					fmt.Sprintf("%d", t.Quantity),
					fmt.Sprintf("%.2f", t.Price),
					fmt.Sprintf("%.2f", t.Fees),
					string(t.TradeType),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "maximum trades to show")
	cmd.Flags().String("symbol", "", "filter by underlying symbol")
	return cmd
}

func newPositionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List positions and realized P&L",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			st, err := app.openStore()
			if err != nil {
				return err
			}

			all, _ := cmd.Flags().GetBool("all")

			positions, err := st.GetOpenPositions(ctx, "")
			if err != nil {
				return err
			}
			if all {
				closed, err := st.GetClosedPositions(ctx, "")
				if err != nil {
					return err
				}
				positions = append(positions, closed...)
			}

			if output.IsJSON() {
				return output.JSON(positions)
			}
			if len(positions) == 0 {
				output.Dim("No positions")
				return nil
			}

			table := NewTable(output, "SYMBOL", "TYPE", "STRIKE", "EXPIRY", "QTY", "STATUS", "P&L")
			var totalPnL float64
			for _, p := range positions {
				pnl := "-"
				if p.Status != models.PositionOpen {
					pnl = output.FormatPnLColored(p.RealizedPnL)
					totalPnL += p.RealizedPnL
				}
				table.AddRow(
					p.Tradingsymbol, string(p.Type),
					fmt.Sprintf("%.2f", p.Strike), FormatDate(p.Expiry),
					fmt.Sprintf("%d", p.Quantity), string(p.Status), pnl,
				)
			}
			table.Render()
			if all {
				output.Println()
				output.Printf("Total realized P&L: %s\n", output.FormatPnLColored(totalPnL))
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "include closed positions")
	return cmd
}
