// Package cli provides the command-line interface for the wheel trader.
package cli

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

func newAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Zerodha Kite Connect authentication",
	}
	cmd.AddCommand(newLoginCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	return cmd
}

func newLoginCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to Zerodha Kite Connect",
		Long: `Login to Zerodha Kite Connect via the OAuth flow.

Opens the Kite login page in a browser; after logging in, pass the
request_token from the redirect URL back with --token to complete the
session. The access token is cached until the next market day.`,
		Example: `  wheeler auth login
  wheeler auth login --token=<request_token>`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			if app.Zerodha == nil {
				output.Error("Broker not configured. Please check your credentials.toml")
				return fmt.Errorf("broker not configured")
			}

			if token, _ := cmd.Flags().GetString("token"); token != "" {
				if err := app.Zerodha.CompleteLogin(ctx, token); err != nil {
					output.Error("Login failed: %v", err)
					return err
				}
				output.Success("✓ Login successful, session cached")
				return nil
			}

			if app.Zerodha.IsAuthenticated() {
				output.Success("✓ Already logged in")
				return nil
			}

			loginURL := app.Zerodha.GetLoginURL()
			output.Info("Opening Zerodha login page...")
			output.Println()
			output.Bold("Login URL:")
			output.Println(loginURL)
			output.Println()
			output.Println("After logging in, run:")
			output.Println("  wheeler auth login --token=<request_token>")

			if err := openURL(loginURL); err != nil {
				output.Warning("Could not open browser automatically")
			}
			return nil
		},
	}
	cmd.Flags().String("token", "", "request token from the redirect URL")
	return cmd
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			authenticated := app.Zerodha != nil && app.Zerodha.IsAuthenticated()
			if output.IsJSON() {
				return output.JSON(map[string]bool{"authenticated": authenticated})
			}

			if authenticated {
				output.Success("✓ Authenticated with Zerodha")
			} else if app.Zerodha == nil {
				output.Warning("Broker not configured")
			} else {
				output.Warning("Not authenticated. Run 'wheeler auth login'")
			}
			return nil
		},
	}
}

// openURL opens a URL in the default browser.
func openURL(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
