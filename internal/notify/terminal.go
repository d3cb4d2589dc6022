package notify

import (
	"context"
	"fmt"

	"github.com/fatih/color"
)

// TerminalNotifier prints notifications to the terminal with color.
type TerminalNotifier struct {
	enabled bool
}

// NewTerminalNotifier creates a terminal notification channel.
func NewTerminalNotifier(enabled bool) *TerminalNotifier {
	return &TerminalNotifier{enabled: enabled}
}

// Name returns the name of the notifier.
func (t *TerminalNotifier) Name() string {
	return "terminal"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TerminalNotifier) IsEnabled() bool {
	return t.enabled
}

// Send prints the notification.
func (t *TerminalNotifier) Send(ctx context.Context, n Notification) error {
	if !t.enabled {
		return nil
	}

	var header *color.Color
	switch n.Type {
	case NotificationTrade:
		header = color.New(color.FgGreen, color.Bold)
	case NotificationError:
		header = color.New(color.FgRed, color.Bold)
	case NotificationCritical:
		header = color.New(color.FgWhite, color.BgRed, color.Bold)
	default:
		header = color.New(color.FgCyan)
	}

	header.Printf("%s  %s\n", n.Timestamp.Format("15:04:05"), n.Title)
	if n.Message != "" {
		fmt.Println(n.Message)
	}
	fmt.Println()

	return nil
}

// Ensure TerminalNotifier implements NotificationChannel
var _ NotificationChannel = (*TerminalNotifier)(nil)
