// Package notify provides notification functionality for the wheel engine.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"wheel-trader/internal/config"
	"wheel-trader/internal/models"
	"wheel-trader/pkg/utils"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendTrade(ctx context.Context, trade *models.Trade) error
	SendPositionClosed(ctx context.Context, position *models.Position, reason string) error
	SendRoll(ctx context.Context, old, new *models.Position) error
	SendError(ctx context.Context, err error, context string) error
	SendCritical(ctx context.Context, message string) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTrade    NotificationType = "trade"
	NotificationError    NotificationType = "error"
	NotificationCritical NotificationType = "critical"
	NotificationInfo     NotificationType = "info"
)

// NotificationLevel represents the notification level filter.
type NotificationLevel string

const (
	LevelAll        NotificationLevel = "all"
	LevelTradesOnly NotificationLevel = "trades_only"
	LevelErrorsOnly NotificationLevel = "errors_only"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	level    NotificationLevel
	mu       sync.RWMutex
}

// NewMultiNotifier creates a new MultiNotifier with the given configuration.
func NewMultiNotifier(cfg *config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		level:    NotificationLevel(cfg.Level),
	}

	if mn.level == "" {
		mn.level = LevelAll
	}

	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// shouldSend checks if a notification should be sent based on the
// level filter. Critical alerts always go out.
func (mn *MultiNotifier) shouldSend(notifType NotificationType) bool {
	if notifType == NotificationCritical {
		return true
	}
	switch mn.level {
	case LevelTradesOnly:
		return notifType == NotificationTrade
	case LevelErrorsOnly:
		return notifType == NotificationError
	default:
		return true
	}
}

// Send sends a notification to all enabled channels. Delivery is best
// effort: channel failures are reported but never block the caller's
// trading flow.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if !mn.shouldSend(n.Type) {
		return nil
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, n); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendTrade sends a trade notification.
func (mn *MultiNotifier) SendTrade(ctx context.Context, trade *models.Trade) error {
	title := fmt.Sprintf("🔔 Trade Executed: %s %s", trade.Side, trade.Tradingsymbol)
	message := fmt.Sprintf(
		"Symbol: %s\nAction: %s\nQuantity: %d\nPrice: %s\nFees: %s",
		trade.Tradingsymbol,
		trade.Side,
		trade.Quantity,
		formatCurrency(trade.Price),
		formatCurrency(trade.Fees),
	)
	if trade.Simulated {
		title = "[SIM] " + title
	}

	return mn.Send(ctx, Notification{
		Type:    NotificationTrade,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"symbol":    trade.Symbol,
			"side":      trade.Side,
			"quantity":  trade.Quantity,
			"price":     trade.Price,
			"fees":      trade.Fees,
			"simulated": trade.Simulated,
		},
	})
}

// SendPositionClosed sends a position close notification with P&L.
func (mn *MultiNotifier) SendPositionClosed(ctx context.Context, position *models.Position, reason string) error {
	pnlEmoji := "💰"
	if position.RealizedPnL < 0 {
		pnlEmoji = "📉"
	}

	title := fmt.Sprintf("%s Position Closed: %s", pnlEmoji, position.Tradingsymbol)
	message := fmt.Sprintf(
		"Symbol: %s\nStrike: %.2f %s\nEntry premium: %s\nExit premium: %s\nRealized P&L: %s\nReason: %s",
		position.Tradingsymbol,
		position.Strike,
		position.Type,
		formatCurrency(position.EntryPremium),
		formatCurrency(position.ExitPremium),
		formatCurrency(position.RealizedPnL),
		reason,
	)

	return mn.Send(ctx, Notification{
		Type:    NotificationTrade,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"symbol":       position.Symbol,
			"strike":       position.Strike,
			"realized_pnl": position.RealizedPnL,
			"status":       position.Status,
			"reason":       reason,
		},
	})
}

// SendRoll sends a roll notification.
func (mn *MultiNotifier) SendRoll(ctx context.Context, old, new *models.Position) error {
	title := fmt.Sprintf("🔄 Position Rolled: %s", old.Symbol)
	message := fmt.Sprintf(
		"Old: %.2f %s exp %s\nNew: %.2f %s exp %s\nRealized on old leg: %s",
		old.Strike, old.Type, old.Expiry.Format("02-Jan-2006"),
		new.Strike, new.Type, new.Expiry.Format("02-Jan-2006"),
		formatCurrency(old.RealizedPnL),
	)

	return mn.Send(ctx, Notification{
		Type:    NotificationTrade,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"symbol":     old.Symbol,
			"old_strike": old.Strike,
			"new_strike": new.Strike,
			"old_expiry": old.Expiry,
			"new_expiry": new.Expiry,
		},
	})
}

// SendError sends an error notification.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	title := "❌ Error Occurred"
	message := fmt.Sprintf("Context: %s\nError: %v\nTime: %s",
		errContext, err, time.Now().Format("15:04:05"))

	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"context": errContext,
			"error":   err.Error(),
		},
	})
}

// SendCritical sends a critical alert that bypasses the level filter.
func (mn *MultiNotifier) SendCritical(ctx context.Context, message string) error {
	return mn.Send(ctx, Notification{
		Type:    NotificationCritical,
		Title:   "🚨 Critical Alert",
		Message: message,
	})
}

// formatCurrency formats a currency value with Indian numbering.
func formatCurrency(amount float64) string {
	return utils.FormatIndianCurrency(amount)
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send sends a notification via webhook.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "WheelTrader/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// NoOpNotifier is a notifier that does nothing (for testing or disabled notifications).
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

func (n *NoOpNotifier) Send(ctx context.Context, notif Notification) error { return nil }

func (n *NoOpNotifier) SendTrade(ctx context.Context, trade *models.Trade) error { return nil }

func (n *NoOpNotifier) SendPositionClosed(ctx context.Context, position *models.Position, reason string) error {
	return nil
}

func (n *NoOpNotifier) SendRoll(ctx context.Context, old, new *models.Position) error { return nil }

func (n *NoOpNotifier) SendError(ctx context.Context, err error, context string) error { return nil }

func (n *NoOpNotifier) SendCritical(ctx context.Context, message string) error { return nil }

// Ensure implementations satisfy Notifier
var (
	_ Notifier = (*MultiNotifier)(nil)
	_ Notifier = (*NoOpNotifier)(nil)
)
