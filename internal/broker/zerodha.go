package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// ZerodhaBroker implements the Broker interface for Zerodha Kite Connect.
type ZerodhaBroker struct {
	client        *kiteconnect.Client
	apiKey        string
	apiSecret     string
	userID        string
	accessToken   string
	tokenPath     string
	authenticated bool
	mu            sync.RWMutex
}

// ZerodhaConfig holds configuration for Zerodha broker.
type ZerodhaConfig struct {
	APIKey    string
	APISecret string
	UserID    string
	TokenPath string
}

// NewZerodhaBroker creates a new Zerodha broker instance.
// It automatically loads any saved session from disk.
func NewZerodhaBroker(cfg ZerodhaConfig) *ZerodhaBroker {
	client := kiteconnect.New(cfg.APIKey)

	tokenPath := cfg.TokenPath
	if tokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		tokenPath = filepath.Join(homeDir, ".config", "wheel-trader", "session.json")
	}

	zb := &ZerodhaBroker{
		client:    client,
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		userID:    cfg.UserID,
		tokenPath: tokenPath,
	}

	_ = zb.loadSession()

	return zb
}

// sessionData represents persisted session data.
type sessionData struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Login verifies the persisted session or reports the login URL the
// user must visit to complete the OAuth flow.
func (z *ZerodhaBroker) Login(ctx context.Context) error {
	if err := z.loadSession(); err == nil && z.IsAuthenticated() {
		if _, err := z.client.GetUserProfile(); err == nil {
			return nil
		}
	}

	loginURL := z.client.GetLoginURL()
	return fmt.Errorf("authentication required: please visit %s and complete login, then call CompleteLogin with the request token: %w", loginURL, apperrors.ErrNotAuthenticated)
}

// CompleteLogin completes the OAuth flow with the request token.
func (z *ZerodhaBroker) CompleteLogin(ctx context.Context, requestToken string) error {
	session, err := z.client.GenerateSession(requestToken, z.apiSecret)
	if err != nil {
		return apperrors.NewBrokerError("login", "", "failed to generate session", err)
	}

	z.mu.Lock()
	z.accessToken = session.AccessToken
	z.authenticated = true
	z.client.SetAccessToken(session.AccessToken)
	z.mu.Unlock()

	if err := z.saveSession(session.AccessToken); err != nil {
		// Session is still valid in memory
		fmt.Printf("warning: failed to persist session: %v\n", err)
	}

	return nil
}

// IsAuthenticated returns whether the broker is authenticated.
func (z *ZerodhaBroker) IsAuthenticated() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.authenticated
}

// GetLoginURL returns the Zerodha login URL for OAuth.
func (z *ZerodhaBroker) GetLoginURL() string {
	return z.client.GetLoginURL()
}

func (z *ZerodhaBroker) loadSession() error {
	data, err := os.ReadFile(z.tokenPath)
	if err != nil {
		return err
	}

	var session sessionData
	if err := json.Unmarshal(data, &session); err != nil {
		return err
	}

	// Zerodha tokens expire at 6 AM IST next day
	if time.Now().After(session.ExpiresAt) {
		return fmt.Errorf("session expired")
	}

	z.mu.Lock()
	z.accessToken = session.AccessToken
	z.authenticated = true
	z.client.SetAccessToken(session.AccessToken)
	z.mu.Unlock()

	return nil
}

func (z *ZerodhaBroker) saveSession(accessToken string) error {
	dir := filepath.Dir(z.tokenPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	loc, _ := time.LoadLocation("Asia/Kolkata")
	now := time.Now().In(loc)
	expiresAt := time.Date(now.Year(), now.Month(), now.Day()+1, 6, 0, 0, 0, loc)

	session := sessionData{
		AccessToken: accessToken,
		UserID:      z.userID,
		ExpiresAt:   expiresAt,
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return os.WriteFile(z.tokenPath, data, 0600)
}

// GetQuote fetches real-time quote for an exchange-qualified symbol.
func (z *ZerodhaBroker) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if !z.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	quotes, err := z.client.GetQuote(symbol)
	if err != nil {
		return nil, apperrors.NewBrokerError("quote", symbol, "failed to get quote", err)
	}

	q, ok := quotes[symbol]
	if !ok {
		return nil, apperrors.NewBrokerError("quote", symbol, "quote not found in response", nil)
	}

	changePercent := 0.0
	if q.OHLC.Close > 0 {
		changePercent = (q.NetChange / q.OHLC.Close) * 100
	}

	return &models.Quote{
		Symbol:        symbol,
		LTP:           q.LastPrice,
		Open:          q.OHLC.Open,
		High:          q.OHLC.High,
		Low:           q.OHLC.Low,
		Close:         q.OHLC.Close,
		Volume:        int64(q.Volume),
		Change:        q.NetChange,
		ChangePercent: changePercent,
		Timestamp:     q.LastTradeTime.Time,
	}, nil
}

// GetInstruments fetches all instruments for an exchange.
func (z *ZerodhaBroker) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	if !z.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	instruments, err := z.client.GetInstruments()
	if err != nil {
		return nil, apperrors.NewBrokerError("instruments", string(exchange), "failed to get instruments", err)
	}

	var result []models.Instrument
	for _, inst := range instruments {
		if inst.Exchange != string(exchange) {
			continue
		}
		result = append(result, models.Instrument{
			Token:     uint32(inst.InstrumentToken),
			Symbol:    inst.Tradingsymbol,
			Name:      inst.Name,
			Exchange:  models.Exchange(inst.Exchange),
			Segment:   inst.Segment,
			LotSize:   int(inst.LotSize),
			TickSize:  inst.TickSize,
			Expiry:    inst.Expiry.Time,
			Strike:    inst.StrikePrice,
			InstrType: inst.InstrumentType,
		})
	}

	return result, nil
}

// GetMargins fetches equity segment margin balances.
func (z *ZerodhaBroker) GetMargins(ctx context.Context) (*models.Margins, error) {
	if !z.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	margins, err := z.client.GetUserMargins()
	if err != nil {
		return nil, apperrors.NewBrokerError("margins", "", "failed to get margins", err)
	}

	equity := margins.Equity

	return &models.Margins{
		Cash:       equity.Available.Cash,
		Collateral: equity.Available.Collateral,
		Used:       equity.Used.Debits,
		Net:        equity.Net,
	}, nil
}

// PlaceOrder places a regular day-validity order.
func (z *ZerodhaBroker) PlaceOrder(ctx context.Context, intent *models.OrderIntent) (*OrderResult, error) {
	if !z.IsAuthenticated() {
		return nil, apperrors.ErrNotAuthenticated
	}

	orderType := string(models.OrderTypeMarket)
	if intent.Price > 0 {
		orderType = string(models.OrderTypeLimit)
	}

	params := kiteconnect.OrderParams{
		Exchange:        string(intent.Exchange),
		Tradingsymbol:   intent.Tradingsymbol,
		TransactionType: string(intent.Side),
		OrderType:       orderType,
		Product:         string(intent.Product),
		Quantity:        intent.Quantity,
		Price:           intent.Price,
		Validity:        "DAY",
	}

	resp, err := z.client.PlaceOrder(kiteconnect.VarietyRegular, params)
	if err != nil {
		return nil, apperrors.NewBrokerError("place_order", intent.Tradingsymbol, "failed to place order", err)
	}

	return &OrderResult{
		OrderID:     resp.OrderID,
		Status:      "PLACED",
		FilledPrice: intent.Price,
		Message:     "Order placed successfully",
	}, nil
}

// Ensure ZerodhaBroker implements Broker interface
var _ Broker = (*ZerodhaBroker)(nil)
