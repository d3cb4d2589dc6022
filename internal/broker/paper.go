package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// FillFunc decides the executed price for a simulated order. It returns
// ErrNoFill (wrapped or bare) when the order cannot execute.
type FillFunc func(intent *models.OrderIntent) (float64, error)

// PaperBroker implements the Broker interface against simulated cash
// and quotes. Backtests and dry runs both route orders through it; the
// fill function is supplied by the backtest simulator, or left nil for
// fill-at-intent-price behaviour.
type PaperBroker struct {
	cash        float64
	usedMargin  float64
	quotes      map[string]models.Quote
	instruments map[models.Exchange][]models.Instrument
	fill        FillFunc

	orderCounter int

	mu sync.RWMutex
}

// NewPaperBroker creates a simulated broker with the given starting cash.
func NewPaperBroker(initialCash float64, fill FillFunc) *PaperBroker {
	if initialCash <= 0 {
		initialCash = 1000000 // 10 lakhs default
	}
	return &PaperBroker{
		cash:         initialCash,
		quotes:       make(map[string]models.Quote),
		instruments:  make(map[models.Exchange][]models.Instrument),
		orderCounter: 1000,
		fill:         fill,
	}
}

// SetQuote sets the current quote for a symbol.
func (p *PaperBroker) SetQuote(q models.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[q.Symbol] = q
}

// SetInstruments sets the instrument master for an exchange.
func (p *PaperBroker) SetInstruments(exchange models.Exchange, instruments []models.Instrument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.instruments[exchange] = instruments
}

// AdjustCash credits (or debits, when negative) the simulated account.
func (p *PaperBroker) AdjustCash(amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash += amount
}

// Cash returns the current simulated cash balance.
func (p *PaperBroker) Cash() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cash
}

// GetMargins returns the simulated margin balances.
func (p *PaperBroker) GetMargins(ctx context.Context) (*models.Margins, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return &models.Margins{
		Cash: p.cash,
		Used: p.usedMargin,
		Net:  p.cash - p.usedMargin,
	}, nil
}

// GetQuote returns the last quote set for the symbol.
func (p *PaperBroker) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	q, ok := p.quotes[symbol]
	if !ok {
		return nil, apperrors.NewDataError("paper", symbol, "no quote loaded", nil)
	}
	return &q, nil
}

// GetInstruments returns the loaded instrument master.
func (p *PaperBroker) GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inst, ok := p.instruments[exchange]
	if !ok {
		return nil, apperrors.NewDataError("paper", string(exchange), "no instruments loaded", nil)
	}
	return inst, nil
}

// PlaceOrder executes the order against the fill function and settles
// the premium into the simulated cash balance.
func (p *PaperBroker) PlaceOrder(ctx context.Context, intent *models.OrderIntent) (*OrderResult, error) {
	price := intent.Price
	if p.fill != nil {
		var err error
		price, err = p.fill(intent)
		if err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	notional := price * float64(intent.Quantity)
	switch intent.Side {
	case models.OrderSideSell:
		p.cash += notional
	case models.OrderSideBuy:
		p.cash -= notional
	}

	p.orderCounter++
	return &OrderResult{
		OrderID:     fmt.Sprintf("SIM-%d-%d", time.Now().Unix(), p.orderCounter),
		Status:      "COMPLETE",
		FilledPrice: price,
		Message:     "Simulated fill",
	}, nil
}

// Ensure PaperBroker implements Broker interface
var _ Broker = (*PaperBroker)(nil)
