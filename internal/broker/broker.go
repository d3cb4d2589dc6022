// Package broker provides broker integration interfaces and implementations.
package broker

import (
	"context"

	"wheel-trader/internal/models"
)

// Broker is the surface the wheel engine needs from a brokerage. Every
// call can block on the network and takes a context.
type Broker interface {
	// GetMargins fetches account margin balances.
	GetMargins(ctx context.Context) (*models.Margins, error)

	// GetQuote fetches a quote for an exchange-qualified symbol
	// like "NSE:TCS" or "NFO:TCS24SEP3200PE".
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// GetInstruments fetches the instrument master for an exchange.
	GetInstruments(ctx context.Context, exchange models.Exchange) ([]models.Instrument, error)

	// PlaceOrder submits an order and returns the broker order ID.
	PlaceOrder(ctx context.Context, intent *models.OrderIntent) (*OrderResult, error)
}

// OrderResult represents the result of an order placement.
type OrderResult struct {
	OrderID     string
	Status      string
	FilledPrice float64 // average fill price when known, else intent price
	Message     string
}
