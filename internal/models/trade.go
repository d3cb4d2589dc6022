package models

import "time"

// TradeType categorizes a trade for the fee schedule.
type TradeType string

const (
	TradeIntraday TradeType = "intraday"
	TradeDelivery TradeType = "delivery"
	TradeFNO      TradeType = "fno"
)

// Trade represents a single executed order leg.
type Trade struct {
	ID            string
	PositionID    string
	OrderID       string
	Timestamp     time.Time
	Symbol        string
	Tradingsymbol string
	Exchange      Exchange
	Side          OrderSide
	Quantity      int
	Price         float64
	Fees          float64
	TradeType     TradeType
	Simulated     bool
}

// Notional returns price times quantity.
func (t Trade) Notional() float64 {
	return t.Price * float64(t.Quantity)
}

// OrderIntent is a fully-specified order the strategy wants to place,
// submitted to the risk gate before any broker call.
type OrderIntent struct {
	Symbol         string
	Tradingsymbol  string
	Exchange       Exchange
	Side           OrderSide
	Quantity       int
	Price          float64
	Product        ProductType
	RequiredMargin float64
	MaxLoss        float64
	Contract       *OptionContract
	Reason         string
}
