// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"wheel-trader/internal/models"
)

// DataStore defines the persistence surface the engine needs: trades
// and positions append-only, strategy state latest-row per symbol.
type DataStore interface {
	// Trades
	SaveTrade(ctx context.Context, trade *models.Trade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.Trade, error)

	// Positions
	SavePosition(ctx context.Context, position *models.Position) error
	GetPosition(ctx context.Context, id string) (*models.Position, error)
	GetOpenPositions(ctx context.Context, symbol string) ([]models.Position, error)
	GetClosedPositions(ctx context.Context, symbol string) ([]models.Position, error)
	CountOpenPositions(ctx context.Context) (int, error)
	OpenRiskAmount(ctx context.Context) (float64, error)
	DailyRealizedPnL(ctx context.Context, day time.Time) (float64, error)

	// Strategy state
	SaveState(ctx context.Context, state *models.StrategyState) error
	GetState(ctx context.Context, symbol string) (*models.StrategyState, error)

	// Lifecycle
	Close() error
}

// TradeFilter represents filters for querying trades.
type TradeFilter struct {
	Symbol     string
	PositionID string
	StartDate  time.Time
	EndDate    time.Time
	Side       string
	Simulated  *bool
	Limit      int
}
