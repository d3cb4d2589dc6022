package models

import "time"

// StrategyState is the persisted wheel state for one underlying. It is
// saved after every cycle and reloaded at startup.
type StrategyState struct {
	Symbol            string
	Phase             StrategyPhase
	PositionID        string // open option position, empty outside PUT_OPEN/CALL_OPEN
	SharesQuantity    int    // held shares while in ASSIGNED_SHARES/CALL_OPEN
	ShareEntryPrice   float64
	ConsecutiveErrors int
	CyclesRun         int64
	LastCycleAt       time.Time
	UpdatedAt         time.Time
}

// NewStrategyState returns the initial state for a symbol.
func NewStrategyState(symbol string) *StrategyState {
	return &StrategyState{
		Symbol: symbol,
		Phase:  PhaseNoPosition,
	}
}

// RiskMetrics is a snapshot of current exposure against configured limits.
type RiskMetrics struct {
	Timestamp        time.Time
	OpenPositions    int
	MaxPositions     int
	DailyPnL         float64
	DailyLossLimit   float64
	PortfolioRisk    float64 // fraction of portfolio value at risk
	MaxPortfolioRisk float64
	CashAvailable    float64
	CashReserve      float64
	PortfolioValue   float64
}
