package models

import "time"

// StrategyPhase is the wheel state machine phase for one underlying.
type StrategyPhase string

const (
	PhaseNoPosition     StrategyPhase = "NO_POSITION"
	PhasePutOpen        StrategyPhase = "PUT_OPEN"
	PhaseAssignedShares StrategyPhase = "ASSIGNED_SHARES"
	PhaseCallOpen       StrategyPhase = "CALL_OPEN"
)

// PositionStatus represents the lifecycle status of an option position.
type PositionStatus string

const (
	PositionOpen     PositionStatus = "OPEN"
	PositionClosed   PositionStatus = "CLOSED"
	PositionRolled   PositionStatus = "ROLLED"
	PositionAssigned PositionStatus = "ASSIGNED"
)

// Position represents a short option position (one wheel leg).
type Position struct {
	ID            string
	Symbol        string
	Tradingsymbol string
	Type          OptionType
	Strike        float64
	Expiry        time.Time
	Quantity      int // contracts, multiple of lot size
	LotSize       int
	EntryPremium  float64 // per-unit premium collected at open
	ExitPremium   float64 // per-unit premium paid at close, 0 while open
	Status        PositionStatus
	OpenedAt      time.Time
	ClosedAt      *time.Time
	RealizedPnL   float64
	Fees          float64
	RolledTo      string // successor position ID when Status is ROLLED
}

// UnrealizedPnL returns the mark-to-market P&L for a short position
// against the current per-unit premium.
func (p *Position) UnrealizedPnL(currentPremium float64) float64 {
	return (p.EntryPremium - currentPremium) * float64(p.Quantity)
}

// PremiumCollected returns the total premium received at open.
func (p *Position) PremiumCollected() float64 {
	return p.EntryPremium * float64(p.Quantity)
}

// MaxLoss returns the worst-case loss of the short leg: full assignment
// value for a put, unlimited-capped-at-notional proxy for a covered call.
func (p *Position) MaxLoss() float64 {
	return p.Strike*float64(p.Quantity) - p.PremiumCollected()
}

// RollAction is what the roll evaluator decided for an open position.
type RollAction string

const (
	RollHold  RollAction = "HOLD"
	RollClose RollAction = "CLOSE"
	RollOut   RollAction = "ROLL"
)

// RollDecision carries the roll evaluation outcome and, for RollOut,
// the replacement contract.
type RollDecision struct {
	Action      RollAction
	Reason      string
	Replacement *OptionContract
}
