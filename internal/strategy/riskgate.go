package strategy

import (
	"fmt"
	"math"

	"wheel-trader/internal/models"
)

// Risk gate rule names, in check order.
const (
	RuleCashReserve    = "cash_reserve"
	RulePositionCount  = "position_count"
	RuleDailyLoss      = "daily_loss"
	RulePortfolioRisk  = "portfolio_risk"
)

// Limits holds the risk gate's configured limits.
type Limits struct {
	MinCashReserve         float64
	MaxConcurrentPositions int
	MaxDailyLossLimit      float64
	MaxPortfolioRisk       float64 // fraction of portfolio value
}

// Exposure is the account snapshot the gate evaluates against. The
// gate is a pure function of Exposure and the intent, so re-checking
// the same snapshot always yields the same decision.
type Exposure struct {
	Margins        models.Margins
	OpenPositions  int
	DailyPnL       float64 // realized, today
	OpenRiskAmount float64 // sum of MaxLoss across open positions
	PortfolioValue float64
}

// Decision is the gate's verdict on one order intent.
type Decision struct {
	Approved bool
	Rule     string // failing rule, empty when approved
	Reason   string
}

// RiskGate applies the ordered pre-trade checks.
type RiskGate struct {
	limits Limits
}

// NewRiskGate creates a gate with the given limits.
func NewRiskGate(limits Limits) *RiskGate {
	return &RiskGate{limits: limits}
}

// Check runs the checks in order and returns the first failure. Order:
// cash reserve, open position count, projected daily loss, portfolio
// fractional risk.
func (g *RiskGate) Check(exp Exposure, intent *models.OrderIntent) Decision {
	free := exp.Margins.Available() - g.limits.MinCashReserve
	if free < intent.RequiredMargin {
		return Decision{
			Rule: RuleCashReserve,
			Reason: fmt.Sprintf("free cash %.2f after reserve %.2f is below required margin %.2f",
				free, g.limits.MinCashReserve, intent.RequiredMargin),
		}
	}

	if exp.OpenPositions >= g.limits.MaxConcurrentPositions {
		return Decision{
			Rule: RulePositionCount,
			Reason: fmt.Sprintf("open positions %d at limit %d",
				exp.OpenPositions, g.limits.MaxConcurrentPositions),
		}
	}

	realizedLoss := math.Max(0, -exp.DailyPnL)
	projected := realizedLoss + intent.MaxLoss
	if projected > g.limits.MaxDailyLossLimit {
		return Decision{
			Rule: RuleDailyLoss,
			Reason: fmt.Sprintf("projected daily loss %.2f exceeds limit %.2f",
				projected, g.limits.MaxDailyLossLimit),
		}
	}

	if exp.PortfolioValue > 0 {
		risk := (exp.OpenRiskAmount + intent.MaxLoss) / exp.PortfolioValue
		if risk > g.limits.MaxPortfolioRisk {
			return Decision{
				Rule: RulePortfolioRisk,
				Reason: fmt.Sprintf("portfolio risk %.4f exceeds limit %.4f",
					risk, g.limits.MaxPortfolioRisk),
			}
		}
	}

	return Decision{Approved: true}
}

// Metrics builds a RiskMetrics snapshot from an exposure.
func (g *RiskGate) Metrics(exp Exposure) models.RiskMetrics {
	risk := 0.0
	if exp.PortfolioValue > 0 {
		risk = exp.OpenRiskAmount / exp.PortfolioValue
	}
	return models.RiskMetrics{
		OpenPositions:    exp.OpenPositions,
		MaxPositions:     g.limits.MaxConcurrentPositions,
		DailyPnL:         exp.DailyPnL,
		DailyLossLimit:   g.limits.MaxDailyLossLimit,
		PortfolioRisk:    risk,
		MaxPortfolioRisk: g.limits.MaxPortfolioRisk,
		CashAvailable:    exp.Margins.Available(),
		CashReserve:      g.limits.MinCashReserve,
		PortfolioValue:   exp.PortfolioValue,
	}
}
