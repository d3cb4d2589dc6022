package backtest

import (
	"math"
	"time"

	"wheel-trader/internal/models"
)

const (
	riskFreeRate       = 0.06
	tradingDaysPerYear = 252
)

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// Metrics summarizes a backtest run.
type Metrics struct {
	InitialCapital   float64
	FinalEquity      float64
	TotalReturn      float64 // fraction
	AnnualizedReturn float64
	Volatility       float64 // annualized
	SharpeRatio      float64
	MaxDrawdown      float64 // fraction, positive
	WinRate          float64
	ProfitFactor     float64
	TotalTrades      int
	TotalFees        float64
	EquityCurve      []EquityPoint
}

// ComputeMetrics derives performance metrics from an equity curve and
// the closed positions of the run.
func ComputeMetrics(initial float64, curve []EquityPoint, closed []models.Position) Metrics {
	m := Metrics{
		InitialCapital: initial,
		EquityCurve:    curve,
	}
	if len(curve) == 0 || initial <= 0 {
		return m
	}

	m.FinalEquity = curve[len(curve)-1].Equity
	m.TotalReturn = m.FinalEquity/initial - 1

	days := float64(len(curve))
	years := days / tradingDaysPerYear
	if years > 0 && m.FinalEquity > 0 {
		m.AnnualizedReturn = math.Pow(m.FinalEquity/initial, 1/years) - 1
	}

	// Daily returns for volatility and Sharpe
	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev > 0 {
			returns = append(returns, curve[i].Equity/prev-1)
		}
	}
	if len(returns) > 1 {
		mean := 0.0
		for _, r := range returns {
			mean += r
		}
		mean /= float64(len(returns))

		variance := 0.0
		for _, r := range returns {
			variance += (r - mean) * (r - mean)
		}
		variance /= float64(len(returns) - 1)

		m.Volatility = math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
		if m.Volatility > 0 {
			m.SharpeRatio = (m.AnnualizedReturn - riskFreeRate) / m.Volatility
		}
	}

	// Max drawdown over the curve
	peak := curve[0].Equity
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > m.MaxDrawdown {
				m.MaxDrawdown = dd
			}
		}
	}

	// Trade statistics from closed positions
	var wins, losses int
	var grossProfit, grossLoss float64
	for _, p := range closed {
		m.TotalFees += p.Fees
		switch {
		case p.RealizedPnL > 0:
			wins++
			grossProfit += p.RealizedPnL
		case p.RealizedPnL < 0:
			losses++
			grossLoss += -p.RealizedPnL
		}
	}
	m.TotalTrades = len(closed)
	if m.TotalTrades > 0 {
		m.WinRate = float64(wins) / float64(m.TotalTrades)
	}
	if grossLoss > 0 {
		m.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	return m
}
