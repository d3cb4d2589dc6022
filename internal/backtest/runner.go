package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"wheel-trader/internal/broker"
	"wheel-trader/internal/config"
	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
	"wheel-trader/internal/notify"
	"wheel-trader/internal/store"
	"wheel-trader/internal/strategy"
	"wheel-trader/pkg/utils"
)

// Bar is one daily OHLCV row of underlying history.
type Bar struct {
	Date   string  `csv:"date"` // 2006-01-02
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

// Day parses the bar's date in the Indian market timezone.
func (b Bar) Day() (time.Time, error) {
	return time.ParseInLocation("2006-01-02", b.Date, utils.IndiaLocation)
}

// LoadBars reads daily bars from a CSV file, oldest first.
func LoadBars(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError("csv", path, "opening bar file", err)
	}
	defer f.Close()

	var bars []Bar
	if err := gocsv.UnmarshalFile(f, &bars); err != nil {
		return nil, apperrors.NewDataError("csv", path, "parsing bar file", err)
	}
	if len(bars) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrInsufficientData, "no bars in %s", path)
	}
	return bars, nil
}

// Runner replays daily bars through the live strategy engine: the same
// cycle logic runs against a paper broker and synthetic option chains,
// with fills simulated bar by bar.
type Runner struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(cfg *config.Config, logger zerolog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run replays the bars at barsPath and returns the run's metrics. State
// and trades are written to a throwaway SQLite database.
func (r *Runner) Run(ctx context.Context, barsPath string) (*Metrics, error) {
	bars, err := LoadBars(barsPath)
	if err != nil {
		return nil, err
	}

	dbDir, err := os.MkdirTemp("", "wheeler-backtest-*")
	if err != nil {
		return nil, fmt.Errorf("creating backtest workspace: %w", err)
	}
	defer os.RemoveAll(dbDir)

	st, err := store.NewSQLiteStore(filepath.Join(dbDir, "backtest.db"))
	if err != nil {
		return nil, err
	}
	defer st.Close()

	sim := NewSimulator(r.cfg.Backtest.SlippageBps, r.cfg.Backtest.BarVolumeCap)
	paper := broker.NewPaperBroker(r.cfg.Backtest.InitialCapital, func(intent *models.OrderIntent) (float64, error) {
		if intent.Contract != nil {
			return sim.FillAt(intent.Side, intent.Price, RangeFromContract(*intent.Contract))
		}
		// Close legs carry no contract snapshot; slip against the quote
		return sim.SlippedPrice(intent.Side, intent.Price), nil
	})

	synth := NewSynthProvider(DefaultSynthConfig(r.cfg.Strategy.Symbol, r.cfg.Strategy.QuantityPerLot))

	var fees strategy.FeeModel
	if r.cfg.Backtest.IncludeFees {
		fees = NewFeeSchedule(r.cfg.Fees)
	}

	band := r.cfg.ResolveDeltaBand()
	engine := strategy.NewEngine(
		strategy.EngineConfig{
			Symbol:               r.cfg.Strategy.Symbol,
			Exchange:             models.NFO,
			LotSize:              r.cfg.Strategy.QuantityPerLot,
			ProfitTarget:         r.cfg.Strategy.ProfitTargetPercentage,
			LossLimit:            r.cfg.Strategy.LossLimitPercentage,
			Simulated:            true,
			MaxConsecutiveErrors: r.cfg.Engine.MaxConsecutiveErrs,
		},
		paper,
		synth,
		st,
		notify.NewNoOpNotifier(),
		strategy.NewStrikeSelector(strategy.SelectorConfig{
			DeltaLow:        band.Low,
			DeltaHigh:       band.High,
			MinOpenInterest: r.cfg.Strategy.MinOpenInterest,
		}),
		strategy.NewPositionSizer(r.cfg.Risk.RiskPerTradePercent, r.cfg.Strategy.QuantityPerLot),
		strategy.NewRiskGate(strategy.Limits{
			MinCashReserve:         r.cfg.Risk.MinCashReserve,
			MaxConcurrentPositions: r.cfg.Risk.MaxConcurrentPositions,
			MaxDailyLossLimit:      r.cfg.Risk.MaxDailyLossLimit,
			MaxPortfolioRisk:       r.cfg.Risk.MaxPortfolioRisk,
		}),
		strategy.NewRollEvaluator(strategy.RollConfig{
			Enabled:         r.cfg.Strategy.EnableAutoRoll,
			ThresholdDays:   r.cfg.Strategy.RollThresholdDays,
			MinOpenInterest: r.cfg.Strategy.MinOpenInterest,
			DeltaLow:        band.Low,
			DeltaHigh:       band.High,
		}),
		utils.NewMarketClock(r.cfg.Market.OpenHour, r.cfg.Market.OpenMinute,
			r.cfg.Market.CloseHour, r.cfg.Market.CloseMinute, nil),
		fees,
		r.logger,
	)

	var current time.Time
	engine.SetClock(func() time.Time { return current })

	state := models.NewStrategyState(r.cfg.Strategy.Symbol)
	var curve []EquityPoint

	for _, bar := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		day, err := bar.Day()
		if err != nil {
			return nil, apperrors.NewDataError("csv", barsPath, fmt.Sprintf("bad date %q", bar.Date), err)
		}
		// Mid-morning, safely inside the session
		current = day.Add(10*time.Hour + 30*time.Minute)

		synth.Advance(current, bar.Close)
		paper.SetQuote(models.Quote{
			Symbol:    r.cfg.Strategy.Symbol,
			LTP:       bar.Close,
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			Volume:    bar.Volume,
			Timestamp: current,
		})

		prevShares := state.SharesQuantity

		if err := engine.RunCycle(ctx, state); err != nil {
			switch {
			case apperrors.Is(err, apperrors.ErrMarketClosed):
				// Weekend or holiday bar, nothing to do
			case apperrors.IsSkip(err):
				r.logger.Debug().Str("date", bar.Date).Err(err).Msg("Cycle skipped")
			default:
				r.logger.Warn().Str("date", bar.Date).Err(err).Msg("Cycle failed")
			}
		}
		if err := st.SaveState(ctx, state); err != nil {
			return nil, err
		}

		if err := r.settleShareLegs(ctx, st, paper, state, prevShares); err != nil {
			return nil, err
		}

		equity, err := r.markToMarket(ctx, st, paper, synth, state, bar.Close)
		if err != nil {
			return nil, err
		}
		curve = append(curve, EquityPoint{Timestamp: current, Equity: equity})
	}

	closed, err := st.GetClosedPositions(ctx, r.cfg.Strategy.Symbol)
	if err != nil {
		return nil, err
	}

	m := ComputeMetrics(r.cfg.Backtest.InitialCapital, curve, closed)
	return &m, nil
}

// settleShareLegs reconciles assignment share flows into the paper cash
// balance: the engine books the trades but the broker never sees them.
func (r *Runner) settleShareLegs(ctx context.Context, st store.DataStore, paper *broker.PaperBroker, state *models.StrategyState, prevShares int) error {
	switch {
	case state.SharesQuantity > prevShares:
		// Put assignment: shares bought at the strike
		bought := state.SharesQuantity - prevShares
		paper.AdjustCash(-float64(bought) * state.ShareEntryPrice)

	case state.SharesQuantity < prevShares:
		// Shares called away: credit the sale at the recorded price
		trades, err := st.GetTrades(ctx, store.TradeFilter{Symbol: r.cfg.Strategy.Symbol, Limit: 10})
		if err != nil {
			return err
		}
		for _, t := range trades {
			if t.TradeType == models.TradeDelivery && t.Side == models.OrderSideSell {
				paper.AdjustCash(t.Price * float64(prevShares-state.SharesQuantity))
				break
			}
		}
	}
	return nil
}

// markToMarket values the account: cash, held shares at the close, and
// the liability of any open short leg at its current premium.
func (r *Runner) markToMarket(ctx context.Context, st store.DataStore, paper *broker.PaperBroker, synth *SynthProvider, state *models.StrategyState, closePrice float64) (float64, error) {
	equity := paper.Cash() + float64(state.SharesQuantity)*closePrice

	if state.PositionID == "" {
		return equity, nil
	}

	pos, err := st.GetPosition(ctx, state.PositionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrPositionNotFound) {
			return equity, nil
		}
		return 0, err
	}

	liability := pos.EntryPremium
	if oc, err := synth.GetChain(ctx, pos.Symbol); err == nil {
		for _, c := range oc.Contracts {
			if c.Type == pos.Type && c.Strike == pos.Strike {
				liability = c.LastPrice
				break
			}
		}
	}
	return equity - liability*float64(pos.Quantity), nil
}
