package strategy

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wheel-trader/internal/broker"
	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/logging"
	"wheel-trader/internal/models"
	"wheel-trader/internal/notify"
	"wheel-trader/internal/store"
	"wheel-trader/pkg/utils"
)

// ChainProvider is the slice of the chain package the engine needs.
type ChainProvider interface {
	GetChain(ctx context.Context, symbol string) (*models.OptionChain, error)
	Invalidate(symbol string)
}

// FeeModel computes transaction costs for one order leg.
type FeeModel interface {
	Charge(side models.OrderSide, price float64, quantity int) float64
}

// EngineConfig holds the engine's strategy parameters.
type EngineConfig struct {
	Symbol               string
	Exchange             models.Exchange
	LotSize              int
	ProfitTarget         float64 // close when premium decayed by this fraction
	LossLimit            float64 // close when premium rose by this fraction
	DryRun               bool
	Simulated            bool // mark trades as simulated (backtest or dry run)
	KillSwitchFile       string
	MaxConsecutiveErrors int
	RunInterval          time.Duration
}

// Engine drives the wheel state machine for one underlying. One cycle
// is strictly sequential: no cycle overlaps another, and every error is
// contained within the cycle that raised it.
type Engine struct {
	cfg      EngineConfig
	broker   broker.Broker
	chains   ChainProvider
	store    store.DataStore
	notifier notify.Notifier
	selector *StrikeSelector
	sizer    *PositionSizer
	gate     *RiskGate
	roller   *RollEvaluator
	clock    *utils.MarketClock
	fees     FeeModel
	logger   zerolog.Logger
	now      func() time.Time
}

// NewEngine wires the engine from its collaborators. fees may be nil,
// in which case trades carry zero fees.
func NewEngine(
	cfg EngineConfig,
	b broker.Broker,
	chains ChainProvider,
	st store.DataStore,
	notifier notify.Notifier,
	selector *StrikeSelector,
	sizer *PositionSizer,
	gate *RiskGate,
	roller *RollEvaluator,
	clock *utils.MarketClock,
	fees FeeModel,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		cfg:      cfg,
		broker:   b,
		chains:   chains,
		store:    st,
		notifier: notifier,
		selector: selector,
		sizer:    sizer,
		gate:     gate,
		roller:   roller,
		clock:    clock,
		fees:     fees,
		logger:   logging.WithSymbol(logger, cfg.Symbol),
		now:      time.Now,
	}
}

// SetClock overrides the engine's time source, for tests and backtests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Run executes cycles at the configured interval until the context is
// cancelled or the kill switch halts trading.
func (e *Engine) Run(ctx context.Context) error {
	state, err := e.store.GetState(ctx, e.cfg.Symbol)
	if err != nil {
		return apperrors.Wrap(err, "loading strategy state")
	}

	e.logger.Info().
		Str("phase", string(state.Phase)).
		Int64("cycles_run", state.CyclesRun).
		Msg("Engine starting")

	ticker := time.NewTicker(e.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := e.RunCycle(ctx, state); err != nil {
			if apperrors.Is(err, apperrors.ErrKillSwitch) {
				e.logger.Warn().Msg("Kill switch active, halting trading")
				_ = e.notifier.SendCritical(ctx, fmt.Sprintf("Kill switch %s detected, trading halted", e.cfg.KillSwitchFile))
				return err
			}
			e.handleCycleError(ctx, state, err)
		} else {
			state.ConsecutiveErrors = 0
		}

		state.CyclesRun++
		state.LastCycleAt = e.now()
		if err := e.store.SaveState(ctx, state); err != nil {
			e.logger.Error().Err(err).Msg("Failed to persist strategy state")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// handleCycleError classifies a cycle error: skips are logged and
// forgotten, everything else counts toward the consecutive-error alert.
func (e *Engine) handleCycleError(ctx context.Context, state *models.StrategyState, err error) {
	if apperrors.IsSkip(err) {
		logging.LogCycleSkip(e.logger, e.cfg.Symbol, err.Error())
		return
	}

	state.ConsecutiveErrors++
	e.logger.Error().
		Err(err).
		Int("consecutive_errors", state.ConsecutiveErrors).
		Msg("Cycle failed")
	_ = e.notifier.SendError(ctx, err, "strategy cycle")

	if state.ConsecutiveErrors >= e.cfg.MaxConsecutiveErrors {
		msg := fmt.Sprintf("%d consecutive cycle errors on %s, last: %v",
			state.ConsecutiveErrors, e.cfg.Symbol, err)
		e.logger.Error().Msg(msg)
		_ = e.notifier.SendCritical(ctx, msg)
		state.ConsecutiveErrors = 0
	}
}

// RunCycle executes exactly one strategy cycle against the given state.
// The state is mutated in place; the caller persists it.
func (e *Engine) RunCycle(ctx context.Context, state *models.StrategyState) error {
	if e.killSwitchActive() {
		return apperrors.ErrKillSwitch
	}

	if !e.clock.IsOpenAt(e.now()) {
		return apperrors.Wrap(apperrors.ErrMarketClosed, "outside trading window")
	}

	oc, err := e.chains.GetChain(ctx, e.cfg.Symbol)
	if err != nil {
		return err
	}

	switch state.Phase {
	case models.PhaseNoPosition:
		return e.handleNoPosition(ctx, state, oc)
	case models.PhasePutOpen:
		return e.handleOpenLeg(ctx, state, oc, models.OptionPut)
	case models.PhaseAssignedShares:
		return e.handleAssignedShares(ctx, state, oc)
	case models.PhaseCallOpen:
		return e.handleOpenLeg(ctx, state, oc, models.OptionCall)
	default:
		return fmt.Errorf("unknown strategy phase %q", state.Phase)
	}
}

func (e *Engine) killSwitchActive() bool {
	if e.cfg.KillSwitchFile == "" {
		return false
	}
	_, err := os.Stat(e.cfg.KillSwitchFile)
	return err == nil
}

// handleNoPosition sells a cash-secured put when sizing and risk allow.
func (e *Engine) handleNoPosition(ctx context.Context, state *models.StrategyState, oc *models.OptionChain) error {
	contract, err := e.selector.Select(oc, models.OptionPut)
	if err != nil {
		return err
	}

	margins, err := e.broker.GetMargins(ctx)
	if err != nil {
		return apperrors.Wrap(err, "fetching margins")
	}

	qty := e.sizer.Quantity(margins.Available(), contract.Strike)
	if qty == 0 {
		logging.LogCycleSkip(e.logger, e.cfg.Symbol,
			fmt.Sprintf("risk budget too small for one lot at strike %.2f", contract.Strike))
		return nil
	}

	intent := e.sellIntent(contract, qty)
	intent.RequiredMargin = contract.Strike * float64(qty)
	intent.MaxLoss = contract.Strike*float64(qty) - contract.LastPrice*float64(qty)

	pos, err := e.openLeg(ctx, margins, intent, contract, qty)
	if err != nil {
		return err
	}
	if pos == nil {
		return nil // risk gate rejected, logged inside
	}

	state.Phase = models.PhasePutOpen
	state.PositionID = pos.ID
	return nil
}

// handleAssignedShares sells a covered call against held shares.
func (e *Engine) handleAssignedShares(ctx context.Context, state *models.StrategyState, oc *models.OptionChain) error {
	if state.SharesQuantity <= 0 {
		// Shouldn't happen; recover by restarting the wheel
		e.logger.Warn().Msg("ASSIGNED_SHARES with no shares, resetting to NO_POSITION")
		state.Phase = models.PhaseNoPosition
		return nil
	}

	contract, err := e.selector.Select(oc, models.OptionCall)
	if err != nil {
		return err
	}

	margins, err := e.broker.GetMargins(ctx)
	if err != nil {
		return apperrors.Wrap(err, "fetching margins")
	}

	qty := state.SharesQuantity
	intent := e.sellIntent(contract, qty)
	// Shares cover the call; only a strike below cost basis locks a loss
	intent.RequiredMargin = 0
	intent.MaxLoss = math.Max(0, state.ShareEntryPrice-contract.Strike) * float64(qty)

	pos, err := e.openLeg(ctx, margins, intent, contract, qty)
	if err != nil {
		return err
	}
	if pos == nil {
		return nil
	}

	state.Phase = models.PhaseCallOpen
	state.PositionID = pos.ID
	return nil
}

// handleOpenLeg manages an open short leg: expiry settlement, profit
// target, auto-roll, stop loss.
func (e *Engine) handleOpenLeg(ctx context.Context, state *models.StrategyState, oc *models.OptionChain, typ models.OptionType) error {
	pos, err := e.store.GetPosition(ctx, state.PositionID)
	if err != nil {
		return apperrors.Wrapf(err, "loading position %s", state.PositionID)
	}

	now := e.now()
	if now.After(endOfDay(pos.Expiry)) {
		return e.settleExpiry(ctx, state, pos, oc.SpotPrice)
	}

	current, ok := e.currentPremium(oc, pos)
	if !ok {
		return apperrors.Wrapf(apperrors.ErrDataUnavailable, "no quote for %s strike %.2f", typ, pos.Strike)
	}

	// Profit target first: a winner is banked before anything else
	if current <= pos.EntryPremium*(1-e.cfg.ProfitTarget) {
		if err := e.closeLeg(ctx, state, pos, current, "profit target reached", models.PositionClosed); err != nil {
			return err
		}
		return nil
	}

	decision := e.roller.Evaluate(pos, oc, current, now)
	switch decision.Action {
	case models.RollOut:
		return e.executeRoll(ctx, state, pos, current, decision)
	case models.RollClose:
		return e.closeLeg(ctx, state, pos, current, decision.Reason, models.PositionClosed)
	}

	if current >= pos.EntryPremium*(1+e.cfg.LossLimit) {
		return e.closeLeg(ctx, state, pos, current, "stop loss hit", models.PositionClosed)
	}

	e.logger.Debug().
		Float64("entry_premium", pos.EntryPremium).
		Float64("current_premium", current).
		Msg("Holding open leg")
	return nil
}

// settleExpiry resolves an expired short leg: assignment when it ended
// in the money, worthless expiry otherwise.
func (e *Engine) settleExpiry(ctx context.Context, state *models.StrategyState, pos *models.Position, spot float64) error {
	itm := models.OptionContract{Type: pos.Type, Strike: pos.Strike}.IsITM(spot)

	if !itm {
		// Full premium kept, no closing order needed
		if err := e.markClosed(ctx, pos, 0, models.PositionClosed, 0); err != nil {
			return err
		}
		_ = e.notifier.SendPositionClosed(ctx, pos, "expired worthless")

		if pos.Type == models.OptionPut {
			state.Phase = models.PhaseNoPosition
		} else {
			state.Phase = models.PhaseAssignedShares
		}
		state.PositionID = ""
		return nil
	}

	switch pos.Type {
	case models.OptionPut:
		// Assigned: buy shares at strike, option premium is kept
		if err := e.markClosed(ctx, pos, 0, models.PositionAssigned, 0); err != nil {
			return err
		}
		if err := e.recordShareTrade(ctx, pos, models.OrderSideBuy, pos.Strike); err != nil {
			return err
		}
		state.Phase = models.PhaseAssignedShares
		state.SharesQuantity = pos.Quantity
		state.ShareEntryPrice = pos.Strike
		_ = e.notifier.SendPositionClosed(ctx, pos, fmt.Sprintf("assigned %d shares at %.2f", pos.Quantity, pos.Strike))

	case models.OptionCall:
		// Called away: shares delivered at strike
		sharePnL := (pos.Strike - state.ShareEntryPrice) * float64(pos.Quantity)
		if err := e.markClosed(ctx, pos, 0, models.PositionAssigned, sharePnL); err != nil {
			return err
		}
		if err := e.recordShareTrade(ctx, pos, models.OrderSideSell, pos.Strike); err != nil {
			return err
		}
		state.Phase = models.PhaseNoPosition
		state.SharesQuantity = 0
		state.ShareEntryPrice = 0
		_ = e.notifier.SendPositionClosed(ctx, pos, fmt.Sprintf("shares called away at %.2f", pos.Strike))
	}

	state.PositionID = ""
	return nil
}

// executeRoll closes the current leg and opens the replacement. The
// close always happens; if the risk gate rejects the new leg the old
// position stays CLOSED rather than ROLLED.
func (e *Engine) executeRoll(ctx context.Context, state *models.StrategyState, pos *models.Position, currentPremium float64, decision models.RollDecision) error {
	e.logger.Info().Str("reason", decision.Reason).Msg("Rolling position")

	if err := e.closeLeg(ctx, state, pos, currentPremium, decision.Reason, models.PositionClosed); err != nil {
		return err
	}

	replacement := decision.Replacement
	margins, err := e.broker.GetMargins(ctx)
	if err != nil {
		return apperrors.Wrap(err, "fetching margins for roll leg")
	}

	intent := e.sellIntent(replacement, pos.Quantity)
	if replacement.Type == models.OptionPut {
		intent.RequiredMargin = replacement.Strike * float64(pos.Quantity)
		intent.MaxLoss = (replacement.Strike - replacement.LastPrice) * float64(pos.Quantity)
	} else {
		intent.RequiredMargin = 0
		intent.MaxLoss = math.Max(0, state.ShareEntryPrice-replacement.Strike) * float64(pos.Quantity)
	}

	newPos, err := e.openLeg(ctx, margins, intent, replacement, pos.Quantity)
	if err != nil {
		return err
	}
	if newPos == nil {
		// Gate rejected the new leg; the roll degrades to a plain close
		e.logger.Warn().Msg("Roll aborted after close, new leg rejected by risk gate")
		return nil
	}

	pos.Status = models.PositionRolled
	pos.RolledTo = newPos.ID
	if err := e.store.SavePosition(ctx, pos); err != nil {
		return apperrors.Wrap(err, "marking position rolled")
	}

	if replacement.Type == models.OptionPut {
		state.Phase = models.PhasePutOpen
	} else {
		state.Phase = models.PhaseCallOpen
	}
	state.PositionID = newPos.ID

	logging.LogRoll(e.logger, pos.Symbol, pos.Strike, newPos.Strike, pos.Expiry, newPos.Expiry)
	_ = e.notifier.SendRoll(ctx, pos, newPos)
	return nil
}

// openLeg risk-checks and places a sell-to-open order, returning the
// persisted position, or nil when the gate rejected the intent.
func (e *Engine) openLeg(ctx context.Context, margins *models.Margins, intent *models.OrderIntent, contract *models.OptionContract, qty int) (*models.Position, error) {
	exp, err := e.exposure(ctx, margins)
	if err != nil {
		return nil, err
	}

	decision := e.gate.Check(exp, intent)
	if !decision.Approved {
		logging.LogRiskRejection(e.logger, e.cfg.Symbol, decision.Rule, decision.Reason)
		return nil, nil
	}

	result, err := e.placeOrder(ctx, intent)
	if err != nil {
		return nil, err
	}

	fees := e.charge(intent.Side, result.FilledPrice, qty)
	now := e.now()

	pos := &models.Position{
		ID:            uuid.NewString(),
		Symbol:        e.cfg.Symbol,
		Tradingsymbol: intent.Tradingsymbol,
		Type:          contract.Type,
		Strike:        contract.Strike,
		Expiry:        contract.Expiry,
		Quantity:      qty,
		LotSize:       e.cfg.LotSize,
		EntryPremium:  result.FilledPrice,
		Status:        models.PositionOpen,
		OpenedAt:      now,
		Fees:          fees,
	}
	if err := e.store.SavePosition(ctx, pos); err != nil {
		return nil, apperrors.Wrap(err, "saving position")
	}

	trade := &models.Trade{
		ID:            uuid.NewString(),
		PositionID:    pos.ID,
		OrderID:       result.OrderID,
		Timestamp:     now,
		Symbol:        e.cfg.Symbol,
		Tradingsymbol: intent.Tradingsymbol,
		Exchange:      intent.Exchange,
		Side:          intent.Side,
		Quantity:      qty,
		Price:         result.FilledPrice,
		Fees:          fees,
		TradeType:     models.TradeFNO,
		Simulated:     e.cfg.Simulated || e.cfg.DryRun,
	}
	if err := e.store.SaveTrade(ctx, trade); err != nil {
		return nil, apperrors.Wrap(err, "saving trade")
	}

	logging.LogTrade(e.logger, trade.Tradingsymbol, string(trade.Side), qty, result.FilledPrice)
	_ = e.notifier.SendTrade(ctx, trade)
	return pos, nil
}

// closeLeg buys back an open short leg and settles the wheel phase.
func (e *Engine) closeLeg(ctx context.Context, state *models.StrategyState, pos *models.Position, exitPremium float64, reason string, status models.PositionStatus) error {
	intent := &models.OrderIntent{
		Symbol:        pos.Symbol,
		Tradingsymbol: pos.Tradingsymbol,
		Exchange:      e.cfg.Exchange,
		Side:          models.OrderSideBuy,
		Quantity:      pos.Quantity,
		Price:         exitPremium,
		Product:       models.ProductNRML,
		Reason:        reason,
	}

	result, err := e.placeOrder(ctx, intent)
	if err != nil {
		return err
	}

	fees := e.charge(models.OrderSideBuy, result.FilledPrice, pos.Quantity)
	now := e.now()

	trade := &models.Trade{
		ID:            uuid.NewString(),
		PositionID:    pos.ID,
		OrderID:       result.OrderID,
		Timestamp:     now,
		Symbol:        pos.Symbol,
		Tradingsymbol: pos.Tradingsymbol,
		Exchange:      e.cfg.Exchange,
		Side:          models.OrderSideBuy,
		Quantity:      pos.Quantity,
		Price:         result.FilledPrice,
		Fees:          fees,
		TradeType:     models.TradeFNO,
		Simulated:     e.cfg.Simulated || e.cfg.DryRun,
	}
	if err := e.store.SaveTrade(ctx, trade); err != nil {
		return apperrors.Wrap(err, "saving close trade")
	}

	// Exit-leg fees must land on the position before the P&L is computed
	pos.Fees += fees
	if err := e.markClosed(ctx, pos, result.FilledPrice, status, 0); err != nil {
		return err
	}

	logging.LogTrade(e.logger, trade.Tradingsymbol, string(trade.Side), pos.Quantity, result.FilledPrice)
	_ = e.notifier.SendPositionClosed(ctx, pos, reason)

	if pos.Type == models.OptionPut {
		state.Phase = models.PhaseNoPosition
	} else {
		state.Phase = models.PhaseAssignedShares
	}
	state.PositionID = ""
	return nil
}

// markClosed finalizes a position row. extraPnL carries P&L realized
// outside the option leg, like the share leg of a call assignment.
func (e *Engine) markClosed(ctx context.Context, pos *models.Position, exitPremium float64, status models.PositionStatus, extraPnL float64) error {
	now := e.now()
	pos.ExitPremium = exitPremium
	pos.Status = status
	pos.ClosedAt = &now
	pos.RealizedPnL = (pos.EntryPremium-exitPremium)*float64(pos.Quantity) - pos.Fees + extraPnL
	if err := e.store.SavePosition(ctx, pos); err != nil {
		return apperrors.Wrap(err, "closing position")
	}
	return nil
}

// recordShareTrade books the share leg of an assignment.
func (e *Engine) recordShareTrade(ctx context.Context, pos *models.Position, side models.OrderSide, price float64) error {
	trade := &models.Trade{
		ID:            uuid.NewString(),
		PositionID:    pos.ID,
		Timestamp:     e.now(),
		Symbol:        pos.Symbol,
		Tradingsymbol: pos.Symbol,
		Exchange:      models.NSE,
		Side:          side,
		Quantity:      pos.Quantity,
		Price:         price,
		TradeType:     models.TradeDelivery,
		Simulated:     e.cfg.Simulated || e.cfg.DryRun,
	}
	if err := e.store.SaveTrade(ctx, trade); err != nil {
		return apperrors.Wrap(err, "saving assignment trade")
	}
	return nil
}

// placeOrder routes an intent to the broker, or fabricates a fill in
// dry-run mode.
func (e *Engine) placeOrder(ctx context.Context, intent *models.OrderIntent) (*broker.OrderResult, error) {
	if e.cfg.DryRun {
		e.logger.Info().
			Str("side", string(intent.Side)).
			Str("tradingsymbol", intent.Tradingsymbol).
			Int("quantity", intent.Quantity).
			Float64("price", intent.Price).
			Msg("Dry run, order not sent")
		return &broker.OrderResult{
			OrderID:     fmt.Sprintf("DRY-%d", e.now().UnixNano()),
			Status:      "SIMULATED",
			FilledPrice: intent.Price,
			Message:     "dry run",
		}, nil
	}
	return e.broker.PlaceOrder(ctx, intent)
}

// exposure assembles the risk gate's account snapshot.
func (e *Engine) exposure(ctx context.Context, margins *models.Margins) (Exposure, error) {
	open, err := e.store.CountOpenPositions(ctx)
	if err != nil {
		return Exposure{}, apperrors.Wrap(err, "counting open positions")
	}
	risk, err := e.store.OpenRiskAmount(ctx)
	if err != nil {
		return Exposure{}, apperrors.Wrap(err, "summing open risk")
	}
	daily, err := e.store.DailyRealizedPnL(ctx, e.now())
	if err != nil {
		return Exposure{}, apperrors.Wrap(err, "summing daily pnl")
	}

	return Exposure{
		Margins:        *margins,
		OpenPositions:  open,
		DailyPnL:       daily,
		OpenRiskAmount: risk,
		PortfolioValue: margins.Available(),
	}, nil
}

// RiskReport returns the current risk metrics snapshot.
func (e *Engine) RiskReport(ctx context.Context) (*models.RiskMetrics, error) {
	margins, err := e.broker.GetMargins(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "fetching margins")
	}
	exp, err := e.exposure(ctx, margins)
	if err != nil {
		return nil, err
	}
	m := e.gate.Metrics(exp)
	m.Timestamp = e.now()
	return &m, nil
}

func (e *Engine) sellIntent(contract *models.OptionContract, qty int) *models.OrderIntent {
	return &models.OrderIntent{
		Symbol:        e.cfg.Symbol,
		Tradingsymbol: contract.Tradingsymbol,
		Exchange:      e.cfg.Exchange,
		Side:          models.OrderSideSell,
		Quantity:      qty,
		Price:         contract.LastPrice,
		Product:       models.ProductNRML,
		Contract:      contract,
	}
}

func (e *Engine) charge(side models.OrderSide, price float64, qty int) float64 {
	if e.fees == nil {
		return 0
	}
	return e.fees.Charge(side, price, qty)
}

// currentPremium finds the chain quote matching an open position.
func (e *Engine) currentPremium(oc *models.OptionChain, pos *models.Position) (float64, bool) {
	for _, c := range oc.Contracts {
		if c.Type == pos.Type && c.Strike == pos.Strike && sameDay(c.Expiry, pos.Expiry) {
			if c.LastPrice > 0 {
				return c.LastPrice, true
			}
		}
	}
	return 0, false
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
