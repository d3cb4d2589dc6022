package chain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wheel-trader/internal/broker"
	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// KiteSource builds an option chain from the broker's instrument master
// plus per-contract quotes. It is the fallback: slower (one quote call
// per strike) and greeks-free, but it works whenever the broker session
// is live.
type KiteSource struct {
	broker      broker.Broker
	strikeSpan  float64 // fraction of spot around ATM to include
	instruments []models.Instrument
	fetchedAt   time.Time
}

// NewKiteSource creates a broker-backed chain source.
func NewKiteSource(b broker.Broker) *KiteSource {
	return &KiteSource{
		broker:     b,
		strikeSpan: 0.20,
	}
}

func (s *KiteSource) Name() string { return "kite" }

// Fetch assembles the chain for the nearest expiry.
func (s *KiteSource) Fetch(ctx context.Context, symbol string) (*models.OptionChain, error) {
	spot, err := s.broker.GetQuote(ctx, fmt.Sprintf("NSE:%s", symbol))
	if err != nil {
		return nil, apperrors.NewDataError("kite", symbol, "fetching spot", err)
	}
	if spot.LTP <= 0 {
		return nil, apperrors.NewDataError("kite", symbol, "zero spot price", nil)
	}

	instruments, err := s.instrumentMaster(ctx)
	if err != nil {
		return nil, apperrors.NewDataError("kite", symbol, "fetching instruments", err)
	}

	var options []models.Instrument
	for _, inst := range instruments {
		if inst.Name != symbol {
			continue
		}
		if inst.InstrType != "PE" && inst.InstrType != "CE" {
			continue
		}
		if inst.Expiry.Before(time.Now()) {
			continue
		}
		options = append(options, inst)
	}
	if len(options) == 0 {
		return nil, apperrors.NewDataError("kite", symbol, "no option instruments", nil)
	}

	sort.Slice(options, func(i, j int) bool { return options[i].Expiry.Before(options[j].Expiry) })
	nearest := options[0].Expiry
	var next time.Time
	for _, inst := range options {
		if inst.Expiry.After(nearest) {
			next = inst.Expiry
			break
		}
	}

	chain := &models.OptionChain{
		Symbol:    symbol,
		SpotPrice: spot.LTP,
		Expiry:    nearest,
	}

	lo := spot.LTP * (1 - s.strikeSpan)
	hi := spot.LTP * (1 + s.strikeSpan)

	for _, inst := range options {
		// Front expiry for selection plus the one behind it for rolls
		if !sameDay(inst.Expiry, nearest) && (next.IsZero() || !sameDay(inst.Expiry, next)) {
			continue
		}
		// Bound quote calls to strikes the selector could ever pick
		if inst.Strike < lo || inst.Strike > hi {
			continue
		}

		quote, err := s.broker.GetQuote(ctx, fmt.Sprintf("NFO:%s", inst.Symbol))
		if err != nil {
			continue
		}

		chain.Contracts = append(chain.Contracts, models.OptionContract{
			Symbol:        symbol,
			Tradingsymbol: inst.Symbol,
			Type:          models.OptionType(inst.InstrType),
			Strike:        inst.Strike,
			Expiry:        inst.Expiry,
			LotSize:       inst.LotSize,
			LastPrice:     quote.LTP,
			Volume:        quote.Volume,
		})
	}

	if len(chain.Contracts) == 0 {
		return nil, apperrors.NewDataError("kite", symbol, "no quotable contracts near ATM", nil)
	}

	return chain, nil
}

// instrumentMaster caches the NFO instrument dump for the session day.
func (s *KiteSource) instrumentMaster(ctx context.Context) ([]models.Instrument, error) {
	if s.instruments != nil && time.Since(s.fetchedAt) < 12*time.Hour {
		return s.instruments, nil
	}
	instruments, err := s.broker.GetInstruments(ctx, models.NFO)
	if err != nil {
		return nil, err
	}
	s.instruments = instruments
	s.fetchedAt = time.Now()
	return instruments, nil
}
