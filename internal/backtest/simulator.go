package backtest

import (
	"math"

	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

// PriceRange is the band a bar supports: bid/ask when depth exists,
// low/high otherwise.
type PriceRange struct {
	Low    float64
	High   float64
	Volume int64
}

// RangeFromContract derives the supported band for an option quote,
// preferring bid/ask depth over a synthetic band.
func RangeFromContract(c models.OptionContract) PriceRange {
	if c.Bid > 0 && c.Ask > 0 && c.Ask >= c.Bid {
		return PriceRange{Low: c.Bid, High: c.Ask, Volume: c.Volume}
	}
	// No depth: assume a band around the last trade
	return PriceRange{
		Low:    c.LastPrice * 0.97,
		High:   c.LastPrice * 1.03,
		Volume: c.Volume,
	}
}

// Fill is one executed slice of an order.
type Fill struct {
	Quantity int
	Price    float64
}

// Simulator models order execution against historical bars: slippage
// always moves the price against the order, and an order only fills
// when the slipped price is inside the bar's supported range.
type Simulator struct {
	SlippageBps  float64
	BarVolumeCap float64 // max fraction of a bar's volume one fill may take, 0 disables
}

// NewSimulator creates a fill simulator.
func NewSimulator(slippageBps, barVolumeCap float64) *Simulator {
	return &Simulator{
		SlippageBps:  slippageBps,
		BarVolumeCap: barVolumeCap,
	}
}

// SlippedPrice applies slippage against the order: sells receive less,
// buys pay more.
func (s *Simulator) SlippedPrice(side models.OrderSide, price float64) float64 {
	slip := price * s.SlippageBps / 10000
	if side == models.OrderSideSell {
		return price - slip
	}
	return price + slip
}

// FillAt executes the whole order against a single bar range. It
// returns ErrNoFill when the slipped price falls outside the range.
func (s *Simulator) FillAt(side models.OrderSide, price float64, r PriceRange) (float64, error) {
	slipped := s.SlippedPrice(side, price)
	if slipped < r.Low || slipped > r.High {
		return 0, apperrors.Wrapf(apperrors.ErrNoFill, "slipped price %.4f outside range [%.4f, %.4f]", slipped, r.Low, r.High)
	}
	return slipped, nil
}

// FillOrder executes an order across consecutive bars, splitting it
// when it exceeds the per-bar volume cap. Returns the fills achieved
// and ErrNoFill (with partial fills) when quantity remains after the
// last bar.
func (s *Simulator) FillOrder(side models.OrderSide, price float64, quantity int, bars []PriceRange) ([]Fill, error) {
	if quantity <= 0 || len(bars) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrNoFill, "nothing to fill")
	}

	remaining := quantity
	var fills []Fill

	for _, bar := range bars {
		if remaining == 0 {
			break
		}

		fillPrice, err := s.FillAt(side, price, bar)
		if err != nil {
			continue
		}

		take := remaining
		if s.BarVolumeCap > 0 && bar.Volume > 0 {
			cap := int(math.Floor(s.BarVolumeCap * float64(bar.Volume)))
			if cap == 0 {
				continue
			}
			if take > cap {
				take = cap
			}
		}

		fills = append(fills, Fill{Quantity: take, Price: fillPrice})
		remaining -= take
	}

	if remaining > 0 {
		return fills, apperrors.Wrapf(apperrors.ErrNoFill, "%d of %d unfilled after %d bars", remaining, quantity, len(bars))
	}
	return fills, nil
}

// AveragePrice returns the volume-weighted price across fills.
func AveragePrice(fills []Fill) float64 {
	var qty int
	var value float64
	for _, f := range fills {
		qty += f.Quantity
		value += f.Price * float64(f.Quantity)
	}
	if qty == 0 {
		return 0
	}
	return value / float64(qty)
}
