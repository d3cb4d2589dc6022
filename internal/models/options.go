package models

import (
	"math"
	"time"
)

// OptionType identifies a contract as a put or a call.
type OptionType string

const (
	OptionPut  OptionType = "PE"
	OptionCall OptionType = "CE"
)

// OptionContract represents a single option contract quote. Delta and IV
// are nil when the data source does not publish greeks; Bid and Ask are
// zero when no depth is available.
type OptionContract struct {
	Symbol        string
	Tradingsymbol string
	Type          OptionType
	Strike        float64
	Expiry        time.Time
	LotSize       int
	LastPrice     float64
	Bid           float64
	Ask           float64
	OpenInterest  int64
	Volume        int64
	Delta         *float64
	IV            *float64
}

// IntrinsicValue returns the contract's intrinsic value at the given spot.
func (c OptionContract) IntrinsicValue(spot float64) float64 {
	switch c.Type {
	case OptionPut:
		return math.Max(0, c.Strike-spot)
	case OptionCall:
		return math.Max(0, spot-c.Strike)
	}
	return 0
}

// IsITM reports whether the contract is in the money at the given spot.
func (c OptionContract) IsITM(spot float64) bool {
	return c.IntrinsicValue(spot) > 0
}

// IsOTM reports whether the contract is out of the money at the given spot.
func (c OptionContract) IsOTM(spot float64) bool {
	switch c.Type {
	case OptionPut:
		return c.Strike < spot
	case OptionCall:
		return c.Strike > spot
	}
	return false
}

// DaysToExpiry returns whole days remaining until expiry, never negative.
func (c OptionContract) DaysToExpiry(now time.Time) int {
	d := int(c.Expiry.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// OptionChain represents a fetched option chain for one underlying.
type OptionChain struct {
	Symbol    string
	SpotPrice float64
	Expiry    time.Time
	FetchedAt time.Time
	Contracts []OptionContract
}

// Puts returns the put contracts in the chain.
func (oc *OptionChain) Puts() []OptionContract {
	return oc.byType(OptionPut)
}

// Calls returns the call contracts in the chain.
func (oc *OptionChain) Calls() []OptionContract {
	return oc.byType(OptionCall)
}

func (oc *OptionChain) byType(t OptionType) []OptionContract {
	out := make([]OptionContract, 0, len(oc.Contracts)/2)
	for _, c := range oc.Contracts {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
