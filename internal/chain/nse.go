package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	apperrors "wheel-trader/internal/errors"
	"wheel-trader/internal/models"
)

const nseChainURL = "https://www.nseindia.com/api/option-chain-equities?symbol=%s"

// NSESource fetches option chains from the public NSE option-chain
// endpoint. It is the primary source: free, no auth, and it publishes
// greeks-adjacent fields (IV) plus bid/ask depth.
type NSESource struct {
	client  *http.Client
	lotSize int
}

// NewNSESource creates an NSE chain source. lotSize is stamped on every
// contract since the endpoint does not carry it.
func NewNSESource(lotSize int, timeout time.Duration) *NSESource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NSESource{
		client:  &http.Client{Timeout: timeout},
		lotSize: lotSize,
	}
}

func (s *NSESource) Name() string { return "nse" }

// nseResponse mirrors the fields we use from the NSE payload.
type nseResponse struct {
	Records struct {
		UnderlyingValue float64  `json:"underlyingValue"`
		ExpiryDates     []string `json:"expiryDates"`
		Data            []nseRow `json:"data"`
	} `json:"records"`
}

type nseRow struct {
	StrikePrice float64  `json:"strikePrice"`
	ExpiryDate  string   `json:"expiryDate"`
	PE          *nseSide `json:"PE"`
	CE          *nseSide `json:"CE"`
}

type nseSide struct {
	LastPrice         float64 `json:"lastPrice"`
	OpenInterest      float64 `json:"openInterest"`
	TotalTradedVolume float64 `json:"totalTradedVolume"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	BidPrice          float64 `json:"bidprice"`
	AskPrice          float64 `json:"askPrice"`
}

// Fetch downloads and parses the chain for the nearest expiry.
func (s *NSESource) Fetch(ctx context.Context, symbol string) (*models.OptionChain, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(nseChainURL, symbol), nil)
	if err != nil {
		return nil, apperrors.NewDataError("nse", symbol, "building request", err)
	}
	// NSE rejects requests without a browser-ish user agent
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.NewDataError("nse", symbol, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewDataError("nse", symbol, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var payload nseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, apperrors.NewDataError("nse", symbol, "decoding response", err)
	}

	if len(payload.Records.ExpiryDates) == 0 || payload.Records.UnderlyingValue <= 0 {
		return nil, apperrors.NewDataError("nse", symbol, "empty chain payload", nil)
	}

	// Keep the two nearest expiries: the selector trades the front
	// expiry, the roll evaluator needs the one behind it.
	keep := make(map[string]time.Time, 2)
	for i, raw := range payload.Records.ExpiryDates {
		if i >= 2 {
			break
		}
		expiry, err := time.Parse("02-Jan-2006", raw)
		if err != nil {
			return nil, apperrors.NewDataError("nse", symbol, "parsing expiry", err)
		}
		keep[raw] = expiry
	}
	nearest := keep[payload.Records.ExpiryDates[0]]

	chain := &models.OptionChain{
		Symbol:    symbol,
		SpotPrice: payload.Records.UnderlyingValue,
		Expiry:    nearest,
	}

	for _, row := range payload.Records.Data {
		expiry, ok := keep[row.ExpiryDate]
		if !ok {
			continue
		}
		if row.PE != nil {
			chain.Contracts = append(chain.Contracts, s.contract(symbol, models.OptionPut, row.StrikePrice, expiry, row.PE))
		}
		if row.CE != nil {
			chain.Contracts = append(chain.Contracts, s.contract(symbol, models.OptionCall, row.StrikePrice, expiry, row.CE))
		}
	}

	if len(chain.Contracts) == 0 {
		return nil, apperrors.NewDataError("nse", symbol, "no contracts for nearest expiry", nil)
	}

	return chain, nil
}

func (s *NSESource) contract(symbol string, typ models.OptionType, strike float64, expiry time.Time, side *nseSide) models.OptionContract {
	c := models.OptionContract{
		Symbol:       symbol,
		Type:         typ,
		Strike:       strike,
		Expiry:       expiry,
		LotSize:      s.lotSize,
		LastPrice:    side.LastPrice,
		Bid:          side.BidPrice,
		Ask:          side.AskPrice,
		OpenInterest: int64(side.OpenInterest),
		Volume:       int64(side.TotalTradedVolume),
	}
	if side.ImpliedVolatility > 0 {
		iv := side.ImpliedVolatility
		c.IV = &iv
	}
	return c
}

func sameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
