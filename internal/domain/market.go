package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SplitPair splits "btc_usd" into its base and quote currencies.
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPair, pair)
	}
	return parts[0], parts[1], nil
}

// NormalizePair converts display forms like "BTC/USD" into the exchange form "btc_usd".
func NormalizePair(s string) (string, error) {
	pair := strings.ToLower(strings.TrimSpace(s))
	pair = strings.ReplaceAll(pair, "/", "_")
	if _, _, err := SplitPair(pair); err != nil {
		return "", err
	}
	return pair, nil
}

// PairInfo holds trading metadata for one currency pair.
type PairInfo struct {
	DecimalPlaces int             `json:"decimal_places"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	Hidden        bool            `json:"hidden"`
	Fee           decimal.Decimal `json:"fee"` // Percent, e.g. 0.2
}

// MarketInfo is the exchange-wide public info.
type MarketInfo struct {
	ServerTime     time.Time           `json:"server_time"`
	Pairs          map[string]PairInfo `json:"pairs"`
	TradingEnabled bool                `json:"trading_enabled"`
}

// Clone returns a deep copy.
func (m *MarketInfo) Clone() *MarketInfo {
	if m == nil {
		return nil
	}
	out := *m
	out.Pairs = make(map[string]PairInfo, len(m.Pairs))
	for k, v := range m.Pairs {
		out.Pairs[k] = v
	}
	return &out
}

// PriceLevel is one (rate, volume) entry of a depth book.
type PriceLevel struct {
	Rate   decimal.Decimal `json:"rate"`
	Volume decimal.Decimal `json:"volume"`
}

// Value is rate * volume, denominated in the quote currency.
func (l PriceLevel) Value() decimal.Decimal {
	return l.Rate.Mul(l.Volume)
}

// DepthBook is the resting order book of a single pair.
// Asks are ascending by rate, bids descending.
type DepthBook struct {
	Pair string       `json:"pair"`
	Asks []PriceLevel `json:"asks"`
	Bids []PriceLevel `json:"bids"`
}

// Clone returns a deep copy.
func (d *DepthBook) Clone() *DepthBook {
	if d == nil {
		return nil
	}
	return &DepthBook{
		Pair: d.Pair,
		Asks: append([]PriceLevel(nil), d.Asks...),
		Bids: append([]PriceLevel(nil), d.Bids...),
	}
}

// BestAsk returns the lowest ask, if any.
func (d *DepthBook) BestAsk() (PriceLevel, bool) {
	if d == nil || len(d.Asks) == 0 {
		return PriceLevel{}, false
	}
	return d.Asks[0], true
}

// BestBid returns the highest bid, if any.
func (d *DepthBook) BestBid() (PriceLevel, bool) {
	if d == nil || len(d.Bids) == 0 {
		return PriceLevel{}, false
	}
	return d.Bids[0], true
}

// Ticker represents the public 24h ticker of one pair.
type Ticker struct {
	Pair    string          `json:"pair"`
	High    decimal.Decimal `json:"high"`
	Low     decimal.Decimal `json:"low"`
	Avg     decimal.Decimal `json:"avg"`
	Vol     decimal.Decimal `json:"vol"`
	VolCur  decimal.Decimal `json:"vol_cur"`
	Last    decimal.Decimal `json:"last"`
	Buy     decimal.Decimal `json:"buy"`
	Sell    decimal.Decimal `json:"sell"`
	Updated time.Time       `json:"updated"`
}

// Trade is one public trade of a pair.
type Trade struct {
	ID        int64           `json:"tid"`
	Side      string          `json:"type"` // "bid" or "ask"
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}
