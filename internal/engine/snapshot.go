package engine

import (
	"time"

	"btce_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Pending reports which consumer commands are in flight.
type Pending struct {
	Buying     bool `json:"buying"`
	Selling    bool `json:"selling"`
	Cancelling bool `json:"cancelling"`
}

// Updated holds when each field was last written.
type Updated struct {
	Info    time.Time `json:"info"`
	Depth   time.Time `json:"depth"`
	Account time.Time `json:"account"`
	Orders  time.Time `json:"orders"`
}

// Snapshot is a consistent, deep-copied view of the store.
// A nil field means "not fetched yet or last fetch failed".
type Snapshot struct {
	Seq     uint64                       `json:"seq"`
	Info    *domain.MarketInfo           `json:"info"`
	Depth   map[string]*domain.DepthBook `json:"depth"`
	Account *domain.AccountInfo          `json:"account"`
	Orders  []domain.Order               `json:"orders"`
	Pairs   []string                     `json:"pairs"`
	Pending Pending                      `json:"pending"`
	Updated Updated                      `json:"updated"`
}

// CanTrade reports whether the key may trade and the exchange accepts orders.
func (s Snapshot) CanTrade() bool {
	if s.Account == nil || !s.Account.Rights.Trade {
		return false
	}
	return s.Info == nil || s.Info.TradingEnabled
}

// Fee returns the trading fee (percent) of a pair.
func (s Snapshot) Fee(pair string) (decimal.Decimal, bool) {
	if s.Info == nil {
		return decimal.Zero, false
	}
	p, ok := s.Info.Pairs[pair]
	if !ok {
		return decimal.Zero, false
	}
	return p.Fee, true
}

// Book returns the depth book of a pair, nil when unknown.
func (s Snapshot) Book(pair string) *domain.DepthBook {
	return s.Depth[pair]
}

// clone deep-copies every field so the receiver can be handed out.
func (s *Snapshot) clone() Snapshot {
	out := *s
	out.Info = s.Info.Clone()
	out.Account = s.Account.Clone()
	if s.Depth != nil {
		out.Depth = make(map[string]*domain.DepthBook, len(s.Depth))
		for k, v := range s.Depth {
			out.Depth[k] = v.Clone()
		}
	}
	if s.Orders != nil {
		out.Orders = append(make([]domain.Order, 0, len(s.Orders)), s.Orders...)
	}
	if s.Pairs != nil {
		out.Pairs = append(make([]string, 0, len(s.Pairs)), s.Pairs...)
	}
	return out
}
