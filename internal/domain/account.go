package domain

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Rights are the permissions of the API key.
type Rights struct {
	Info     bool `json:"info"`
	Trade    bool `json:"trade"`
	Withdraw bool `json:"withdraw"`
}

// AccountInfo is the result of getInfo.
type AccountInfo struct {
	Funds            map[string]decimal.Decimal `json:"funds"`
	Rights           Rights                     `json:"rights"`
	OpenOrders       int                        `json:"open_orders"`
	TransactionCount int                        `json:"transaction_count"`
	ServerTime       time.Time                  `json:"server_time"`
}

// Balance returns the balance of a currency, zero when unknown.
func (a *AccountInfo) Balance(currency string) decimal.Decimal {
	if a == nil {
		return decimal.Zero
	}
	return a.Funds[currency]
}

// Currencies returns funded currency names sorted alphabetically.
func (a *AccountInfo) Currencies() []string {
	out := make([]string, 0, len(a.Funds))
	for c := range a.Funds {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (a *AccountInfo) Clone() *AccountInfo {
	if a == nil {
		return nil
	}
	out := *a
	out.Funds = make(map[string]decimal.Decimal, len(a.Funds))
	for k, v := range a.Funds {
		out.Funds[k] = v
	}
	return &out
}

// HistoryQuery filters TransHistory and TradeHistory.
type HistoryQuery struct {
	From   int64
	Count  int64
	FromID int64
	EndID  int64
	Order  string // "ASC" or "DESC"
	Since  int64  // Unix seconds
	End    int64  // Unix seconds
	Pair   string // TradeHistory only
	Active bool   // TradeHistory only
}

// DefaultHistoryQuery returns the widest query the exchange accepts.
func DefaultHistoryQuery() HistoryQuery {
	return HistoryQuery{
		Count:  1000,
		EndID:  math.MaxInt64,
		Order:  "DESC",
		End:    math.MaxInt64,
		Active: true,
	}
}

// Transaction is one TransHistory entry.
type Transaction struct {
	ID          int64           `json:"id"`
	Type        int             `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"desc"`
	Status      int             `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
}

// TradeRecord is one TradeHistory entry.
type TradeRecord struct {
	ID          int64           `json:"id"`
	Pair        string          `json:"pair"`
	Side        Side            `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
	OrderID     int64           `json:"order_id"`
	IsYourOrder bool            `json:"is_your_order"`
	Timestamp   time.Time       `json:"timestamp"`
}
