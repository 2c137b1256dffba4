package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarketDataSource is the public half of the exchange API
type MarketDataSource interface {
	Info(ctx context.Context) (*MarketInfo, error)
	Depth(ctx context.Context, pairs ...string) (map[string]*DepthBook, error)
}

// TradingAccount is the authenticated half of the exchange API
type TradingAccount interface {
	GetInfo(ctx context.Context) (*AccountInfo, error)
	ActiveOrders(ctx context.Context, pair string) ([]Order, error)
	Trade(ctx context.Context, pair string, side Side, rate, amount decimal.Decimal) (*TradeResult, error)
	CancelOrder(ctx context.Context, orderID int64) (*CancelResult, error)
}

// LogSink receives human-readable lines for the consumer's console
type LogSink interface {
	Info(text string)
	Warn(text string)
}

// NonceRepository persists the last used nonce per API key fingerprint
type NonceRepository interface {
	GetNonce(fingerprint string) (int64, error)
	SaveNonce(fingerprint string, nonce int64) error
}
