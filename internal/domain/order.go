package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order as the exchange spells it.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
}

// OrderStatus mirrors the exchange's numeric status codes.
type OrderStatus int

const (
	OrderStatusActive OrderStatus = iota
	OrderStatusFilled
	OrderStatusPartiallyFilled
	OrderStatusCancelled
)

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusActive:
		return "Active"
	case OrderStatusFilled:
		return "Filled"
	case OrderStatusPartiallyFilled:
		return "Partially Filled"
	case OrderStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Order represents an open order on the exchange.
type Order struct {
	ID        int64           `json:"id"`
	Pair      string          `json:"pair"`
	Side      Side            `json:"type"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	Status    OrderStatus     `json:"status"`
}

// Value is rate * amount, denominated in the quote currency.
func (o *Order) Value() decimal.Decimal {
	return o.Rate.Mul(o.Amount)
}

// OrderRequest is a validated request to place a limit order.
type OrderRequest struct {
	Pair   string
	Side   Side
	Rate   decimal.Decimal
	Amount decimal.Decimal
}

// Validate rejects requests that would never be accepted by the exchange.
func (r OrderRequest) Validate() error {
	if _, _, err := SplitPair(r.Pair); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, r.Side)
	}
	if !r.Rate.IsPositive() {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidOrder)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidOrder)
	}
	return nil
}

// TradeResult is the exchange's answer to a placed order.
type TradeResult struct {
	OrderID  int64                      `json:"order_id"`
	Received decimal.Decimal            `json:"received"`
	Remains  decimal.Decimal            `json:"remains"`
	Funds    map[string]decimal.Decimal `json:"funds"`
}

// Filled reports whether the order matched completely on placement.
// The exchange answers order_id 0 in that case.
func (t *TradeResult) Filled() bool {
	return t.OrderID == 0
}

// CancelResult is the exchange's answer to a cancelled order.
type CancelResult struct {
	OrderID int64                      `json:"order_id"`
	Funds   map[string]decimal.Decimal `json:"funds"`
}
