package event

import (
	"btce_go/internal/domain"
)

// Type identifies what an event carries.
type Type int

const (
	TypeMarketInfo Type = iota + 1
	TypeDepth
	TypeAccount
	TypeOrders
	TypePairs
	TypePending
	TypeSnapshot
)

// String returns the string representation of Type
func (t Type) String() string {
	switch t {
	case TypeMarketInfo:
		return "market_info"
	case TypeDepth:
		return "depth"
	case TypeAccount:
		return "account"
	case TypeOrders:
		return "orders"
	case TypePairs:
		return "pairs"
	case TypePending:
		return "pending"
	case TypeSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Event is anything sent into the state store's inbox.
type Event interface {
	GetType() Type
	GetSeq() uint64
	GetTs() int64
	SetSeq(seq uint64)
}

// BaseEvent carries the store-assigned sequence and the producer's timestamp (unix ms).
type BaseEvent struct {
	Seq uint64
	Ts  int64
}

func (e *BaseEvent) GetSeq() uint64 { return e.Seq }
func (e *BaseEvent) GetTs() int64   { return e.Ts }

// SetSeq is called by the store when the event is applied.
func (e *BaseEvent) SetSeq(seq uint64) { e.Seq = seq }

// MarketInfoEvent replaces the market info. Info nil means the fetch failed.
type MarketInfoEvent struct {
	BaseEvent
	Info *domain.MarketInfo
}

func (e *MarketInfoEvent) GetType() Type { return TypeMarketInfo }

// DepthEvent replaces the book of one pair. Book nil means the fetch failed.
type DepthEvent struct {
	BaseEvent
	Pair string
	Book *domain.DepthBook
}

func (e *DepthEvent) GetType() Type { return TypeDepth }

// AccountEvent replaces the account info. Account nil means the fetch failed.
type AccountEvent struct {
	BaseEvent
	Account *domain.AccountInfo
}

func (e *AccountEvent) GetType() Type { return TypeAccount }

// OrdersEvent replaces the open order set.
// Orders nil means the fetch failed; an empty slice means no open orders.
type OrdersEvent struct {
	BaseEvent
	Orders []domain.Order
}

func (e *OrdersEvent) GetType() Type { return TypeOrders }

// PairsEvent replaces the consumer's pair selection.
type PairsEvent struct {
	BaseEvent
	Pairs []string
}

func (e *PairsEvent) GetType() Type { return TypePairs }

// PendingKind names a command that may be in flight.
type PendingKind int

const (
	PendingBuy PendingKind = iota + 1
	PendingSell
	PendingCancel
)

// PendingEvent records a command starting (Active) or finishing.
type PendingEvent struct {
	BaseEvent
	Kind   PendingKind
	Active bool
}

func (e *PendingEvent) GetType() Type { return TypePending }
