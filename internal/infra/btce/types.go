package btce

import (
	"sort"
	"strconv"
	"time"

	"btce_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Private API method names as the exchange spells them.
const (
	methodGetInfo      = "getInfo"
	methodTransHistory = "TransHistory"
	methodTradeHistory = "TradeHistory"
	methodActiveOrders = "ActiveOrders"
	methodOrderInfo    = "OrderInfo"
	methodTrade        = "Trade"
	methodCancelOrder  = "CancelOrder"
)

// Public API method names.
const (
	methodInfo   = "info"
	methodTicker = "ticker"
	methodDepth  = "depth"
	methodTrades = "trades"
)

// infoResponse Structure
type infoResponse struct {
	ServerTime int64               `json:"server_time"`
	Pairs      map[string]pairWire `json:"pairs"`
}

type pairWire struct {
	DecimalPlaces int             `json:"decimal_places"`
	MinPrice      decimal.Decimal `json:"min_price"`
	MaxPrice      decimal.Decimal `json:"max_price"`
	MinAmount     decimal.Decimal `json:"min_amount"`
	Hidden        int             `json:"hidden"`
	Fee           decimal.Decimal `json:"fee"`
}

func (r *infoResponse) toDomain() *domain.MarketInfo {
	info := &domain.MarketInfo{
		ServerTime: time.Unix(r.ServerTime, 0),
		Pairs:      make(map[string]domain.PairInfo, len(r.Pairs)),
	}
	for name, p := range r.Pairs {
		info.Pairs[name] = domain.PairInfo{
			DecimalPlaces: p.DecimalPlaces,
			MinPrice:      p.MinPrice,
			MaxPrice:      p.MaxPrice,
			MinAmount:     p.MinAmount,
			Hidden:        p.Hidden != 0,
			Fee:           p.Fee,
		}
		if p.Hidden == 0 {
			info.TradingEnabled = true
		}
	}
	return info
}

type tickerWire struct {
	High    decimal.Decimal `json:"high"`
	Low     decimal.Decimal `json:"low"`
	Avg     decimal.Decimal `json:"avg"`
	Vol     decimal.Decimal `json:"vol"`
	VolCur  decimal.Decimal `json:"vol_cur"`
	Last    decimal.Decimal `json:"last"`
	Buy     decimal.Decimal `json:"buy"`
	Sell    decimal.Decimal `json:"sell"`
	Updated int64           `json:"updated"`
}

func (w tickerWire) toDomain(pair string) *domain.Ticker {
	return &domain.Ticker{
		Pair:    pair,
		High:    w.High,
		Low:     w.Low,
		Avg:     w.Avg,
		Vol:     w.Vol,
		VolCur:  w.VolCur,
		Last:    w.Last,
		Buy:     w.Buy,
		Sell:    w.Sell,
		Updated: time.Unix(w.Updated, 0),
	}
}

// depthWire levels are [rate, volume] pairs
type depthWire struct {
	Asks [][]decimal.Decimal `json:"asks"`
	Bids [][]decimal.Decimal `json:"bids"`
}

func (w depthWire) toDomain(pair string) *domain.DepthBook {
	book := &domain.DepthBook{
		Pair: pair,
		Asks: toLevels(w.Asks),
		Bids: toLevels(w.Bids),
	}
	sort.SliceStable(book.Asks, func(i, j int) bool {
		return book.Asks[i].Rate.LessThan(book.Asks[j].Rate)
	})
	sort.SliceStable(book.Bids, func(i, j int) bool {
		return book.Bids[i].Rate.GreaterThan(book.Bids[j].Rate)
	})
	return book
}

func toLevels(raw [][]decimal.Decimal) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		levels = append(levels, domain.PriceLevel{Rate: l[0], Volume: l[1]})
	}
	return levels
}

type tradeWire struct {
	Type      string          `json:"type"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	TID       int64           `json:"tid"`
	Timestamp int64           `json:"timestamp"`
}

func (w tradeWire) toDomain() domain.Trade {
	return domain.Trade{
		ID:        w.TID,
		Side:      w.Type,
		Price:     w.Price,
		Amount:    w.Amount,
		Timestamp: time.Unix(w.Timestamp, 0),
	}
}

type accountWire struct {
	Funds  map[string]decimal.Decimal `json:"funds"`
	Rights struct {
		Info     int `json:"info"`
		Trade    int `json:"trade"`
		Withdraw int `json:"withdraw"`
	} `json:"rights"`
	TransactionCount int   `json:"transaction_count"`
	OpenOrders       int   `json:"open_orders"`
	ServerTime       int64 `json:"server_time"`
}

func (w *accountWire) toDomain() *domain.AccountInfo {
	funds := w.Funds
	if funds == nil {
		funds = map[string]decimal.Decimal{}
	}
	return &domain.AccountInfo{
		Funds: funds,
		Rights: domain.Rights{
			Info:     w.Rights.Info != 0,
			Trade:    w.Rights.Trade != 0,
			Withdraw: w.Rights.Withdraw != 0,
		},
		OpenOrders:       w.OpenOrders,
		TransactionCount: w.TransactionCount,
		ServerTime:       time.Unix(w.ServerTime, 0),
	}
}

// orderWire is shared by ActiveOrders and OrderInfo
type orderWire struct {
	Pair             string          `json:"pair"`
	Type             string          `json:"type"`
	StartAmount      decimal.Decimal `json:"start_amount"`
	Amount           decimal.Decimal `json:"amount"`
	Rate             decimal.Decimal `json:"rate"`
	TimestampCreated int64           `json:"timestamp_created"`
	Status           int             `json:"status"`
}

func (w orderWire) toDomain(id int64) domain.Order {
	return domain.Order{
		ID:        id,
		Pair:      w.Pair,
		Side:      domain.Side(w.Type),
		Rate:      w.Rate,
		Amount:    w.Amount,
		CreatedAt: time.Unix(w.TimestampCreated, 0),
		Status:    domain.OrderStatus(w.Status),
	}
}

// toOrders converts an id-keyed order map into a slice sorted by id.
func toOrders(raw map[string]orderWire) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(raw))
	for key, w := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, err
		}
		orders = append(orders, w.toDomain(id))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders, nil
}

type tradeResultWire struct {
	Received decimal.Decimal            `json:"received"`
	Remains  decimal.Decimal            `json:"remains"`
	OrderID  int64                      `json:"order_id"`
	Funds    map[string]decimal.Decimal `json:"funds"`
}

type cancelWire struct {
	OrderID int64                      `json:"order_id"`
	Funds   map[string]decimal.Decimal `json:"funds"`
}

type transactionWire struct {
	Type      int             `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Desc      string          `json:"desc"`
	Status    int             `json:"status"`
	Timestamp int64           `json:"timestamp"`
}

type tradeHistoryWire struct {
	Pair        string          `json:"pair"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Rate        decimal.Decimal `json:"rate"`
	OrderID     int64           `json:"order_id"`
	IsYourOrder int             `json:"is_your_order"`
	Timestamp   int64           `json:"timestamp"`
}
