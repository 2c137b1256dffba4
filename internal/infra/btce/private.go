package btce

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"btce_go/internal/domain"
	"btce_go/internal/infra"

	"github.com/shopspring/decimal"
)

// maxNonceResyncs bounds how often one call may realign its nonce.
const maxNonceResyncs = 1

// invalidNonceRe extracts the exchange's last seen nonce from
// "invalid nonce parameter; on key:4, you sent:2".
var invalidNonceRe = regexp.MustCompile(`(?i)invalid nonce.*?on key:\s*(\d+)`)

// NonceObserver is told the current nonce after every private call.
type NonceObserver func(nonce int64)

// PrivateClient is the authenticated trading API client.
// All calls are serialized from nonce increment to response interpretation.
type PrivateClient struct {
	url      string
	signer   *Signer
	tr       *transport
	logger   *slog.Logger
	mu       sync.Mutex
	nonce    atomic.Int64
	observer NonceObserver
}

// NewPrivateClient creates a private API client.
// Placeholder credentials yield domain.ErrPublicOnly so they are never sent.
func NewPrivateClient(cfg *infra.Config, src domain.CredentialSource) (*PrivateClient, error) {
	if src.Credentials.IsPlaceholder() {
		return nil, domain.ErrPublicOnly
	}

	logger := slog.Default().With("module", "btce_private", "key", src.Credentials)
	c := &PrivateClient{
		url:    cfg.API.PrivateURL,
		signer: NewSigner(src.Credentials),
		tr:     newTransport(cfg.Timeout(), cfg.API.PrivateRPS, logger),
		logger: logger,
	}
	c.nonce.Store(src.LastNonce)
	return c, nil
}

// Nonce returns the last nonce sent.
func (c *PrivateClient) Nonce() int64 {
	return c.nonce.Load()
}

// SetNonceObserver installs fn to be called after every private call.
// fn runs while the call lock is held and must not call back into the client.
func (c *PrivateClient) SetNonceObserver(fn NonceObserver) {
	c.mu.Lock()
	c.observer = fn
	c.mu.Unlock()
}

// GetInfo returns balances and key rights.
func (c *PrivateClient) GetInfo(ctx context.Context) (*domain.AccountInfo, error) {
	payload, err := c.call(ctx, methodGetInfo, nil)
	if err != nil {
		return nil, err
	}
	var w accountWire
	if err := decodePayload(methodGetInfo, payload, &w); err != nil {
		return nil, err
	}
	return w.toDomain(), nil
}

// TransactionHistory returns deposits, withdrawals and trade settlements.
func (c *PrivateClient) TransactionHistory(ctx context.Context, q domain.HistoryQuery) ([]domain.Transaction, error) {
	payload, err := c.call(ctx, methodTransHistory, historyParams(q, false))
	if err != nil {
		return nil, err
	}
	var raw map[string]transactionWire
	if err := decodePayload(methodTransHistory, payload, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.Transaction, 0, len(raw))
	for key, w := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, decodeError(methodTransHistory, err)
		}
		out = append(out, domain.Transaction{
			ID:          id,
			Type:        w.Type,
			Amount:      w.Amount,
			Currency:    w.Currency,
			Description: w.Desc,
			Status:      w.Status,
			Timestamp:   time.Unix(w.Timestamp, 0),
		})
	}
	sortByID(out, func(t domain.Transaction) int64 { return t.ID }, q.Order)
	return out, nil
}

// TradeHistory returns the account's own trades.
func (c *PrivateClient) TradeHistory(ctx context.Context, q domain.HistoryQuery) ([]domain.TradeRecord, error) {
	payload, err := c.call(ctx, methodTradeHistory, historyParams(q, true))
	if err != nil {
		return nil, err
	}
	var raw map[string]tradeHistoryWire
	if err := decodePayload(methodTradeHistory, payload, &raw); err != nil {
		return nil, err
	}

	out := make([]domain.TradeRecord, 0, len(raw))
	for key, w := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, decodeError(methodTradeHistory, err)
		}
		out = append(out, domain.TradeRecord{
			ID:          id,
			Pair:        w.Pair,
			Side:        domain.Side(w.Type),
			Amount:      w.Amount,
			Rate:        w.Rate,
			OrderID:     w.OrderID,
			IsYourOrder: w.IsYourOrder != 0,
			Timestamp:   time.Unix(w.Timestamp, 0),
		})
	}
	sortByID(out, func(t domain.TradeRecord) int64 { return t.ID }, q.Order)
	return out, nil
}

// ActiveOrders returns open orders, optionally filtered by pair.
// The exchange answers "no orders" as an application error; see domain.IsBenign.
func (c *PrivateClient) ActiveOrders(ctx context.Context, pair string) ([]domain.Order, error) {
	var params Params
	if pair != "" {
		params = params.Add("pair", pair)
	}
	payload, err := c.call(ctx, methodActiveOrders, params)
	if err != nil {
		return nil, err
	}
	var raw map[string]orderWire
	if err := decodePayload(methodActiveOrders, payload, &raw); err != nil {
		return nil, err
	}
	orders, err := toOrders(raw)
	if err != nil {
		return nil, decodeError(methodActiveOrders, err)
	}
	return orders, nil
}

// OrderInfo returns one order by id, including filled and cancelled ones.
func (c *PrivateClient) OrderInfo(ctx context.Context, orderID int64) (*domain.Order, error) {
	payload, err := c.call(ctx, methodOrderInfo, Params{}.AddInt("order_id", orderID))
	if err != nil {
		return nil, err
	}
	var raw map[string]orderWire
	if err := decodePayload(methodOrderInfo, payload, &raw); err != nil {
		return nil, err
	}
	orders, err := toOrders(raw)
	if err != nil {
		return nil, decodeError(methodOrderInfo, err)
	}
	if len(orders) == 0 {
		return nil, domain.NewApplicationError(methodOrderInfo, "order not found")
	}
	return &orders[0], nil
}

// Trade places a limit order.
func (c *PrivateClient) Trade(ctx context.Context, pair string, side domain.Side, rate, amount decimal.Decimal) (*domain.TradeResult, error) {
	params := Params{}.
		Add("pair", pair).
		Add("type", string(side)).
		Add("rate", rate.String()).
		Add("amount", amount.String())

	payload, err := c.call(ctx, methodTrade, params)
	if err != nil {
		return nil, err
	}
	var w tradeResultWire
	if err := decodePayload(methodTrade, payload, &w); err != nil {
		return nil, err
	}
	return &domain.TradeResult{
		OrderID:  w.OrderID,
		Received: w.Received,
		Remains:  w.Remains,
		Funds:    w.Funds,
	}, nil
}

// CancelOrder cancels one open order.
func (c *PrivateClient) CancelOrder(ctx context.Context, orderID int64) (*domain.CancelResult, error) {
	payload, err := c.call(ctx, methodCancelOrder, Params{}.AddInt("order_id", orderID))
	if err != nil {
		return nil, err
	}
	var w cancelWire
	if err := decodePayload(methodCancelOrder, payload, &w); err != nil {
		return nil, err
	}
	return &domain.CancelResult{OrderID: w.OrderID, Funds: w.Funds}, nil
}

// call runs one private method under the call lock, realigning the nonce
// at most maxNonceResyncs times.
func (c *PrivateClient) call(ctx context.Context, method string, params Params) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		payload json.RawMessage
		err     error
	)
	for attempt := 0; ; attempt++ {
		payload, err = c.send(ctx, method, params)

		var ae *domain.APIError
		if !errors.As(err, &ae) || ae.Kind != domain.KindNonceConflict {
			break
		}
		if attempt >= maxNonceResyncs {
			err = domain.NewApplicationError(method, ae.Message)
			break
		}

		expected, _ := parseInvalidNonce(ae.Message)
		c.logger.Warn("Nonce out of sync, resynchronizing",
			slog.String("method", method),
			slog.Int64("local", c.nonce.Load()),
			slog.Int64("exchange", expected),
		)
		c.tr.metrics.RecordNonceResync()
		c.nonce.Store(expected)
	}

	if c.observer != nil {
		c.observer(c.nonce.Load())
	}
	return payload, err
}

// send increments the nonce and performs one signed POST.
func (c *PrivateClient) send(ctx context.Context, method string, params Params) (json.RawMessage, error) {
	nonce := c.nonce.Add(1)

	signed, err := c.signer.Sign(method, nonce, params)
	if err != nil {
		return nil, domain.NewTransportError(method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(signed.Body))
	if err != nil {
		return nil, domain.NewTransportError(method, err)
	}
	for k, v := range signed.Headers() {
		req.Header.Set(k, v)
	}

	payload, err := c.tr.do(req, method)
	var ae *domain.APIError
	if errors.As(err, &ae) && ae.Kind == domain.KindApplication {
		if _, ok := parseInvalidNonce(ae.Message); ok {
			ae.Kind = domain.KindNonceConflict
		}
	}
	return payload, err
}

// parseInvalidNonce returns the nonce the exchange last accepted.
func parseInvalidNonce(msg string) (int64, bool) {
	m := invalidNonceRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func historyParams(q domain.HistoryQuery, trades bool) Params {
	p := Params{}.
		AddInt("from", q.From).
		AddInt("count", q.Count).
		AddInt("from_id", q.FromID).
		AddInt("end_id", q.EndID).
		Add("order", q.Order).
		AddInt("since", q.Since).
		AddInt("end", q.End)
	if trades {
		active := int64(0)
		if q.Active {
			active = 1
		}
		p = p.Add("pair", q.Pair).AddInt("active", active)
	}
	return p
}

func decodeError(method string, err error) error {
	return &domain.APIError{Kind: domain.KindTransport, Method: method, Message: errMalformedBody.Error(), Err: err}
}

func sortByID[T any](items []T, id func(T) int64, order string) {
	asc := strings.EqualFold(order, "ASC")
	sort.Slice(items, func(i, j int) bool {
		if asc {
			return id(items[i]) < id(items[j])
		}
		return id(items[i]) > id(items[j])
	})
}
