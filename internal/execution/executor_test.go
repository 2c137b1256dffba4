package execution

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"btce_go/internal/domain"
	"btce_go/internal/engine"
	"btce_go/internal/event"
	"btce_go/internal/infra"
	"btce_go/internal/infra/btce"
	"btce_go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// journal records the order in which collaborators are called.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeAccount struct {
	j         *journal
	tradeErr  error
	cancelErr map[int64]error
}

func (f *fakeAccount) GetInfo(ctx context.Context) (*domain.AccountInfo, error) {
	return &domain.AccountInfo{}, nil
}

func (f *fakeAccount) ActiveOrders(ctx context.Context, pair string) ([]domain.Order, error) {
	return nil, nil
}

func (f *fakeAccount) Trade(ctx context.Context, pair string, side domain.Side, rate, amount decimal.Decimal) (*domain.TradeResult, error) {
	f.j.add("trade")
	if f.tradeErr != nil {
		return nil, f.tradeErr
	}
	return &domain.TradeResult{OrderID: 42}, nil
}

func (f *fakeAccount) CancelOrder(ctx context.Context, orderID int64) (*domain.CancelResult, error) {
	f.j.add("cancel")
	if err := f.cancelErr[orderID]; err != nil {
		return nil, err
	}
	return &domain.CancelResult{OrderID: orderID}, nil
}

// gatedAccount holds every trade at the slow rate until release is closed.
type gatedAccount struct {
	fakeAccount
	slowRate decimal.Decimal
	entered  chan struct{}
	release  chan struct{}
}

func (g *gatedAccount) Trade(ctx context.Context, pair string, side domain.Side, rate, amount decimal.Decimal) (*domain.TradeResult, error) {
	if rate.Equal(g.slowRate) {
		g.entered <- struct{}{}
		<-g.release
	}
	return &domain.TradeResult{OrderID: rate.IntPart()}, nil
}

type fakeRefresher struct{ j *journal }

func (f *fakeRefresher) RefreshOrders(ctx context.Context) error {
	f.j.add("refresh_orders")
	return nil
}

func (f *fakeRefresher) RefreshAccount(ctx context.Context) error {
	f.j.add("refresh_account")
	return errors.New("account refresh failed")
}

type fakePending struct{ j *journal }

func (f *fakePending) SetPending(kind event.PendingKind, active bool) error {
	state := "off"
	if active {
		state = "on"
	}
	name := map[event.PendingKind]string{event.PendingBuy: "buying", event.PendingSell: "selling", event.PendingCancel: "cancelling"}[kind]
	f.j.add(name + "_" + state)
	return nil
}

func newTestExecutor(account domain.TradingAccount) (*Executor, *journal, *infra.Console) {
	j := &journal{}
	if fa, ok := account.(*fakeAccount); ok {
		fa.j = j
	}
	console := infra.NewConsole(16)
	e := NewExecutor(account, &fakeRefresher{j: j}, &fakePending{j: j}, console)
	e.metrics = &infra.Metrics{}
	return e, j, console
}

func texts(lines []infra.ConsoleLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text()
	}
	return out
}

func TestExecutor_PlaceOrder(t *testing.T) {
	e, j, console := newTestExecutor(&fakeAccount{})

	res, err := e.PlaceOrder(context.Background(), "btc_usd", domain.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.OrderID)

	assert.Equal(t, []string{"buying_on", "trade", "refresh_orders", "refresh_account", "buying_off"}, j.list())
	assert.Equal(t, []string{
		"Placing order [btc_usd, buy, 100, 1].",
		"Order placed successfully.",
	}, texts(console.Drain()))
	assert.Equal(t, uint64(1), e.metrics.Snapshot().OrdersPlaced)
}

func TestExecutor_PlaceOrderRejected(t *testing.T) {
	account := &fakeAccount{tradeErr: domain.NewApplicationError("Trade", "It is not enough USD for purchase")}
	e, j, console := newTestExecutor(account)

	_, err := e.PlaceOrder(context.Background(), "btc_usd", domain.SideSell, decimal.NewFromInt(100), decimal.NewFromInt(1))
	assert.True(t, domain.IsKind(err, domain.KindApplication))

	// Refresh still happens after a failed command.
	assert.Equal(t, []string{"selling_on", "trade", "refresh_orders", "refresh_account", "selling_off"}, j.list())
	lines := texts(console.Drain())
	require.Len(t, lines, 2)
	assert.Equal(t, "[WARNING] Error placing order: It is not enough USD for purchase", lines[1])
	assert.Zero(t, e.metrics.Snapshot().OrdersPlaced)
}

func TestExecutor_PlaceOrderInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		pair   string
		side   domain.Side
		rate   decimal.Decimal
		amount decimal.Decimal
	}{
		{"empty pair", "", domain.SideBuy, decimal.NewFromInt(1), decimal.NewFromInt(1)},
		{"unknown side", "btc_usd", domain.Side("hold"), decimal.NewFromInt(1), decimal.NewFromInt(1)},
		{"zero rate", "btc_usd", domain.SideBuy, decimal.Zero, decimal.NewFromInt(1)},
		{"negative amount", "btc_usd", domain.SideSell, decimal.NewFromInt(1), decimal.NewFromInt(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, j, console := newTestExecutor(&fakeAccount{})
			_, err := e.PlaceOrder(context.Background(), tt.pair, tt.side, tt.rate, tt.amount)
			assert.ErrorIs(t, err, domain.ErrInvalidOrder)
			assert.Empty(t, j.list(), "no call may be made for invalid input")

			lines := texts(console.Drain())
			require.Len(t, lines, 1)
			assert.True(t, strings.HasPrefix(lines[0], "[WARNING] Error placing order: invalid order"), lines[0])
		})
	}
}

func TestExecutor_CancelOrders(t *testing.T) {
	account := &fakeAccount{cancelErr: map[int64]error{2: domain.NewApplicationError("CancelOrder", "bad status")}}
	e, j, console := newTestExecutor(account)

	results, err := e.CancelOrders(context.Background(), []int64{1, 2, 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancel 2")
	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results[1].OrderID)

	assert.Equal(t, []string{"cancelling_on", "cancel", "cancel", "cancel", "refresh_orders", "refresh_account", "cancelling_off"}, j.list())
	assert.Equal(t, []string{
		"Cancel order 1.",
		"Order cancelled successfully.",
		"Cancel order 2.",
		"[WARNING] Error cancelling order: bad status",
		"Cancel order 3.",
		"Order cancelled successfully.",
	}, texts(console.Drain()))
	assert.Equal(t, uint64(2), e.metrics.Snapshot().OrdersCancelled)
}

func TestExecutor_CancelOrdersInvalid(t *testing.T) {
	e, j, console := newTestExecutor(&fakeAccount{})

	_, err := e.CancelOrders(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	_, err = e.CancelOrders(context.Background(), []int64{5, 0})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Empty(t, j.list())

	assert.Equal(t, []string{
		"[WARNING] Error cancelling order: invalid order: no order ids",
		"[WARNING] Error cancelling order: invalid order: invalid order id 0",
	}, texts(console.Drain()))
}

func TestExecutor_PublicOnly(t *testing.T) {
	console := infra.NewConsole(4)
	e := NewExecutor(nil, &fakeRefresher{j: &journal{}}, nil, console)

	_, err := e.PlaceOrder(context.Background(), "btc_usd", domain.SideBuy, decimal.NewFromInt(1), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrPublicOnly)
	_, err = e.CancelOrders(context.Background(), []int64{1})
	assert.ErrorIs(t, err, domain.ErrPublicOnly)

	assert.Equal(t, []string{
		"[WARNING] Error placing order: " + domain.ErrPublicOnly.Error(),
		"[WARNING] Error cancelling order: " + domain.ErrPublicOnly.Error(),
	}, texts(console.Drain()))
}

func TestExecutor_OverlappingBuysKeepPendingFlag(t *testing.T) {
	store := engine.NewStore(16)
	ctx, cancel := context.WithCancel(context.Background())
	go store.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-store.Done()
	})

	account := &gatedAccount{
		slowRate: decimal.NewFromInt(100),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	e := NewExecutor(account, &fakeRefresher{j: &journal{}}, store, infra.NewConsole(16))
	e.metrics = &infra.Metrics{}
	one := decimal.NewFromInt(1)

	slowDone := make(chan error, 1)
	go func() {
		_, err := e.PlaceOrder(context.Background(), "btc_usd", domain.SideBuy, account.slowRate, one)
		slowDone <- err
	}()
	<-account.entered

	_, err := e.PlaceOrder(context.Background(), "btc_usd", domain.SideBuy, decimal.NewFromInt(99), one)
	require.NoError(t, err)

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Pending.Buying, "slow buy is still in flight")

	close(account.release)
	require.NoError(t, <-slowDone)

	snap, err = store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Pending.Buying)
	assert.Equal(t, uint64(2), e.metrics.Snapshot().OrdersPlaced)
}

// TestExecutor_PlaceOrderRefreshesBeforeReturn drives the real client,
// refresher and store against a mock exchange.
func TestExecutor_PlaceOrderRefreshesBeforeReturn(t *testing.T) {
	var (
		mu      sync.Mutex
		methods []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(raw))
		method := form.Get("method")

		mu.Lock()
		methods = append(methods, method)
		mu.Unlock()

		switch method {
		case "Trade":
			w.Write([]byte(`{"success":1,"return":{"received":0,"remains":1,"order_id":7,"funds":{"usd":225,"btc":0}}}`))
		case "ActiveOrders":
			w.Write([]byte(`{"success":1,"return":{"7":{"pair":"btc_usd","type":"buy","amount":1,"rate":100,"timestamp_created":1342448420,"status":0}}}`))
		case "getInfo":
			w.Write([]byte(`{"success":1,"return":{"funds":{"usd":225,"btc":0},"rights":{"info":1,"trade":1,"withdraw":0},"transaction_count":1,"open_orders":1,"server_time":1342123547}}`))
		default:
			w.Write([]byte(`{"success":0,"error":"unexpected method"}`))
		}
	}))
	t.Cleanup(server.Close)

	cfg := infra.DefaultConfig()
	cfg.API.PublicURL = server.URL + "/api/3"
	cfg.API.PrivateURL = server.URL + "/tapi"

	private, err := btce.NewPrivateClient(cfg, domain.CredentialSource{
		Credentials: domain.NewCredentials("key", "secret"),
	})
	require.NoError(t, err)

	store := engine.NewStore(16)
	ctx, cancel := context.WithCancel(context.Background())
	go store.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-store.Done()
	})

	console := infra.NewConsole(16)
	refresher := service.NewRefresher(btce.NewPublicClient(cfg), private, store, console, service.DefaultIntervals(), nil)
	e := NewExecutor(private, refresher, store, console)

	res, err := e.PlaceOrder(context.Background(), "btc_usd", domain.SideBuy, decimal.NewFromInt(100), decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.OrderID)

	mu.Lock()
	assert.Equal(t, []string{"Trade", "ActiveOrders", "getInfo"}, methods)
	mu.Unlock()

	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Orders, 1)
	assert.Equal(t, int64(7), snap.Orders[0].ID)
	require.NotNil(t, snap.Account)
	assert.True(t, snap.Account.Balance("usd").Equal(decimal.NewFromInt(225)))
	assert.Equal(t, engine.Pending{}, snap.Pending)

	for _, line := range console.Drain() {
		assert.False(t, strings.HasPrefix(line.Text(), "[WARNING]"), line.Text())
	}
}
