package btce

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"btce_go/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey    = "test-key"
	testSecret = "test-secret"
)

// mockExchange records every private call and answers with respond.
type mockExchange struct {
	mu      sync.Mutex
	bodies  []string
	nonces  []int64
	respond func(form url.Values, call int) string
}

func (m *mockExchange) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := string(raw)

	if r.Header.Get("Key") != testKey || r.Header.Get("Sign") != computeHmacSha512(body, []byte(testSecret)) {
		w.Write([]byte(`{"success":0,"error":"invalid sign"}`))
		return
	}

	form, _ := url.ParseQuery(body)
	nonce, _ := strconv.ParseInt(form.Get("nonce"), 10, 64)

	m.mu.Lock()
	m.bodies = append(m.bodies, body)
	m.nonces = append(m.nonces, nonce)
	call := len(m.nonces)
	m.mu.Unlock()

	w.Write([]byte(m.respond(form, call)))
}

func (m *mockExchange) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.nonces)
}

func newPrivateTestClient(t *testing.T, lastNonce int64, respond func(form url.Values, call int) string) (*PrivateClient, *mockExchange) {
	t.Helper()
	mock := &mockExchange{respond: respond}
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	client, err := NewPrivateClient(testConfig(server.URL), domain.CredentialSource{
		Credentials: domain.NewCredentials(testKey, testSecret),
		LastNonce:   lastNonce,
	})
	require.NoError(t, err)
	return client, mock
}

const okInfo = `{"success":1,"return":{"funds":{"usd":325,"btc":23.998},"rights":{"info":1,"trade":1,"withdraw":0},"transaction_count":80,"open_orders":1,"server_time":1342123547}}`

func TestPrivateClient_GetInfo(t *testing.T) {
	client, mock := newPrivateTestClient(t, 41, func(url.Values, int) string { return okInfo })

	info, err := client.GetInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"method=getInfo&nonce=42"}, mock.bodies)
	assert.Equal(t, int64(42), client.Nonce())
	assert.True(t, info.Balance("usd").Equal(decimal.NewFromInt(325)))
	assert.True(t, info.Rights.Trade)
	assert.False(t, info.Rights.Withdraw)
	assert.Equal(t, 1, info.OpenOrders)
}

func TestPrivateClient_PlaceholderCredentials(t *testing.T) {
	tests := []domain.Credentials{
		{},
		domain.NewCredentials(domain.PlaceholderKey, domain.PlaceholderSecret),
	}
	for _, creds := range tests {
		_, err := NewPrivateClient(testConfig("http://127.0.0.1:1"), domain.CredentialSource{Credentials: creds})
		assert.ErrorIs(t, err, domain.ErrPublicOnly)
	}
}

func TestPrivateClient_ConcurrentNoncesStrictlyIncrease(t *testing.T) {
	client, mock := newPrivateTestClient(t, 0, func(url.Values, int) string { return okInfo })

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.GetInfo(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, mock.nonces, workers)
	for i := 1; i < len(mock.nonces); i++ {
		assert.Greater(t, mock.nonces[i], mock.nonces[i-1], "nonce arrived out of order at %d", i)
	}
	assert.Equal(t, int64(workers), client.Nonce())
}

func TestPrivateClient_NonceResync(t *testing.T) {
	client, mock := newPrivateTestClient(t, 0, func(form url.Values, call int) string {
		if call == 1 {
			return `{"success":0,"error":"invalid nonce parameter; on key:4999, you sent:1"}`
		}
		return okInfo
	})

	_, err := client.GetInfo(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 5000}, mock.nonces)
	assert.Equal(t, int64(5000), client.Nonce())
}

func TestPrivateClient_NonceResyncExactlyOnce(t *testing.T) {
	client, mock := newPrivateTestClient(t, 0, func(form url.Values, call int) string {
		return fmt.Sprintf(`{"success":0,"error":"invalid nonce parameter; on key:%d, you sent:%s"}`, 100*call, form.Get("nonce"))
	})

	_, err := client.GetInfo(context.Background())
	require.Error(t, err)

	assert.Equal(t, 2, mock.calls(), "exactly one retry")
	assert.Equal(t, []int64{1, 101}, mock.nonces)
	assert.True(t, domain.IsKind(err, domain.KindApplication))
	assert.False(t, domain.IsKind(err, domain.KindNonceConflict), "nonce conflict must not escape the client")
	assert.Contains(t, err.Error(), "invalid nonce")
}

func TestPrivateClient_NoOrders(t *testing.T) {
	client, _ := newPrivateTestClient(t, 0, func(url.Values, int) string {
		return `{"success":0,"error":"no orders"}`
	})

	orders, err := client.ActiveOrders(context.Background(), "")
	assert.Nil(t, orders)
	assert.True(t, domain.IsBenign(err))
}

func TestPrivateClient_ActiveOrders(t *testing.T) {
	client, mock := newPrivateTestClient(t, 0, func(url.Values, int) string {
		return `{"success":1,"return":{
			"343153":{"pair":"btc_usd","type":"sell","amount":1,"rate":3,"timestamp_created":1342448420,"status":0},
			"343152":{"pair":"btc_usd","type":"buy","amount":2,"rate":1,"timestamp_created":1342448410,"status":0}}}`
	})

	orders, err := client.ActiveOrders(context.Background(), "btc_usd")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	assert.Equal(t, "method=ActiveOrders&nonce=1&pair=btc_usd", mock.bodies[0])
	assert.Equal(t, int64(343152), orders[0].ID)
	assert.Equal(t, domain.SideBuy, orders[0].Side)
	assert.Equal(t, domain.OrderStatusActive, orders[1].Status)
	assert.True(t, orders[1].Rate.Equal(decimal.NewFromInt(3)))
}

func TestPrivateClient_TradeAndCancel(t *testing.T) {
	client, mock := newPrivateTestClient(t, 9, func(form url.Values, _ int) string {
		switch form.Get("method") {
		case "Trade":
			return `{"success":1,"return":{"received":0.1,"remains":0.9,"order_id":777,"funds":{"usd":325,"btc":2.498}}}`
		case "CancelOrder":
			return `{"success":1,"return":{"order_id":777,"funds":{"usd":425,"btc":2.498}}}`
		}
		return `{"success":0,"error":"unexpected method"}`
	})

	res, err := client.Trade(context.Background(), "btc_usd", domain.SideBuy, decimal.NewFromInt(100), decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, int64(777), res.OrderID)
	assert.False(t, res.Filled())
	assert.True(t, res.Remains.Equal(decimal.RequireFromString("0.9")))

	cancel, err := client.CancelOrder(context.Background(), 777)
	require.NoError(t, err)
	assert.Equal(t, int64(777), cancel.OrderID)
	assert.True(t, cancel.Funds["usd"].Equal(decimal.NewFromInt(425)))

	assert.Equal(t, []string{
		"method=Trade&nonce=10&pair=btc_usd&type=buy&rate=100&amount=0.5",
		"method=CancelOrder&nonce=11&order_id=777",
	}, mock.bodies)
}

func TestPrivateClient_History(t *testing.T) {
	client, mock := newPrivateTestClient(t, 0, func(form url.Values, _ int) string {
		switch form.Get("method") {
		case "TransHistory":
			return `{"success":1,"return":{
				"1081672":{"type":1,"amount":1,"currency":"BTC","desc":"BTC Payment","status":2,"timestamp":1342448420},
				"1081673":{"type":2,"amount":5,"currency":"USD","desc":"Buy","status":2,"timestamp":1342448430}}}`
		default:
			return `{"success":1,"return":{
				"166830":{"pair":"btc_usd","type":"sell","amount":1,"rate":450,"order_id":343148,"is_your_order":1,"timestamp":1342445793}}}`
		}
	})

	txs, err := client.TransactionHistory(context.Background(), domain.DefaultHistoryQuery())
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(1081673), txs[0].ID, "DESC order")
	assert.Equal(t, "Buy", txs[0].Description)

	q := domain.DefaultHistoryQuery()
	q.Pair = "btc_usd"
	trades, err := client.TradeHistory(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].IsYourOrder)

	assert.Equal(t,
		"method=TradeHistory&nonce=2&from=0&count=1000&from_id=0&end_id=9223372036854775807&order=DESC&since=0&end=9223372036854775807&pair=btc_usd&active=1",
		mock.bodies[1])
}

func TestPrivateClient_TransportErrors(t *testing.T) {
	client, _ := newPrivateTestClient(t, 0, func(url.Values, int) string { return `not json` })

	_, err := client.GetInfo(context.Background())
	require.Error(t, err)

	var ae *domain.APIError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, domain.KindTransport, ae.Kind)
	assert.Equal(t, "getInfo", ae.Method)
	assert.Equal(t, int64(1), client.Nonce(), "no retry on transport errors")
}

func TestPrivateClient_NonceObserver(t *testing.T) {
	client, _ := newPrivateTestClient(t, 5, func(form url.Values, call int) string {
		if call == 1 {
			return `{"success":0,"error":"some failure"}`
		}
		return okInfo
	})

	var seen []int64
	client.SetNonceObserver(func(n int64) { seen = append(seen, n) })

	_, err := client.GetInfo(context.Background())
	assert.Error(t, err)
	_, err = client.GetInfo(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, []int64{6, 7}, seen, "observer runs after failures too")
}

func TestParseInvalidNonce(t *testing.T) {
	tests := []struct {
		msg  string
		want int64
		ok   bool
	}{
		{"invalid nonce parameter; on key:4, you sent:2", 4, true},
		{"Invalid nonce parameter; on key: 1234567890, you sent:'1'", 1234567890, true},
		{"no orders", 0, false},
		{"invalid nonce parameter", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got, ok := parseInvalidNonce(tt.msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
