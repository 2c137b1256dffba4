package btce

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"btce_go/internal/domain"
	"btce_go/internal/infra"
)

// PublicClient queries the unauthenticated market-data API.
// Calls carry no nonce and may run concurrently.
type PublicClient struct {
	baseURL string
	tr      *transport
	logger  *slog.Logger
}

// NewPublicClient creates a public API client from configuration.
func NewPublicClient(cfg *infra.Config) *PublicClient {
	logger := slog.Default().With("module", "btce_public")
	return &PublicClient{
		baseURL: strings.TrimRight(cfg.API.PublicURL, "/"),
		tr:      newTransport(cfg.Timeout(), cfg.API.PublicRPS, logger),
		logger:  logger,
	}
}

// Info returns server time and per-pair trading rules.
func (c *PublicClient) Info(ctx context.Context) (*domain.MarketInfo, error) {
	payload, err := c.get(ctx, methodInfo, nil, nil)
	if err != nil {
		return nil, err
	}
	var resp infoResponse
	if err := decodePayload(methodInfo, payload, &resp); err != nil {
		return nil, err
	}
	return resp.toDomain(), nil
}

// Ticker returns the 24h ticker of each requested pair.
func (c *PublicClient) Ticker(ctx context.Context, pairs ...string) (map[string]*domain.Ticker, error) {
	payload, err := c.get(ctx, methodTicker, pairs, nil)
	if err != nil {
		return nil, err
	}
	var resp map[string]tickerWire
	if err := decodePayload(methodTicker, payload, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]*domain.Ticker, len(resp))
	for pair, w := range resp {
		out[pair] = w.toDomain(pair)
	}
	return out, nil
}

// Depth returns the order book of each requested pair.
func (c *PublicClient) Depth(ctx context.Context, pairs ...string) (map[string]*domain.DepthBook, error) {
	return c.DepthLimit(ctx, 0, pairs...)
}

// DepthLimit is Depth with at most limit levels per side; limit <= 0 uses the exchange default.
func (c *PublicClient) DepthLimit(ctx context.Context, limit int, pairs ...string) (map[string]*domain.DepthBook, error) {
	payload, err := c.get(ctx, methodDepth, pairs, limitQuery(limit))
	if err != nil {
		return nil, err
	}

	var keyed map[string]json.RawMessage
	if err := decodePayload(methodDepth, payload, &keyed); err != nil {
		return nil, err
	}

	out := make(map[string]*domain.DepthBook, len(keyed))

	// A single pair may come back without the pair key.
	_, hasAsks := keyed["asks"]
	_, hasBids := keyed["bids"]
	if len(pairs) == 1 && (hasAsks || hasBids) {
		var w depthWire
		if err := decodePayload(methodDepth, payload, &w); err != nil {
			return nil, err
		}
		out[pairs[0]] = w.toDomain(pairs[0])
		return out, nil
	}

	for pair, raw := range keyed {
		var w depthWire
		if err := decodePayload(methodDepth, raw, &w); err != nil {
			return nil, err
		}
		out[pair] = w.toDomain(pair)
	}
	return out, nil
}

// Trades returns recent public trades of each requested pair, newest first.
func (c *PublicClient) Trades(ctx context.Context, limit int, pairs ...string) (map[string][]domain.Trade, error) {
	payload, err := c.get(ctx, methodTrades, pairs, limitQuery(limit))
	if err != nil {
		return nil, err
	}
	var resp map[string][]tradeWire
	if err := decodePayload(methodTrades, payload, &resp); err != nil {
		return nil, err
	}
	out := make(map[string][]domain.Trade, len(resp))
	for pair, list := range resp {
		trades := make([]domain.Trade, 0, len(list))
		for _, w := range list {
			trades = append(trades, w.toDomain())
		}
		out[pair] = trades
	}
	return out, nil
}

// get issues GET {base}/{method}/{pair-pair...}?query
func (c *PublicClient) get(ctx context.Context, method string, pairs []string, query url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + "/" + method
	if len(pairs) > 0 {
		reqURL += "/" + strings.Join(pairs, "-")
	}
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.NewTransportError(method, err)
	}
	return c.tr.do(req, method)
}

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		return nil
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}
