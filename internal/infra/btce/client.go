package btce

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"btce_go/internal/domain"
	"btce_go/internal/infra"

	"golang.org/x/time/rate"
)

// maxBodySize caps a single response read.
const maxBodySize = 8 << 20

var errMalformedBody = errors.New("malformed response body")

// transport is the HTTP boundary shared by the public and private clients.
// It owns timeouts, rate limiting and envelope interpretation.
type transport struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *infra.Metrics
	logger     *slog.Logger
}

func newTransport(timeout time.Duration, rps float64, logger *slog.Logger) *transport {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &transport{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		limiter: newLimiter(rps),
		metrics: infra.GlobalMetrics,
		logger:  logger,
	}
}

// newLimiter returns an unrestricted limiter for rps <= 0.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// do sends req and returns the payload of a successful envelope.
// Every failure is a *domain.APIError.
func (t *transport) do(req *http.Request, method string) (json.RawMessage, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, t.transportError(method, err)
	}

	req.Header.Set("User-Agent", infra.DefaultUserAgent)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, t.transportError(method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	t.metrics.RecordRequest(time.Since(start))
	if err != nil {
		return nil, t.transportError(method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, t.transportError(method, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	payload, err := decodeEnvelope(method, body)
	if err != nil {
		if domain.IsKind(err, domain.KindTransport) {
			t.metrics.RecordTransportError()
		} else {
			t.metrics.RecordApplicationError()
		}
		return nil, err
	}
	return payload, nil
}

func (t *transport) transportError(method string, err error) error {
	t.metrics.RecordTransportError()
	t.logger.Debug("Exchange request failed", slog.String("method", method), slog.Any("error", err))
	return domain.NewTransportError(method, err)
}

// decodeEnvelope interprets {"success":1,"return":...} / {"success":0,"error":"..."}.
// Public endpoints answer the payload directly; an "error" field without
// "success" is still a failure.
func decodeEnvelope(method string, body []byte) (json.RawMessage, error) {
	var env struct {
		Success *int            `json:"success"`
		Return  json.RawMessage `json:"return"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &domain.APIError{
			Kind:    domain.KindTransport,
			Method:  method,
			Message: errMalformedBody.Error(),
			Err:     fmt.Errorf("%w: %v", errMalformedBody, err),
		}
	}

	msg := errorText(env.Error)
	switch {
	case env.Success != nil && *env.Success == 1:
		return env.Return, nil
	case env.Success != nil:
		if msg == "" {
			msg = "unknown error"
		}
		return nil, domain.NewApplicationError(method, msg)
	case msg != "":
		return nil, domain.NewApplicationError(method, msg)
	default:
		return body, nil
	}
}

func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// decodePayload unmarshals a successful payload into out.
func decodePayload(method string, payload json.RawMessage, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return &domain.APIError{
			Kind:    domain.KindTransport,
			Method:  method,
			Message: errMalformedBody.Error(),
			Err:     fmt.Errorf("%w: %v", errMalformedBody, err),
		}
	}
	return nil
}
