package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"btce_go/internal/domain"
	"btce_go/internal/engine"
	"btce_go/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// OrderRequest is the body of POST /api/orders.
type OrderRequest struct {
	Pair   string          `json:"pair"`
	Type   string          `json:"type"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// CancelRequest is the body of POST /api/orders/cancel.
type CancelRequest struct {
	OrderIDs []int64 `json:"order_ids"`
}

// PairsRequest is the body of POST /api/pairs.
type PairsRequest struct {
	Pairs []string `json:"pairs"`
}

// Frame is one websocket push.
type Frame struct {
	Snapshot engine.Snapshot     `json:"snapshot"`
	Console  []infra.ConsoleLine `json:"console"`
}

// MetricsResponse is the body of GET /api/metrics.
type MetricsResponse struct {
	infra.MetricsSnapshot
	ConsoleDropped uint64 `json:"console_dropped"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorResponse{Error: err.Error()})
}

// statusOf maps domain errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder), errors.Is(err, domain.ErrInvalidPair):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPublicOnly):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrStoreStopped):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.KindApplication):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.state.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSelectPairs(w http.ResponseWriter, r *http.Request) {
	var req PairsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.state.SelectPairs(req.Pairs); err != nil {
		writeError(w, err)
		return
	}
	pairs, err := s.state.SelectedPairs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if s.pairs != nil {
		if err := s.pairs.SaveSelectedPairs(pairs); err != nil {
			s.logger.Warn("Failed to persist pair selection", slog.Any("error", err))
		}
	}
	writeJSON(w, http.StatusOK, PairsRequest{Pairs: pairs})
}

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	side, err := domain.ParseSide(req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	pair, err := domain.NormalizePair(req.Pair)
	if err != nil {
		writeError(w, errors.Join(domain.ErrInvalidOrder, err))
		return
	}

	// A started command runs to completion even if the client goes away.
	result, err := s.commands.PlaceOrder(context.WithoutCancel(r.Context()), pair, side, req.Rate, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelOrders(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	results, err := s.commands.CancelOrders(context.WithoutCancel(r.Context()), req.OrderIDs)
	if err != nil && len(results) == 0 {
		writeError(w, err)
		return
	}
	resp := struct {
		Cancelled []*domain.CancelResult `json:"cancelled"`
		Error     string                 `json:"error,omitempty"`
	}{Cancelled: results}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	lines := s.console.Drain()
	if lines == nil {
		lines = []infra.ConsoleLine{}
	}
	writeJSON(w, http.StatusOK, lines)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MetricsResponse{
		MetricsSnapshot: s.metrics.Snapshot(),
		ConsoleDropped:  s.console.Dropped(),
	})
}

// handleWebsocket pushes a Frame every interval until the client disconnects.
// Console lines are drained, so each line reaches exactly one consumer.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	s.metrics.IncrementFeedClients()
	defer s.metrics.DecrementFeedClients()
	s.logger.Info("Feed client connected", slog.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reads only detect the close; clients send nothing we act on.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.push(ctx, conn); err != nil {
			s.logger.Info("Feed client disconnected", slog.String("remote", r.RemoteAddr), slog.Any("reason", err))
			return
		}
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) push(ctx context.Context, conn *websocket.Conn) error {
	snap, err := s.state.Snapshot(ctx)
	if err != nil {
		return err
	}
	frame := Frame{Snapshot: snap, Console: s.console.Drain()}
	if frame.Console == nil {
		frame.Console = []infra.ConsoleLine{}
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
