package feed

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"btce_go/internal/domain"
	"btce_go/internal/engine"
	"btce_go/internal/infra"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// StateSource is the consumer's view of the state store.
type StateSource interface {
	Snapshot(ctx context.Context) (engine.Snapshot, error)
	SelectPairs(pairs []string) error
	SelectedPairs(ctx context.Context) ([]string, error)
}

// Commander runs trading commands.
type Commander interface {
	PlaceOrder(ctx context.Context, pair string, side domain.Side, rate, amount decimal.Decimal) (*domain.TradeResult, error)
	CancelOrders(ctx context.Context, ids []int64) ([]*domain.CancelResult, error)
}

// ConsoleSource hands out pending console lines once.
type ConsoleSource interface {
	Drain() []infra.ConsoleLine
	Dropped() uint64
}

// PairSaver persists the pair selection across restarts.
type PairSaver interface {
	SaveSelectedPairs(pairs []string) error
}

// Route is one entry of the gateway's routing table.
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// Server exposes the state store, the console and the executor over HTTP and websocket.
type Server struct {
	state    StateSource
	commands Commander
	console  ConsoleSource
	pairs    PairSaver
	metrics  *infra.Metrics
	interval time.Duration

	router   *mux.Router
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer builds the gateway. pairs may be nil when nothing is persisted.
// interval is the cadence of websocket frames.
func NewServer(state StateSource, commands Commander, console ConsoleSource, pairs PairSaver, interval time.Duration) *Server {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{
		state:    state,
		commands: commands,
		console:  console,
		pairs:    pairs,
		metrics:  infra.GlobalMetrics,
		interval: interval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default().With("module", "feed"),
	}
	s.router = s.newRouter()
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() []Route {
	return []Route{
		{"GetSnapshot", http.MethodGet, "/api/snapshot", s.handleSnapshot},
		{"SelectPairs", http.MethodPost, "/api/pairs", s.handleSelectPairs},
		{"PlaceOrder", http.MethodPost, "/api/orders", s.handlePlaceOrder},
		{"CancelOrders", http.MethodPost, "/api/orders/cancel", s.handleCancelOrders},
		{"DrainConsole", http.MethodGet, "/api/console", s.handleConsole},
		{"GetMetrics", http.MethodGet, "/api/metrics", s.handleMetrics},
		{"ws", http.MethodGet, "/ws", s.handleWebsocket},
	}
}

func (s *Server) newRouter() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	for _, route := range s.routes() {
		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(s.requestLogger(route.HandlerFunc, route.Name))
	}
	return router
}

// requestLogger logs every request with its latency.
func (s *Server) requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inner.ServeHTTP(w, r)

		s.logger.Debug("Request served",
			slog.String("method", r.Method),
			slog.String("uri", r.RequestURI),
			slog.String("route", name),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Feed server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("Feed server stopped")
	return nil
}
