package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"btce_go/internal/domain"
	"btce_go/internal/infra"
)

// StateWriter is the part of the state store the refresher needs.
type StateWriter interface {
	WriteMarketInfo(info *domain.MarketInfo) error
	WriteDepth(pair string, book *domain.DepthBook) error
	WriteAccount(account *domain.AccountInfo) error
	WriteOrders(orders []domain.Order) error
	SelectedPairs(ctx context.Context) ([]string, error)
}

// Intervals are the waits between two fetches of each loop.
type Intervals struct {
	Depth   time.Duration
	Account time.Duration
	Orders  time.Duration
	Info    time.Duration
}

// DefaultIntervals returns 1s depth, 5s account, 10s orders and 30s info.
func DefaultIntervals() Intervals {
	return Intervals{
		Depth:   1 * time.Second,
		Account: 5 * time.Second,
		Orders:  10 * time.Second,
		Info:    30 * time.Second,
	}
}

// IntervalsFromConfig reads the refresh section of the configuration.
func IntervalsFromConfig(cfg *infra.Config) Intervals {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return Intervals{
		Depth:   ms(cfg.Refresh.DepthMS),
		Account: ms(cfg.Refresh.AccountMS),
		Orders:  ms(cfg.Refresh.OrdersMS),
		Info:    ms(cfg.Refresh.InfoMS),
	}
}

// Refresher runs the periodic fetch loops and writes their results into the store.
// Without a trading account only the public loops run.
type Refresher struct {
	public       domain.MarketDataSource
	private      domain.TradingAccount
	store        StateWriter
	console      domain.LogSink
	intervals    Intervals
	defaultPairs []string

	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewRefresher creates a refresher. private may be nil for public-only mode.
func NewRefresher(public domain.MarketDataSource, private domain.TradingAccount, store StateWriter, console domain.LogSink, intervals Intervals, defaultPairs []string) *Refresher {
	return &Refresher{
		public:       public,
		private:      private,
		store:        store,
		console:      console,
		intervals:    intervals,
		defaultPairs: append([]string(nil), defaultPairs...),
		logger:       slog.Default().With("module", "refresher"),
	}
}

// PublicOnly reports whether the authenticated loops are disabled.
func (r *Refresher) PublicOnly() bool {
	return r.private == nil
}

// Start launches the loops. Each fetches immediately, then waits its interval.
func (r *Refresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.spawn(ctx, "depth", r.intervals.Depth, r.RefreshDepth)
	r.spawn(ctx, "info", r.intervals.Info, r.RefreshInfo)
	if r.PublicOnly() {
		r.logger.Info("Public-only mode: account and order refresh disabled")
		return
	}
	r.spawn(ctx, "account", r.intervals.Account, r.RefreshAccount)
	r.spawn(ctx, "orders", r.intervals.Orders, r.RefreshOrders)
}

// Stop cancels the loops and waits for in-flight fetches to finish.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
		r.wg.Wait()
	}
}

func (r *Refresher) spawn(ctx context.Context, name string, interval time.Duration, fetch func(context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.logger.Debug("Refresh loop started", slog.String("loop", name), slog.Duration("interval", interval))

		// A started fetch runs to completion; only the wait is cancelled.
		fetchCtx := context.WithoutCancel(ctx)
		for ctx.Err() == nil {
			r.runOnce(fetchCtx, name, fetch)

			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
		r.logger.Info("Refresh loop stopped", slog.String("loop", name))
	}()
}

func (r *Refresher) runOnce(ctx context.Context, name string, fetch func(context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Refresh loop panic recovered", slog.String("loop", name), slog.Any("panic", rec))
		}
	}()
	if err := fetch(ctx); err != nil {
		r.logger.Debug("Refresh failed", slog.String("loop", name), slog.Any("error", err))
	}
}

// RefreshDepth fetches the books of the selected pairs, or the default pairs
// when nothing is selected. With no pairs at all it does nothing.
func (r *Refresher) RefreshDepth(ctx context.Context) error {
	pairs, err := r.store.SelectedPairs(ctx)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		pairs = r.defaultPairs
	}
	if len(pairs) == 0 {
		return nil
	}

	books, err := r.public.Depth(ctx, pairs...)
	if err != nil {
		r.console.Warn(fmt.Sprintf("Error requesting depth: %s", domain.Message(err)))
	}

	// On failure every requested pair is marked unknown.
	errs := []error{err}
	for _, pair := range pairs {
		errs = append(errs, r.store.WriteDepth(pair, books[pair]))
	}
	return errors.Join(errs...)
}

// RefreshInfo fetches the exchange-wide market info.
func (r *Refresher) RefreshInfo(ctx context.Context) error {
	info, err := r.public.Info(ctx)
	if err != nil {
		r.console.Warn(fmt.Sprintf("Error requesting public info: %s", domain.Message(err)))
		return errors.Join(err, r.store.WriteMarketInfo(nil))
	}
	return r.store.WriteMarketInfo(info)
}

// RefreshAccount fetches balances and rights.
func (r *Refresher) RefreshAccount(ctx context.Context) error {
	if r.PublicOnly() {
		return domain.ErrPublicOnly
	}
	account, err := r.private.GetInfo(ctx)
	if err != nil {
		r.console.Warn(fmt.Sprintf("Error requesting user info: %s", domain.Message(err)))
		return errors.Join(err, r.store.WriteAccount(nil))
	}
	return r.store.WriteAccount(account)
}

// RefreshOrders fetches the open orders. "no orders" is stored as an empty set.
func (r *Refresher) RefreshOrders(ctx context.Context) error {
	if r.PublicOnly() {
		return domain.ErrPublicOnly
	}
	orders, err := r.private.ActiveOrders(ctx, "")
	switch {
	case domain.IsBenign(err):
		return r.store.WriteOrders([]domain.Order{})
	case err != nil:
		r.console.Warn(fmt.Sprintf("Error requesting open orders: %s", domain.Message(err)))
		return errors.Join(err, r.store.WriteOrders(nil))
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return r.store.WriteOrders(orders)
}
