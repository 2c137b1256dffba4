package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"btce_go/internal/domain"
	"btce_go/internal/event"
	"btce_go/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	msgPlaceFailed  = "Error placing order"
	msgCancelFailed = "Error cancelling order"
)

// Refresher forces an out-of-cadence refresh of the private state.
type Refresher interface {
	RefreshOrders(ctx context.Context) error
	RefreshAccount(ctx context.Context) error
}

// PendingSetter exposes in-flight command flags to the consumer.
type PendingSetter interface {
	SetPending(kind event.PendingKind, active bool) error
}

// Executor runs consumer commands against the trading account.
// Commands may run concurrently; the account serializes the underlying calls.
type Executor struct {
	account   domain.TradingAccount
	refresher Refresher
	pending   PendingSetter
	console   domain.LogSink
	metrics   *infra.Metrics
	logger    *slog.Logger
}

// NewExecutor creates an executor. account may be nil in public-only mode,
// in which case every command fails with domain.ErrPublicOnly.
func NewExecutor(account domain.TradingAccount, refresher Refresher, pending PendingSetter, console domain.LogSink) *Executor {
	return &Executor{
		account:   account,
		refresher: refresher,
		pending:   pending,
		console:   console,
		metrics:   infra.GlobalMetrics,
		logger:    slog.Default().With("module", "executor"),
	}
}

// PlaceOrder submits a limit order, then refreshes orders and account before returning.
func (e *Executor) PlaceOrder(ctx context.Context, pair string, side domain.Side, rate, amount decimal.Decimal) (*domain.TradeResult, error) {
	if e.account == nil {
		return nil, e.reject(msgPlaceFailed, domain.ErrPublicOnly)
	}
	req := domain.OrderRequest{Pair: pair, Side: side, Rate: rate, Amount: amount}
	if err := req.Validate(); err != nil {
		return nil, e.reject(msgPlaceFailed, err)
	}

	logger := e.logger.With(slog.String("cmd_id", uuid.NewString()))
	kind := event.PendingBuy
	if side == domain.SideSell {
		kind = event.PendingSell
	}
	e.setPending(logger, kind, true)
	defer e.setPending(logger, kind, false)

	e.console.Info(fmt.Sprintf("Placing order [%s, %s, %s, %s].", pair, side, rate, amount))
	logger.Info("Placing order",
		slog.String("pair", pair),
		slog.String("side", string(side)),
		slog.String("rate", rate.String()),
		slog.String("amount", amount.String()),
	)

	result, err := e.account.Trade(ctx, pair, side, rate, amount)
	if err != nil {
		e.console.Warn(fmt.Sprintf("%s: %s", msgPlaceFailed, domain.Message(err)))
		logger.Warn("Order rejected", slog.Any("error", err))
	} else {
		e.metrics.RecordOrderPlaced()
		e.console.Info("Order placed successfully.")
		logger.Info("Order placed",
			slog.Int64("order_id", result.OrderID),
			slog.Bool("filled", result.Filled()),
		)
	}

	e.refresh(ctx, logger)
	return result, err
}

// CancelOrders cancels each order in turn, then refreshes orders and account
// before returning. A failed cancel does not stop the remaining ones.
func (e *Executor) CancelOrders(ctx context.Context, ids []int64) ([]*domain.CancelResult, error) {
	if e.account == nil {
		return nil, e.reject(msgCancelFailed, domain.ErrPublicOnly)
	}
	if len(ids) == 0 {
		return nil, e.reject(msgCancelFailed, fmt.Errorf("%w: no order ids", domain.ErrInvalidOrder))
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, e.reject(msgCancelFailed, fmt.Errorf("%w: invalid order id %d", domain.ErrInvalidOrder, id))
		}
	}

	logger := e.logger.With(slog.String("cmd_id", uuid.NewString()))
	e.setPending(logger, event.PendingCancel, true)
	defer e.setPending(logger, event.PendingCancel, false)

	var (
		results []*domain.CancelResult
		errs    []error
	)
	for _, id := range ids {
		e.console.Info(fmt.Sprintf("Cancel order %d.", id))

		res, err := e.account.CancelOrder(ctx, id)
		if err != nil {
			e.console.Warn(fmt.Sprintf("%s: %s", msgCancelFailed, domain.Message(err)))
			logger.Warn("Cancel rejected", slog.Int64("order_id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("cancel %d: %w", id, err))
			continue
		}
		e.metrics.RecordOrderCancelled()
		e.console.Info("Order cancelled successfully.")
		logger.Info("Order cancelled", slog.Int64("order_id", id))
		results = append(results, res)
	}

	e.refresh(ctx, logger)
	return results, errors.Join(errs...)
}

// refresh runs the orders refresh, then the account refresh. Their failures
// are already reported to the console by the refresher.
func (e *Executor) refresh(ctx context.Context, logger *slog.Logger) {
	if err := e.refresher.RefreshOrders(ctx); err != nil {
		logger.Debug("Post-command orders refresh failed", slog.Any("error", err))
	}
	if err := e.refresher.RefreshAccount(ctx); err != nil {
		logger.Debug("Post-command account refresh failed", slog.Any("error", err))
	}
}

func (e *Executor) setPending(logger *slog.Logger, kind event.PendingKind, active bool) {
	if e.pending == nil {
		return
	}
	if err := e.pending.SetPending(kind, active); err != nil {
		logger.Warn("Failed to update pending flag", slog.Any("error", err))
	}
}

// reject reports a command refused before reaching the exchange.
func (e *Executor) reject(prefix string, err error) error {
	e.console.Warn(fmt.Sprintf("%s: %s", prefix, domain.Message(err)))
	e.logger.Warn("Command rejected", slog.Any("error", err))
	return err
}
