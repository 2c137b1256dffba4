package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"btce_go/internal/domain"
	"btce_go/internal/event"
)

// DefaultInboxSize is used when NewStore is given a non-positive size.
const DefaultInboxSize = 64

// readRequest travels through the inbox so it observes every write sent before it.
// read runs on the Run goroutine; done is closed once it returned.
type readRequest struct {
	event.BaseEvent
	read func(state *Snapshot)
	done chan struct{}
}

func (r *readRequest) GetType() event.Type { return event.TypeSnapshot }

// Store is the shared state of the client. A single goroutine (Run) owns the
// state; producers and readers talk to it only through the inbox.
type Store struct {
	inbox chan event.Event
	done  chan struct{}

	// Owned by the Run goroutine
	state    Snapshot
	nextSeq  uint64
	inFlight map[event.PendingKind]int

	logger *slog.Logger
}

// NewStore creates a new store instance.
func NewStore(inboxSize int) *Store {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	return &Store{
		inbox:    make(chan event.Event, inboxSize),
		done:     make(chan struct{}),
		nextSeq:  1,
		inFlight: make(map[event.PendingKind]int),
		logger:   slog.Default().With("module", "store"),
	}
}

// Run starts the main event loop. This MUST be run in a single goroutine.
// After it returns every store call fails with domain.ErrStoreStopped.
func (s *Store) Run(ctx context.Context) {
	s.logger.Info("State store started")
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("State store stopping...")
			return
		case ev := <-s.inbox:
			s.process(ev)
		}
	}
}

// Done is closed when Run has returned.
func (s *Store) Done() <-chan struct{} {
	return s.done
}

func (s *Store) process(ev event.Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r), slog.String("event", ev.GetType().String()))
			s.DumpState("panic_dump.json")
		}
	}()
	defer event.Release(ev)

	if req, ok := ev.(*readRequest); ok {
		defer close(req.done)
		req.read(&s.state)
		return
	}

	ev.SetSeq(s.nextSeq)
	ts := time.UnixMilli(ev.GetTs())

	switch e := ev.(type) {
	case *event.MarketInfoEvent:
		s.state.Info = e.Info
		s.state.Updated.Info = ts
	case *event.DepthEvent:
		if s.state.Depth == nil {
			s.state.Depth = make(map[string]*domain.DepthBook)
		}
		s.state.Depth[e.Pair] = e.Book
		s.state.Updated.Depth = ts
	case *event.AccountEvent:
		s.state.Account = e.Account
		s.state.Updated.Account = ts
	case *event.OrdersEvent:
		s.state.Orders = e.Orders
		s.state.Updated.Orders = ts
	case *event.PairsEvent:
		s.state.Pairs = e.Pairs
		s.pruneDepth()
	case *event.PendingEvent:
		s.applyPending(e)
	default:
		s.logger.Warn("Unknown event type", slog.Any("type", ev.GetType()))
		return
	}

	s.state.Seq = s.nextSeq
	s.nextSeq++
}

// applyPending counts commands per kind; a flag stays set until the last
// overlapping command of its kind has finished.
func (s *Store) applyPending(e *event.PendingEvent) {
	if e.Active {
		s.inFlight[e.Kind]++
	} else if s.inFlight[e.Kind] > 0 {
		s.inFlight[e.Kind]--
	}
	s.state.Pending = Pending{
		Buying:     s.inFlight[event.PendingBuy] > 0,
		Selling:    s.inFlight[event.PendingSell] > 0,
		Cancelling: s.inFlight[event.PendingCancel] > 0,
	}
}

// pruneDepth drops the books of pairs that are no longer selected.
func (s *Store) pruneDepth() {
	if len(s.state.Pairs) == 0 || s.state.Depth == nil {
		return
	}
	keep := make(map[string]bool, len(s.state.Pairs))
	for _, p := range s.state.Pairs {
		keep[p] = true
	}
	for pair := range s.state.Depth {
		if !keep[pair] {
			delete(s.state.Depth, pair)
		}
	}
}

// send queues ev unless the store has stopped.
func (s *Store) send(ev event.Event) error {
	select {
	case <-s.done:
		return domain.ErrStoreStopped
	default:
	}
	select {
	case s.inbox <- ev:
		return nil
	case <-s.done:
		return domain.ErrStoreStopped
	}
}

func now() event.BaseEvent {
	return event.BaseEvent{Ts: time.Now().UnixMilli()}
}

// WriteMarketInfo replaces the market info; nil marks the last fetch as failed.
func (s *Store) WriteMarketInfo(info *domain.MarketInfo) error {
	return s.send(&event.MarketInfoEvent{BaseEvent: now(), Info: info})
}

// WriteDepth replaces the book of one pair; nil marks the last fetch of that pair as failed.
// Books of other pairs are left untouched.
func (s *Store) WriteDepth(pair string, book *domain.DepthBook) error {
	ev := event.AcquireDepthEvent()
	ev.BaseEvent = now()
	ev.Pair = pair
	ev.Book = book
	return s.send(ev)
}

// WriteAccount replaces the account info; nil marks the last fetch as failed.
func (s *Store) WriteAccount(account *domain.AccountInfo) error {
	ev := event.AcquireAccountEvent()
	ev.BaseEvent = now()
	ev.Account = account
	return s.send(ev)
}

// WriteOrders replaces the open orders; nil marks the last fetch as failed.
func (s *Store) WriteOrders(orders []domain.Order) error {
	return s.send(&event.OrdersEvent{BaseEvent: now(), Orders: orders})
}

// SelectPairs sets the pairs whose depth the consumer wants to see.
// Pairs are normalized to "btc_usd" form and deduplicated.
func (s *Store) SelectPairs(pairs []string) error {
	seen := make(map[string]bool, len(pairs))
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		norm, err := domain.NormalizePair(p)
		if err != nil {
			return err
		}
		if seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, norm)
	}
	return s.send(&event.PairsEvent{BaseEvent: now(), Pairs: out})
}

// SetPending records a command of kind starting (active) or finishing.
// Every start must be paired with exactly one finish.
func (s *Store) SetPending(kind event.PendingKind, active bool) error {
	return s.send(&event.PendingEvent{BaseEvent: now(), Kind: kind, Active: active})
}

// query runs read on the Run goroutine after every write sent before the call.
// Results captured by read may only be used when query returns nil.
func (s *Store) query(ctx context.Context, read func(state *Snapshot)) error {
	req := &readRequest{read: read, done: make(chan struct{})}
	if err := s.send(req); err != nil {
		return err
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return domain.ErrStoreStopped
	}
}

// Snapshot returns a deep copy of the state including every write sent before the call.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if err := s.query(ctx, func(state *Snapshot) { snap = state.clone() }); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// SelectedPairs returns the current pair selection without copying the rest of the state.
func (s *Store) SelectedPairs(ctx context.Context) ([]string, error) {
	var pairs []string
	err := s.query(ctx, func(state *Snapshot) {
		if state.Pairs != nil {
			pairs = append(make([]string, 0, len(state.Pairs)), state.Pairs...)
		}
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// DumpState writes the entire internal state to a file (for post-mortem).
// Only call from the Run goroutine.
func (s *Store) DumpState(filename string) {
	s.logger.Info("Dumping internal state...", slog.String("file", filename))

	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		s.logger.Error("Failed to write state dump", slog.Any("error", fmt.Errorf("dump %s: %w", filename, err)))
	}
}
