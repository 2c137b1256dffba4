package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"btce_go/internal/domain"
	"btce_go/internal/engine"
	"btce_go/internal/event"
	"btce_go/internal/execution"
	"btce_go/internal/feed"
	"btce_go/internal/infra"
	"btce_go/internal/infra/btce"
	"btce_go/internal/infra/storage"
	"btce_go/internal/service"
)

// Options are the command line inputs of the bootstrap.
type Options struct {
	ConfigPath string
	EnvFile    string
	DBPath     string // overrides storage.path when set
}

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Console   *infra.Console
	Store     *engine.Store
	Public    *btce.PublicClient
	Private   *btce.PrivateClient // nil in public-only mode
	Refresher *service.Refresher
	Executor  *execution.Executor
	Feed      *feed.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component. Nothing runs yet.
func (b *Bootstrap) Initialize(opts Options) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(opts.ConfigPath, opts.EnvFile)
	if err != nil {
		return err // Let main handle the error
	}
	if opts.DBPath != "" {
		cfg.Storage.Path = opts.DBPath
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))
	slog.Info("🚀 Bootstrapping BTC-e client...", slog.String("version", cfg.App.Version))

	// 3. Initialize Storage (DB)
	db, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = db
	slog.Info("✅ Database initialized")

	// 4. State store and console
	event.Warmup()
	b.Store = engine.NewStore(engine.DefaultInboxSize)
	b.Console = infra.NewConsole(cfg.UI.ConsoleLines)

	// 5. Exchange clients
	b.Public = btce.NewPublicClient(cfg)
	if err := b.initPrivate(b.Storage); err != nil {
		return err
	}

	// 6. Refresher, executor and feed
	var account domain.TradingAccount
	if b.Private != nil {
		account = b.Private
	}
	b.Refresher = service.NewRefresher(b.Public, account, b.Store, b.Console, service.IntervalsFromConfig(cfg), cfg.Refresh.Pairs)
	b.Executor = execution.NewExecutor(account, b.Refresher, b.Store, b.Console)
	if cfg.Feed.Addr != "" {
		interval := time.Duration(cfg.UI.UpdateIntervalMS) * time.Millisecond
		b.Feed = feed.NewServer(b.Store, b.Executor, b.Console, b.Storage, interval)
	}
	return nil
}

// initPrivate builds the authenticated client seeded with the persisted nonce.
// Placeholder credentials leave Private nil.
func (b *Bootstrap) initPrivate(nonces domain.NonceRepository) error {
	creds := b.Config.Credentials()
	if creds.IsPlaceholder() {
		b.Console.Info("No API credentials configured. Running in public-only mode.")
		slog.Warn("Placeholder credentials, trading disabled")
		return nil
	}

	fingerprint := creds.Fingerprint()
	last, err := nonces.GetNonce(fingerprint)
	if err != nil {
		return fmt.Errorf("load nonce: %w", err)
	}

	private, err := btce.NewPrivateClient(b.Config, domain.CredentialSource{Credentials: creds, LastNonce: last})
	if errors.Is(err, domain.ErrPublicOnly) {
		return nil
	}
	if err != nil {
		return err
	}

	private.SetNonceObserver(func(nonce int64) {
		if err := nonces.SaveNonce(fingerprint, nonce); err != nil {
			slog.Error("Failed to persist nonce", slog.Int64("nonce", nonce), slog.Any("error", err))
		}
	})
	b.Private = private
	slog.Info("✅ Authenticated client ready", slog.Any("key", creds), slog.Int64("last_nonce", last))
	return nil
}

// Run starts the store, the refresh loops and the feed, and blocks until ctx
// is cancelled. Shutdown stops the loops first so their last writes land.
func (b *Bootstrap) Run(ctx context.Context) error {
	storeCtx, stopStore := context.WithCancel(context.WithoutCancel(ctx))
	go b.Store.Run(storeCtx)
	defer func() {
		stopStore()
		<-b.Store.Done()
		if err := b.Close(); err != nil {
			slog.Error("Failed to close storage", slog.Any("error", err))
		}
	}()

	b.restorePairs()

	b.Refresher.Start(ctx)
	defer b.Refresher.Stop()

	feedErr := make(chan error, 1)
	if b.Feed != nil {
		go func() {
			feedErr <- b.Feed.ListenAndServe(ctx, b.Config.Feed.Addr)
		}()
	} else {
		feedErr <- nil
	}

	slog.InfoContext(ctx, "✨ BTC-e client fully operational. Press Ctrl+C to exit.")

	var err error
	select {
	case <-ctx.Done():
		err = <-feedErr
	case err = <-feedErr:
		if err != nil {
			slog.Error("Feed server failed", slog.Any("error", err))
		}
		<-ctx.Done()
	}

	slog.Info("👋 Shutting down gracefully...")
	return err
}

// Close releases the database.
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}

func (b *Bootstrap) restorePairs() {
	pairs, err := b.Storage.LoadSelectedPairs()
	if err != nil {
		slog.Warn("Failed to load selected pairs", slog.Any("error", err))
		return
	}
	if len(pairs) == 0 {
		return
	}
	if err := b.Store.SelectPairs(pairs); err != nil {
		slog.Warn("Ignoring stored pair selection", slog.Any("pairs", pairs), slog.Any("error", err))
		return
	}
	slog.Info("Restored pair selection", slog.Any("pairs", pairs))
}
