package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/vietddude/dexwatch/internal/core/config"
	"github.com/vietddude/dexwatch/internal/core/wallet"
	"github.com/vietddude/dexwatch/internal/core/worker"
	"github.com/vietddude/dexwatch/internal/indexing/emitter"
	"github.com/vietddude/dexwatch/internal/indexing/filter"
	"github.com/vietddude/dexwatch/internal/indexing/health"
	"github.com/vietddude/dexwatch/internal/indexing/indexer"
	"github.com/vietddude/dexwatch/internal/indexing/subscription"
	"github.com/vietddude/dexwatch/internal/infra/chain/solana"
	redisclient "github.com/vietddude/dexwatch/internal/infra/redis"
	"github.com/vietddude/dexwatch/internal/infra/rpc/provider"
	"github.com/vietddude/dexwatch/internal/infra/rpc/routing"
	"github.com/vietddude/dexwatch/internal/infra/storage"
	"github.com/vietddude/dexwatch/internal/infra/storage/jsonfile"
	"github.com/vietddude/dexwatch/internal/infra/storage/memory"
	"github.com/vietddude/dexwatch/internal/infra/storage/postgres"
	"github.com/vietddude/dexwatch/internal/telegram"
)

// Watcher is the main application struct that manages the bot lifecycle.
type Watcher struct {
	cfg          *config.AppConfig
	store        *jsonfile.Store
	rpc          *solana.Client
	stream       *solana.LogStream
	manager      *subscription.Manager
	wallets      *wallet.Service
	bot          *telegram.Bot
	emitter      emitter.Emitter
	healthMon    *health.Monitor
	healthServer *health.Server
	pruner       *worker.Pruner
	alerts       storage.AlertRepository
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger

	// base outlives Start's ctx so Stop can drain pipelines in order
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
func NewWatcher(cfg *config.AppConfig) (*Watcher, error) {
	log := slog.Default()

	// 1. Wallet storage
	store, err := jsonfile.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet storage: %w", err)
	}

	w := &Watcher{cfg: cfg, store: store, log: log}
	w.base, w.cancel = context.WithCancel(context.Background())

	// 2. RPC providers, failover in configured order
	providers := make([]provider.RPCProvider, 0, len(cfg.Solana.Providers))
	for _, p := range cfg.Solana.Providers {
		providers = append(providers, provider.NewHTTPProvider(p.Name, p.URL, cfg.Solana.RequestTimeout))
	}
	retry := routing.DefaultRetryConfig
	if cfg.Solana.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Solana.MaxAttempts
	}
	w.rpc = solana.NewClient(retry, providers...)
	w.stream = solana.NewLogStream(solana.StreamConfig{
		URL:            cfg.Solana.WSURL,
		RequestTimeout: cfg.Solana.RequestTimeout,
		PingInterval:   cfg.Solana.PingInterval,
	})

	// 3. Redis dedup, in-process when unavailable
	var deduper indexer.Deduper = indexer.NewMemoryDeduper()
	var cache wallet.CacheCleaner
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, using in-memory dedup", "error", err)
		} else {
			w.redisClient = client
			deduper = client
			cache = client
			log.Info("Using Redis dedup")
		}
	}

	// 4. Alert history
	w.alerts = memory.NewAlertStore()
	if cfg.Database.URL != "" {
		db, err := postgres.NewDB(context.Background(), cfg.Database.Config)
		if err != nil {
			w.closeInfra()
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(context.Background()); err != nil {
			_ = db.Close()
			w.closeInfra()
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		w.db = db
		w.alerts = postgres.NewAlertRepo(db)
		log.Info("Using PostgreSQL alert history")
	} else {
		log.Info("Using Memory alert history")
	}
	if cfg.Database.Retention > 0 {
		w.pruner = worker.NewPruner(cfg.Database.Retention, w.alerts)
	}

	// 5. Telegram
	w.bot, err = telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		BotName:        cfg.Telegram.BotName,
		AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
		ServerURL:      cfg.Telegram.ServerURL,
	})
	if err != nil {
		w.closeInfra()
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	// 6. Notification pipeline
	w.emitter = emitter.NewMultiEmitter(
		emitter.NewLogEmitter(log),
		emitter.NewChatEmitter(w.bot.Notifier(), w.bot.Formatter()),
		emitter.NewHistoryEmitter(w.alerts),
	)
	pipeline := indexer.NewPipeline(indexer.Config{
		Fetcher:         w.rpc,
		Filter:          filter.New(filter.NewMintResolver(nil)),
		Emitter:         w.emitter,
		Deduper:         deduper,
		Logger:          log,
		DedupTTL:        cfg.Solana.DedupTTL,
		FetchTimeout:    cfg.Solana.RequestTimeout,
		NotFoundRetries: cfg.Solana.FetchRetries,
		NotFoundDelay:   cfg.Solana.FetchDelay,
	})

	// 7. Subscriptions and wallet commands
	w.manager = subscription.NewManager(w.base, w.stream, pipeline, w.bot.Notifier())
	w.wallets = wallet.NewService(store, w.manager, cache)

	// 8. Health
	w.healthMon = health.NewMonitor(w.rpc, w.wallets, w.manager)
	w.healthServer = health.NewServer(w.healthMon, cfg.Server.Port)

	w.bot.Bind(w.wallets, w.healthMon, w.alerts)
	return w, nil
}

// Start starts the watcher and all its components. It returns once the
// background loops are running.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Info("Starting Watcher",
		"providers", len(w.cfg.Solana.Providers),
		"data", filepath.Join(w.cfg.Storage.DataDir, jsonfile.WalletFile),
		"port", w.cfg.Server.Port,
	)

	// Start Health Server
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if w.db != nil {
		w.db.StartMetricsCollector(ctx)
	}

	// Start Log Stream
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.stream.Run(w.base); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("Log stream stopped", "error", err)
		}
	}()

	// Start Pruner
	if w.pruner != nil {
		w.log.Info("Starting pruner", "retention", w.cfg.Database.Retention)
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.pruner.Start(ctx)
		}()
	}

	// Restore wallets for the admin chat; without one they wait for /start
	if chatID := w.cfg.Telegram.AdminChatID; chatID != 0 {
		n, err := w.wallets.Restore(ctx, chatID)
		if err != nil {
			w.log.Warn("Failed to restore wallets", "error", err)
		} else {
			w.log.Info("Restored wallet subscriptions", "count", n, "chat", chatID)
		}
	}

	// Start Bot
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.bot.Start(ctx)
	}()

	return nil
}

// Stop closes every subscription, drains in-flight notifications and
// releases storage. It is safe to call once.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	n := w.manager.StopAll(ctx)
	w.cancel()
	if err := w.stream.Close(); err != nil {
		w.log.Warn("Failed to close log stream", "error", err)
	}
	w.manager.Wait()
	if n > 0 {
		w.log.Info("Closed subscriptions", "count", n)
	}

	if err := w.emitter.Close(); err != nil {
		w.log.Warn("Failed to close emitter", "error", err)
	}

	err := w.healthServer.Stop(ctx)
	w.closeInfra()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn("Timed out waiting for background tasks")
	}
	return err
}

func (w *Watcher) closeInfra() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.store != nil {
		if err := w.store.Close(); err != nil && !errors.Is(err, jsonfile.ErrClosed) {
			w.log.Warn("Failed to close wallet storage", "error", err)
		}
	}
	if w.rpc != nil {
		_ = w.rpc.Close()
	}
	if w.redisClient != nil {
		if err := w.redisClient.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if w.db != nil {
		if err := w.db.Close(); err != nil {
			w.log.Warn("Failed to close database", "error", err)
		}
	}
}

// Wallets exposes the wallet service.
func (w *Watcher) Wallets() *wallet.Service {
	return w.wallets
}
