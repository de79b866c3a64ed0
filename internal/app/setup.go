package app

import (
	"context"
	"fmt"

	"github.com/mselser95/updown-bot/internal/execution"
	"github.com/mselser95/updown-bot/internal/gate"
	"github.com/mselser95/updown-bot/internal/ledger"
	"github.com/mselser95/updown-bot/internal/notify"
	"github.com/mselser95/updown-bot/internal/race"
	"github.com/mselser95/updown-bot/internal/reconcile"
	"github.com/mselser95/updown-bot/internal/session"
	"github.com/mselser95/updown-bot/internal/windows"
	"github.com/mselser95/updown-bot/pkg/cache"
	"github.com/mselser95/updown-bot/pkg/config"
	"github.com/mselser95/updown-bot/pkg/healthprobe"
	"github.com/mselser95/updown-bot/pkg/httpserver"
	"github.com/mselser95/updown-bot/pkg/types"
	"github.com/mselser95/updown-bot/pkg/websocket"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := setupHealthChecker()

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	clock := windows.NewClock(cfg.WindowSlugPrefix, cfg.WindowPeriod)
	directory := setupDirectory(cfg, logger, marketCache)
	wsManager := setupWebSocketManager(cfg, logger)

	store, err := setupLedger(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup ledger: %w", err)
	}

	priceGate, err := setupGate(ctx, cfg, logger, store)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup gate: %w", err)
	}

	guard := session.NewGuard(cfg.SessionLossLimit, logger)
	notifier := notify.NewConsoleNotifier(logger)

	raceEngine, err := setupRaceEngine(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup race engine: %w", err)
	}

	reconciler := setupReconciler(cfg, logger, store, directory, notifier, guard)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, guard, store)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		clock:         clock,
		directory:     directory,
		wsManager:     wsManager,
		priceGate:     priceGate,
		guard:         guard,
		store:         store,
		notifier:      notifier,
		raceEngine:    raceEngine,
		reconciler:    reconciler,
		ctx:           ctx,
		cancel:        cancel,
		singleWindow:  opts.SingleWindow,
	}, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New()
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items
		MaxCost:     1000,  // Maximum 1000 items in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupDirectory(cfg *config.Config, logger *zap.Logger, marketCache cache.Cache) *windows.Directory {
	return windows.NewDirectory(&windows.DirectoryConfig{
		BaseURL:  cfg.PolymarketGammaURL,
		Cache:    marketCache,
		CacheTTL: cfg.WindowPeriod,
		Logger:   logger,
	})
}

func setupWebSocketManager(cfg *config.Config, logger *zap.Logger) *websocket.Manager {
	return websocket.New(websocket.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		TickBufferSize:        cfg.WSTickBufferSize,
		Logger:                logger,
	})
}

func setupLedger(cfg *config.Config, logger *zap.Logger) (ledger.Store, error) {
	if cfg.StorageMode == "postgres" {
		pgStore, err := ledger.NewPostgresStore(&ledger.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres ledger: %w", err)
		}
		return pgStore, nil
	}

	return ledger.NewMemoryStore(logger), nil
}

// setupGate builds the price gate, seeded from the ledger so a restart
// cannot re-enter a window bet in a prior process.
func setupGate(ctx context.Context, cfg *config.Config, logger *zap.Logger, store ledger.Store) (*gate.Gate, error) {
	betWindows, err := store.BetWindows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bet windows: %w", err)
	}

	if len(betWindows) > 0 {
		logger.Info("bet-windows-recovered", zap.Int("count", len(betWindows)))
	}

	filter, err := setupHourFilter(ctx, cfg, logger, store)
	if err != nil {
		return nil, err
	}

	return gate.New(&gate.Config{
		EntryThreshold: cfg.EntryThreshold,
		RejectCeiling:  cfg.RejectCeiling,
		BetWindows:     betWindows,
		Filter:         filter,
		Logger:         logger,
	}), nil
}

// setupHourFilter derives (hour, weekday) win rates from resolved history in
// the ledger. Timeouts are counted as losses; pending positions are skipped.
func setupHourFilter(ctx context.Context, cfg *config.Config, logger *zap.Logger, store ledger.Store) (gate.FilterFunc, error) {
	if !cfg.HourFilterEnabled {
		return nil, nil
	}

	history, err := store.ListRecent(ctx, cfg.HourFilterHistory)
	if err != nil {
		return nil, fmt.Errorf("load hour filter history: %w", err)
	}

	type key struct {
		hour    int
		weekday int
	}
	buckets := make(map[key]*gate.FilterCell)

	for _, pos := range history {
		if !pos.Outcome.Terminal() {
			continue
		}
		created := pos.CreatedAt.UTC()
		k := key{created.Hour(), int(created.Weekday())}
		cell, ok := buckets[k]
		if !ok {
			cell = &gate.FilterCell{Hour: k.hour, Weekday: created.Weekday()}
			buckets[k] = cell
		}
		cell.Trades++
		if pos.Outcome == types.OutcomeWin {
			cell.Wins++
		}
	}

	cells := make([]gate.FilterCell, 0, len(buckets))
	for _, cell := range buckets {
		cells = append(cells, *cell)
	}

	logger.Info("hour-filter-enabled",
		zap.Int("history", len(history)),
		zap.Int("buckets", len(cells)),
		zap.Int("min-trades", cfg.HourFilterMinTrades),
		zap.Float64("min-win-rate", cfg.HourFilterMinWinRate))

	return gate.NewHourFilter(cells, cfg.HourFilterMinTrades, cfg.HourFilterMinWinRate), nil
}

// setupRaceEngine builds the live order race engine. Paper mode records
// entries straight to the ledger and needs no exchange client.
func setupRaceEngine(cfg *config.Config, logger *zap.Logger) (*race.Engine, error) {
	if cfg.ExecutionMode != "live" {
		logger.Info("race-engine-disabled",
			zap.String("mode", cfg.ExecutionMode),
			zap.String("note", "paper mode records entries without placing orders"))
		return nil, nil
	}

	client, err := execution.NewClient(&execution.ClientConfig{
		BaseURL:       cfg.PolymarketCLOBURL,
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    cfg.PolymarketPrivateKey,
		ProxyAddress:  cfg.PolymarketProxyAddr,
		SignatureType: cfg.SignatureType,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create exchange client: %w", err)
	}

	return race.New(&race.Config{
		Client:       client,
		PollInterval: cfg.RacePollInterval,
		MaxPolls:     cfg.RaceMaxPolls,
		Logger:       logger,
	}), nil
}

func setupReconciler(
	cfg *config.Config,
	logger *zap.Logger,
	store ledger.Store,
	directory *windows.Directory,
	notifier *notify.ConsoleNotifier,
	guard *session.Guard,
) *reconcile.Reconciler {
	return reconcile.New(&reconcile.Config{
		Store:       store,
		Checker:     directory,
		Notifier:    notifier,
		Session:     guard,
		Interval:    cfg.ReconcileInterval,
		Freshness:   cfg.ReconcileFreshness,
		MaxAttempts: cfg.ReconcileMaxAttempts,
		Logger:      logger,
	})
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	guard *session.Guard,
	store ledger.Store,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		SessionGuard:  guard,
		Ledger:        store,
	})
}
