package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/cache/redis"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/config"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/domain"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/feed"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/ledger"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/notify"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/risk"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/router"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/server/ws"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/sim"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/store/postgres"
)

// defaultStartPrice seeds the simulated random walk for symbols with no
// better starting point.
const defaultStartPrice = 100.0

// FeedSource is a market data producer that pushes samples into the feed hub
// until its context is cancelled.
type FeedSource interface {
	Run(ctx context.Context) error
}

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	Feed       *feed.Hub
	FeedSource FeedSource
	Venue      *sim.Simulator
	Ledger     *ledger.Ledger
	Sizer      *risk.Sizer
	Router     *router.Router
	WSHub      *ws.Hub

	// Events is the effective bus execution and price events are published
	// on: the external bus when Redis is enabled, a WebSocket bridge
	// otherwise.
	Events domain.EventBus

	// Optional, nil when the backing service is disabled.
	PriceCache     domain.PriceCache
	EventBus       domain.EventBus
	OrderStore     domain.OrderStore
	TradeStore     domain.TradeStore
	ExecutionStore domain.ExecutionStore
}

// wsBridge adapts the WebSocket hub to domain.EventBus so execution events
// reach dashboard clients even when no external bus is configured.
type wsBridge struct {
	hub *ws.Hub
}

func (b *wsBridge) Publish(_ context.Context, channel string, payload []byte) error {
	b.hub.Broadcast(channel, payload)
	return nil
}

func (b *wsBridge) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, fmt.Errorf("app: in-process bus does not support subscribe")
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.EventBus = redis.NewEventBus(redisClient)
	}

	// --- PostgreSQL (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OrderStore = postgres.NewOrderStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.ExecutionStore = postgres.NewExecutionStore(pool)
	}

	// --- Market data feed ---
	hub := feed.NewHub(cfg.Feed.HistorySize, logger)
	if deps.PriceCache != nil {
		hub = hub.WithMirror(deps.PriceCache)
	}
	deps.Feed = hub

	switch strings.ToLower(cfg.Feed.Source) {
	case "binance":
		deps.FeedSource = feed.NewBinanceSource(hub, cfg.Feed.WsHost, cfg.Feed.Symbols, logger)
	default:
		startPrices := make(map[string]float64, len(cfg.Feed.Symbols))
		for _, sym := range cfg.Feed.Symbols {
			startPrices[sym] = defaultStartPrice
		}
		tick := cfg.Feed.TickInterval.Duration
		if tick <= 0 {
			tick = time.Second
		}
		deps.FeedSource = feed.NewSimSource(hub, startPrices, tick, cfg.Feed.Seed, logger)
	}

	// --- Execution venue (simulator) ---
	deps.Venue = sim.New(hub, sim.Config{
		Capital:     cfg.Sim.Capital,
		RiskPercent: cfg.Sim.RiskPercent,
	}, cfg.Sim.Seed, logger)

	// --- Ledger ---
	deps.Ledger = ledger.New(logger)
	if deps.OrderStore != nil && deps.TradeStore != nil {
		deps.Ledger = deps.Ledger.WithStores(deps.OrderStore, deps.TradeStore)
	}

	// --- Position sizer ---
	deps.Sizer = risk.NewSizer(risk.SizerConfig{
		MaxKellyFraction:      cfg.Sizer.MaxKellyFraction,
		ExpectedLoss:          cfg.Sizer.ExpectedLoss,
		BaselineVolatility:    cfg.Sizer.BaselineVolatility,
		MaxSinglePositionRisk: cfg.Sizer.MaxSinglePositionRisk,
		MaxPortfolioVAR:       cfg.Sizer.MaxPortfolioVAR,
		ConfidenceLevel:       cfg.Sizer.ConfidenceLevel,
	}, logger)

	// --- WebSocket hub ---
	deps.WSHub = ws.NewHub(deps.EventBus, logger, ws.Config{
		Mode:      cfg.Mode,
		StartedAt: time.Now().UTC(),
	})

	// --- Smart order router ---
	deps.Router = router.New(hub, deps.Venue, deps.Ledger, router.Config{
		IdleRecheck:  cfg.Router.IdleRecheck.Duration,
		AttemptDelay: cfg.Router.AttemptDelay.Duration,
	}, cfg.Router.Seed, logger)
	if deps.ExecutionStore != nil {
		deps.Router = deps.Router.WithExecutionStore(deps.ExecutionStore)
	}
	// Execution events flow through the external bus when configured, and
	// straight to WebSocket clients otherwise.
	if deps.EventBus != nil {
		deps.Events = deps.EventBus
	} else {
		deps.Events = &wsBridge{hub: deps.WSHub}
	}
	deps.Router = deps.Router.WithEventBus(deps.Events)

	// --- Operator notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Router = deps.Router.WithNotifier(notify.NewNotifier(senders, cfg.Notify.Events, logger))
	}

	return deps, cleanup, nil
}
