package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/server"
	"github.com/TheMalluBot/stratosphere-trading-hub-sub004/internal/server/handler"
)

// shutdownTimeout bounds how long the HTTP server waits for in-flight
// requests after the run context is cancelled.
const shutdownTimeout = 10 * time.Second

// ServerMode runs the full hub with the configured feed source. This is the
// paper-trading default: the simulated feed drives the simulated venue.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	return a.runHub(ctx, deps)
}

// LiveMode is ServerMode against live market data. It refuses to start on
// the simulated feed so a misconfigured deployment fails loudly.
func (a *App) LiveMode(ctx context.Context, deps *Dependencies) error {
	if strings.ToLower(a.cfg.Feed.Source) != "binance" {
		return fmt.Errorf("app: live mode requires feed.source = \"binance\", got %q", a.cfg.Feed.Source)
	}
	return a.runHub(ctx, deps)
}

// runHub starts the feed source, the WebSocket hub, the price relay, and the
// HTTP API, then blocks until the context is cancelled or a component fails.
func (a *App) runHub(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCancel(deps.FeedSource.Run(ctx))
	})

	g.Go(func() error {
		return ignoreCancel(deps.WSHub.Run(ctx))
	})

	for _, sym := range a.cfg.Feed.Symbols {
		symbol := sym
		g.Go(func() error {
			a.relayPrices(ctx, deps, symbol)
			return nil
		})
	}

	if a.cfg.Server.Enabled {
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, server.Handlers{
			Health:     handler.NewHealthHandler(a.logger),
			Executions: handler.NewExecutionHandler(deps.Router, deps.Ledger, a.logger),
			Sizing:     handler.NewSizingHandler(deps.Sizer, deps.Feed, a.cfg.Sim.Capital, a.logger),
			Prices:     handler.NewPriceHandler(deps.Feed, deps.PriceCache, a.logger),
			History:    handler.NewHistoryHandler(deps.ExecutionStore, deps.OrderStore, deps.TradeStore, a.logger),
		}, deps.WSHub, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.logger.InfoContext(ctx, "hub running",
		slog.String("feed_source", a.cfg.Feed.Source),
		slog.Int("symbols", len(a.cfg.Feed.Symbols)),
		slog.Bool("server_enabled", a.cfg.Server.Enabled),
	)

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// relayPrices forwards feed updates for one symbol onto the event bus until
// the context ends.
func (a *App) relayPrices(ctx context.Context, deps *Dependencies, symbol string) {
	samples, cancel := deps.Feed.Subscribe(symbol)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-samples:
			if !ok {
				return
			}
			payload, err := json.Marshal(map[string]any{
				"type":      "price",
				"symbol":    s.Symbol,
				"price":     s.Price,
				"volume":    s.Volume,
				"timestamp": s.Timestamp.UnixMilli(),
			})
			if err != nil {
				continue
			}
			if err := deps.Events.Publish(ctx, "prices", payload); err != nil {
				a.logger.DebugContext(ctx, "price event publish failed",
					slog.String("symbol", symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// ignoreCancel maps context cancellation to a clean exit so one component's
// shutdown does not read as a failure.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
