package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"menuboard/internal/menu/assets"
	"menuboard/internal/menu/catalog"
	"menuboard/internal/menu/menusync"
	"menuboard/internal/menu/metrics"
	"menuboard/internal/menu/models"
	"menuboard/internal/menu/push"
	"menuboard/internal/menu/settings"
	"menuboard/internal/platform/config"
	"menuboard/internal/platform/httpserver"
	"menuboard/internal/platform/logger"
	"menuboard/internal/platform/redis"
	"menuboard/internal/screen"
	httptransport "menuboard/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main wires the catalog client, the push transports and the screen sessions,
// then serves the view bindings until interrupted.
func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("menuboard stopped", "error", err)
		os.Exit(1)
	}
	log.Info("menuboard stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	client, err := catalog.New(cfg.API.BaseURL,
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.API.Timeout}),
		catalog.WithBasicAuth(cfg.API.Username, cfg.API.Password),
		catalog.WithLogger(log.With("component", "catalog")),
		catalog.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("catalog client: %w", err)
	}

	hub := push.NewHub(push.WithHubLogger(log.With("component", "push")), push.WithHubMetrics(m))

	pushSettings := push.DefaultSettings()
	pushSettings.ReconnectMin = cfg.Push.ReconnectMin
	pushSettings.ReconnectMax = cfg.Push.ReconnectMax

	ws, err := push.NewWebsocketSource(cfg.Push.URL, hub,
		push.WithWebsocketSettings(pushSettings),
		push.WithWebsocketLogger(log.With("component", "push", "transport", "websocket")),
		push.WithWebsocketMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("websocket source: %w", err)
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	var relay *push.RedisSource
	if rdb != nil {
		defer rdb.Close()
		relay, err = push.NewRedisSource(rdb.Client, cfg.Redis.Channel, hub,
			push.WithRedisSettings(pushSettings),
			push.WithRedisLogger(log.With("component", "push", "transport", "redis")),
			push.WithRedisMetrics(m),
		)
		if err != nil {
			return fmt.Errorf("redis source: %w", err)
		}
	}

	registry, err := screen.NewRegistry(client, hub, screenDefinitions(cfg.Screens), cfg.BuildYourOwnCategory,
		screen.WithLogger(log),
		screen.WithAssets(assets.NewFetcher(client)),
		screen.WithSettings(settings.NewLoader(client, settings.WithLogger(log.With("component", "settings")))),
		screen.WithSessionOptions(menusync.WithMetrics(m)),
	)
	if err != nil {
		return fmt.Errorf("screen registry: %w", err)
	}
	defer registry.Close()

	if err := registry.RefreshSettings(ctx); err != nil {
		log.Warn("display settings unavailable at startup", "error", err)
	}

	router := httptransport.NewRouter(httptransport.NewHandler(registry, log), reg, log)
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting menuboard", "addr", cfg.Addr, "screens", len(cfg.Screens), "push_url", cfg.Push.URL)
		return httpserver.Run(ctx, srv, shutdownTimeout)
	})
	g.Go(func() error {
		return ignoreCanceled(ws.Run(ctx))
	})
	g.Go(func() error {
		registry.RefetchOnReconnect(ctx, ws.Connected())
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return ignoreCanceled(relay.Run(ctx))
		})
	}
	return g.Wait()
}

func screenDefinitions(screens []config.Screen) []screen.Definition {
	defs := make([]screen.Definition, 0, len(screens))
	for _, s := range screens {
		ids := make([]models.CategoryID, len(s.CategoryIDs))
		for i, id := range s.CategoryIDs {
			ids[i] = models.CategoryID(id)
		}
		defs = append(defs, screen.Definition{Name: s.Name, Number: s.Number, CategoryIDs: ids})
	}
	return defs
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
