package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/cache"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/catalog"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/config"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/db"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/handlers"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/hub"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/logger"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/middleware"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/publisher"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/ratelimit"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/registry"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/scheduler"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("player catalog stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting player catalog", zap.String("addr", cfg.Server.Addr))

	// Create context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	// Connect to Postgres when a data set reads from it
	var players *db.PlayersPostgres
	if cfg.Catalog.PlayersDSN != "" {
		var err error
		players, err = db.NewPlayersPostgres(cfg.Catalog.PlayersDSN)
		if err != nil {
			return err
		}
		defer players.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = players.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("connect to players database: %w", err)
		}
		log.Info("connected to players database")
	}

	reg, err := buildRegistry(cfg.Catalog, players)
	if err != nil {
		return err
	}

	// Hold deferred loads until the listener is up
	sched := scheduler.New(log.Named("scheduler"))
	startup := sched.BeginInteraction()
	sched.Start(ctx)
	defer sched.Close()

	// The feed snapshots the catalog it observes
	var c *catalog.Catalog
	feed := hub.NewHub(hub.StatusFunc(func() []models.SportStatus { return c.Statuses() }), log.Named("hub"), m)
	opts := []catalog.Option{
		catalog.WithLogger(log.Named("catalog")),
		catalog.WithMetrics(m),
		catalog.WithObserver(feed.Observe),
	}

	// Redis-backed features are optional
	var (
		searchCache handlers.SearchCache
		rateLimit   func(http.Handler) http.Handler
	)
	if cfg.Redis.Enabled() {
		redisClient, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info("connected to redis")

		searchCache = cache.NewSearchCache(redisClient, cfg.Catalog.Version, cfg.Search.CacheTTL)
		limiter := ratelimit.NewFixedWindow(redisClient, cfg.Search.RateLimitRequests, cfg.Search.RateLimitWindow)
		rateLimit = middleware.RateLimit(limiter, log.Named("ratelimit"), m.IncrementRateLimited)

		events := publisher.NewStreamPublisher(redisClient, log.Named("publisher"))
		opts = append(opts, catalog.WithObserver(events.Observe))
	}

	c = catalog.New(reg, sched, opts...)
	go feed.Run(ctx)

	handler := handlers.NewHandler(c, searchCache, m, log.Named("http"), cfg.Search.Limit)
	router := handlers.NewRouter(handlers.RouterConfig{
		Handler:     handler,
		WebSocket:   handlers.NewWebSocketHandler(ctx, feed, cfg.Server.CORSOrigins, log.Named("ws")),
		Metrics:     promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
		RateLimit:   rateLimit,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.Named("http"),
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.Serve(ln)
	}()
	log.Info("http server listening", zap.String("addr", ln.Addr().String()))

	if cfg.Catalog.WarmOnStart {
		go func() {
			if err := c.InitializeAll(ctx); err != nil && ctx.Err() == nil {
				log.Warn("warming catalog failed", zap.Error(err))
			}
		}()
	}
	startup.End()

	// Wait for interrupt signal or a server failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info("shutting down")

	// Graceful shutdown of HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}

	log.Info("shutdown complete")
	return nil
}

// buildRegistry follows the manifest when one is configured, otherwise the
// bundled data sets for the configured sports
func buildRegistry(cfg config.CatalogConfig, players *db.PlayersPostgres) (*registry.Registry, error) {
	var (
		manifest *dataset.Manifest
		err      error
	)
	if cfg.Manifest != "" {
		manifest, err = dataset.LoadManifest(cfg.Manifest)
	} else {
		manifest, err = dataset.DefaultManifest(cfg.Sports, cfg.LegacySport)
	}
	if err != nil {
		return nil, err
	}

	// A nil *PlayersPostgres must not become a non-nil interface
	var pg registry.PostgresSource
	if players != nil {
		pg = players
	}
	return registry.FromManifest(manifest, pg)
}

func connectRedis(ctx context.Context, rc config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(rc.URL)
	if err != nil {
		// Plain host:port addresses are accepted too
		opts = &redis.Options{Addr: rc.URL}
	}
	if rc.Password != "" {
		opts.Password = rc.Password
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
