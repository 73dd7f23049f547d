// Command suggest serves title and author autocompletion over the Project
// Gutenberg catalog.
//
// At startup it loads the catalog (HTTP feed cached on disk, or PostgreSQL),
// builds the trigram index snapshot and serves GET /api/v1/suggest and
// GET /api/v1/resolve_title. The snapshot is rebuilt on a timer, on a
// catalog-refresh Kafka event and on POST /api/v1/index/rebuild.
//
// Usage:
//
//	go run ./cmd/suggest [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/tracing"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting suggest service", "port", cfg.Server.Port, "catalog_source", cfg.Catalog.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Enabled {
		shutdownMetrics, err := metrics.StartServer(cfg.Metrics.Port)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()

	var source catalog.Source
	switch cfg.Catalog.Source {
	case "postgres":
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		source = catalog.NewStore(db)
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDown))
		slog.Info("catalog source: postgres", "host", cfg.Postgres.Host)
	default:
		httpClient := &http.Client{Timeout: cfg.Catalog.DownloadTimeout}
		fetcher := catalog.NewFetcher(httpClient, afero.NewOsFs(), cfg.Catalog)
		source = fetcher
		slog.Info("catalog source: http", "url", cfg.Catalog.URL, "cache", fetcher.CachePath())
	}

	sampler := tracing.NewSampler(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)
	engine := indexer.NewEngine(source, m, sampler)
	holder := engine.Holder()

	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		snap, err := holder.Load()
		if err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("version %d", snap.Version)}
	})

	var suggestCache *cache.SuggestCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, suggestion caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			suggestCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
			engine.OnRebuild(func(snap *indexer.Snapshot) {
				if snap.Version <= 1 {
					return
				}
				dropCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
				defer cancel()
				if n, err := suggestCache.InvalidateVersion(dropCtx, snap.Version-1); err != nil {
					slog.Warn("dropping previous cache version failed", "error", err)
				} else {
					slog.Info("previous cache version dropped", "version", snap.Version-1, "keys", n)
				}
			})
			slog.Info("suggestion cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	if _, err := engine.Rebuild(ctx, indexer.TriggerStartup); err != nil {
		slog.Error("initial index build failed, serving not-ready until a rebuild succeeds", "error", err)
	}
	engine.StartRefreshLoop(ctx, cfg.Catalog.RefreshInterval)

	aggregator := analytics.NewAggregator()
	trackers := analytics.Fanout{aggregator}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, analytics.CollectorConfig{
			BufferSize:    cfg.Analytics.BufferSize,
			BatchSize:     cfg.Analytics.BatchSize,
			FlushInterval: cfg.Analytics.FlushInterval,
		}, m)
		collector.Start(ctx)
		defer collector.Close()
		trackers = append(trackers, collector)

		// Every replica must see every refresh event, so each one joins
		// its own consumer group.
		refreshCfg := cfg.Kafka
		hostname, _ := os.Hostname()
		refreshCfg.ConsumerGroup = fmt.Sprintf("%s-refresh-%s", cfg.Kafka.ConsumerGroup, hostname)
		refresh := consumer.New(kafka.NewConsumer(refreshCfg, cfg.Kafka.Topics.CatalogRefresh,
			consumer.HandleMessage(engine, holder)))
		go func() {
			if err := refresh.Start(ctx); err != nil {
				slog.Error("refresh consumer error", "error", err)
			}
		}()
		slog.Info("kafka wiring enabled",
			"analytics_topic", cfg.Kafka.Topics.AnalyticsEvents,
			"refresh_topic", cfg.Kafka.Topics.CatalogRefresh,
		)
	}

	exec := executor.New(holder, cfg.Search.SuggestLimit, cfg.Search.RegexpLimit)
	h := handler.New(holder, exec, engine, suggestCache, trackers, m, handler.Config{
		MaxQueryLength: cfg.Search.MaxQueryLength,
	})
	analyticsH := analytics.NewHandler(aggregator, nil)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	limiter := ratelimit.New(cfg.Search.RateLimitPerMinute)
	limiter.StartCleanup(ctx)

	var chain http.Handler = mux
	chain = ratelimit.Middleware(limiter, m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("suggest service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("suggest service stopped")
}
