// Command catalogsync downloads the Project Gutenberg catalog, stores it in
// PostgreSQL and tells the suggest service to rebuild its index.
//
// The download reuses the on-disk cache when it is younger than
// catalog.maxAge. With Kafka enabled a RefreshEvent is published on the
// catalog-refresh topic once the catalog is stored.
//
// Usage:
//
//	go run ./cmd/catalogsync [-config configs/development.yaml] [-force] [-reason nightly]
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
	"time"

	"github.com/spf13/afero"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	force := flag.Bool("force", false, "ignore the on-disk cache and download the feed")
	reason := flag.String("reason", "catalogsync", "reason recorded in the refresh event")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *force, *reason); err != nil {
		slog.Error("catalog sync failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, force bool, reason string) error {
	start := time.Now()
	catalogCfg := cfg.Catalog
	if force {
		catalogCfg.MaxAge = 0
	}
	fetcher := catalog.NewFetcher(&http.Client{Timeout: catalogCfg.DownloadTimeout}, afero.NewOsFs(), catalogCfg)
	books, err := fetcher.Load(ctx)
	if err != nil {
		return err
	}
	slog.Info("catalog fetched", "books", len(books), "cache", fetcher.CachePath())

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	store := catalog.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := store.Replace(ctx, books); err != nil {
		return err
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogRefresh)
		defer producer.Close()
		event := consumer.RefreshEvent{
			Reason:      reason,
			Books:       len(books),
			PublishedAt: time.Now().UTC(),
		}
		if err := producer.Publish(ctx, kafka.Event{Key: "catalog", Value: event}); err != nil {
			return fmt.Errorf("publishing refresh event: %w", err)
		}
		slog.Info("refresh event published", "topic", cfg.Kafka.Topics.CatalogRefresh)
	}

	slog.Info("catalog sync complete", "books", len(books), "duration", time.Since(start).Round(time.Millisecond))
	return nil
}
