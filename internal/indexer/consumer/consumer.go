// Package consumer listens for catalog refresh notifications on Kafka and
// rebuilds the index snapshot when one arrives.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/kafka"
)

// RefreshEvent is published by catalogsync after the catalog changed.
type RefreshEvent struct {
	Reason      string    `json:"reason"`
	Books       int       `json:"books"`
	PublishedAt time.Time `json:"published_at"`
}

// Rebuilder is satisfied by *indexer.Engine.
type Rebuilder interface {
	Rebuild(ctx context.Context, trigger string) (*indexer.Snapshot, error)
}

// RefreshConsumer wraps a Kafka consumer subscribed to the refresh topic.
type RefreshConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *RefreshConsumer {
	return &RefreshConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "refresh-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (rc *RefreshConsumer) Start(ctx context.Context) error {
	rc.logger.Info("refresh consumer starting")
	return rc.consumer.Start(ctx)
}

// HandleMessage returns a MessageHandler that rebuilds on every refresh
// event. Events older than the live snapshot are skipped; undecodable ones
// are logged and committed so they are not redelivered forever.
func HandleMessage(r Rebuilder, holder *indexer.Holder) kafka.MessageHandler {
	logger := slog.Default().With("component", "refresh-consumer")
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.DecodeJSON[RefreshEvent](msg.Value)
		if err != nil {
			logger.Error("failed to decode refresh event",
				"error", err,
				"key", string(msg.Key),
			)
			return nil
		}
		if snap, err := holder.Load(); err == nil && !event.PublishedAt.IsZero() && event.PublishedAt.Before(snap.BuiltAt) {
			logger.Debug("refresh event predates live snapshot, skipping",
				"published_at", event.PublishedAt,
				"built_at", snap.BuiltAt,
			)
			return nil
		}
		logger.Info("catalog refresh requested", "reason", event.Reason, "books", event.Books)
		if _, err := r.Rebuild(ctx, indexer.TriggerKafka); err != nil {
			return fmt.Errorf("rebuilding after refresh event: %w", err)
		}
		return nil
	}
}
