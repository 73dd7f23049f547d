package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/tracing"
)

// Trigger values recorded with every rebuild.
const (
	TriggerStartup  = "startup"
	TriggerAdmin    = "admin"
	TriggerKafka    = "kafka"
	TriggerSchedule = "schedule"
)

// Engine loads the catalog from its source, builds a Snapshot and installs
// it in the Holder. Rebuilds are serialized; queries keep reading the old
// snapshot until the swap.
type Engine struct {
	source  catalog.Source
	holder  *Holder
	metrics *metrics.Metrics
	sampler tracing.Sampler
	logger  *slog.Logger

	mu      sync.Mutex
	version uint64
	hooks   []func(*Snapshot)
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(source catalog.Source, m *metrics.Metrics, sampler tracing.Sampler) *Engine {
	return &Engine{
		source:  source,
		holder:  &Holder{},
		metrics: m,
		sampler: sampler,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Holder returns the holder queries read from.
func (e *Engine) Holder() *Holder {
	return e.holder
}

// OnRebuild registers fn to run after every successful swap, for example to
// invalidate cached suggestions of the previous version.
func (e *Engine) OnRebuild(fn func(*Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, fn)
}

// Rebuild loads the catalog and replaces the live snapshot. A failed load
// leaves the previous snapshot serving.
func (e *Engine) Rebuild(ctx context.Context, trigger string) (*Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "index.rebuild", "")
	span.SetAttr("trigger", trigger)
	defer e.sampler.Finish(span)

	start := time.Now()
	books, err := e.source.Load(ctx)
	if err != nil {
		e.record(trigger, "error")
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	snap, err := Build(ctx, books, e.version+1)
	if err != nil {
		e.record(trigger, "error")
		return nil, err
	}
	e.version = snap.Version
	e.holder.Swap(snap)
	e.record(trigger, "success")
	e.observe(snap)

	stats := snap.Stats()
	e.logger.Info("index snapshot installed",
		"version", snap.Version,
		"trigger", trigger,
		"books", stats.Books,
		"titles", stats.Namespaces[0].Entries,
		"authors", stats.Namespaces[1].Entries,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	for _, hook := range e.hooks {
		hook(snap)
	}
	return snap, nil
}

// StartRefreshLoop rebuilds every interval until ctx is cancelled. Failures
// are logged and the previous snapshot keeps serving.
func (e *Engine) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("refresh loop stopping")
				return
			case <-ticker.C:
				if _, err := e.Rebuild(ctx, TriggerSchedule); err != nil {
					e.logger.Error("scheduled rebuild failed", "error", err)
				}
			}
		}
	}()
}

func (e *Engine) record(trigger, status string) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexRebuildsTotal.WithLabelValues(trigger, status).Inc()
}

func (e *Engine) observe(s *Snapshot) {
	if e.metrics == nil {
		return
	}
	for _, ns := range s.Stats().Namespaces {
		kind := string(ns.Kind)
		e.metrics.IndexBuildDuration.WithLabelValues(kind).Observe(ns.BuildDuration)
		e.metrics.VocabularySize.WithLabelValues(kind).Set(float64(ns.Entries))
		e.metrics.TrigramCount.WithLabelValues(kind).Set(float64(ns.Trigrams))
	}
}
