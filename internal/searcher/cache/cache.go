// Package cache stores suggestion results in Redis. Keys carry the snapshot
// version, so a rebuilt index never serves results computed on the previous
// catalog. Redis trouble degrades to computing every query directly.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/resilience"
)

// Store is the subset of *pkgredis.Client the cache needs.
type Store interface {
	Key(parts ...string) string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type SuggestCache struct {
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// Stats is reported by the cache admin endpoint.
type Stats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	HitRate string `json:"hit_rate"`
	Breaker string `json:"breaker"`
}

// New creates a cache over store. m may be nil.
func New(store Store, ttl time.Duration, m *metrics.Metrics) *SuggestCache {
	c := &SuggestCache{
		store:   store,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "suggest-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("suggest-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, _, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// Get returns a cached result. Any failure, including an open breaker,
// reads as a miss.
func (c *SuggestCache) Get(ctx context.Context, kind indexer.Kind, version uint64, normalized string) (*executor.SuggestResult, bool) {
	key := c.buildKey(kind, version, normalized)
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrMiss) {
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	if data == nil {
		c.miss()
		return nil, false
	}
	var result executor.SuggestResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return &result, true
}

func (c *SuggestCache) Set(ctx context.Context, result *executor.SuggestResult) {
	key := c.buildKey(result.Kind, result.Version, result.Normalized)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or computes it once per key even
// under concurrent identical queries. The bool reports a cache hit.
func (c *SuggestCache) GetOrCompute(
	ctx context.Context,
	kind indexer.Kind,
	version uint64,
	normalized string,
	compute func() (*executor.SuggestResult, error),
) (*executor.SuggestResult, bool, error) {
	if result, ok := c.Get(ctx, kind, version, normalized); ok {
		return result, true, nil
	}
	key := c.buildKey(kind, version, normalized)
	val, err, _ := c.group.Do(key, func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.SuggestResult), false, nil
}

// Invalidate drops every cached suggestion.
func (c *SuggestCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, c.store.Key("suggest", "*"))
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// InvalidateVersion drops the entries of one snapshot version. Keys of
// other versions are untouched; this only frees memory after a swap.
func (c *SuggestCache) InvalidateVersion(ctx context.Context, version uint64) (int64, error) {
	var total int64
	for _, kind := range indexer.Kinds {
		pattern := c.store.Key("suggest", string(kind), "v"+strconv.FormatUint(version, 10), "*")
		n, err := c.store.FlushByPattern(ctx, pattern)
		total += n
		if err != nil {
			return total, fmt.Errorf("dropping cache entries of version %d: %w", version, err)
		}
	}
	return total, nil
}

func (c *SuggestCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	rate := 0.0
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		HitRate: fmt.Sprintf("%.1f%%", rate),
		Breaker: c.breaker.GetState().String(),
	}
}

func (c *SuggestCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *SuggestCache) buildKey(kind indexer.Kind, version uint64, normalized string) string {
	hash := sha256.Sum256([]byte(normalized))
	return c.store.Key("suggest", string(kind), "v"+strconv.FormatUint(version, 10), fmt.Sprintf("%x", hash[:16]))
}
