package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/kafka"
)

// maxLatencySamples bounds the window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalQueries       int64            `json:"total_queries"`
	ByType             map[string]int64 `json:"by_type"`
	ByKind             map[string]int64 `json:"by_kind"`
	CacheHits          int64            `json:"cache_hits"`
	CacheMisses        int64            `json:"cache_misses"`
	EmptyResultCount   int64            `json:"empty_result_count"`
	AvgCandidates      float64          `json:"avg_candidates"`
	AvgLatencyMs       float64          `json:"avg_latency_ms"`
	P50LatencyMs       int64            `json:"p50_latency_ms"`
	P95LatencyMs       int64            `json:"p95_latency_ms"`
	P99LatencyMs       int64            `json:"p99_latency_ms"`
	TopQueries         []QueryCount     `json:"top_queries"`
	EmptyResultQueries []QueryCount     `json:"empty_result_queries"`
	QueriesPerMinute   float64          `json:"queries_per_minute"`
	CapturedAt         time.Time        `json:"captured_at"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds events into running totals. It is safe for concurrent
// use and implements Tracker so the suggest service can aggregate locally.
type Aggregator struct {
	mu           sync.RWMutex
	totalQueries atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	emptyResults atomic.Int64
	candidates   atomic.Int64

	latencies    []int64
	next         int
	byType       map[string]int64
	byKind       map[string]int64
	queryCounts  map[string]int64
	emptyQueries map[string]int64
	startTime    time.Time
	now          func() time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:    make([]int64, 0, 1024),
		byType:       make(map[string]int64),
		byKind:       make(map[string]int64),
		queryCounts:  make(map[string]int64),
		emptyQueries: make(map[string]int64),
		startTime:    time.Now(),
		now:          time.Now,
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start consumes events from Kafka until ctx is cancelled. The consumer
// must have been created with HandleEvent(a).
func (a *Aggregator) Start(ctx context.Context, consumer *kafka.Consumer) error {
	a.logger.Info("analytics aggregator starting")
	return consumer.Start(ctx)
}

// HandleEvent decodes analytics messages into agg. Undecodable messages are
// logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := kafka.DecodeJSON[SuggestEvent](msg.Value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event",
				"error", err,
				"offset", msg.Offset,
			)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

func (a *Aggregator) Track(event SuggestEvent) {
	a.Record(event)
}

func (a *Aggregator) Record(event SuggestEvent) {
	a.totalQueries.Add(1)
	if event.Type != EventResolve {
		if event.CacheHit {
			a.cacheHits.Add(1)
		} else {
			a.cacheMisses.Add(1)
		}
	}
	if event.Empty {
		a.emptyResults.Add(1)
	}
	a.candidates.Add(int64(event.Candidates))

	query := event.Normalized
	if query == "" {
		query = event.Query
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	a.byType[string(event.Type)]++
	if event.Kind != "" {
		a.byKind[event.Kind]++
	}
	if query != "" {
		a.queryCounts[query]++
		if event.Empty {
			a.emptyQueries[query]++
		}
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.now()
	stats := AggregatedStats{
		TotalQueries:     a.totalQueries.Load(),
		ByType:           copyCounts(a.byType),
		ByKind:           copyCounts(a.byKind),
		CacheHits:        a.cacheHits.Load(),
		CacheMisses:      a.cacheMisses.Load(),
		EmptyResultCount: a.emptyResults.Load(),
		CapturedAt:       now.UTC(),
	}
	if stats.TotalQueries > 0 {
		stats.AvgCandidates = float64(a.candidates.Load()) / float64(stats.TotalQueries)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.EmptyResultQueries = topN(a.emptyQueries, 10)
	elapsed := now.Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalQueries) / elapsed
	}
	return stats
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so equal counts come out stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
