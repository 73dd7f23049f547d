package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
	err     error
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, append([]kafka.Event(nil), events...))
	return nil
}

func (f *fakePublisher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func counterValue(t *testing.T, m *metrics.Metrics, status string) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.AnalyticsEventsTotal.WithLabelValues(status).Write(&out))
	return out.GetCounter().GetValue()
}

func TestCollectorFlushesFullBatches(t *testing.T) {
	pub := &fakePublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCollector(pub, CollectorConfig{BufferSize: 100, BatchSize: 2, FlushInterval: time.Hour}, m)
	c.Start(context.Background())

	for i := 0; i < 4; i++ {
		c.Track(SuggestEvent{Type: EventSuggest, Kind: "title", Query: "gatsby"})
	}
	require.Eventually(t, func() bool { return pub.total() == 4 }, time.Second, 5*time.Millisecond)

	c.Close()
	assert.Equal(t, 4.0, counterValue(t, m, "published"))
	assert.Equal(t, "title", pub.batches[0][0].Key)
}

func TestCollectorCloseFlushesRemainder(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 50, FlushInterval: time.Hour}, nil)
	c.Start(context.Background())
	c.Track(SuggestEvent{Type: EventRegexp, Query: "^Moby"})
	c.Close()

	assert.Equal(t, 1, pub.total())
	assert.Equal(t, "regexp", pub.batches[0][0].Key)
}

func TestCollectorCancelFlushesRemainder(t *testing.T) {
	pub := &fakePublisher{}
	c := NewCollector(pub, CollectorConfig{BatchSize: 50, FlushInterval: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	c.Track(SuggestEvent{Type: EventSuggest})
	c.Track(SuggestEvent{Type: EventSuggest})
	require.Eventually(t, func() bool { return c.Pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	c.Close()

	assert.Equal(t, 2, pub.total())
}

func TestCollectorDropsWhenFullOrClosed(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCollector(&fakePublisher{}, CollectorConfig{BufferSize: 1}, m)

	c.Track(SuggestEvent{})
	c.Track(SuggestEvent{})
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, 1.0, counterValue(t, m, "dropped"))

	c.Close()
	c.Track(SuggestEvent{})
	assert.Equal(t, 2.0, counterValue(t, m, "dropped"))
}

func TestCollectorCountsFailedBatches(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := NewCollector(pub, CollectorConfig{BatchSize: 10, FlushInterval: time.Hour}, m)
	c.Start(context.Background())
	c.Track(SuggestEvent{})
	c.Track(SuggestEvent{})
	c.Close()

	assert.Equal(t, 2.0, counterValue(t, m, "failed"))
	assert.Equal(t, 0.0, counterValue(t, m, "published"))
}

func TestAggregatorStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SuggestEvent{Type: EventSuggest, Kind: "title", Normalized: "great", Candidates: 2, LatencyMs: 10})
	agg.Record(SuggestEvent{Type: EventSuggest, Kind: "title", Normalized: "great", Candidates: 2, LatencyMs: 20, CacheHit: true})
	agg.Record(SuggestEvent{Type: EventSuggest, Kind: "author", Normalized: "zzz", LatencyMs: 30, Empty: true})
	agg.Record(SuggestEvent{Type: EventResolve, Query: "Moby Dick", LatencyMs: 40})

	stats := agg.Stats()
	assert.Equal(t, int64(4), stats.TotalQueries)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.EmptyResultCount)
	assert.Equal(t, map[string]int64{"suggest": 3, "resolve": 1}, stats.ByType)
	assert.Equal(t, map[string]int64{"title": 2, "author": 1}, stats.ByKind)
	assert.InDelta(t, 1.0, stats.AvgCandidates, 1e-9)
	assert.InDelta(t, 25.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(30), stats.P50LatencyMs)
	assert.Equal(t, int64(40), stats.P99LatencyMs)
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "great", Count: 2}, stats.TopQueries[0])
	assert.Equal(t, []QueryCount{{Query: "zzz", Count: 1}}, stats.EmptyResultQueries)
}

func TestAggregatorLatencyWindowIsBounded(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < maxLatencySamples+10; i++ {
		agg.Record(SuggestEvent{Type: EventSuggest, LatencyMs: int64(i)})
	}
	agg.mu.RLock()
	n := len(agg.latencies)
	agg.mu.RUnlock()
	assert.Equal(t, maxLatencySamples, n)
	assert.Equal(t, int64(maxLatencySamples+10), agg.Stats().TotalQueries)
}

func TestTopNBreaksTiesByQuery(t *testing.T) {
	got := topN(map[string]int64{"b": 1, "a": 1, "c": 3}, 2)
	assert.Equal(t, []QueryCount{{Query: "c", Count: 3}, {Query: "a", Count: 1}}, got)
}

func TestHandleEvent(t *testing.T) {
	agg := NewAggregator()
	handle := HandleEvent(agg)

	value, err := json.Marshal(SuggestEvent{Type: EventSuggest, Kind: "title", Normalized: "dune"})
	require.NoError(t, err)
	require.NoError(t, handle(context.Background(), kafka.Message{Value: value}))
	require.NoError(t, handle(context.Background(), kafka.Message{Value: []byte("not json")}))

	assert.Equal(t, int64(1), agg.Stats().TotalQueries)
}

func TestFanout(t *testing.T) {
	a, b := NewAggregator(), NewAggregator()
	Fanout{a, nil, b, Discard{}}.Track(SuggestEvent{Type: EventSuggest})
	assert.Equal(t, int64(1), a.Stats().TotalQueries)
	assert.Equal(t, int64(1), b.Stats().TotalQueries)
}

type fakeHistory struct {
	snapshots []AggregatedStats
	err       error
	limit     int
}

func (f *fakeHistory) ListSnapshots(_ context.Context, limit int) ([]AggregatedStats, error) {
	f.limit = limit
	return f.snapshots, f.err
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SuggestEvent{Type: EventSuggest, Normalized: "emma"})
	h := NewHandler(agg, nil)

	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var stats AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalQueries)
}

func TestHandlerSnapshots(t *testing.T) {
	hist := &fakeHistory{snapshots: []AggregatedStats{{TotalQueries: 7}}}
	h := NewHandler(NewAggregator(), hist)

	rec := httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, hist.limit)

	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hist.err = errors.New("db down")
	rec = httptest.NewRecorder()
	h.Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 24, hist.limit)

	rec = httptest.NewRecorder()
	NewHandler(NewAggregator(), nil).Snapshots(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
