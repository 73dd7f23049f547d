package cache

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]byte)} }

func (m *memStore) Key(parts ...string) string {
	return "test:" + strings.Join(parts, ":")
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, pkgredis.ErrMiss
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func result(kind indexer.Kind, version uint64, normalized string) *executor.SuggestResult {
	return &executor.SuggestResult{
		Normalized:  normalized,
		Kind:        kind,
		Version:     version,
		Suggestions: []executor.Suggestion{{Kind: kind, Text: "The Great Gatsby", Score: 0.8}},
	}
}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, metrics.NewWithRegistry(prometheus.NewRegistry()))
	ctx := context.Background()

	calls := 0
	compute := func() (*executor.SuggestResult, error) {
		calls++
		return result(indexer.KindTitle, 1, "great"), nil
	}

	got, hit, err := c.GetOrCompute(ctx, indexer.KindTitle, 1, "great", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "The Great Gatsby", got.Suggestions[0].Text)

	got, hit, err = c.GetOrCompute(ctx, indexer.KindTitle, 1, "great", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "The Great Gatsby", got.Suggestions[0].Text)

	_, hit, err = c.GetOrCompute(ctx, indexer.KindTitle, 2, "great", compute)
	require.NoError(t, err)
	assert.False(t, hit, "new snapshot version misses")

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(2), st.Misses)
	assert.Equal(t, "closed", st.Breaker)
}

func TestGetOrComputeSharesConcurrentWork(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SuggestResult, error) {
		calls.Add(1)
		<-release
		return result(indexer.KindAuthor, 1, "dickens"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.GetOrCompute(context.Background(), indexer.KindAuthor, 1, "dickens", compute)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, calls.Load(), int32(2))
}

func TestStoreFailuresDegradeToMiss(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	for i := 0; i < 10; i++ {
		got, hit, err := c.GetOrCompute(context.Background(), indexer.KindTitle, 1, "moby", func() (*executor.SuggestResult, error) {
			return result(indexer.KindTitle, 1, "moby"), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.NotNil(t, got)
	}
	assert.Equal(t, "open", c.Stats().Breaker)
}

func TestComputeErrorPropagates(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	_, _, err := c.GetOrCompute(context.Background(), indexer.KindTitle, 1, "x", func() (*executor.SuggestResult, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	ctx := context.Background()
	c.Set(ctx, result(indexer.KindTitle, 1, "great"))
	c.Set(ctx, result(indexer.KindAuthor, 1, "dickens"))
	c.Set(ctx, result(indexer.KindTitle, 2, "great"))

	n, err := c.InvalidateVersion(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, hit := c.Get(ctx, indexer.KindTitle, 2, "great")
	assert.True(t, hit)

	n, err = c.Invalidate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
