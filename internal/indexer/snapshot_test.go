package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/tracing"
)

var books = []catalog.Book{
	{ID: 64317, Title: "The Great Gatsby", Authors: "Fitzgerald, F. Scott (Francis Scott), 1896-1940"},
	{ID: 1400, Title: "Great Expectations", Authors: "Dickens, Charles, 1812-1870"},
	{ID: 2701, Title: "Moby Dick;\nOr, The Whale", Authors: "Melville, Herman, 1819-1891"},
	{ID: 15, Title: "Moby Dick", Authors: "Melville, Herman, 1819-1891"},
	{ID: 98, Title: "Great Expectations", Authors: "Dickens, Charles, 1812-1870"},
}

type staticSource struct {
	books []catalog.Book
	err   error
	calls int
}

func (s *staticSource) Load(context.Context) ([]catalog.Book, error) {
	s.calls++
	return s.books, s.err
}

func TestBuildSnapshot(t *testing.T) {
	snap, err := Build(context.Background(), books, 1)
	require.NoError(t, err)

	titles, err := snap.Namespace(KindTitle)
	require.NoError(t, err)
	assert.Equal(t, 4, titles.Len())

	authors, err := snap.Namespace(KindAuthor)
	require.NoError(t, err)
	assert.Equal(t, 3, authors.Len())

	row, ok := titles.Vocabulary().Row("great expectations")
	require.True(t, ok)
	assert.Equal(t, "Great Expectations", titles.Display(row))
	assert.Equal(t, "", titles.Display(-1))

	_, err = snap.Namespace(Kind("isbn"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestResolveTitleLastWriterWins(t *testing.T) {
	snap, err := Build(context.Background(), books, 1)
	require.NoError(t, err)

	id, ok := snap.ResolveTitle("  Great Expectations ")
	require.True(t, ok)
	assert.Equal(t, 98, id)

	id, ok = snap.ResolveTitle("Moby Dick; Or, The Whale")
	require.True(t, ok)
	assert.Equal(t, 2701, id)

	_, ok = snap.ResolveTitle("great expectations")
	assert.False(t, ok, "resolution is exact")
}

func TestExactTitlesCatalogOrder(t *testing.T) {
	snap, err := Build(context.Background(), books, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"The Great Gatsby",
		"Great Expectations",
		"Moby Dick; Or, The Whale",
		"Moby Dick",
	}, snap.ExactTitles())
}

func TestBuildIdempotent(t *testing.T) {
	a, err := Build(context.Background(), books, 1)
	require.NoError(t, err)
	b, err := Build(context.Background(), books, 2)
	require.NoError(t, err)

	for _, kind := range Kinds {
		na, _ := a.Namespace(kind)
		nb, _ := b.Namespace(kind)
		assert.Equal(t, na.Vocabulary().Entries(), nb.Vocabulary().Entries())
		assert.Equal(t, na.IDF(), nb.IDF())
		for row := 0; row < na.Len(); row++ {
			assert.Equal(t, na.Matrix().Row(row), nb.Matrix().Row(row))
		}
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, books, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildEmptyCatalog(t *testing.T) {
	snap, err := Build(context.Background(), nil, 1)
	require.NoError(t, err)
	st := snap.Stats()
	assert.Equal(t, 0, st.Books)
	require.Len(t, st.Namespaces, 2)
	assert.Equal(t, 0, st.Namespaces[0].Entries)
}

func TestHolder(t *testing.T) {
	var h Holder
	_, err := h.Load()
	assert.ErrorIs(t, err, apperrors.ErrIndexNotReady)
	assert.False(t, h.Ready())

	snap := &Snapshot{Version: 1}
	assert.Nil(t, h.Swap(snap))
	got, err := h.Load()
	require.NoError(t, err)
	assert.Same(t, snap, got)
}

func TestEngineRebuild(t *testing.T) {
	src := &staticSource{books: books}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	e := NewEngine(src, m, tracing.NewSampler(false, 0))

	var hooked []uint64
	e.OnRebuild(func(s *Snapshot) { hooked = append(hooked, s.Version) })

	first, err := e.Rebuild(context.Background(), TriggerStartup)
	require.NoError(t, err)
	second, err := e.Rebuild(context.Background(), TriggerAdmin)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Version)
	assert.Equal(t, uint64(2), second.Version)
	assert.Equal(t, []uint64{1, 2}, hooked)

	live, err := e.Holder().Load()
	require.NoError(t, err)
	assert.Same(t, second, live)
}

func TestEngineRebuildFailureKeepsSnapshot(t *testing.T) {
	src := &staticSource{books: books}
	e := NewEngine(src, nil, tracing.NewSampler(false, 0))
	first, err := e.Rebuild(context.Background(), TriggerStartup)
	require.NoError(t, err)

	src.err = apperrors.ErrCatalogUnavailable
	_, err = e.Rebuild(context.Background(), TriggerAdmin)
	assert.True(t, errors.Is(err, apperrors.ErrCatalogUnavailable))

	live, err := e.Holder().Load()
	require.NoError(t, err)
	assert.Same(t, first, live)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("author")
	require.NoError(t, err)
	assert.Equal(t, KindAuthor, k)
	_, err = ParseKind("subject")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
