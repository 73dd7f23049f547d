package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
)

var books = []catalog.Book{
	{ID: 64317, Title: "The Great Gatsby", Authors: "Fitzgerald, F. Scott (Francis Scott), 1896-1940"},
	{ID: 1400, Title: "Great Expectations", Authors: "Dickens, Charles, 1812-1870"},
	{ID: 2701, Title: "Moby Dick", Authors: "Melville, Herman, 1819-1891"},
}

func newExecutor(t testing.TB, books []catalog.Book) (*Executor, *indexer.Snapshot) {
	t.Helper()
	snap, err := indexer.Build(context.Background(), books, 1)
	require.NoError(t, err)
	holder := &indexer.Holder{}
	holder.Swap(snap)
	return New(holder, 5, 5), snap
}

func texts(r *SuggestResult) []string {
	out := make([]string, len(r.Suggestions))
	for i, s := range r.Suggestions {
		out[i] = s.Text
	}
	return out
}

func TestSuggestGreat(t *testing.T) {
	e, _ := newExecutor(t, books)
	res, err := e.Suggest(context.Background(), "great", indexer.KindTitle)
	require.NoError(t, err)

	require.Len(t, res.Suggestions, 5)
	assert.ElementsMatch(t, []string{"The Great Gatsby", "Great Expectations"}, texts(res)[:2])
	assert.Greater(t, res.Suggestions[0].Score, 0.0)
	assert.Greater(t, res.Suggestions[1].Score, 0.0)
	assert.Equal(t, []string{"", "", ""}, texts(res)[2:])
	assert.Equal(t, 2, res.Candidates)
}

func TestSuggestExactEntryRanksFirst(t *testing.T) {
	e, _ := newExecutor(t, books)
	res, err := e.Suggest(context.Background(), "Moby Dick", indexer.KindTitle)
	require.NoError(t, err)
	assert.Equal(t, "Moby Dick", res.Suggestions[0].Text)
	assert.InDelta(t, 1.0, res.Suggestions[0].Score, 1e-9)
}

func TestSuggestShortQuery(t *testing.T) {
	e, _ := newExecutor(t, books)
	for _, q := range []string{"a", "", "   ", "?!"} {
		res, err := e.Suggest(context.Background(), q, indexer.KindTitle)
		require.NoError(t, err)
		assert.Equal(t, []string{"", "", "", "", ""}, texts(res), "query %q", q)
		assert.Zero(t, res.Candidates)
	}
}

func TestSuggestTypoAndReorder(t *testing.T) {
	e, _ := newExecutor(t, books)
	res, err := e.Suggest(context.Background(), "gatsby great", indexer.KindTitle)
	require.NoError(t, err)
	assert.Equal(t, "The Great Gatsby", res.Suggestions[0].Text)
}

func TestSuggestAuthors(t *testing.T) {
	e, _ := newExecutor(t, books)
	res, err := e.Suggest(context.Background(), "Dickens", indexer.KindAuthor)
	require.NoError(t, err)
	assert.Equal(t, "Dickens, Charles, 1812-1870", res.Suggestions[0].Text)
	assert.Equal(t, indexer.KindAuthor, res.Suggestions[0].Kind)
}

func TestSuggestErrors(t *testing.T) {
	e := New(&indexer.Holder{}, 5, 5)
	_, err := e.Suggest(context.Background(), "great", indexer.KindTitle)
	assert.ErrorIs(t, err, apperrors.ErrIndexNotReady)

	e, _ = newExecutor(t, books)
	_, err = e.Suggest(context.Background(), "great", indexer.Kind("subject"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestCandidatesStrategies(t *testing.T) {
	_, snap := newExecutor(t, books)
	ns, err := snap.Namespace(indexer.KindTitle)
	require.NoError(t, err)
	inv := ns.Inverted()

	// The full string "great moby" appears nowhere, but strategy (b) finds
	// no row holding both words either.
	assert.Empty(t, Candidates(inv, parser.Parse("great moby")))

	// Reordered words miss (a) and hit (b).
	tg, _ := ns.Vocabulary().Row("the great gatsby")
	assert.Equal(t, []int{tg}, []int(Candidates(inv, parser.Parse("gatsby great"))))

	// A short word empties (b); (a) still matches the whole phrase.
	ge, _ := ns.Vocabulary().Row("great expectations")
	assert.Equal(t, []int{ge}, []int(Candidates(inv, parser.Parse("great ex"))))

	assert.Empty(t, Candidates(inv, parser.Parse("")))
}

func TestCandidatesSingleWordProperty(t *testing.T) {
	_, snap := newExecutor(t, books)
	ns, _ := snap.Namespace(indexer.KindTitle)
	inv := ns.Inverted()
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-z]{0,8}`).Draw(t, "word")
		plan := parser.Parse(word)
		a := lookupAll(inv, plan.Trigrams)
		got := Candidates(inv, plan)
		if len(a) != len(got) {
			t.Fatalf("%q: (a)=%v union=%v", word, a, got)
		}
		for i := range a {
			if a[i] != got[i] {
				t.Fatalf("%q: (a)=%v union=%v", word, a, got)
			}
		}
	})
}

func TestSuggestAlwaysFiveProperty(t *testing.T) {
	e, _ := newExecutor(t, books)
	rapid.Check(t, func(t *rapid.T) {
		q := rapid.String().Draw(t, "q")
		kind := rapid.SampledFrom(indexer.Kinds).Draw(t, "kind")
		res, err := e.Suggest(context.Background(), q, kind)
		if err != nil {
			t.Fatalf("%q: %v", q, err)
		}
		if len(res.Suggestions) != 5 {
			t.Fatalf("%q: %d suggestions", q, len(res.Suggestions))
		}
	})
}

func TestMatchAndResolve(t *testing.T) {
	e, _ := newExecutor(t, books)
	got, err := e.Match(context.Background(), "^Great")
	require.NoError(t, err)
	assert.Equal(t, []string{"Great Expectations"}, got)

	got, err = e.Match(context.Background(), "(")
	require.NoError(t, err)
	assert.Empty(t, got)

	id, err := e.ResolveTitle(context.Background(), " Moby Dick ")
	require.NoError(t, err)
	assert.Equal(t, 2701, id)

	_, err = e.ResolveTitle(context.Background(), "Moby")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func BenchmarkSuggest(b *testing.B) {
	catalogBooks := make([]catalog.Book, 0, 3000)
	words := []string{"history", "letters", "voyage", "poems", "travels", "memoirs", "sketches", "essays"}
	places := []string{"england", "france", "italy", "spain", "egypt", "india", "china", "peru"}
	for i := 0; i < 3000; i++ {
		catalogBooks = append(catalogBooks, catalog.Book{
			ID:      i,
			Title:   words[i%8] + " of " + places[(i/8)%8] + " volume " + string(rune('a'+i%26)),
			Authors: "Author, Number " + string(rune('a'+(i/26)%26)),
		})
	}
	e, _ := newExecutor(b, catalogBooks)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = e.Suggest(ctx, "letters from france", indexer.KindTitle)
		}
	})
}
