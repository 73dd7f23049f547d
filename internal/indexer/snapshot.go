// Package indexer turns a catalog into immutable trigram index snapshots and
// swaps them in for readers. A Snapshot is never modified after Build
// returns; catalog changes produce a new Snapshot that replaces the old one
// wholesale.
package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/tracing"
)

// Snapshot holds both namespaces of one catalog version plus the exact-title
// tables used by regexp matching and title resolution.
type Snapshot struct {
	Version uint64
	BuiltAt time.Time

	titles      *Namespace
	authors     *Namespace
	exactTitles []string
	titleIDs    map[string]int
	books       int
	durations   map[Kind]time.Duration
}

// Stats summarizes a snapshot for the admin endpoint and metrics.
type Stats struct {
	Version     uint64           `json:"version"`
	BuiltAt     time.Time        `json:"built_at"`
	Books       int              `json:"books"`
	ExactTitles int              `json:"exact_titles"`
	Namespaces  []NamespaceStats `json:"namespaces"`
}

type NamespaceStats struct {
	Kind          Kind    `json:"kind"`
	Entries       int     `json:"entries"`
	Trigrams      int     `json:"trigrams"`
	BuildDuration float64 `json:"build_seconds"`
}

// Build indexes titles and authors in parallel. The only error is ctx
// cancellation.
func Build(ctx context.Context, books []catalog.Book, version uint64) (*Snapshot, error) {
	ctx, span := tracing.StartChildSpan(ctx, "snapshot.build")
	defer span.End()
	span.SetAttr("books", len(books))

	s := &Snapshot{
		Version:   version,
		books:     len(books),
		durations: make(map[Kind]time.Duration, len(Kinds)),
	}
	durations := make([]time.Duration, len(Kinds))
	namespaces := make([]*Namespace, len(Kinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range Kinds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, child := tracing.StartChildSpan(gctx, "namespace."+string(kind))
			defer child.End()
			start := time.Now()
			var pairs []catalog.Pair
			if kind == KindTitle {
				pairs = catalog.Titles(books)
			} else {
				pairs = catalog.Authors(books)
			}
			namespaces[i] = BuildNamespace(kind, pairs)
			durations[i] = time.Since(start)
			child.SetAttr("entries", namespaces[i].Len())
			child.SetAttr("trigrams", namespaces[i].Inverted().Columns().Len())
			return nil
		})
	}
	g.Go(func() error {
		s.exactTitles, s.titleIDs = exactTitleTables(books)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}

	s.titles, s.authors = namespaces[0], namespaces[1]
	for i, kind := range Kinds {
		s.durations[kind] = durations[i]
	}
	s.BuiltAt = time.Now()
	return s, nil
}

// exactTitleTables returns the distinct display titles in catalog order and
// the title to id map, where a later book overwrites an earlier one.
func exactTitleTables(books []catalog.Book) ([]string, map[string]int) {
	titles := make([]string, 0, len(books))
	ids := make(map[string]int, len(books))
	for _, b := range books {
		title := b.CleanTitle()
		if _, seen := ids[title]; !seen {
			titles = append(titles, title)
		}
		ids[title] = b.ID
	}
	return titles, ids
}

// Namespace returns the index of kind.
func (s *Snapshot) Namespace(kind Kind) (*Namespace, error) {
	switch kind {
	case KindTitle:
		return s.titles, nil
	case KindAuthor:
		return s.authors, nil
	}
	_, err := ParseKind(string(kind))
	return nil, err
}

// ResolveTitle maps an exact display title, surrounding whitespace ignored,
// to its Gutenberg book id.
func (s *Snapshot) ResolveTitle(title string) (int, bool) {
	id, ok := s.titleIDs[strings.TrimSpace(title)]
	return id, ok
}

// ExactTitles returns the distinct display titles in catalog order. The
// slice must not be modified.
func (s *Snapshot) ExactTitles() []string {
	return s.exactTitles
}

func (s *Snapshot) Stats() Stats {
	st := Stats{
		Version:     s.Version,
		BuiltAt:     s.BuiltAt,
		Books:       s.books,
		ExactTitles: len(s.exactTitles),
	}
	for _, kind := range Kinds {
		ns, _ := s.Namespace(kind)
		st.Namespaces = append(st.Namespaces, NamespaceStats{
			Kind:          kind,
			Entries:       ns.Len(),
			Trigrams:      ns.Inverted().Columns().Len(),
			BuildDuration: s.durations[kind].Seconds(),
		})
	}
	return st
}
