// Package executor answers suggestion queries against the live index
// snapshot: it filters candidates through the inverted index, ranks them by
// cosine similarity and maps the winning rows back to display strings.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/pattern"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/logger"
)

// Suggestion is one slot of a result. Text is "" for an unfilled slot.
type Suggestion struct {
	Kind  indexer.Kind `json:"kind"`
	Text  string       `json:"text"`
	Score float64      `json:"score"`
}

type SuggestResult struct {
	Query       string       `json:"query"`
	Normalized  string       `json:"normalized"`
	Kind        indexer.Kind `json:"kind"`
	Version     uint64       `json:"version"`
	Candidates  int          `json:"candidates"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Executor is safe for concurrent use; it only reads immutable snapshots.
type Executor struct {
	holder      *indexer.Holder
	limit       int
	regexpLimit int
	logger      *slog.Logger
}

func New(holder *indexer.Holder, limit, regexpLimit int) *Executor {
	if limit <= 0 {
		limit = ranker.DefaultK
	}
	if regexpLimit <= 0 {
		regexpLimit = pattern.DefaultLimit
	}
	return &Executor{
		holder:      holder,
		limit:       limit,
		regexpLimit: regexpLimit,
		logger:      slog.Default().With("component", "query-executor"),
	}
}

// Suggest returns exactly the configured number of suggestions for raw in
// namespace kind. Empty or very short queries are not errors; they produce
// empty slots.
func (e *Executor) Suggest(ctx context.Context, raw string, kind indexer.Kind) (*SuggestResult, error) {
	snap, err := e.holder.Load()
	if err != nil {
		return nil, err
	}
	return e.SuggestIn(ctx, snap, parser.Parse(raw), kind)
}

// SuggestIn runs an already parsed query against a specific snapshot.
func (e *Executor) SuggestIn(ctx context.Context, snap *indexer.Snapshot, plan *parser.QueryPlan, kind indexer.Kind) (*SuggestResult, error) {
	ns, err := snap.Namespace(kind)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	candidates := Candidates(ns.Inverted(), plan)
	query := index.QueryVector(plan.Trigrams, ns.Inverted().Columns(), ns.IDF())
	ranked := ranker.Rank(candidates, query, ns.Matrix(), e.limit)

	result := &SuggestResult{
		Query:       plan.Raw,
		Normalized:  plan.Normalized,
		Kind:        kind,
		Version:     snap.Version,
		Candidates:  len(candidates),
		Suggestions: make([]Suggestion, len(ranked)),
	}
	for i, s := range ranked {
		result.Suggestions[i] = Suggestion{Kind: kind, Text: ns.Display(s.Row), Score: s.Score}
	}

	logger.FromContext(ctx).Debug("suggest executed",
		"kind", kind,
		"query", plan.Normalized,
		"candidates", len(candidates),
		"top_score", ranked[0].Score,
		"duration", time.Since(start),
	)
	return result, nil
}

// Match runs the regular-expression mode over the exact titles of the live
// snapshot.
func (e *Executor) Match(ctx context.Context, expr string) ([]string, error) {
	snap, err := e.holder.Load()
	if err != nil {
		return nil, err
	}
	return pattern.Match(expr, snap.ExactTitles(), e.regexpLimit), nil
}

// ResolveTitle returns the Gutenberg id of an exact display title.
func (e *Executor) ResolveTitle(ctx context.Context, title string) (int, error) {
	snap, err := e.holder.Load()
	if err != nil {
		return 0, err
	}
	id, ok := snap.ResolveTitle(title)
	if !ok {
		return 0, fmt.Errorf("%w: no book titled %q", apperrors.ErrNotFound, title)
	}
	return id, nil
}

// Candidates returns, in ascending row order, the union of
//
//	(a) the rows containing every trigram of the whole query, and
//	(b) the rows that, for every word, contain all of that word's trigrams.
//
// A trigram missing from the index has an empty posting list. A word without
// trigrams matches nothing, which empties (b) for queries containing a word
// shorter than three characters; (a) may still supply rows.
func Candidates(inv *index.Inverted, plan *parser.QueryPlan) index.PostingList {
	if plan.Empty() {
		return nil
	}
	full := lookupAll(inv, plan.Trigrams)
	perWord := make([]index.PostingList, len(plan.WordTrigrams))
	for i, grams := range plan.WordTrigrams {
		perWord[i] = lookupAll(inv, grams)
		if len(perWord[i]) == 0 {
			perWord = nil
			break
		}
	}
	return index.Union(full, index.Intersect(perWord))
}

// lookupAll intersects the posting lists of grams; no grams gives nil.
func lookupAll(inv *index.Inverted, grams []string) index.PostingList {
	if len(grams) == 0 {
		return nil
	}
	lists := make([]index.PostingList, len(grams))
	for i, g := range grams {
		lists[i] = inv.Lookup(g)
		if lists[i] == nil {
			return nil
		}
	}
	return index.Intersect(lists)
}
