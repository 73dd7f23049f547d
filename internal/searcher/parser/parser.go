// Package parser turns a raw keystroke query into the plan the candidate
// filter and ranker work from.
package parser

import (
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/trigram"
)

// QueryPlan is a normalized query with its trigrams precomputed.
type QueryPlan struct {
	Raw        string
	Normalized string
	// Trigrams covers the whole normalized query, spaces included.
	Trigrams []string
	// WordTrigrams holds the trigrams of each whitespace separated word; a
	// word shorter than three characters has an empty entry.
	WordTrigrams [][]string
}

// Parse normalizes raw with the title policy, which is also used for author
// queries, and extracts its trigrams.
func Parse(raw string) *QueryPlan {
	normalized := catalog.NormalizeTitle(raw)
	return &QueryPlan{
		Raw:          raw,
		Normalized:   normalized,
		Trigrams:     trigram.Extract(normalized),
		WordTrigrams: trigram.Words(normalized),
	}
}

// Empty reports whether the query has no words at all.
func (p *QueryPlan) Empty() bool {
	return len(p.WordTrigrams) == 0
}
