// Package index builds the read-only structures behind trigram matching: the
// vocabulary with its row ids, the trigram inverted index with its column
// ids, the IDF table and the sparse weight matrix. Every structure is built
// once and never mutated afterwards, so concurrent readers need no locking.
package index

import "sort"

// Vocabulary is the sorted, deduplicated list of normalized strings of one
// namespace. The position of an entry is its row id.
type Vocabulary struct {
	entries []string
	rows    map[string]int
}

// NewVocabulary deduplicates and sorts the given normalized strings. Empty
// strings are dropped since they can never be matched.
func NewVocabulary(normalized []string) *Vocabulary {
	seen := make(map[string]struct{}, len(normalized))
	entries := make([]string, 0, len(normalized))
	for _, s := range normalized {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		entries = append(entries, s)
	}
	sort.Strings(entries)
	rows := make(map[string]int, len(entries))
	for i, s := range entries {
		rows[s] = i
	}
	return &Vocabulary{entries: entries, rows: rows}
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int {
	return len(v.entries)
}

// Entry returns the normalized string stored at row.
func (v *Vocabulary) Entry(row int) string {
	return v.entries[row]
}

// Row returns the row id of s.
func (v *Vocabulary) Row(s string) (int, bool) {
	row, ok := v.rows[s]
	return row, ok
}

// Entries returns the entries in row order. The slice must not be modified.
func (v *Vocabulary) Entries() []string {
	return v.entries
}
