package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/trigram"
)

// PostingList holds the row ids of the entries containing a trigram, in
// ascending order and without duplicates.
type PostingList []int

// Columns is the explicit trigram to column id assignment. It is produced by
// BuildInverted and must be the one handed to BuildMatrix.
type Columns struct {
	trigrams []string
	ids      map[string]int
}

// Len returns the number of distinct trigrams.
func (c *Columns) Len() int {
	return len(c.trigrams)
}

// ID returns the column id of a trigram.
func (c *Columns) ID(gram string) (int, bool) {
	id, ok := c.ids[gram]
	return id, ok
}

// Trigram returns the trigram assigned to column id.
func (c *Columns) Trigram(id int) string {
	return c.trigrams[id]
}

// Inverted maps every trigram of a vocabulary to its posting list.
type Inverted struct {
	postings []PostingList
	columns  *Columns
}

// BuildInverted extracts the trigrams of every vocabulary entry and records
// the entry in the posting list of each distinct trigram it produced. Column
// ids follow the lexicographic order of the trigrams.
func BuildInverted(vocab *Vocabulary) *Inverted {
	byGram := make(map[string]PostingList)
	for row, entry := range vocab.Entries() {
		for _, gram := range trigram.Distinct(entry) {
			byGram[gram] = append(byGram[gram], row)
		}
	}

	grams := make([]string, 0, len(byGram))
	for gram := range byGram {
		grams = append(grams, gram)
	}
	sort.Strings(grams)

	cols := &Columns{
		trigrams: grams,
		ids:      make(map[string]int, len(grams)),
	}
	postings := make([]PostingList, len(grams))
	for id, gram := range grams {
		cols.ids[gram] = id
		postings[id] = byGram[gram]
	}
	return &Inverted{postings: postings, columns: cols}
}

// Columns returns the column assignment derived from this index.
func (inv *Inverted) Columns() *Columns {
	return inv.columns
}

// Lookup returns the posting list of a trigram, or nil if no entry
// contains it. The returned slice must not be modified.
func (inv *Inverted) Lookup(gram string) PostingList {
	id, ok := inv.columns.ID(gram)
	if !ok {
		return nil
	}
	return inv.postings[id]
}

// DocFreq returns the posting list size of the trigram at column id.
func (inv *Inverted) DocFreq(id int) int {
	return len(inv.postings[id])
}

// Intersect returns the rows present in every list. Lists are processed from
// the shortest to the longest so the running result shrinks as fast as
// possible, and the walk stops as soon as it is empty. No lists gives an
// empty result.
func Intersect(lists []PostingList) PostingList {
	if len(lists) == 0 {
		return nil
	}
	ordered := make([]PostingList, len(lists))
	copy(ordered, lists)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i]) < len(ordered[j])
	})
	if len(ordered[0]) == 0 {
		return nil
	}
	result := make(PostingList, len(ordered[0]))
	copy(result, ordered[0])
	for _, list := range ordered[1:] {
		result = intersectSorted(result, list)
		if len(result) == 0 {
			return nil
		}
	}
	return result
}

// Union merges sorted lists into one sorted list without duplicates.
func Union(a, b PostingList) PostingList {
	out := make(PostingList, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// intersectSorted keeps the rows of a that also appear in b, reusing a's
// backing array.
func intersectSorted(a, b PostingList) PostingList {
	out := a[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
