// Package ranker scores candidate rows against a query vector by cosine
// similarity and keeps the best k in a bounded ordered list.
package ranker

import "github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/index"

// DefaultK is the number of suggestions returned per query.
const DefaultK = 5

// Scored is one slot of the result list. Row is -1 for an unfilled slot.
type Scored struct {
	Row   int     `json:"row"`
	Score float64 `json:"score"`
}

// Cosine returns (q . d) / (|q| |d|) for row of m, and false when either
// norm is zero.
func Cosine(query index.Row, queryNorm float64, m *index.Matrix, row int) (float64, bool) {
	docNorm := m.Norm(row)
	if queryNorm == 0 || docNorm == 0 {
		return 0, false
	}
	return index.Dot(query, m.Row(row)) / (queryNorm * docNorm), true
}

// Rank returns exactly k slots ordered by descending score. Slots start
// empty with score 0; a candidate takes the first slot whose score it
// strictly exceeds and pushes the rest down. Candidates must be in ascending
// row order, which makes ties go to the lexicographically smaller entry.
func Rank(candidates index.PostingList, query index.Row, m *index.Matrix, k int) []Scored {
	if k <= 0 {
		k = DefaultK
	}
	slots := make([]Scored, k)
	for i := range slots {
		slots[i].Row = -1
	}
	queryNorm := index.Norm(query)
	if queryNorm == 0 {
		return slots
	}
	for _, row := range candidates {
		score, ok := Cosine(query, queryNorm, m, row)
		if !ok {
			continue
		}
		insert(slots, Scored{Row: row, Score: score})
	}
	return slots
}

func insert(slots []Scored, s Scored) {
	for i := range slots {
		if s.Score > slots[i].Score {
			copy(slots[i+1:], slots[i:len(slots)-1])
			slots[i] = s
			return
		}
	}
}
