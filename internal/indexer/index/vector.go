package index

import "github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/trigram"

// QueryVector builds the sparse weight vector of a query over the column
// space of cols. Trigrams unknown to the vocabulary weigh zero and are left
// out, as are repeated trigrams.
func QueryVector(grams []string, cols *Columns, idf IDF) Row {
	seen := make(map[int]struct{}, len(grams))
	row := make(Row, 0, len(grams))
	for _, gram := range grams {
		col, ok := cols.ID(gram)
		if !ok {
			continue
		}
		if _, dup := seen[col]; dup {
			continue
		}
		seen[col] = struct{}{}
		row = append(row, Cell{Col: col, Weight: idf[col]})
	}
	sortCells(row)
	return row
}

// Norm returns the Euclidean norm of a sparse vector.
func Norm(r Row) float64 {
	return norm(r)
}

// VectorOf is a convenience for QueryVector(trigram.Extract(s), ...).
func VectorOf(s string, cols *Columns, idf IDF) Row {
	return QueryVector(trigram.Extract(s), cols, idf)
}
