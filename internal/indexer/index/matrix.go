package index

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/trigram"
)

// Cell is one non-zero weight of a sparse row.
type Cell struct {
	Col    int
	Weight float64
}

// Row is a sparse weight vector with cells in ascending column order.
type Row []Cell

// Matrix is the row-major sparse weight matrix of a vocabulary together with
// the Euclidean norm of every row.
type Matrix struct {
	rows  []Row
	norms []float64
	cols  int
}

// BuildMatrix emits, for every entry and every distinct trigram it produces,
// the cell (row, column) = idf(column). Presence is binary: a trigram that
// repeats inside an entry is weighted once. Entries without trigrams get an
// empty row and a zero norm.
//
// A trigram that has no column in cols means the index and matrix were built
// from different vocabularies; BuildMatrix panics in that case.
func BuildMatrix(vocab *Vocabulary, cols *Columns, idf IDF) *Matrix {
	if len(idf) != cols.Len() {
		panic(fmt.Sprintf("index: idf table has %d weights for %d columns", len(idf), cols.Len()))
	}
	m := &Matrix{
		rows:  make([]Row, vocab.Len()),
		norms: make([]float64, vocab.Len()),
		cols:  cols.Len(),
	}
	for rowID, entry := range vocab.Entries() {
		grams := trigram.Distinct(entry)
		row := make(Row, 0, len(grams))
		for _, gram := range grams {
			col, ok := cols.ID(gram)
			if !ok {
				panic(fmt.Sprintf("index: trigram %q of row %d has no column", gram, rowID))
			}
			row = append(row, Cell{Col: col, Weight: idf[col]})
		}
		sortCells(row)
		m.rows[rowID] = row
		m.norms[rowID] = norm(row)
	}
	return m
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int {
	return len(m.rows)
}

// Cols returns the number of columns.
func (m *Matrix) Cols() int {
	return m.cols
}

// Row returns the sparse vector of row id. It panics on an unknown row.
func (m *Matrix) Row(id int) Row {
	if id < 0 || id >= len(m.rows) {
		panic(fmt.Sprintf("index: row %d outside matrix of %d rows", id, len(m.rows)))
	}
	return m.rows[id]
}

// Norm returns the cached Euclidean norm of row id.
func (m *Matrix) Norm(id int) float64 {
	return m.norms[id]
}

// Dot returns the dot product of two rows.
func Dot(a, b Row) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Col < b[j].Col:
			i++
		case a[i].Col > b[j].Col:
			j++
		default:
			sum += a[i].Weight * b[j].Weight
			i++
			j++
		}
	}
	return sum
}

func norm(r Row) float64 {
	var sum float64
	for _, c := range r {
		sum += c.Weight * c.Weight
	}
	return math.Sqrt(sum)
}

// sortCells orders by column; rows are short, so insertion sort is enough.
func sortCells(r Row) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r[j].Col < r[j-1].Col; j-- {
			r[j], r[j-1] = r[j-1], r[j]
		}
	}
}
