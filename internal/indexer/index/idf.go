package index

import "math"

// IDF holds one smoothed inverse document frequency weight per column.
type IDF []float64

// BuildIDF computes idf(t) = 1 + ln((1 + n) / (1 + df(t))) for every column
// of inv, where n is the vocabulary size.
func BuildIDF(n int, inv *Inverted) IDF {
	weights := make(IDF, inv.Columns().Len())
	for id := range weights {
		weights[id] = Weight(n, inv.DocFreq(id))
	}
	return weights
}

// Weight is the smoothed IDF of a trigram found in df of n entries. It never
// drops below 1 for df <= n and decreases as df grows.
func Weight(n, df int) float64 {
	return 1 + math.Log(float64(1+n)/float64(1+df))
}

// Scaled returns a copy of the table with every weight multiplied by f.
func (w IDF) Scaled(f float64) IDF {
	out := make(IDF, len(w))
	for i, v := range w {
		out[i] = v * f
	}
	return out
}
