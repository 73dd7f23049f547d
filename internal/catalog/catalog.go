// Package catalog owns everything that happens before indexing: the Project
// Gutenberg record model, CSV decoding, the normalization policy applied to
// titles and authors, and the sources the catalog is loaded from (an HTTP
// download cached on disk, or a PostgreSQL table).
package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Book is one row of the Gutenberg pg_catalog.csv feed.
type Book struct {
	ID          int    `csv:"Text#"`
	Type        string `csv:"Type"`
	Issued      string `csv:"Issued"`
	Title       string `csv:"Title"`
	Language    string `csv:"Language"`
	Authors     string `csv:"Authors"`
	Subjects    string `csv:"Subjects"`
	LoCC        string `csv:"LoCC"`
	Bookshelves string `csv:"Bookshelves"`
}

// CleanTitle returns the title with embedded line breaks turned into spaces.
func (b Book) CleanTitle() string {
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(b.Title)
}

// Pair associates a normalized string with the text shown to users.
type Pair struct {
	Normalized string
	Display    string
}

// Source loads the full catalog.
type Source interface {
	Load(ctx context.Context) ([]Book, error)
}

// Decode reads a catalog CSV stream. Columns the Book struct does not know
// about are ignored.
func Decode(r io.Reader) ([]Book, error) {
	books := make([]Book, 0, 1024)
	if err := gocsv.Unmarshal(r, &books); err != nil {
		return nil, fmt.Errorf("decoding catalog csv: %w", err)
	}
	return books, nil
}

// Titles returns one pair per book: the normalized title and the cleaned
// display title.
func Titles(books []Book) []Pair {
	pairs := make([]Pair, 0, len(books))
	for _, b := range books {
		title := b.CleanTitle()
		pairs = append(pairs, Pair{Normalized: NormalizeTitle(title), Display: title})
	}
	return pairs
}

// Authors returns one pair per book: the book's normalized authors joined by
// "; " and the raw Authors field for display.
func Authors(books []Book) []Pair {
	pairs := make([]Pair, 0, len(books))
	for _, b := range books {
		norm := strings.Join(NormalizeAuthors(b.Authors), "; ")
		pairs = append(pairs, Pair{Normalized: norm, Display: b.Authors})
	}
	return pairs
}
