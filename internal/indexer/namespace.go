package indexer

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-suggest/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/catalog-suggest/pkg/errors"
)

// Kind names one of the independently indexed string sets.
type Kind string

const (
	KindTitle  Kind = "title"
	KindAuthor Kind = "author"
)

// Kinds lists every namespace in build order.
var Kinds = []Kind{KindTitle, KindAuthor}

// ParseKind validates a namespace name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTitle, KindAuthor:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown namespace %q", apperrors.ErrInvalidInput, s)
}

// Namespace is the complete trigram index of one string set: vocabulary,
// inverted index, IDF table, weight matrix and the display string of every
// row.
type Namespace struct {
	kind     Kind
	vocab    *index.Vocabulary
	inverted *index.Inverted
	idf      index.IDF
	matrix   *index.Matrix
	display  []string
}

// BuildNamespace indexes the normalized side of pairs. When several pairs
// share a normalized string, the display text of the last one is kept.
func BuildNamespace(kind Kind, pairs []catalog.Pair) *Namespace {
	normalized := make([]string, len(pairs))
	displayOf := make(map[string]string, len(pairs))
	for i, p := range pairs {
		normalized[i] = p.Normalized
		displayOf[p.Normalized] = p.Display
	}

	vocab := index.NewVocabulary(normalized)
	inverted := index.BuildInverted(vocab)
	idf := index.BuildIDF(vocab.Len(), inverted)
	matrix := index.BuildMatrix(vocab, inverted.Columns(), idf)

	display := make([]string, vocab.Len())
	for row, entry := range vocab.Entries() {
		display[row] = displayOf[entry]
	}
	return &Namespace{
		kind:     kind,
		vocab:    vocab,
		inverted: inverted,
		idf:      idf,
		matrix:   matrix,
		display:  display,
	}
}

func (n *Namespace) Kind() Kind                    { return n.kind }
func (n *Namespace) Vocabulary() *index.Vocabulary { return n.vocab }
func (n *Namespace) Inverted() *index.Inverted     { return n.inverted }
func (n *Namespace) IDF() index.IDF                { return n.idf }
func (n *Namespace) Matrix() *index.Matrix         { return n.matrix }

// Display returns the user-facing text of row, or "" for row -1 or an
// unmapped row.
func (n *Namespace) Display(row int) string {
	if row < 0 || row >= len(n.display) {
		return ""
	}
	return n.display[row]
}

// Len returns the number of distinct normalized entries.
func (n *Namespace) Len() int {
	return n.vocab.Len()
}
