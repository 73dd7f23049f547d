package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	p := Parse("  The GREAT!  ")
	assert.Equal(t, "the great", p.Normalized)
	assert.Equal(t, []string{"the", "he ", "e g", " gr", "gre", "rea", "eat"}, p.Trigrams)
	assert.Equal(t, [][]string{{"the"}, {"gre", "rea", "eat"}}, p.WordTrigrams)
	assert.False(t, p.Empty())
}

func TestParseShortAndEmpty(t *testing.T) {
	p := Parse("a")
	assert.Empty(t, p.Trigrams)
	assert.Len(t, p.WordTrigrams, 1)
	assert.Empty(t, p.WordTrigrams[0])

	assert.True(t, Parse("  ?! ").Empty())
}

func TestParseAccents(t *testing.T) {
	assert.Equal(t, "les miserables", Parse("Les Misérables").Normalized)
}

func BenchmarkParse(b *testing.B) {
	queries := map[string]string{
		"prefix": "gre",
		"title":  "the great gats",
		"typo":   "moby dikc whale",
	}
	for name, q := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = Parse(q)
			}
		})
	}
}
