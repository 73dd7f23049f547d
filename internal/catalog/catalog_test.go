package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Text#,Type,Issued,Title,Language,Authors,Subjects,LoCC,Bookshelves
64317,Text,2021-01-17,The Great Gatsby,en,"Fitzgerald, F. Scott (Francis Scott), 1896-1940",Psychological fiction,PS,
2701,Text,2001-07-01,"Moby Dick;
Or, The Whale",en,"Melville, Herman, 1819-1891",Whaling -- Fiction,PS,Best Books Ever Listings
1400,Text,1998-07-01,Great Expectations,en,"Dickens, Charles, 1812-1870",Orphans -- Fiction,PR,
`

func TestDecode(t *testing.T) {
	books, err := Decode(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, books, 3)

	assert.Equal(t, 64317, books[0].ID)
	assert.Equal(t, "The Great Gatsby", books[0].Title)
	assert.Equal(t, "Melville, Herman, 1819-1891", books[1].Authors)
	assert.Equal(t, "Moby Dick;\nOr, The Whale", books[1].Title)
	assert.Equal(t, "Moby Dick; Or, The Whale", books[1].CleanTitle())
	assert.Equal(t, "Best Books Ever Listings", books[1].Bookshelves)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader("Text#,Title\nnot-a-number,Oops\n"))
	assert.Error(t, err)
}

func TestTitlesAndAuthors(t *testing.T) {
	books := []Book{
		{ID: 1, Title: "Moby Dick;\r\nOr, The Whale", Authors: "Melville, Herman, 1819-1891"},
		{ID: 2, Title: "Emma", Authors: "Austen, Jane, 1775-1817; Austen, Jane, 1775-1817"},
		{ID: 3, Title: "Anonymous Ballads"},
	}

	assert.Equal(t, []Pair{
		{Normalized: "moby dick or the whale", Display: "Moby Dick; Or, The Whale"},
		{Normalized: "emma", Display: "Emma"},
		{Normalized: "anonymous ballads", Display: "Anonymous Ballads"},
	}, Titles(books))

	assert.Equal(t, []Pair{
		{Normalized: "melville herman", Display: "Melville, Herman, 1819-1891"},
		{Normalized: "austen jane", Display: "Austen, Jane, 1775-1817; Austen, Jane, 1775-1817"},
		{Normalized: "", Display: ""},
	}, Authors(books))
}
