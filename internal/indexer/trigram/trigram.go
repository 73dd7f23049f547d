// Package trigram extracts the overlapping three-character windows used as the
// unit of fuzzy matching. Input is expected to be normalized already; no case
// folding or cleanup happens here.
package trigram

import "strings"

// Size is the width of the sliding window.
const Size = 3

// Extract returns every trigram of s in order, duplicates included. The
// window moves one rune at a time over all characters, spaces included.
// Strings shorter than Size runes produce no trigrams.
func Extract(s string) []string {
	runes := []rune(s)
	if len(runes) < Size {
		return nil
	}
	grams := make([]string, 0, len(runes)-Size+1)
	for i := 0; i+Size <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+Size]))
	}
	return grams
}

// Distinct returns the trigrams of s with duplicates removed, keeping the
// position of the first occurrence.
func Distinct(s string) []string {
	grams := Extract(s)
	if len(grams) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(grams))
	out := grams[:0]
	for _, g := range grams {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

// Words splits s on whitespace and extracts the trigrams of each word. A
// word shorter than Size yields an empty entry, which keeps the result
// aligned with strings.Fields(s).
func Words(s string) [][]string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	out := make([][]string, len(words))
	for i, w := range words {
		out[i] = Extract(w)
	}
	return out
}
