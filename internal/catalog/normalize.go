package catalog

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// keptPunctuation survives normalization: it appears inside compound names
// and elisions ("jean-paul", "o'connor").
const keptPunctuation = "-'"

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	initialsRe     = regexp.MustCompile(`((?:(?:[\p{L}\p{N}_]+ )|(?:[\p{L}\p{N}_]\. ))+)\(((?:[\p{L}\p{N}_]+ ?)+?)\)`)
	bracketedRe    = regexp.MustCompile(`[\(\[\{].*?[\)\]\}]`)
	digitsRe       = regexp.MustCompile(`\p{Nd}+`)
	leadingDashRe  = regexp.MustCompile(`^-*`)
	trailingDashRe = regexp.MustCompile(`-*$`)

	punctuation = func() *strings.Replacer {
		var pairs []string
		for r := rune(0x21); r < 0x7f; r++ {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				if strings.ContainsRune(keptPunctuation, r) {
					continue
				}
				pairs = append(pairs, string(r), " ")
			}
		}
		return strings.NewReplacer(pairs...)
	}()
)

// NormalizeTitle applies the base normalization to a title: case folding,
// accent removal, ASCII punctuation (except - and ') replaced by spaces, and
// whitespace collapsed and trimmed.
func NormalizeTitle(s string) string {
	return normalize(s)
}

// NormalizeAuthors splits a ";" separated Authors field and returns the
// distinct normalized names in sorted order.
func NormalizeAuthors(s string) []string {
	if s == "" {
		return nil
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, 2)
	for _, author := range strings.Split(s, ";") {
		n := NormalizeAuthor(author)
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NormalizeAuthor cleans a single author name for matching. Initials
// followed by the full name in parentheses are expanded, bracketed
// content and digits (life dates) are removed, the base normalization is
// applied, and remaining isolated letters are glued ("j k" becomes "jk").
func NormalizeAuthor(s string) string {
	if s == "" {
		return ""
	}
	s = expandInitials(s)
	s = bracketedRe.ReplaceAllString(s, " ")
	s = digitsRe.ReplaceAllString(s, " ")
	s = normalize(s)
	s = glueLoneLetters(s)
	s = leadingDashRe.ReplaceAllString(s, "")
	s = trailingDashRe.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func normalize(s string) string {
	if s == "" {
		return ""
	}
	s = cases.Fold().String(s)
	s = removeAccents(s)
	s = punctuation.Replace(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// removeAccents decomposes characters (NFKD) and drops the combining marks.
func removeAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	if out, _, err := transform.String(t, s); err == nil {
		return out
	}
	return s
}

// expandInitials replaces "J. R. R. " by "John Ronald Reuel" when the text
// reads "J. R. R. (John Ronald Reuel)" and every initial matches.
func expandInitials(s string) string {
	for _, m := range initialsRe.FindAllStringSubmatch(s, -1) {
		initials, fullName := m[1], m[2]
		if initialsMatch(initials, fullName) {
			s = strings.ReplaceAll(s, initials, fullName)
		}
	}
	return s
}

func initialsMatch(initials, fullName string) bool {
	inits := strings.Fields(initials)
	names := strings.Fields(fullName)
	if len(inits) != len(names) {
		return false
	}
	for i := range inits {
		a, _ := utf8.DecodeRuneInString(inits[i])
		b, _ := utf8.DecodeRuneInString(names[i])
		if a != b {
			return false
		}
	}
	return true
}

// glueLoneLetters drops the whitespace run or dot after every single-letter
// word, so "j k rowling" becomes "jkrowling". Word boundaries are Unicode
// aware: the "a" in "møa" is not a word of its own.
func glueLoneLetters(s string) string {
	rs := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(rs); i++ {
		b.WriteRune(rs[i])
		if rs[i] < 'a' || rs[i] > 'z' || i+1 == len(rs) || (i > 0 && isWordRune(rs[i-1])) {
			continue
		}
		switch j := i + 1; {
		case rs[j] == '.':
			i = j
		case unicode.IsSpace(rs[j]):
			for j+1 < len(rs) && unicode.IsSpace(rs[j+1]) {
				j++
			}
			i = j
		}
	}
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
