// Package pattern implements the regular-expression suggestion mode over
// exact display titles.
package pattern

import "regexp"

// DefaultLimit caps the number of titles returned.
const DefaultLimit = 5

// Match returns up to limit distinct titles, in the order given, that contain
// a match for expr. Patterns use RE2 syntax; an expression that fails to
// compile yields an empty list rather than an error.
func Match(expr string, titles []string, limit int) []string {
	if limit <= 0 {
		limit = DefaultLimit
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return []string{}
	}
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, title := range titles {
		if len(out) == limit {
			break
		}
		if _, dup := seen[title]; dup {
			continue
		}
		if re.MatchString(title) {
			seen[title] = struct{}{}
			out = append(out, title)
		}
	}
	return out
}
