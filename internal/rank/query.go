package rank

import (
	"strings"
	"unicode/utf8"
)

// NormalizeQuery lower-cases the query and collapses runs of whitespace into a
// single space. A blank query normalizes to "".
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// QueryWords returns the words of a normalized query whose rune length is
// strictly greater than minLen.
func QueryWords(normalized string, minLen int) []string {
	fields := strings.Fields(normalized)
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if utf8.RuneCountInString(w) > minLen {
			words = append(words, w)
		}
	}
	return words
}
