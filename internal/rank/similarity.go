package rank

import (
	"errors"
	"math"
	"regexp"
	"strings"
)

var ErrDegenerateVector = errors.New("degenerate term vector")

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRe    = regexp.MustCompile(`\s+`)
	wordRe     = regexp.MustCompile(`\w+`)
)

func stripText(text string) string {
	text = nonAlnumRe.ReplaceAllString(text, "")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

func termFrequencies(text string) map[string]int {
	tf := make(map[string]int)
	for _, tok := range wordRe.FindAllString(text, -1) {
		tf[tok]++
	}
	return tf
}

// cosineSimilarity compares two lower-cased texts as word frequency vectors after
// stripping everything outside [a-z0-9 ]. Either side having no words is reported
// as ErrDegenerateVector.
func cosineSimilarity(a, b string) (float64, error) {
	left := termFrequencies(stripText(a))
	right := termFrequencies(stripText(b))
	if len(left) == 0 || len(right) == 0 {
		return 0, ErrDegenerateVector
	}
	var dot, normA, normB float64
	for term, ca := range left {
		normA += float64(ca * ca)
		if cb, ok := right[term]; ok {
			dot += float64(ca * cb)
		}
	}
	for _, cb := range right {
		normB += float64(cb * cb)
	}
	if normA == 0 || normB == 0 {
		return 0, ErrDegenerateVector
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
