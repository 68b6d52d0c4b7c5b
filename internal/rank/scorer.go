package rank

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/docqa/internal/segment"
)

const (
	// PhraseBonus is added for every kept query word when the whole query
	// occurs verbatim in the segment.
	PhraseBonus = 5.0
	// SimilarityWeight scales the bounded character-prefix similarity.
	SimilarityWeight = 2.0

	minKeywordLen      = 2
	minSimilarityBound = 100
)

var errTooShort = errors.New("text shorter than similarity bound")

// Scorer computes the hybrid keyword/phrase/similarity relevance of a segment.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Score returns a non-negative relevance for text against query. The query does not
// need to be normalized by the caller.
func (s *Scorer) Score(query, text string) float64 {
	return s.score(NormalizeQuery(query), strings.ToLower(text))
}

// ScoreAll scores every segment of gen against query, in position order.
func (s *Scorer) ScoreAll(gen *segment.Generation, query string) []Candidate {
	if gen.Empty() {
		return nil
	}
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return nil
	}
	out := make([]Candidate, len(gen.Segments))
	for i, seg := range gen.Segments {
		out[i] = Candidate{Segment: seg, Score: s.score(normalized, strings.ToLower(seg.Text))}
	}
	return out
}

func (s *Scorer) score(query, text string) float64 {
	if query == "" {
		return 0
	}
	score := 0.0
	phrase := strings.Contains(text, query)
	for _, word := range QueryWords(query, minKeywordLen) {
		score += float64(strings.Count(text, word))
		if phrase {
			score += PhraseBonus
		}
	}
	if sim, err := prefixSimilarity(query, text); err == nil {
		score += sim * SimilarityWeight
	}
	return score
}

// prefixSimilarity compares the query with the first max(2*len(query), 100) runes
// of text. Texts shorter than that bound are not compared at all.
func prefixSimilarity(query, text string) (float64, error) {
	bound := 2 * utf8.RuneCountInString(query)
	if bound < minSimilarityBound {
		bound = minSimilarityBound
	}
	if utf8.RuneCountInString(text) < bound {
		return 0, errTooShort
	}
	return cosineSimilarity(query, runePrefix(text, bound))
}

func runePrefix(text string, n int) string {
	i := 0
	for idx := range text {
		if i == n {
			return text[:idx]
		}
		i++
	}
	return text
}
