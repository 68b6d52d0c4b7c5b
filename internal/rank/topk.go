package rank

import (
	"sort"

	"github.com/xxxsen/docqa/internal/segment"
)

// Candidate is a segment paired with its score for one query.
type Candidate struct {
	Segment segment.Segment `json:"segment"`
	Score   float64         `json:"score"`
}

// Select orders candidates by descending score and returns at most k of them.
// Equal scores keep ascending segment position.
func Select(candidates []Candidate, k int) []Candidate {
	if k <= 0 || len(candidates) == 0 {
		return []Candidate{}
	}
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Segment.Position < ranked[j].Segment.Position
	})
	if k > len(ranked) {
		k = len(ranked)
	}
	return ranked[:k]
}
