package rank

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docqa/internal/segment"
)

func candidates(scores ...float64) []Candidate {
	out := make([]Candidate, len(scores))
	for i, s := range scores {
		out[i] = Candidate{Segment: segment.Segment{Position: i}, Score: s}
	}
	return out
}

func positions(cs []Candidate) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.Segment.Position
	}
	return out
}

func TestSelectOrdersByScoreThenPosition(t *testing.T) {
	got := Select(candidates(1, 3, 3, 0, 5, 3), 4)
	require.Equal(t, []int{4, 1, 2, 5}, positions(got))
}

func TestSelectBounds(t *testing.T) {
	in := candidates(2, 1)
	require.Equal(t, []int{0, 1}, positions(Select(in, 10)))
	require.Empty(t, Select(in, 0))
	require.Empty(t, Select(in, -1))
	got := Select(nil, 3)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	in := candidates(0, 0, 9)
	_ = Select(in, 3)
	require.Equal(t, []int{0, 1, 2}, positions(in))
}

func TestSelectAllZeroKeepsStoreOrder(t *testing.T) {
	gen := segment.NewStore().Publish([]segment.Segment{
		{Text: "The cat sat on the mat."},
		{Text: "Dogs bark loudly at night."},
	}, 1)
	got := Select(NewScorer().ScoreAll(gen, "quantum entanglement"), 3)
	require.Len(t, got, 2)
	require.Equal(t, []int{0, 1}, positions(got))
	require.Zero(t, got[0].Score)
}
