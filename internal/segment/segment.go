package segment

import (
	"sync/atomic"
	"time"
)

// Segment is one retrievable span of document text. Position is its index
// inside the generation that holds it and is only stable within that generation.
type Segment struct {
	Position int    `json:"position"`
	Source   string `json:"source"`
	Text     string `json:"text"`
}

// Generation is an immutable, fully built set of segments produced by one reload.
type Generation struct {
	ID        uint64
	Segments  []Segment
	Documents int
	LoadedAt  time.Time
}

func (g *Generation) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Segments)
}

func (g *Generation) Empty() bool {
	return g.Len() == 0
}

// Store publishes generations with a single pointer swap. Readers call Current once
// at the start of an operation and keep using that generation until they finish.
type Store struct {
	current atomic.Pointer[Generation]
	nextID  atomic.Uint64
}

func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Generation{})
	return s
}

func (s *Store) Current() *Generation {
	return s.current.Load()
}

// Publish renumbers segments into a new generation and swaps it in. The input slice is copied,
// so callers may reuse it afterwards.
func (s *Store) Publish(segments []Segment, documents int) *Generation {
	owned := make([]Segment, len(segments))
	for i, seg := range segments {
		seg.Position = i
		owned[i] = seg
	}
	gen := &Generation{
		ID:        s.nextID.Add(1),
		Segments:  owned,
		Documents: documents,
		LoadedAt:  time.Now(),
	}
	s.current.Store(gen)
	return gen
}
