// Package stream holds the per-codebook token histories of one generation
// request. A Set is owned by a single driver and is not safe for concurrent
// mutation of the same codebook; distinct codebooks may be written from
// different goroutines.
package stream

import "fmt"

// Set is an arena of histories indexed by codebook ordinal.
type Set struct {
	histories []*History
}

// NewSet allocates k empty histories, each sized for capacity tokens.
func NewSet(k, capacity int) (*Set, error) {
	if k <= 0 {
		return nil, fmt.Errorf("stream: codebook count must be positive, got %d", k)
	}
	s := &Set{histories: make([]*History, k)}
	for c := range s.histories {
		s.histories[c] = NewHistory(c, capacity)
	}
	return s, nil
}

func (s *Set) Codebooks() int {
	return len(s.histories)
}

// At returns the history of codebook c.
func (s *Set) At(c int) *History {
	return s.histories[c]
}

// Counts returns the current length of every history.
func (s *Set) Counts() []int {
	out := make([]int, len(s.histories))
	for c, h := range s.histories {
		out[c] = h.Count()
	}
	return out
}

// MinCount returns the shortest history length.
func (s *Set) MinCount() int {
	m := s.histories[0].Count()
	for _, h := range s.histories[1:] {
		m = min(m, h.Count())
	}
	return m
}

// Total returns the number of tokens across all histories.
func (s *Set) Total() int {
	n := 0
	for _, h := range s.histories {
		n += h.Count()
	}
	return n
}

// Freeze freezes every history.
func (s *Set) Freeze() {
	for _, h := range s.histories {
		h.Freeze()
	}
}
