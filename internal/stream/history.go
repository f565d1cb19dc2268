package stream

import (
	"errors"
	"fmt"
)

// ErrOutOfOrderWrite is returned when a token is written anywhere other than
// the next free slot of a history.
var ErrOutOfOrderWrite = errors.New("stream: out-of-order write")

// ErrFrozen is returned when appending to a history that has been handed to
// the aligner.
var ErrFrozen = errors.New("stream: history is frozen")

// OutOfOrderWriteError carries the slot the caller tried to fill.
type OutOfOrderWriteError struct {
	Codebook int
	Index    int
	Count    int
}

func (e *OutOfOrderWriteError) Error() string {
	return fmt.Sprintf("stream: out-of-order write to codebook %d: index %d, count %d", e.Codebook, e.Index, e.Count)
}

func (e *OutOfOrderWriteError) Unwrap() error {
	return ErrOutOfOrderWrite
}

// History is the append-only token history of one codebook.
type History struct {
	codebook int
	tokens   []int
	frozen   bool
}

// NewHistory returns an empty history with room for capacity tokens.
func NewHistory(codebook, capacity int) *History {
	return &History{
		codebook: codebook,
		tokens:   make([]int, 0, max(capacity, 0)),
	}
}

func (h *History) Codebook() int { return h.codebook }

// Count returns the number of tokens held.
func (h *History) Count() int {
	return len(h.tokens)
}

// TokenAt returns the token at index when 0 <= index < Count.
func (h *History) TokenAt(index int) (int, bool) {
	if index < 0 || index >= len(h.tokens) {
		return 0, false
	}
	return h.tokens[index], true
}

// Append writes token at index, which must equal Count.
func (h *History) Append(index, token int) error {
	if h.frozen {
		return fmt.Errorf("%w: codebook %d", ErrFrozen, h.codebook)
	}
	if index != len(h.tokens) {
		return &OutOfOrderWriteError{Codebook: h.codebook, Index: index, Count: len(h.tokens)}
	}
	h.tokens = append(h.tokens, token)
	return nil
}

// Freeze stops further appends.
func (h *History) Freeze() {
	h.frozen = true
}

// Prefix returns the first n tokens. The slice aliases the history.
func (h *History) Prefix(n int) []int {
	n = min(max(n, 0), len(h.tokens))
	return h.tokens[:n:n]
}
