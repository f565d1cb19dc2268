// Package logits turns the flat score buffer returned by one evaluation call
// into one token per codebook.
package logits

import (
	"errors"
	"fmt"
)

// ErrMalformedLogits is returned when a buffer is not exactly K*vocab long.
var ErrMalformedLogits = errors.New("logits: malformed buffer")

// MalformedLogitsError records the length mismatch.
type MalformedLogitsError struct {
	Got  int
	Want int
}

func (e *MalformedLogitsError) Error() string {
	return fmt.Sprintf("logits: malformed buffer: length %d, want %d", e.Got, e.Want)
}

func (e *MalformedLogitsError) Unwrap() error {
	return ErrMalformedLogits
}

// Extractor demultiplexes a row-major K x vocab buffer. Each codebook has its
// own selector so codebooks can be processed independently.
type Extractor struct {
	codebooks int
	vocab     int
	selectors []Selector
}

// NewExtractor builds an extractor with one selector per codebook from
// strategy.
func NewExtractor(codebooks, vocab int, strategy Strategy) (*Extractor, error) {
	if codebooks <= 0 || vocab <= 0 {
		return nil, fmt.Errorf("logits: codebooks and vocab must be positive, got %d and %d", codebooks, vocab)
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}
	sel := make([]Selector, codebooks)
	for c := range sel {
		sel[c] = strategy.NewSelector(c)
	}
	return &Extractor{codebooks: codebooks, vocab: vocab, selectors: sel}, nil
}

func (e *Extractor) Codebooks() int { return e.codebooks }
func (e *Extractor) Vocab() int     { return e.vocab }

// Check validates the buffer length.
func (e *Extractor) Check(buf []float32) error {
	if want := e.codebooks * e.vocab; len(buf) != want {
		return &MalformedLogitsError{Got: len(buf), Want: want}
	}
	return nil
}

// Row returns codebook c's scores as a view into buf. buf must have passed
// Check.
func (e *Extractor) Row(buf []float32, c int) []float32 {
	off := c * e.vocab
	return buf[off : off+e.vocab : off+e.vocab]
}

// SelectOne runs codebook c's selector on its row.
func (e *Extractor) SelectOne(buf []float32, c int) int {
	return e.selectors[c].Select(e.Row(buf, c))
}

// Extract writes one token per codebook into dst, which must have length K.
func (e *Extractor) Extract(buf []float32, dst []int) error {
	if err := e.Check(buf); err != nil {
		return err
	}
	if len(dst) != e.codebooks {
		return fmt.Errorf("logits: destination holds %d tokens, want %d", len(dst), e.codebooks)
	}
	for c := range dst {
		dst[c] = e.SelectOne(buf, c)
	}
	return nil
}
