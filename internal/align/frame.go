// Package align reconciles codebook histories of different lengths into the
// rectangular, codebook-major frame an audio codec consumes.
package align

import (
	"errors"
	"fmt"

	"github.com/samcharles93/codestream/internal/stream"
)

// ErrEmptyFrame is returned when at least one codebook holds no tokens, so
// there is no common time span to decode.
var ErrEmptyFrame = errors.New("align: empty frame")

// Frame is a K x L token matrix stored codebook-major: Tokens[c*Length+i] is
// codebook c at time i.
type Frame struct {
	Codebooks int   `json:"codebooks" msgpack:"codebooks"`
	Length    int   `json:"length" msgpack:"length"`
	Tokens    []int `json:"tokens" msgpack:"tokens"`
}

// Align trims every history in set to the shortest one and copies the result
// into a new Frame. Trailing tokens of early-starting codebooks are dropped.
// The set is frozen first, so the histories cannot change after alignment.
func Align(set *stream.Set) (*Frame, error) {
	set.Freeze()
	k := set.Codebooks()
	l := set.MinCount()
	if l == 0 {
		return nil, fmt.Errorf("%w: counts %v", ErrEmptyFrame, set.Counts())
	}
	f := &Frame{Codebooks: k, Length: l, Tokens: make([]int, k*l)}
	for c := 0; c < k; c++ {
		copy(f.Tokens[c*l:(c+1)*l], set.At(c).Prefix(l))
	}
	return f, nil
}

// FromRows builds a frame from one slice per codebook, trimming to the
// shortest row.
func FromRows(rows [][]int) (*Frame, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no codebooks", ErrEmptyFrame)
	}
	l := len(rows[0])
	for _, r := range rows[1:] {
		l = min(l, len(r))
	}
	if l == 0 {
		return nil, ErrEmptyFrame
	}
	f := &Frame{Codebooks: len(rows), Length: l, Tokens: make([]int, len(rows)*l)}
	for c, r := range rows {
		copy(f.Tokens[c*l:(c+1)*l], r[:l])
	}
	return f, nil
}

// Validate checks the shape invariants, for frames decoded from outside.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("align: nil frame")
	}
	if f.Codebooks <= 0 || f.Length <= 0 {
		return fmt.Errorf("%w: %d x %d", ErrEmptyFrame, f.Codebooks, f.Length)
	}
	if len(f.Tokens) != f.Codebooks*f.Length {
		return fmt.Errorf("align: frame holds %d tokens, want %d x %d", len(f.Tokens), f.Codebooks, f.Length)
	}
	return nil
}

// Row returns codebook c's tokens as a view.
func (f *Frame) Row(c int) []int {
	return f.Tokens[c*f.Length : (c+1)*f.Length : (c+1)*f.Length]
}

// At returns codebook c at time i.
func (f *Frame) At(c, i int) int {
	return f.Tokens[c*f.Length+i]
}

// Column fills dst with every codebook's token at time i.
func (f *Frame) Column(i int, dst []int) []int {
	dst = dst[:0]
	for c := 0; c < f.Codebooks; c++ {
		dst = append(dst, f.At(c, i))
	}
	return dst
}

// Rows copies the frame out as one slice per codebook.
func (f *Frame) Rows() [][]int {
	out := make([][]int, f.Codebooks)
	for c := range out {
		out[c] = append([]int(nil), f.Row(c)...)
	}
	return out
}
