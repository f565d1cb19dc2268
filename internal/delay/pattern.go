// Package delay maps a global decode step onto per-codebook history indices
// for the delay-pattern interleaving, where codebook c runs c steps behind
// codebook 0.
package delay

import (
	"errors"
	"fmt"
)

// ErrDelayMismatch reports a delay table whose entry for codebook c is not c.
var ErrDelayMismatch = errors.New("delay: codebook delay must equal its ordinal")

// Pattern holds the per-codebook delays. The zero value is unusable; build one
// with New or FromDelays.
type Pattern struct {
	delays []int
}

// New returns the canonical pattern for k codebooks.
func New(k int) (*Pattern, error) {
	if k <= 0 {
		return nil, fmt.Errorf("delay: codebook count must be positive, got %d", k)
	}
	delays := make([]int, k)
	for c := range delays {
		delays[c] = c
	}
	return FromDelays(delays)
}

// FromDelays validates an explicit delay table. Any entry other than its own
// index would desynchronise every stream after it, so it is rejected here.
func FromDelays(delays []int) (*Pattern, error) {
	if len(delays) == 0 {
		return nil, fmt.Errorf("delay: empty delay table")
	}
	for c, d := range delays {
		if d != c {
			return nil, fmt.Errorf("%w: codebook %d has delay %d", ErrDelayMismatch, c, d)
		}
	}
	return &Pattern{delays: append([]int(nil), delays...)}, nil
}

// Codebooks returns K.
func (p *Pattern) Codebooks() int {
	return len(p.delays)
}

// Delay returns the step offset of codebook c.
func (p *Pattern) Delay(c int) int {
	return p.delays[c]
}

// InputIndex is the history slot fed as input to codebook c at step t.
// Negative means the pad token is fed instead.
func (p *Pattern) InputIndex(t, c int) int {
	return t - 1 - p.delays[c]
}

// PredictedIndex is the history slot that the output of step t fills for
// codebook c. Negative means the output is discarded.
func (p *Pattern) PredictedIndex(t, c int) int {
	return t - p.delays[c]
}

// Indices returns InputIndex and PredictedIndex together.
func (p *Pattern) Indices(t, c int) (input, predicted int) {
	predicted = p.PredictedIndex(t, c)
	return predicted - 1, predicted
}

// Started reports whether codebook c produces a kept token at step t.
func (p *Pattern) Started(t, c int) bool {
	return p.PredictedIndex(t, c) >= 0
}

// ExpectedCount is the history length codebook c reaches after steps decode
// iterations with no failures.
func (p *Pattern) ExpectedCount(steps, c int) int {
	return max(steps-p.delays[c], 0)
}

// Span is the number of decode steps needed for every codebook to hold n
// tokens.
func (p *Pattern) Span(n int) int {
	if n <= 0 {
		return 0
	}
	return n + p.delays[len(p.delays)-1]
}
