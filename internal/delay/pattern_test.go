package delay

import (
	"errors"
	"testing"
)

func TestNewDelayEqualsOrdinal(t *testing.T) {
	t.Parallel()

	p, err := New(8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Codebooks() != 8 {
		t.Fatalf("codebooks: got %d want 8", p.Codebooks())
	}
	for c := 0; c < p.Codebooks(); c++ {
		if d := p.Delay(c); d != c {
			t.Fatalf("delay(%d) = %d", c, d)
		}
	}
}

func TestPredictedIsInputPlusOne(t *testing.T) {
	t.Parallel()

	p, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for step := 0; step < 32; step++ {
		for c := 0; c < 4; c++ {
			in, pred := p.Indices(step, c)
			if pred != in+1 {
				t.Fatalf("t=%d c=%d: predicted %d input %d", step, c, pred, in)
			}
			if in != p.InputIndex(step, c) || pred != p.PredictedIndex(step, c) {
				t.Fatalf("t=%d c=%d: Indices disagrees with single accessors", step, c)
			}
		}
	}
}

func TestIndicesAtStart(t *testing.T) {
	t.Parallel()

	p, _ := New(4)
	cases := []struct {
		step, codebook int
		input, pred    int
		started        bool
	}{
		{0, 0, -1, 0, true},
		{0, 1, -2, -1, false},
		{1, 1, -1, 0, true},
		{3, 3, -1, 0, true},
		{2, 3, -2, -1, false},
		{9, 2, 6, 7, true},
	}
	for _, tc := range cases {
		in, pred := p.Indices(tc.step, tc.codebook)
		if in != tc.input || pred != tc.pred {
			t.Fatalf("t=%d c=%d: got (%d,%d) want (%d,%d)", tc.step, tc.codebook, in, pred, tc.input, tc.pred)
		}
		if got := p.Started(tc.step, tc.codebook); got != tc.started {
			t.Fatalf("t=%d c=%d: started=%v", tc.step, tc.codebook, got)
		}
	}
}

func TestFromDelaysRejectsMismatch(t *testing.T) {
	t.Parallel()

	_, err := FromDelays([]int{0, 1, 1, 3})
	if !errors.Is(err, ErrDelayMismatch) {
		t.Fatalf("expected ErrDelayMismatch, got %v", err)
	}
	if _, err := FromDelays(nil); err == nil {
		t.Fatalf("expected error for empty table")
	}
	if _, err := New(0); err == nil {
		t.Fatalf("expected error for zero codebooks")
	}
}

func TestExpectedCountAndSpan(t *testing.T) {
	t.Parallel()

	p, _ := New(4)
	want := []int{10, 9, 8, 7}
	for c, w := range want {
		if got := p.ExpectedCount(10, c); got != w {
			t.Fatalf("codebook %d: got %d want %d", c, got, w)
		}
	}
	if got := p.ExpectedCount(2, 3); got != 0 {
		t.Fatalf("expected 0 before start, got %d", got)
	}
	if got := p.Span(7); got != 10 {
		t.Fatalf("span: got %d want 10", got)
	}
	if got := p.Span(0); got != 0 {
		t.Fatalf("span of zero: got %d", got)
	}
}
