package align

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/codestream/internal/stream"
)

func fill(t *testing.T, counts []int) *stream.Set {
	t.Helper()
	s, err := stream.NewSet(len(counts), 0)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	for c, n := range counts {
		for i := 0; i < n; i++ {
			if err := s.At(c).Append(i, 100*c+i); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
	}
	return s
}

func TestAlignTrimsToShortest(t *testing.T) {
	t.Parallel()

	s := fill(t, []int{10, 9, 8, 7})
	f, err := Align(s)
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if f.Codebooks != 4 || f.Length != 7 {
		t.Fatalf("shape: %d x %d", f.Codebooks, f.Length)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for c := 0; c < 4; c++ {
		want := make([]int, 7)
		for i := range want {
			want[i] = 100*c + i
		}
		if diff := cmp.Diff(want, f.Row(c)); diff != "" {
			t.Fatalf("codebook %d (-want +got):\n%s", c, diff)
		}
	}
	if diff := cmp.Diff([]int{3, 103, 203, 303}, f.Column(3, nil)); diff != "" {
		t.Fatalf("column (-want +got):\n%s", diff)
	}
	if err := s.At(0).Append(10, 1); !errors.Is(err, stream.ErrFrozen) {
		t.Fatalf("expected histories frozen after Align, got %v", err)
	}
}

func TestAlignEmptyFrame(t *testing.T) {
	t.Parallel()

	for _, counts := range [][]int{{0}, {3, 0}, {5, 4, 0, 2}, {0, 0}} {
		if _, err := Align(fill(t, counts)); !errors.Is(err, ErrEmptyFrame) {
			t.Fatalf("counts %v: expected ErrEmptyFrame, got %v", counts, err)
		}
	}
}

func TestAlignCopiesTokens(t *testing.T) {
	t.Parallel()

	s := fill(t, []int{2, 2})
	f, _ := Align(s)
	f.Tokens[0] = -1
	if tok, _ := s.At(0).TokenAt(0); tok != 0 {
		t.Fatalf("frame must not alias histories")
	}
}

func TestFromRows(t *testing.T) {
	t.Parallel()

	f, err := FromRows([][]int{{1, 2, 3}, {4, 5}})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if diff := cmp.Diff([][]int{{1, 2}, {4, 5}}, f.Rows()); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
	if f.At(1, 1) != 5 {
		t.Fatalf("At(1,1) = %d", f.At(1, 1))
	}
	if _, err := FromRows(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame for no rows, got %v", err)
	}
	if _, err := FromRows([][]int{{1}, {}}); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("expected ErrEmptyFrame for empty row, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	bad := []*Frame{
		nil,
		{Codebooks: 0, Length: 1},
		{Codebooks: 2, Length: 2, Tokens: []int{1, 2, 3}},
	}
	for i, f := range bad {
		if err := f.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
