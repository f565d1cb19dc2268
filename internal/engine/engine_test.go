package engine

import (
	"context"
	"strings"
	"testing"
)

type panicEvaluator struct{}

func (panicEvaluator) Evaluate(context.Context, *Batch) ([]float32, error) {
	panic("boom")
}

func (panicEvaluator) Vocab() int { return 2 }

func TestSafeEvaluateConvertsPanic(t *testing.T) {
	t.Parallel()

	_, err := SafeEvaluate(context.Background(), panicEvaluator{}, NewBatch(1))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "panic in Evaluate") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBatchAddClear(t *testing.T) {
	t.Parallel()

	b := NewBatch(4)
	b.Add(1, 0, ConditioningStream(4), false)
	b.Add(2, 0, 0, true)
	b.Add(3, 0, 1, true)
	if b.Len() != 3 || b.Outputs() != 2 {
		t.Fatalf("len=%d outputs=%d", b.Len(), b.Outputs())
	}
	if b.Entries[0].Stream != 4 {
		t.Fatalf("conditioning stream id: got %d", b.Entries[0].Stream)
	}
	b.Clear()
	if b.Len() != 0 || cap(b.Entries) < 4 {
		t.Fatalf("Clear must keep storage: len=%d cap=%d", b.Len(), cap(b.Entries))
	}
}
