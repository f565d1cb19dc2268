// Package engine defines the sequence-evaluation contract the generation
// driver consumes. An Evaluator keeps causal history per stream id for the
// lifetime of one request and must not be shared between concurrent
// requests.
package engine

import (
	"context"
	"fmt"
)

// StreamID names one causal history inside an evaluator. Codebook streams use
// ids [0, K); the conditioning stream uses K.
type StreamID int

// ConditioningStream returns the id reserved for the conditioning pass of a
// K-codebook request.
func ConditioningStream(codebooks int) StreamID {
	return StreamID(codebooks)
}

// Entry is one (token, position, stream, output) tuple.
type Entry struct {
	Token    int
	Position int
	Stream   StreamID
	Output   bool
}

// Batch is the unit of work for one Evaluate call.
type Batch struct {
	Entries []Entry
}

// NewBatch returns an empty batch with room for n entries.
func NewBatch(n int) *Batch {
	return &Batch{Entries: make([]Entry, 0, n)}
}

// Add appends an entry.
func (b *Batch) Add(token, pos int, stream StreamID, output bool) {
	b.Entries = append(b.Entries, Entry{Token: token, Position: pos, Stream: stream, Output: output})
}

// Clear empties the batch, keeping its storage.
func (b *Batch) Clear() {
	b.Entries = b.Entries[:0]
}

func (b *Batch) Len() int { return len(b.Entries) }

// Outputs counts entries that request scores.
func (b *Batch) Outputs() int {
	n := 0
	for _, e := range b.Entries {
		if e.Output {
			n++
		}
	}
	return n
}

// Evaluator runs one batch and returns vocab scores for every entry with
// Output set, concatenated in entry order. A batch without outputs returns
// an empty buffer.
type Evaluator interface {
	Evaluate(ctx context.Context, batch *Batch) ([]float32, error)
	Vocab() int
}

// Closer is implemented by evaluators holding resources.
type Closer interface {
	Close() error
}

// Factory creates a fresh evaluator for one request that decodes the given
// number of codebook streams.
type Factory interface {
	NewEvaluator(ctx context.Context, codebooks int) (Evaluator, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(ctx context.Context, codebooks int) (Evaluator, error)

func (f FactoryFunc) NewEvaluator(ctx context.Context, codebooks int) (Evaluator, error) {
	return f(ctx, codebooks)
}

// SafeEvaluate calls ev.Evaluate, converting a panic into an error.
func SafeEvaluate(ctx context.Context, ev Evaluator, batch *Batch) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Evaluate: %v", rec)
		}
	}()
	return ev.Evaluate(ctx, batch)
}
