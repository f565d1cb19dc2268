// Package toy provides a deterministic reference evaluator used by the CLI,
// the server and tests when no real model is attached.
package toy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/x448/float16"
	"gonum.org/v1/gonum/mat"

	"github.com/samcharles93/codestream/internal/engine"
)

// Config sizes a reference evaluator.
type Config struct {
	Vocab  int
	Hidden int
	Seed   int64
	// Decay mixes the previous stream state into the next one; 0 makes every
	// step depend only on its input token and the shared prefix.
	Decay float64
	// SharePrefix seeds every other stream from ContextStream's state when
	// that stream is first evaluated. The zero Config shares nothing.
	SharePrefix bool
	// ContextStream is the conditioning stream id; read only with SharePrefix.
	ContextStream engine.StreamID
	// HalfPrecision rounds returned scores through IEEE half precision, the
	// way a device-resident output head would hand them back.
	HalfPrecision bool
}

// Model is a small deterministic evaluator with the same contract as a real
// engine: an embedding table, a hidden-to-vocab projection and a bias, plus
// one recurrent state vector per stream id. Out-of-range tokens (the pad
// sentinel) share a dedicated embedding row.
type Model struct {
	cfg  Config
	emb  *mat.Dense // [(Vocab+1) x Hidden]; last row is the pad embedding
	proj *mat.Dense // [Hidden x Vocab]
	bias *mat.VecDense

	mu      sync.Mutex
	streams map[engine.StreamID]*streamState
	calls   int
	entries int
	closed  bool
}

type streamState struct {
	h    *mat.VecDense
	next int
}

// New builds a model whose weights are a pure function of cfg.Seed.
func New(cfg Config) (*Model, error) {
	if cfg.Vocab <= 0 || cfg.Hidden <= 0 {
		return nil, fmt.Errorf("toy: vocab and hidden must be positive, got %d and %d", cfg.Vocab, cfg.Hidden)
	}
	if cfg.Decay < 0 || cfg.Decay >= 1 {
		return nil, fmt.Errorf("toy: decay must be in [0, 1), got %g", cfg.Decay)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	m := &Model{
		cfg:     cfg,
		emb:     mat.NewDense(cfg.Vocab+1, cfg.Hidden, randomData(rng, (cfg.Vocab+1)*cfg.Hidden)),
		proj:    mat.NewDense(cfg.Hidden, cfg.Vocab, randomData(rng, cfg.Hidden*cfg.Vocab)),
		bias:    mat.NewVecDense(cfg.Vocab, nil),
		streams: make(map[engine.StreamID]*streamState),
	}
	return m, nil
}

func randomData(rng *rand.Rand, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func (m *Model) Vocab() int { return m.cfg.Vocab }

// Evaluate advances each entry's stream by one position, in entry order.
func (m *Model) Evaluate(ctx context.Context, batch *engine.Batch) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, fmt.Errorf("toy: nil batch")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("toy: evaluator closed")
	}

	out := make([]float32, 0, batch.Outputs()*m.cfg.Vocab)
	scores := mat.NewVecDense(m.cfg.Vocab, nil)
	for _, e := range batch.Entries {
		st := m.stream(e.Stream)
		if e.Position != st.next {
			return nil, fmt.Errorf("toy: stream %d: position %d, want %d", e.Stream, e.Position, st.next)
		}
		m.step(st, e.Token)
		if !e.Output {
			continue
		}
		scores.MulVec(m.proj.T(), st.h)
		scores.AddVec(scores, m.bias)
		for i := 0; i < m.cfg.Vocab; i++ {
			v := float32(scores.AtVec(i))
			if m.cfg.HalfPrecision {
				v = float16.Fromfloat32(v).Float32()
			}
			out = append(out, v)
		}
	}
	m.calls++
	m.entries += batch.Len()
	return out, nil
}

// stream returns the state for id, creating it from the context stream's
// current state when prefix sharing is enabled.
func (m *Model) stream(id engine.StreamID) *streamState {
	if st, ok := m.streams[id]; ok {
		return st
	}
	st := &streamState{h: mat.NewVecDense(m.cfg.Hidden, nil)}
	if m.cfg.SharePrefix && id != m.cfg.ContextStream {
		if prefix, ok := m.streams[m.cfg.ContextStream]; ok {
			st.h.CopyVec(prefix.h)
		}
	}
	m.streams[id] = st
	return st
}

func (m *Model) step(st *streamState, tok int) {
	row := tok
	if tok < 0 || tok >= m.cfg.Vocab {
		row = m.cfg.Vocab
	}
	st.h.ScaleVec(m.cfg.Decay, st.h)
	st.h.AddVec(st.h, m.emb.RowView(row))
	st.next++
}

// Streams reports how many stream ids have been seen.
func (m *Model) Streams() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Calls reports the number of Evaluate calls that succeeded.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.streams = nil
	return nil
}

// Factory builds one Model per request from a shared Config. With
// Config.SharePrefix set, each model shares the conditioning stream of the
// request's codebook count, whatever ContextStream says.
type Factory struct {
	Config Config
}

func (f Factory) NewEvaluator(ctx context.Context, codebooks int) (engine.Evaluator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := f.Config
	if cfg.SharePrefix {
		cfg.ContextStream = engine.ConditioningStream(codebooks)
	}
	return New(cfg)
}
