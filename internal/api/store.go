package api

import (
	"context"
	"sync"
	"time"

	"github.com/samcharles93/codestream/internal/align"
)

type generationRecord struct {
	gen     Generation
	frame   *align.Frame
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

// GenerationStore keeps generations in memory for the lifetime of the
// process.
type GenerationStore struct {
	mu          sync.Mutex
	generations map[string]*generationRecord
}

func NewGenerationStore() *GenerationStore {
	return &GenerationStore{
		generations: make(map[string]*generationRecord),
	}
}

// Create stores gen as running. cancel may be nil for synchronous
// generations.
func (s *GenerationStore) Create(gen Generation, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[gen.ID] = &generationRecord{
		gen:     gen,
		cancel:  cancel,
		running: true,
		done:    make(chan struct{}),
	}
}

// Finish records the final state and frame of a generation and releases
// anyone waiting on it. It reports false if the generation was deleted in the
// meantime.
func (s *GenerationStore) Finish(gen Generation, frame *align.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.generations[gen.ID]
	if !ok {
		return false
	}
	gen.Frame = nil
	rec.gen = gen
	rec.frame = frame
	rec.cancel = nil
	if rec.running {
		rec.running = false
		close(rec.done)
	}
	return true
}

func (s *GenerationStore) Get(id string) (Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.generations[id]
	if !ok {
		return Generation{}, false
	}
	return rec.gen, true
}

// Frame returns the aligned frame of a finished generation.
func (s *GenerationStore) Frame(id string) (*align.Frame, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.generations[id]
	if !ok {
		return nil, "", false
	}
	return rec.frame, rec.gen.Status, true
}

// Delete removes a generation, cancelling it first if it is still running.
func (s *GenerationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.generations[id]
	if !ok {
		return false
	}
	if rec.cancel != nil {
		rec.cancel()
	}
	if rec.running {
		rec.running = false
		close(rec.done)
	}
	delete(s.generations, id)
	return true
}

// Cancel requests cancellation of a running generation and reports whether
// it was still running. The record keeps its in_progress status until the
// driver observes the cancellation between steps and the run finishes.
func (s *GenerationStore) Cancel(id string) (gen Generation, running, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.generations[id]
	if !ok {
		return Generation{}, false, false
	}
	if rec.running && rec.cancel != nil {
		rec.cancel()
	}
	return rec.gen, rec.running, true
}

// Wait blocks until the generation finishes, ctx ends or the id is unknown.
func (s *GenerationStore) Wait(ctx context.Context, id string) (Generation, bool) {
	s.mu.Lock()
	rec, ok := s.generations[id]
	s.mu.Unlock()
	if !ok {
		return Generation{}, false
	}
	select {
	case <-rec.done:
	case <-ctx.Done():
	}
	return s.Get(id)
}

// CancelAll cancels every running generation, used on shutdown.
func (s *GenerationStore) CancelAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.generations {
		if rec.cancel != nil {
			rec.cancel()
			n++
		}
	}
	return n
}

func completedAt(now time.Time) *int64 {
	ts := now.Unix()
	return &ts
}
