package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samcharles93/codestream/internal/engine"
)

type closingEvaluator struct {
	testEvaluator
	closed bool
}

func (c *closingEvaluator) Close() error {
	c.closed = true
	return nil
}

func TestPooledEngineProviderClosesEvaluator(t *testing.T) {
	t.Parallel()

	ev := &closingEvaluator{}
	p := NewPooledEngineProvider(EngineProviderConfig{
		Factory: engine.FactoryFunc(func(context.Context, int) (engine.Evaluator, error) { return ev, nil }),
		Vocab:   testVocab,
	})
	err := p.WithEvaluator(context.Background(), 2, func(got engine.Evaluator) error {
		if got != engine.Evaluator(ev) {
			t.Fatalf("unexpected evaluator")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithEvaluator: %v", err)
	}
	if !ev.closed {
		t.Fatalf("evaluator was not closed")
	}
}

func TestPooledEngineProviderLimits(t *testing.T) {
	t.Parallel()

	factory := engine.FactoryFunc(func(context.Context, int) (engine.Evaluator, error) { return &testEvaluator{}, nil })
	for _, queue := range []bool{false, true} {
		p := NewPooledEngineProvider(EngineProviderConfig{Factory: factory, Vocab: testVocab, Queue: queue})
		held := make(chan struct{})
		release := make(chan struct{})
		go func() {
			_ = p.WithEvaluator(context.Background(), 2, func(engine.Evaluator) error {
				close(held)
				<-release
				return nil
			})
		}()
		<-held

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		err := p.WithEvaluator(ctx, 2, func(engine.Evaluator) error { return nil })
		cancel()
		if queue && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("queued provider: err = %v", err)
		}
		if !queue && !errors.Is(err, ErrBusy) {
			t.Fatalf("unqueued provider: err = %v", err)
		}
		close(release)
	}
}

func TestPooledEngineProviderFactoryError(t *testing.T) {
	t.Parallel()

	boom := errors.New("no device")
	p := NewPooledEngineProvider(EngineProviderConfig{
		Factory: engine.FactoryFunc(func(context.Context, int) (engine.Evaluator, error) { return nil, boom }),
	})
	if err := p.WithEvaluator(context.Background(), 2, func(engine.Evaluator) error { return nil }); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}
