package api

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/codestream/internal/engine"
)

// EngineProvider hands a fresh evaluator to fn and releases it afterwards.
type EngineProvider interface {
	WithEvaluator(ctx context.Context, codebooks int, fn func(ev engine.Evaluator) error) error
	Vocab() int
}

type EngineProviderConfig struct {
	Factory engine.Factory
	Vocab   int
	// MaxConcurrent bounds simultaneous generations; 0 means 1.
	MaxConcurrent int
	// Queue makes callers wait for a slot instead of failing with ErrBusy.
	Queue bool
}

// PooledEngineProvider builds one evaluator per generation and caps how many
// run at once.
type PooledEngineProvider struct {
	cfg   EngineProviderConfig
	slots *semaphore.Weighted
}

func NewPooledEngineProvider(cfg EngineProviderConfig) *PooledEngineProvider {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &PooledEngineProvider{
		cfg:   cfg,
		slots: semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

func (p *PooledEngineProvider) Vocab() int { return p.cfg.Vocab }

func (p *PooledEngineProvider) WithEvaluator(ctx context.Context, codebooks int, fn func(ev engine.Evaluator) error) (err error) {
	if p.cfg.Factory == nil {
		return fmt.Errorf("engine factory not configured")
	}
	if p.cfg.Queue {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			return err
		}
	} else if !p.slots.TryAcquire(1) {
		return fmt.Errorf("%w: %d generations already running", ErrBusy, p.cfg.MaxConcurrent)
	}
	defer p.slots.Release(1)

	ev, err := p.cfg.Factory.NewEvaluator(ctx, codebooks)
	if err != nil {
		return fmt.Errorf("create evaluator: %w", err)
	}
	if closer, ok := ev.(engine.Closer); ok {
		defer func() {
			if cerr := closer.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("close evaluator: %w", cerr)
			}
		}()
	}
	return fn(ev)
}
