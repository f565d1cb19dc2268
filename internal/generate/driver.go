// Package generate runs the delay-pattern decode loop: one conditioning pass,
// then a fixed budget of steps in which every codebook stream is fed its
// previous token (or the pad sentinel), evaluated in one batch, and extended
// by the token selected from its slice of the returned scores.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/codestream/internal/align"
	"github.com/samcharles93/codestream/internal/delay"
	"github.com/samcharles93/codestream/internal/engine"
	"github.com/samcharles93/codestream/internal/logger"
	"github.com/samcharles93/codestream/internal/logits"
	"github.com/samcharles93/codestream/internal/stream"
)

// Option customises a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger. The default discards output.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithObserver attaches progress callbacks.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.obs = o
		}
	}
}

// Driver owns the stream histories and the evaluator for exactly one request.
type Driver struct {
	cfg       Config
	pad       int
	pattern   *delay.Pattern
	extractor *logits.Extractor
	eval      engine.Evaluator
	log       logger.Logger
	obs       Observer

	state   State
	streams *stream.Set
	batch   *engine.Batch
	accept  []bool
	tokens  []int
}

// New validates cfg and prepares a driver around eval.
func New(eval engine.Evaluator, cfg Config, opts ...Option) (*Driver, error) {
	if eval == nil {
		return nil, fmt.Errorf("%w: evaluator is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if v := eval.Vocab(); v != cfg.VocabSize {
		return nil, fmt.Errorf("%w: evaluator vocab %d, config vocab %d", ErrInvalidConfig, v, cfg.VocabSize)
	}
	pattern, err := delay.New(cfg.Codebooks)
	if err != nil {
		return nil, err
	}
	extractor, err := logits.NewExtractor(cfg.Codebooks, cfg.VocabSize, cfg.Strategy)
	if err != nil {
		return nil, err
	}
	streams, err := stream.NewSet(cfg.Codebooks, cfg.MaxSteps)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		cfg:       cfg,
		pad:       cfg.Pad(),
		pattern:   pattern,
		extractor: extractor,
		eval:      eval,
		log:       logger.Discard(),
		obs:       nopObserver{},
		state:     Conditioning,
		streams:   streams,
		batch:     engine.NewBatch(cfg.Codebooks),
		accept:    make([]bool, cfg.Codebooks),
		tokens:    make([]int, cfg.Codebooks),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// Streams exposes the histories, mainly for inspection after Run.
func (d *Driver) Streams() *stream.Set { return d.streams }

// Run conditions on prompt and decodes up to MaxSteps steps.
//
// A non-nil Result is returned whenever decoding started, even alongside an
// error: an engine failure or protocol violation mid-loop stops decoding but
// the tokens produced so far are still aligned into Result.Frame. Context
// cancellation between steps is a normal early completion and returns no
// error unless nothing could be aligned.
func (d *Driver) Run(ctx context.Context, prompt []int) (*Result, error) {
	if d.state != Conditioning {
		return nil, ErrDriverUsed
	}
	if err := ctx.Err(); err != nil {
		d.state = Failed
		return nil, err
	}

	start := time.Now()
	log := d.log.With("codebooks", d.cfg.Codebooks, "max_steps", d.cfg.MaxSteps)

	if err := d.condition(ctx, prompt); err != nil {
		d.state = Failed
		log.Error("conditioning failed", "error", err)
		res := &Result{State: Failed, Stop: StopNone, Counts: d.streams.Counts()}
		d.obs.Finished(res, err)
		return res, err
	}
	log.Debug("conditioned", "prompt_tokens", len(prompt))

	d.state = Decoding
	stop, steps, loopErr := d.decode(ctx, log)

	frame, alignErr := align.Align(d.streams)
	res := &Result{
		State:  Complete,
		Stop:   stop,
		Frame:  frame,
		Counts: d.streams.Counts(),
		Stats: Stats{
			Steps:           steps,
			TokensGenerated: d.streams.Total(),
			Duration:        time.Since(start),
		},
	}
	if secs := res.Stats.Duration.Seconds(); secs > 0 {
		res.Stats.StepsPerSec = float64(steps) / secs
	}

	err := errors.Join(loopErr, alignErr)
	if err != nil {
		res.State = Failed
	}
	d.state = res.State

	log.Info("generation finished",
		"state", res.State.String(),
		"stop", stop.String(),
		"steps", steps,
		"counts", res.Counts,
		"duration", res.Stats.Duration,
	)
	if alignErr != nil {
		log.Warn("nothing to align", "error", alignErr)
	}
	d.obs.Finished(res, err)
	return res, err
}

// condition feeds the prompt under the conditioning stream id. No scores are
// requested; the pass only establishes context.
//
// Evaluate calls never see cancellation: a call in flight when ctx is
// cancelled runs to completion and the loop stops at the next step boundary.
func (d *Driver) condition(ctx context.Context, prompt []int) error {
	if len(prompt) == 0 {
		return nil
	}
	cond := engine.ConditioningStream(d.cfg.Codebooks)
	b := engine.NewBatch(len(prompt))
	for pos, tok := range prompt {
		b.Add(tok, pos, cond, false)
	}
	if _, err := engine.SafeEvaluate(context.WithoutCancel(ctx), d.eval, b); err != nil {
		return engineFailure(ConditioningStep, err)
	}
	return nil
}

func (d *Driver) decode(ctx context.Context, log logger.Logger) (StopReason, int, error) {
	for t := 0; t < d.cfg.MaxSteps; t++ {
		if ctx.Err() != nil {
			log.Info("generation cancelled", "step", t)
			return StopCancelled, t, nil
		}
		stepStart := time.Now()
		accepted, err := d.step(ctx, t)
		if err != nil {
			if errors.Is(err, ErrEngineFailure) {
				log.Error("evaluate failed, stopping early", "step", t, "error", err)
				return StopEngineFailure, t, err
			}
			log.Error("decode step rejected", "step", t, "error", err)
			return StopProtocol, t, err
		}
		elapsed := time.Since(stepStart)
		log.Debug("step", "step", t, "accepted", accepted, "elapsed", elapsed)
		d.obs.StepDone(StepEvent{Step: t, Tokens: d.tokens, Accepted: accepted, Elapsed: elapsed})
	}
	return StopBudget, d.cfg.MaxSteps, nil
}

// step runs decode iteration t and returns how many codebooks were extended.
func (d *Driver) step(ctx context.Context, t int) (int, error) {
	d.batch.Clear()
	for c := 0; c < d.cfg.Codebooks; c++ {
		h := d.streams.At(c)
		in, pred := d.pattern.Indices(t, c)
		tok, ok := h.TokenAt(in)
		if !ok {
			tok = d.pad
		}
		d.accept[c] = pred >= 0 && h.Count() == pred
		d.batch.Add(tok, t, engine.StreamID(c), true)
	}

	buf, err := engine.SafeEvaluate(context.WithoutCancel(ctx), d.eval, d.batch)
	if err != nil {
		return 0, engineFailure(t, err)
	}
	if err := d.extractor.Check(buf); err != nil {
		return 0, &StepError{Step: t, Codebook: -1, Err: err}
	}

	d.selectTokens(buf)

	accepted := 0
	for c := 0; c < d.cfg.Codebooks; c++ {
		if !d.accept[c] {
			continue
		}
		if err := d.streams.At(c).Append(d.pattern.PredictedIndex(t, c), d.tokens[c]); err != nil {
			return accepted, &StepError{Step: t, Codebook: c, Err: err}
		}
		accepted++
	}
	return accepted, nil
}

// selectTokens fills d.tokens for every accepting codebook and -1 elsewhere.
// Rows and selectors are disjoint per codebook, so the parallel path needs
// no locking.
func (d *Driver) selectTokens(buf []float32) {
	if !d.cfg.Parallel || d.cfg.Codebooks == 1 {
		for c := range d.tokens {
			d.tokens[c] = -1
			if d.accept[c] {
				d.tokens[c] = d.extractor.SelectOne(buf, c)
			}
		}
		return
	}
	var g errgroup.Group
	for c := range d.tokens {
		d.tokens[c] = -1
		if !d.accept[c] {
			continue
		}
		g.Go(func() error {
			d.tokens[c] = d.extractor.SelectOne(buf, c)
			return nil
		})
	}
	_ = g.Wait()
}
