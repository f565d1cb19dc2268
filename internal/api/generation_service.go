package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/codestream/internal/align"
	"github.com/samcharles93/codestream/internal/engine"
	"github.com/samcharles93/codestream/internal/generate"
	"github.com/samcharles93/codestream/internal/logger"
	"github.com/samcharles93/codestream/internal/logits"
)

// GenerationService runs drivers against evaluators from an EngineProvider.
type GenerationService struct {
	provider EngineProvider
	defaults generate.Config
	observer generate.Observer
	log      logger.Logger
}

type ServiceOption func(*GenerationService)

// WithServiceObserver attaches an observer to every run, typically the
// metrics recorder.
func WithServiceObserver(o generate.Observer) ServiceOption {
	return func(s *GenerationService) { s.observer = o }
}

func WithServiceLogger(l logger.Logger) ServiceOption {
	return func(s *GenerationService) {
		if l != nil {
			s.log = l
		}
	}
}

func NewGenerationService(provider EngineProvider, defaults generate.Config, opts ...ServiceOption) *GenerationService {
	s := &GenerationService{
		provider: provider,
		defaults: defaults,
		log:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config merges req over the server defaults and validates the result.
func (s *GenerationService) Config(req *GenerationRequest) (generate.Config, error) {
	cfg := s.defaults
	cfg.VocabSize = s.provider.Vocab()
	if req.Codebooks != nil {
		cfg.Codebooks = *req.Codebooks
	}
	if req.MaxSteps != nil {
		cfg.MaxSteps = *req.MaxSteps
	}
	if req.PadToken != nil {
		pad := *req.PadToken
		cfg.PadToken = &pad
	}
	if req.Parallel != nil {
		cfg.Parallel = *req.Parallel
	}
	if st := req.Strategy; st != nil {
		if st.Kind != "" {
			kind, err := logits.ParseKind(st.Kind)
			if err != nil {
				return cfg, newInvalidRequest("strategy.kind", err.Error())
			}
			cfg.Strategy.Kind = kind
		}
		if st.TopK != nil {
			cfg.Strategy.TopK = *st.TopK
		}
		if st.TopP != nil {
			cfg.Strategy.TopP = *st.TopP
		}
		if st.Temperature != nil {
			cfg.Strategy.Temperature = *st.Temperature
		}
		if st.Seed != nil {
			cfg.Strategy.Seed = *st.Seed
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, newInvalidRequest("", err.Error())
	}
	for i, tok := range req.Prompt {
		if tok < 0 || tok >= cfg.VocabSize {
			return cfg, newInvalidRequest(fmt.Sprintf("prompt[%d]", i), fmt.Sprintf("token %d outside [0, %d)", tok, cfg.VocabSize))
		}
	}
	return cfg, nil
}

// runTracker is implemented by observers that count generations holding an
// evaluator, such as metrics.Recorder.
type runTracker interface {
	Begin() func()
}

// Run executes one generation. obs may be nil.
func (s *GenerationService) Run(ctx context.Context, cfg generate.Config, prompt []int, obs generate.Observer) (*generate.Result, error) {
	var observers generate.Observers
	for _, o := range []generate.Observer{s.observer, obs} {
		if o != nil {
			observers = append(observers, o)
		}
	}

	var (
		res    *generate.Result
		runErr error
	)
	err := s.provider.WithEvaluator(ctx, cfg.Codebooks, func(ev engine.Evaluator) error {
		if t, ok := s.observer.(runTracker); ok {
			defer t.Begin()()
		}
		d, err := generate.New(ev, cfg, generate.WithLogger(s.log), generate.WithObserver(observers))
		if err != nil {
			return err
		}
		res, runErr = d.Run(ctx, prompt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, runErr
}

// applyResult folds a run outcome into gen.
func applyResult(gen *Generation, res *generate.Result, err error, now time.Time) *align.Frame {
	gen.CompletedAt = completedAt(now)
	if res == nil {
		gen.Status = StatusFailed
		if errors.Is(err, context.Canceled) {
			gen.Status = StatusCancelled
		}
		gen.Error = errorBody(err)
		return nil
	}

	gen.StopReason = res.Stop.String()
	gen.Counts = res.Counts
	gen.Usage = &Usage{
		Steps:           res.Stats.Steps,
		TokensGenerated: res.Stats.TokensGenerated,
		DurationMs:      res.Stats.Duration.Milliseconds(),
		StepsPerSec:     res.Stats.StepsPerSec,
	}
	if res.Frame != nil {
		gen.FrameLength = res.Frame.Length
	}
	switch {
	case res.Stop == generate.StopCancelled:
		gen.Status = StatusCancelled
	case err != nil:
		gen.Status = StatusFailed
		gen.Error = errorBody(err)
	default:
		gen.Status = StatusCompleted
	}
	return res.Frame
}

func errorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	body := &ErrorBody{Message: err.Error(), Type: "server_error"}
	switch {
	case errors.Is(err, generate.ErrEngineFailure):
		body.Type, body.Code = "engine_error", "engine_failure"
	case errors.Is(err, logits.ErrMalformedLogits):
		body.Type, body.Code = "engine_error", "malformed_logits"
	case errors.Is(err, align.ErrEmptyFrame):
		body.Type, body.Code = "generation_error", "empty_frame"
	case errors.Is(err, ErrBusy):
		body.Type, body.Code = "rate_limit_error", "busy"
	}
	return body
}
