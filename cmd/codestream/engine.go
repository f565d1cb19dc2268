package main

import (
	"fmt"

	"github.com/samcharles93/codestream/internal/engine"
	"github.com/samcharles93/codestream/internal/engine/toy"
	"github.com/samcharles93/codestream/internal/generate"
	"github.com/samcharles93/codestream/internal/logits"
)

// generationConfig builds a driver config from the generation flags.
func generationConfig() (generate.Config, error) {
	kind, err := logits.ParseKind(strategy)
	if err != nil {
		return generate.Config{}, err
	}
	cfg := generate.Config{
		Codebooks: codebooks,
		VocabSize: vocabSize,
		MaxSteps:  maxSteps,
		Strategy: logits.Strategy{
			Kind:        kind,
			Seed:        seed,
			Temperature: float32(temperature),
			TopK:        topK,
			TopP:        float32(topP),
		},
		Parallel: parallel,
	}
	if padSet {
		pad := padToken
		cfg.PadToken = &pad
	}
	if err := cfg.Validate(); err != nil {
		return generate.Config{}, err
	}
	return cfg, nil
}

// toyConfig sizes the reference engine for a k-codebook request, sharing the
// conditioning stream's state with every codebook stream.
func toyConfig(k int) toy.Config {
	return toy.Config{
		Vocab:         vocabSize,
		Hidden:        engineHidden,
		Seed:          engineSeed,
		Decay:         engineDecay,
		SharePrefix:   true,
		ContextStream: engine.ConditioningStream(k),
		HalfPrecision: halfPrecision,
	}
}

// toyFactory validates the engine flags once and returns a factory building
// one reference engine per request.
func toyFactory() (engine.Factory, error) {
	cfg := toyConfig(codebooks)
	if _, err := toy.New(cfg); err != nil {
		return nil, fmt.Errorf("reference engine: %w", err)
	}
	return toy.Factory{Config: cfg}, nil
}
