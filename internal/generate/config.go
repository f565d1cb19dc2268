package generate

import (
	"fmt"

	"github.com/samcharles93/codestream/internal/logits"
)

// Config fixes the shape of one generation request.
type Config struct {
	Codebooks int
	VocabSize int
	MaxSteps  int
	// PadToken overrides the sentinel fed before a codebook has history.
	// Nil means VocabSize.
	PadToken *int

	Strategy logits.Strategy
	// Parallel selects per-codebook tokens concurrently within a step.
	Parallel bool
}

// Pad returns the effective pad token.
func (c Config) Pad() int {
	if c.PadToken != nil {
		return *c.PadToken
	}
	return c.VocabSize
}

// Validate checks the configuration before a driver is built.
func (c Config) Validate() error {
	if c.Codebooks <= 0 {
		return fmt.Errorf("%w: codebooks must be positive, got %d", ErrInvalidConfig, c.Codebooks)
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("%w: vocab size must be positive, got %d", ErrInvalidConfig, c.VocabSize)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps must not be negative, got %d", ErrInvalidConfig, c.MaxSteps)
	}
	if pad := c.Pad(); pad >= 0 && pad < c.VocabSize {
		return fmt.Errorf("%w: pad token %d lies inside the vocabulary [0, %d)", ErrInvalidConfig, pad, c.VocabSize)
	}
	if err := c.Strategy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
