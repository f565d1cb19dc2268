package generate

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineFailure wraps any error returned by the evaluator.
	ErrEngineFailure = errors.New("engine failure")
	// ErrInvalidConfig is returned by New for unusable configurations.
	ErrInvalidConfig = errors.New("invalid generation config")
	// ErrDriverUsed is returned when Run is called twice on one driver.
	ErrDriverUsed = errors.New("driver already ran")
)

// ConditioningStep marks errors raised by the conditioning pass.
const ConditioningStep = -1

// StepError locates a failure in the decode loop. Codebook is -1 when the
// failure is not tied to one codebook.
type StepError struct {
	Step     int
	Codebook int
	Err      error
}

func (e *StepError) Error() string {
	switch {
	case e.Step == ConditioningStep:
		return fmt.Sprintf("conditioning: %v", e.Err)
	case e.Codebook >= 0:
		return fmt.Sprintf("step %d codebook %d: %v", e.Step, e.Codebook, e.Err)
	default:
		return fmt.Sprintf("step %d: %v", e.Step, e.Err)
	}
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func engineFailure(step int, err error) *StepError {
	return &StepError{Step: step, Codebook: -1, Err: fmt.Errorf("%w: %w", ErrEngineFailure, err)}
}
