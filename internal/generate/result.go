package generate

import (
	"time"

	"github.com/samcharles93/codestream/internal/align"
)

// State is the driver's position in its lifecycle.
type State int

const (
	Conditioning State = iota
	Decoding
	Complete
	Failed
)

func (s State) String() string {
	switch s {
	case Conditioning:
		return "conditioning"
	case Decoding:
		return "decoding"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// StopReason says why the decode loop ended.
type StopReason int

const (
	// StopNone means decoding never started.
	StopNone StopReason = iota
	// StopBudget means every step in MaxSteps ran.
	StopBudget
	// StopCancelled means the context was cancelled between steps.
	StopCancelled
	// StopEngineFailure means an evaluate call failed.
	StopEngineFailure
	// StopProtocol means malformed logits or an out-of-order write.
	StopProtocol
)

func (r StopReason) String() string {
	switch r {
	case StopNone:
		return "none"
	case StopBudget:
		return "budget"
	case StopCancelled:
		return "cancelled"
	case StopEngineFailure:
		return "engine_failure"
	case StopProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

type Stats struct {
	Steps           int
	TokensGenerated int
	Duration        time.Duration
	StepsPerSec     float64
}

// Result is what one Run produced. Frame is nil when nothing aligned; Counts
// always reflects the histories at the moment decoding stopped.
type Result struct {
	State  State
	Stop   StopReason
	Frame  *align.Frame
	Counts []int
	Stats  Stats
}

// Partial reports whether the frame covers fewer steps than were requested.
func (r *Result) Partial() bool {
	return r.Stop != StopBudget && r.Frame != nil
}
