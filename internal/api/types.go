package api

import (
	"github.com/samcharles93/codestream/internal/align"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
)

// StrategyRequest overrides the server's token selection strategy. Unset
// fields keep the server default.
type StrategyRequest struct {
	Kind        string   `json:"kind,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
}

// GenerationRequest is the body of POST /v1/generations.
type GenerationRequest struct {
	Prompt     []int            `json:"prompt"`
	Codebooks  *int             `json:"codebooks,omitempty"`
	MaxSteps   *int             `json:"max_steps,omitempty"`
	PadToken   *int             `json:"pad_token,omitempty"`
	Strategy   *StrategyRequest `json:"strategy,omitempty"`
	Parallel   *bool            `json:"parallel,omitempty"`
	Background *bool            `json:"background,omitempty"`
	Stream     *bool            `json:"stream,omitempty"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

type Usage struct {
	Steps           int     `json:"steps"`
	TokensGenerated int     `json:"tokens_generated"`
	DurationMs      int64   `json:"duration_ms"`
	StepsPerSec     float64 `json:"steps_per_sec"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

// Generation is the resource returned by every generation endpoint.
type Generation struct {
	ID          string         `json:"id"`
	Object      string         `json:"object"`
	CreatedAt   int64          `json:"created_at"`
	CompletedAt *int64         `json:"completed_at,omitempty"`
	Status      string         `json:"status"`
	StopReason  string         `json:"stop_reason,omitempty"`
	Codebooks   int            `json:"codebooks"`
	VocabSize   int            `json:"vocab_size"`
	MaxSteps    int            `json:"max_steps"`
	Background  bool           `json:"background"`
	Counts      []int          `json:"counts,omitempty"`
	FrameLength int            `json:"frame_length"`
	Usage       *Usage         `json:"usage,omitempty"`
	Error       *ErrorBody     `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	// Frame is inlined only in the response that finished the generation.
	Frame *align.Frame `json:"frame,omitempty"`
}

// StepPayload is the data of a generation.step stream event.
type StepPayload struct {
	Step     int     `json:"step"`
	Tokens   []int   `json:"tokens"`
	Accepted int     `json:"accepted"`
	Elapsed  float64 `json:"elapsed_ms"`
}

type streamEvent struct {
	Type           string       `json:"type"`
	SequenceNumber int          `json:"sequence_number"`
	Generation     *Generation  `json:"generation,omitempty"`
	Step           *StepPayload `json:"step,omitempty"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
