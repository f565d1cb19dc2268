package api

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/codestream/internal/generate"
)

// SSEStreamWriter emits generation events as server-sent events, one JSON
// object per data line.
type SSEStreamWriter struct {
	w       io.Writer
	flusher func()
	seq     int
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	return &SSEStreamWriter{
		w:       res,
		flusher: flusher.Flush,
		seq:     1,
	}, nil
}

// Begin sends generation.created.
func (s *SSEStreamWriter) Begin(gen Generation) error {
	return s.send(streamEvent{Type: "generation.created", Generation: &gen})
}

// Step sends generation.step for one decode step.
func (s *SSEStreamWriter) Step(ev generate.StepEvent) error {
	return s.send(streamEvent{
		Type: "generation.step",
		Step: &StepPayload{
			Step:     ev.Step,
			Tokens:   append([]int(nil), ev.Tokens...),
			Accepted: ev.Accepted,
			Elapsed:  float64(ev.Elapsed.Microseconds()) / 1000,
		},
	})
}

// Finish sends generation.completed, generation.cancelled or
// generation.failed depending on the final status.
func (s *SSEStreamWriter) Finish(gen Generation) error {
	typ := "generation.completed"
	switch gen.Status {
	case StatusCancelled:
		typ = "generation.cancelled"
	case StatusFailed:
		typ = "generation.failed"
	}
	return s.send(streamEvent{Type: typ, Generation: &gen})
}

func (s *SSEStreamWriter) send(ev streamEvent) error {
	ev.SequenceNumber = s.seq
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, b); err != nil {
		return err
	}
	s.flush()
	s.seq++
	return nil
}

func (s *SSEStreamWriter) flush() {
	if s.flusher != nil {
		s.flusher()
	}
}

// sseObserver forwards driver steps to the stream and stops the generation
// once the client stops reading.
type sseObserver struct {
	w      *SSEStreamWriter
	cancel func()
	err    error
}

func (o *sseObserver) StepDone(ev generate.StepEvent) {
	if o.err != nil {
		return
	}
	if err := o.w.Step(ev); err != nil {
		o.err = err
		o.cancel()
	}
}

func (o *sseObserver) Finished(*generate.Result, error) {}
