package metrics

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/samcharles93/codestream/internal/align"
	"github.com/samcharles93/codestream/internal/generate"
)

func TestRecorderCountsSteps(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.StepDone(generate.StepEvent{Step: 0, Tokens: []int{3, -1, -1}, Accepted: 1, Elapsed: time.Millisecond})
	r.StepDone(generate.StepEvent{Step: 1, Tokens: []int{4, 5, -1}, Accepted: 2, Elapsed: time.Millisecond})

	if got := testutil.ToFloat64(r.steps); got != 2 {
		t.Fatalf("steps = %v", got)
	}
	if got := testutil.ToFloat64(r.tokens.WithLabelValues("0")); got != 2 {
		t.Fatalf("codebook 0 tokens = %v", got)
	}
	if got := testutil.ToFloat64(r.tokens.WithLabelValues("1")); got != 1 {
		t.Fatalf("codebook 1 tokens = %v", got)
	}
	if got := testutil.CollectAndCount(r.stepDuration); got != 1 {
		t.Fatalf("histogram series = %d", got)
	}
}

func TestRecorderFinished(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Finished(&generate.Result{State: generate.Complete, Stop: generate.StopBudget, Frame: &align.Frame{Codebooks: 1, Length: 4, Tokens: make([]int, 4)}}, nil)
	r.Finished(&generate.Result{State: generate.Failed, Stop: generate.StopEngineFailure}, errors.Join(generate.ErrEngineFailure))
	r.Finished(nil, generate.ErrEngineFailure)

	if got := testutil.ToFloat64(r.generations.WithLabelValues("complete", "budget")); got != 1 {
		t.Fatalf("complete generations = %v", got)
	}
	if got := testutil.ToFloat64(r.generations.WithLabelValues("failed", "engine_failure")); got != 1 {
		t.Fatalf("failed generations = %v", got)
	}
	if got := testutil.ToFloat64(r.engineFailures); got != 2 {
		t.Fatalf("engine failures = %v", got)
	}
}

func TestRecorderBegin(t *testing.T) {
	t.Parallel()

	r := NewRecorder(prometheus.NewRegistry())
	done := r.Begin()
	if got := testutil.ToFloat64(r.inflight); got != 1 {
		t.Fatalf("inflight = %v", got)
	}
	done()
	if got := testutil.ToFloat64(r.inflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.StepDone(generate.StepEvent{Tokens: []int{1}})

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("codestream_decode_steps_total 1")) {
		t.Fatalf("missing steps counter in %q", rr.Body.String())
	}
}
