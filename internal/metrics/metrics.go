// Package metrics exports generation progress to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/samcharles93/codestream/internal/generate"
)

const namespace = "codestream"

var _ generate.Observer = (*Recorder)(nil)

// Recorder implements generate.Observer. One Recorder is shared by every
// driver in the process.
type Recorder struct {
	steps          prometheus.Counter
	tokens         *prometheus.CounterVec
	stepDuration   prometheus.Histogram
	generations    *prometheus.CounterVec
	engineFailures prometheus.Counter
	frameLength    prometheus.Histogram
	inflight       prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "steps_total",
			Help:      "Total number of decode steps run",
		}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "tokens_total",
			Help:      "Tokens accepted into a codebook history",
		}, []string{"codebook"}),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "decode",
			Name:      "step_duration_seconds",
			Help:      "Wall time of one decode step including the evaluate call",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Finished generations by final state and stop reason",
		}, []string{"state", "stop"}),
		engineFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_failures_total",
			Help:      "Evaluate calls that failed or panicked",
		}),
		frameLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_length",
			Help:      "Aligned frame length of finished generations",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "inflight_generations",
			Help:      "Generations currently running",
		}),
	}
	reg.MustRegister(r.steps, r.tokens, r.stepDuration, r.generations, r.engineFailures, r.frameLength, r.inflight)
	return r
}

// Begin marks a generation as running; call the returned func when it ends.
func (r *Recorder) Begin() func() {
	r.inflight.Inc()
	return r.inflight.Dec
}

func (r *Recorder) StepDone(ev generate.StepEvent) {
	r.steps.Inc()
	r.stepDuration.Observe(ev.Elapsed.Seconds())
	for c, tok := range ev.Tokens {
		if tok >= 0 {
			r.tokens.WithLabelValues(strconv.Itoa(c)).Inc()
		}
	}
}

func (r *Recorder) Finished(res *generate.Result, err error) {
	if errors.Is(err, generate.ErrEngineFailure) {
		r.engineFailures.Inc()
	}
	if res == nil {
		return
	}
	r.generations.WithLabelValues(res.State.String(), res.Stop.String()).Inc()
	if res.Frame != nil {
		r.frameLength.Observe(float64(res.Frame.Length))
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
