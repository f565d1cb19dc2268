package logits

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
)

// Kind tags a selection strategy.
type Kind int

const (
	Greedy Kind = iota
	TopK
	TopP
	Temperature
)

func (k Kind) String() string {
	switch k {
	case Greedy:
		return "greedy"
	case TopK:
		return "top-k"
	case TopP:
		return "top-p"
	case Temperature:
		return "temperature"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the names printed by Kind.String plus a few aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "greedy", "argmax":
		return Greedy, nil
	case "top-k", "top_k", "topk":
		return TopK, nil
	case "top-p", "top_p", "topp", "nucleus":
		return TopP, nil
	case "temperature", "temp":
		return Temperature, nil
	default:
		return Greedy, fmt.Errorf("logits: unknown strategy %q", s)
	}
}

// Strategy describes how one token is chosen from a codebook's scores.
// Fields not used by Kind are ignored.
type Strategy struct {
	Kind        Kind
	Seed        int64
	Temperature float32
	TopK        int
	TopP        float32
}

// Selector picks one token id from a score vector. Implementations may keep
// scratch state and are not safe for concurrent use.
type Selector interface {
	Select(scores []float32) int
}

// GreedySelector returns the argmax, lowest index on ties.
type GreedySelector struct{}

func (GreedySelector) Select(scores []float32) int {
	return Argmax(scores)
}

// NewSelector builds the selector for codebook c. Stochastic selectors are
// seeded with Seed+c so codebooks draw independent but reproducible streams.
func (s Strategy) NewSelector(c int) Selector {
	if s.Kind == Greedy {
		return GreedySelector{}
	}
	cfg := samplerConfig{
		seed:        s.Seed + int64(c),
		temperature: 1,
		topK:        0,
		topP:        1,
	}
	switch s.Kind {
	case TopK:
		cfg.topK = s.TopK
		if s.Temperature > 0 {
			cfg.temperature = s.Temperature
		}
	case TopP:
		cfg.topP = s.TopP
		if s.Temperature > 0 {
			cfg.temperature = s.Temperature
		}
	case Temperature:
		cfg.temperature = s.Temperature
	}
	if cfg.temperature <= 0 {
		return GreedySelector{}
	}
	if cfg.topP <= 0 || cfg.topP > 1 {
		cfg.topP = 1
	}
	return newSampler(cfg)
}

// Validate checks the parameters the kind uses.
func (s Strategy) Validate() error {
	switch s.Kind {
	case Greedy:
		return nil
	case TopK:
		if s.TopK <= 0 {
			return fmt.Errorf("logits: top-k requires k > 0, got %d", s.TopK)
		}
	case TopP:
		if s.TopP <= 0 || s.TopP > 1 {
			return fmt.Errorf("logits: top-p requires 0 < p <= 1, got %g", s.TopP)
		}
	case Temperature:
		if s.Temperature < 0 {
			return fmt.Errorf("logits: temperature must not be negative, got %g", s.Temperature)
		}
	default:
		return fmt.Errorf("logits: unknown strategy %s", s.Kind)
	}
	return nil
}

type samplerConfig struct {
	seed        int64
	temperature float32
	topK        int // 0 keeps the whole vocabulary
	topP        float32
}

// sampler draws from the softmax of temperature-scaled scores, optionally
// truncated to the top k candidates and then to the top-p nucleus.
type sampler struct {
	rng    *rand.Rand
	cfg    samplerConfig
	topIdx []int
	topVal []float32
	prob   []float64
}

func newSampler(cfg samplerConfig) *sampler {
	return &sampler{
		rng: rand.New(rand.NewSource(cfg.seed)),
		cfg: cfg,
	}
}

func (s *sampler) Select(scores []float32) int {
	k := len(scores)
	if s.cfg.topK > 0 {
		k = min(s.cfg.topK, k)
	}
	if k == 1 {
		return Argmax(scores)
	}

	topIdx, topVal := s.topK(scores, k, 1/s.cfg.temperature)
	if len(topVal) == 0 {
		return 0
	}

	// topVal is sorted descending, so topVal[0] is the max.
	if cap(s.prob) < len(topVal) {
		s.prob = make([]float64, len(topVal))
	}
	prob := s.prob[:len(topVal)]
	var sum float64
	for i, v := range topVal {
		e := math.Exp(float64(v - topVal[0]))
		prob[i] = e
		sum += e
	}
	if sum == 0 || math.IsNaN(sum) {
		return topIdx[0]
	}

	cut := len(prob)
	if s.cfg.topP < 1 {
		var c float64
		for i := range prob {
			c += prob[i] / sum
			if float32(c) >= s.cfg.topP {
				cut = i + 1
				break
			}
		}
	}

	var mass float64
	for i := 0; i < cut; i++ {
		mass += prob[i]
	}
	r := s.rng.Float64() * mass
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r < c {
			return topIdx[i]
		}
	}
	return topIdx[cut-1]
}

// topK returns the k largest scores scaled by invTemp, largest first. Equal
// values keep their original order. O(V*K), which is fine for the small k
// used in practice and degrades to an insertion sort when k == V.
func (s *sampler) topK(scores []float32, k int, invTemp float32) ([]int, []float32) {
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, l := range scores {
		v := l * invTemp

		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}

		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v

		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}

// Argmax returns the index of the largest value, lowest index on ties. It
// panics on an empty slice.
func Argmax(x []float32) int {
	if len(x) == 0 {
		panic("argmax: empty slice")
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}
