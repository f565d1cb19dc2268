// Package codec turns aligned token frames into audio samples. Real neural
// codecs live outside this module; Tone is a reference decoder that keeps the
// pipeline runnable end to end.
package codec

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/codestream/internal/align"
)

// FrameRate is the number of frame columns per second of audio.
const FrameRate = 50

// ErrDecode wraps every failure raised by a decoder.
var ErrDecode = errors.New("codec: decode failed")

// Decoder converts one K x L frame into mono PCM samples in [-1, 1].
type Decoder interface {
	Decode(ctx context.Context, frame *align.Frame) ([]float32, error)
	SampleRate() int
}

// Render validates frame and calls dec exactly once, converting a panic into
// an error.
func Render(ctx context.Context, dec Decoder, frame *align.Frame) (pcm []float32, err error) {
	if frame == nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, align.ErrEmptyFrame)
	}
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer func() {
		if rec := recover(); rec != nil {
			pcm = nil
			err = fmt.Errorf("%w: panic in Decode: %v", ErrDecode, rec)
		}
	}()
	pcm, err = dec.Decode(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return pcm, nil
}

// Duration returns the playback length in seconds of a frame of length l.
func Duration(l int) float64 {
	return float64(l) / FrameRate
}

// Tone emits one sample-and-hold segment per frame column. Each codebook
// contributes a sine partial whose pitch is picked by its token, with
// amplitude halving per codebook so coarse codebooks dominate.
type Tone struct {
	Rate  int // samples per second; 0 means 24000
	Vocab int // token range used to map tokens onto pitch
}

func (t Tone) SampleRate() int {
	if t.Rate <= 0 {
		return 24000
	}
	return t.Rate
}

func (t Tone) Decode(ctx context.Context, frame *align.Frame) ([]float32, error) {
	if t.Vocab <= 0 {
		return nil, fmt.Errorf("tone: vocab must be positive, got %d", t.Vocab)
	}
	rate := t.SampleRate()
	if rate < FrameRate {
		return nil, fmt.Errorf("tone: sample rate %d below frame rate %d", rate, FrameRate)
	}
	per := rate / FrameRate
	out := make([]float32, frame.Length*per)
	col := make([]int, frame.Codebooks)
	var norm float64
	for c := 0; c < frame.Codebooks; c++ {
		norm += math.Ldexp(1, -c)
	}
	for i := 0; i < frame.Length; i++ {
		if i%FrameRate == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		col = frame.Column(i, col)
		seg := out[i*per : (i+1)*per]
		for c, tok := range col {
			if tok < 0 || tok >= t.Vocab {
				return nil, fmt.Errorf("tone: codebook %d column %d: token %d outside [0, %d)", c, i, tok, t.Vocab)
			}
			hz := 110 * math.Exp2(4*float64(tok)/float64(t.Vocab))
			amp := math.Ldexp(1, -c) / norm
			for n := range seg {
				ts := float64(i*per+n) / float64(rate)
				seg[n] += float32(amp * math.Sin(2*math.Pi*hz*ts))
			}
		}
	}
	return out, nil
}
