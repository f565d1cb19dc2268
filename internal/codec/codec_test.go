package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/codestream/internal/align"
)

type countingDecoder struct {
	calls int
	panic bool
}

func (d *countingDecoder) SampleRate() int { return 100 }

func (d *countingDecoder) Decode(_ context.Context, f *align.Frame) ([]float32, error) {
	d.calls++
	if d.panic {
		panic("bad weights")
	}
	return make([]float32, f.Length*2), nil
}

func testFrame(t *testing.T) *align.Frame {
	t.Helper()
	f, err := align.FromRows([][]int{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return f
}

func TestRenderCallsDecoderOnce(t *testing.T) {
	t.Parallel()

	dec := &countingDecoder{}
	pcm, err := Render(context.Background(), dec, testFrame(t))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if dec.calls != 1 || len(pcm) != 6 {
		t.Fatalf("calls=%d samples=%d", dec.calls, len(pcm))
	}
}

func TestRenderRecoversPanic(t *testing.T) {
	t.Parallel()

	_, err := Render(context.Background(), &countingDecoder{panic: true}, testFrame(t))
	if !errors.Is(err, ErrDecode) || !strings.Contains(err.Error(), "panic in Decode") {
		t.Fatalf("err = %v", err)
	}
}

func TestRenderRejectsEmptyFrame(t *testing.T) {
	t.Parallel()

	dec := &countingDecoder{}
	for _, f := range []*align.Frame{nil, {Codebooks: 2}} {
		if _, err := Render(context.Background(), dec, f); !errors.Is(err, align.ErrEmptyFrame) {
			t.Fatalf("frame %+v: err = %v", f, err)
		}
	}
	if dec.calls != 0 {
		t.Fatalf("decoder called for empty frame")
	}
}

func TestToneDecode(t *testing.T) {
	t.Parallel()

	tone := Tone{Rate: 1000, Vocab: 8}
	pcm, err := tone.Decode(context.Background(), testFrame(t))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if want := 3 * 1000 / FrameRate; len(pcm) != want {
		t.Fatalf("samples = %d, want %d", len(pcm), want)
	}
	for i, s := range pcm {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d = %f out of range", i, s)
		}
	}
	again, _ := tone.Decode(context.Background(), testFrame(t))
	if !cmp.Equal(pcm, again) {
		t.Fatalf("tone decode is not deterministic")
	}
}

func TestToneRejectsOutOfRangeToken(t *testing.T) {
	t.Parallel()

	f, _ := align.FromRows([][]int{{1, 9}})
	if _, err := (Tone{Vocab: 8}).Decode(context.Background(), f); err == nil {
		t.Fatalf("expected error")
	}
}

func TestToneRejectsRateBelowFrameRate(t *testing.T) {
	t.Parallel()

	_, err := (Tone{Rate: FrameRate - 1, Vocab: 8}).Decode(context.Background(), testFrame(t))
	if err == nil || !strings.Contains(err.Error(), "below frame rate") {
		t.Fatalf("expected rate error, got %v", err)
	}
}

func TestWriteWAVSilencesNaN(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{float32(math.NaN()), 0.5}, 8000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	data := buf.Bytes()
	if got := int16(binary.LittleEndian.Uint16(data[44:46])); got != 0 {
		t.Fatalf("NaN sample = %d, want 0", got)
	}
	if got := int16(binary.LittleEndian.Uint16(data[46:48])); got != 16384 {
		t.Fatalf("half-scale sample = %d, want 16384", got)
	}
}

func TestWriteWAV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteWAV(&buf, []float32{0, 1, -1, 2}, 8000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	data := buf.Bytes()
	if len(data) != 44+8 {
		t.Fatalf("size = %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad header %q", data[:44])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 8000 {
		t.Fatalf("rate = %d", rate)
	}
	last := int16(binary.LittleEndian.Uint16(data[50:52]))
	if last != 32767 {
		t.Fatalf("clipped sample = %d, want 32767", last)
	}
	if err := WriteWAV(&buf, nil, 0); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}
