package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WriteWAV encodes mono samples as 16-bit PCM WAV. Samples are clipped to
// [-1, 1].
func WriteWAV(w io.Writer, pcm []float32, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("wav: sample rate must be positive, got %d", rate)
	}
	const (
		channels      = 1
		bitsPerSample = 16
	)
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm) * blockAlign

	bw := bufio.NewWriter(w)
	header := []any{
		[4]byte{'R', 'I', 'F', 'F'},
		uint32(36 + dataSize),
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),
		uint16(1), // PCM
		uint16(channels),
		uint32(rate),
		uint32(rate * blockAlign),
		uint16(blockAlign),
		uint16(bitsPerSample),
		[4]byte{'d', 'a', 't', 'a'},
		uint32(dataSize),
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("wav: writing header: %w", err)
		}
	}
	var buf [2]byte
	for _, s := range pcm {
		v := float64(s)
		if math.IsNaN(v) {
			v = 0
		}
		v = math.Max(-1, math.Min(1, v))
		binary.LittleEndian.PutUint16(buf[:], uint16(int16(math.Round(v*math.MaxInt16))))
		if _, err := bw.Write(buf[:]); err != nil {
			return fmt.Errorf("wav: writing samples: %w", err)
		}
	}
	return bw.Flush()
}
