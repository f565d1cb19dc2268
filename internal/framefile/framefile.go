// Package framefile persists aligned frames as JSON or msgpack.
package framefile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/samcharles93/codestream/internal/align"
)

// Format selects the encoding.
type Format string

const (
	JSON    Format = "json"
	Msgpack Format = "msgpack"
)

// ParseFormat accepts "json", "msgpack" or "mpk".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "msgpack", "mpk":
		return Msgpack, nil
	default:
		return "", fmt.Errorf("framefile: unknown format %q", s)
	}
}

// FormatFromPath picks the format from the file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return Msgpack
	default:
		return JSON
	}
}

// ContentType returns the HTTP media type for f.
func (f Format) ContentType() string {
	if f == Msgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// Encode writes frame to w.
func Encode(w io.Writer, frame *align.Frame, f Format) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	return encode(w, frame, f)
}

// EncodeRows writes frame with one token row per codebook in place of the
// flat token list. Decode reads either layout.
func EncodeRows(w io.Writer, frame *align.Frame, f Format) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	return encode(w, fileFrame{
		Frame: align.Frame{Codebooks: frame.Codebooks, Length: frame.Length},
		Rows:  frame.Rows(),
	}, f)
}

func encode(w io.Writer, v any, f Format) error {
	switch f {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case Msgpack:
		return msgpack.NewEncoder(w).Encode(v)
	default:
		return fmt.Errorf("framefile: unknown format %q", f)
	}
}

// fileFrame is the on-disk shape. Besides the flat codebook-major tokens it
// accepts one row per codebook, which is easier to write by hand.
type fileFrame struct {
	align.Frame `msgpack:",inline"`
	Rows        [][]int `json:"rows,omitempty" msgpack:"rows,omitempty"`
}

// Decode reads one frame from r and validates its shape.
func Decode(r io.Reader, f Format) (*align.Frame, error) {
	var ff fileFrame
	var err error
	switch f {
	case JSON:
		err = json.NewDecoder(r).Decode(&ff)
	case Msgpack:
		err = msgpack.NewDecoder(r).Decode(&ff)
	default:
		return nil, fmt.Errorf("framefile: unknown format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("framefile: decode %s: %w", f, err)
	}
	frame := &ff.Frame
	if ff.Rows != nil {
		if ff.Tokens != nil {
			return nil, fmt.Errorf("framefile: both tokens and rows are set")
		}
		for c, row := range ff.Rows {
			if len(row) != len(ff.Rows[0]) {
				return nil, fmt.Errorf("framefile: row %d holds %d tokens, row 0 holds %d", c, len(row), len(ff.Rows[0]))
			}
		}
		if frame, err = align.FromRows(ff.Rows); err != nil {
			return nil, err
		}
	}
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	return frame, nil
}

// Write saves frame to path, choosing the format from its extension.
func Write(path string, frame *align.Frame) (err error) {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("framefile: %w", err)
	}
	defer func() {
		if cerr := fh.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("framefile: close %s: %w", path, cerr)
		}
	}()
	return Encode(fh, frame, FormatFromPath(path))
}

// Read loads a frame from path, choosing the format from its extension.
func Read(path string) (*align.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framefile: %w", err)
	}
	defer fh.Close()
	return Decode(fh, FormatFromPath(path))
}
