// Package prompt loads conditioning token sequences from JSON files.
//
// Two layouts are accepted: a plain {"tokens": [...]} list, and a speaker
// reference with either "codes" (nested lists, flattened in order) or
// "words" (each word carrying its own codes, concatenated in order).
package prompt

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// ErrNoTokens is returned when a file parses but carries no tokens.
var ErrNoTokens = errors.New("prompt: no tokens")

// Word is one transcript word of a speaker reference.
type Word struct {
	Word     string  `json:"word"`
	Duration float64 `json:"duration,omitempty"`
	Codes    []int   `json:"codes"`
}

// File is the on-disk prompt document.
type File struct {
	Version   string  `json:"version,omitempty"`
	SpeakerID string  `json:"speaker_id,omitempty"`
	Tokens    []int   `json:"tokens,omitempty"`
	Codes     [][]int `json:"codes,omitempty"`
	Words     []Word  `json:"words,omitempty"`
}

// Flatten returns the conditioning tokens. Tokens wins over Codes, which wins
// over Words.
func (f *File) Flatten() []int {
	switch {
	case len(f.Tokens) > 0:
		return append([]int(nil), f.Tokens...)
	case len(f.Codes) > 0:
		var out []int
		for _, row := range f.Codes {
			out = append(out, row...)
		}
		return out
	default:
		var out []int
		for _, w := range f.Words {
			out = append(out, w.Codes...)
		}
		return out
	}
}

// Parse decodes data and returns its flattened tokens. Every token must lie
// in [0, vocab) when vocab is positive.
func Parse(data []byte, vocab int) ([]int, error) {
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("prompt: decode: %w", err)
	}
	tokens := f.Flatten()
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	if vocab > 0 {
		for i, t := range tokens {
			if t < 0 || t >= vocab {
				return nil, fmt.Errorf("prompt: token %d at %d outside [0, %d)", t, i, vocab)
			}
		}
	}
	return tokens, nil
}

// Load reads and parses the prompt file at path.
func Load(path string, vocab int) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt: %w", err)
	}
	tokens, err := Parse(data, vocab)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tokens, nil
}
