package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/codestream/internal/align"
	"github.com/samcharles93/codestream/internal/framefile"
	"github.com/samcharles93/codestream/internal/generate"
)

func TestParseTokenList(t *testing.T) {
	got, err := parseTokenList("1, 2,3 4", 8)
	if err != nil {
		t.Fatalf("parseTokenList: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"1,x", "9", "-1"} {
		if _, err := parseTokenList(bad, 8); err == nil {
			t.Errorf("parseTokenList(%q): expected error", bad)
		}
	}
}

func TestPrintSummary(t *testing.T) {
	res := &generate.Result{
		State:  generate.Complete,
		Stop:   generate.StopBudget,
		Frame:  &align.Frame{Codebooks: 2, Length: 3, Tokens: make([]int, 6)},
		Counts: []int{4, 3},
		Stats:  generate.Stats{Steps: 4, TokensGenerated: 7, Duration: 2 * time.Millisecond},
	}

	var buf bytes.Buffer
	if err := printSummary(&buf, "json", res); err != nil {
		t.Fatalf("printSummary json: %v", err)
	}
	var s summary
	if err := json.Unmarshal(buf.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	want := summary{State: "complete", Stop: "budget", Counts: []int{4, 3}, FrameLength: 3, Steps: 4, Tokens: 7, DurationMs: 2}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := printSummary(&buf, "text", res); err != nil {
		t.Fatalf("printSummary text: %v", err)
	}
	if !strings.Contains(buf.String(), "frame length: 3") {
		t.Fatalf("unexpected text summary: %s", buf.String())
	}
	if err := printSummary(&buf, "yaml", res); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestGenerateCommandWritesFrameAndAudio(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envConfigPath, filepath.Join(dir, "missing.yaml"))
	framePath := filepath.Join(dir, "frame.msgpack")
	wavPath := filepath.Join(dir, "out.wav")

	args := []string{
		"codestream", "--log-format", "text", "--log-level", "error",
		"generate",
		"--codebooks", "3", "--vocab-size", "32", "--max-steps", "10",
		"--engine-hidden", "8", "--tokens", "1,2,3",
		"--out", framePath, "--wav", wavPath,
	}
	if err := newApp().Run(context.Background(), args); err != nil {
		t.Fatalf("generate: %v", err)
	}

	frame, err := framefile.Read(framePath)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Codebooks != 3 || frame.Length != 8 {
		t.Fatalf("frame shape %dx%d, want 3x8", frame.Codebooks, frame.Length)
	}
	st, err := os.Stat(wavPath)
	if err != nil {
		t.Fatalf("stat wav: %v", err)
	}
	// 8 columns at 50 per second, 24 kHz mono 16-bit
	if want := int64(44 + 8*480*2); st.Size() != want {
		t.Fatalf("wav size = %d, want %d", st.Size(), want)
	}
}

func TestStepsForFrames(t *testing.T) {
	got, err := stepsForFrames(4, 7)
	if err != nil || got != 10 {
		t.Fatalf("stepsForFrames(4, 7) = %d, %v; want 10", got, err)
	}
	if _, err := stepsForFrames(4, 0); err == nil {
		t.Fatalf("expected error for zero frames")
	}
}

func TestGenerateCommandFrames(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(envConfigPath, filepath.Join(dir, "missing.yaml"))
	framePath := filepath.Join(dir, "frame.json")

	args := []string{
		"codestream", "--log-level", "error",
		"generate", "--codebooks", "3", "--vocab-size", "32",
		"--engine-hidden", "8", "--frames", "5", "--out", framePath,
	}
	if err := newApp().Run(context.Background(), args); err != nil {
		t.Fatalf("generate: %v", err)
	}
	frame, err := framefile.Read(framePath)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Length != 5 {
		t.Fatalf("frame length = %d, want 5", frame.Length)
	}
}
