package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/samcharles93/codestream/internal/delay"
)

func TestScheduleCell(t *testing.T) {
	p, err := delay.New(3)
	if err != nil {
		t.Fatalf("delay.New: %v", err)
	}
	tests := []struct {
		t, c int
		want string
	}{
		{0, 0, "pad -> 0"},
		{1, 0, "0 -> 1"},
		{0, 1, "-"},
		{1, 1, "pad -> 0"},
		{4, 2, "1 -> 2"},
	}
	for _, tc := range tests {
		if got := scheduleCell(p, tc.t, tc.c); got != tc.want {
			t.Errorf("scheduleCell(%d, %d) = %q, want %q", tc.t, tc.c, got, tc.want)
		}
	}
}

func TestRenderSchedule(t *testing.T) {
	var buf bytes.Buffer
	if err := renderSchedule(&buf, 4, 10); err != nil {
		t.Fatalf("renderSchedule: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"STEP", "CB3 +3", "COUNT", "aligned frame length: 7"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if err := renderSchedule(&buf, 0, 3); err == nil {
		t.Fatalf("expected error for zero codebooks")
	}
}
