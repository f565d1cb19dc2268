package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

const sampleConfig = `
codebooks: 8
max_steps: 50
parallel: true
strategy:
  kind: top-k
  top_k: 5
  seed: 7
engine:
  hidden: 16
  half_precision: true
log_level: debug
output_format: json
server_address: 0.0.0.0:9000
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Codebooks == nil || *cfg.Codebooks != 8 {
		t.Fatalf("codebooks = %v", cfg.Codebooks)
	}
	if cfg.VocabSize != nil {
		t.Fatalf("unset vocab_size must stay nil")
	}
	if cfg.Strategy.Kind != "top-k" || cfg.Strategy.TopK == nil || *cfg.Strategy.TopK != 5 {
		t.Fatalf("strategy = %+v", cfg.Strategy)
	}
	if cfg.Engine.HalfPrecision == nil || !*cfg.Engine.HalfPrecision {
		t.Fatalf("engine = %+v", cfg.Engine)
	}
	if cfg.ServerAddress != "0.0.0.0:9000" || cfg.OutputFormat != "json" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadConfigMissingAndInvalid(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || cfg.Codebooks != nil {
		t.Fatalf("missing file: cfg=%+v err=%v", cfg, err)
	}
	if _, err := LoadConfig(writeConfig(t, "codebooks: [1, 2")); err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg, err := LoadConfig(""); err != nil || cfg.Codebooks != nil {
		t.Fatalf("empty path: cfg=%+v err=%v", cfg, err)
	}
}

func TestApplyGenerationConfigRespectsFlags(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	var addr string
	cmd := &cli.Command{
		Name: "serve",
		Flags: append(append(generationFlags(), engineFlags()...),
			&cli.StringFlag{Name: "addr", Value: "127.0.0.1:8080", Destination: &addr},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, cfg, &addr)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"serve", "--codebooks", "6"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if codebooks != 6 {
		t.Fatalf("explicit flag must win: codebooks = %d", codebooks)
	}
	if maxSteps != 50 || !parallel || strategy != "top-k" || topK != 5 || seed != 7 {
		t.Fatalf("config not applied: steps=%d parallel=%v strategy=%s topK=%d seed=%d", maxSteps, parallel, strategy, topK, seed)
	}
	if engineHidden != 16 || !halfPrecision {
		t.Fatalf("engine config not applied: hidden=%d half=%v", engineHidden, halfPrecision)
	}
	if vocabSize != 1024 {
		t.Fatalf("unset config key must keep flag default, vocab = %d", vocabSize)
	}
	if addr != "0.0.0.0:9000" {
		t.Fatalf("addr = %q", addr)
	}
}

func TestPadTokenFromFlagOrConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		args    []string
		wantPad *int
	}{
		{name: "default", args: []string{"gen"}},
		{name: "flag minus one", args: []string{"gen", "--pad-token=-1"}, wantPad: ptr(-1)},
		{name: "config minus one", config: "pad_token: -1\n", args: []string{"gen"}, wantPad: ptr(-1)},
		{name: "flag over config", config: "pad_token: 5000\n", args: []string{"gen", "--pad-token=2048"}, wantPad: ptr(2048)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			if tc.config != "" {
				var err error
				if cfg, err = LoadConfig(writeConfig(t, tc.config)); err != nil {
					t.Fatalf("LoadConfig: %v", err)
				}
			}
			var got *int
			cmd := &cli.Command{
				Name:  "gen",
				Flags: generationFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					applyGenerationConfig(c, cfg)
					gc, err := generationConfig()
					got = gc.PadToken
					return err
				},
			}
			if err := cmd.Run(context.Background(), tc.args); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if (got == nil) != (tc.wantPad == nil) || (got != nil && *got != *tc.wantPad) {
				t.Fatalf("pad = %v, want %v", deref(got), deref(tc.wantPad))
			}
		})
	}
}

func ptr(v int) *int { return &v }

func deref(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
