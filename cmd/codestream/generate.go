package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/codestream/internal/codec"
	"github.com/samcharles93/codestream/internal/delay"
	"github.com/samcharles93/codestream/internal/engine/toy"
	"github.com/samcharles93/codestream/internal/framefile"
	"github.com/samcharles93/codestream/internal/generate"
	"github.com/samcharles93/codestream/internal/logger"
	"github.com/samcharles93/codestream/internal/prompt"
)

func generateCmd() *cli.Command {
	var (
		promptPath   string
		tokens       string
		outPath      string
		wavPath      string
		outputFormat string
		progress     bool
		cpuProfile   string
		frames       int
	)

	return &cli.Command{
		Name:    "generate",
		Aliases: []string{"gen"},
		Usage:   "Run one generation against the reference engine",
		Flags: append(append(generationFlags(), engineFlags()...),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt JSON file ({\"tokens\": [...]} or a speaker reference)",
				Destination: &promptPath,
			},
			&cli.StringFlag{
				Name:        "tokens",
				Usage:       "comma-separated conditioning tokens",
				Destination: &tokens,
			},
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "write the aligned frame here (.json, .msgpack)",
				Destination: &outPath,
			},
			&cli.StringFlag{
				Name:        "wav",
				Usage:       "render the frame with the reference tone decoder to this WAV file",
				Destination: &wavPath,
			},
			&cli.StringFlag{
				Name:        "output-format",
				Usage:       "summary format (text, json)",
				Value:       "text",
				Destination: &outputFormat,
			},
			&cli.BoolFlag{
				Name:        "progress",
				Usage:       "print one line per decode step to stderr",
				Destination: &progress,
			},
			&cli.IntFlag{
				Name:        "frames",
				Usage:       "run just enough steps for this many aligned columns (replaces --max-steps)",
				Destination: &frames,
			},
			&cli.StringFlag{
				Name:        "cpu-profile",
				Usage:       "write CPU profile to file",
				Destination: &cpuProfile,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)
			applyGenerationConfig(c, fileConfig)
			if fileConfig.OutputFormat != "" && !c.IsSet("output-format") {
				outputFormat = fileConfig.OutputFormat
			}

			if c.IsSet("frames") {
				if c.IsSet("max-steps") {
					return cli.Exit("error: --frames and --max-steps are mutually exclusive", 1)
				}
				steps, err := stepsForFrames(codebooks, frames)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				maxSteps = steps
			}
			cfg, err := generationConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if promptPath != "" && tokens != "" {
				return cli.Exit("error: --prompt and --tokens are mutually exclusive", 1)
			}
			var promptTokens []int
			switch {
			case promptPath != "":
				promptTokens, err = prompt.Load(promptPath, cfg.VocabSize)
			case tokens != "":
				promptTokens, err = parseTokenList(tokens, cfg.VocabSize)
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return cli.Exit(fmt.Sprintf("could not create CPU profile: %v", err), 1)
				}
				defer f.Close()
				if err := pprof.StartCPUProfile(f); err != nil {
					return cli.Exit(fmt.Sprintf("could not start CPU profile: %v", err), 1)
				}
				defer pprof.StopCPUProfile()
			}

			ev, err := toy.New(toyConfig(cfg.Codebooks))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: reference engine: %v", err), 1)
			}
			defer ev.Close()

			opts := []generate.Option{generate.WithLogger(log)}
			if progress {
				opts = append(opts, generate.WithObserver(progressObserver{w: os.Stderr}))
			}
			d, err := generate.New(ev, cfg, opts...)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()
			res, runErr := d.Run(ctx, promptTokens)
			if res == nil {
				return cli.Exit(fmt.Sprintf("error: %v", runErr), 1)
			}

			if res.Frame != nil {
				if outPath != "" {
					if err := framefile.Write(outPath, res.Frame); err != nil {
						return cli.Exit(fmt.Sprintf("error: %v", err), 1)
					}
					log.Info("wrote frame", "path", outPath, "length", res.Frame.Length)
				}
				if wavPath != "" {
					if err := writeWAV(context.WithoutCancel(ctx), wavPath, res, cfg.VocabSize); err != nil {
						return cli.Exit(fmt.Sprintf("error: %v", err), 1)
					}
					log.Info("wrote audio", "path", wavPath, "seconds", codec.Duration(res.Frame.Length))
				}
			}

			if err := printSummary(os.Stdout, outputFormat, res); err != nil {
				return err
			}
			if runErr != nil {
				return cli.Exit(fmt.Sprintf("error: %v", runErr), 1)
			}
			return nil
		},
	}
}

// stepsForFrames is the decode budget after which the last codebook holds
// frames tokens, so the aligned frame is exactly that long.
func stepsForFrames(k, frames int) (int, error) {
	if frames <= 0 {
		return 0, fmt.Errorf("--frames must be positive, got %d", frames)
	}
	p, err := delay.New(k)
	if err != nil {
		return 0, err
	}
	return p.Span(frames), nil
}

func parseTokenList(s string, vocab int) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		tok, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("tokens: %q is not an integer", f)
		}
		if tok < 0 || tok >= vocab {
			return nil, fmt.Errorf("tokens: %d outside [0, %d)", tok, vocab)
		}
		out = append(out, tok)
	}
	return out, nil
}

func writeWAV(ctx context.Context, path string, res *generate.Result, vocab int) (err error) {
	dec := codec.Tone{Vocab: vocab}
	pcm, err := codec.Render(ctx, dec, res.Frame)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return codec.WriteWAV(f, pcm, dec.SampleRate())
}

type summary struct {
	State       string  `json:"state"`
	Stop        string  `json:"stop"`
	Counts      []int   `json:"counts"`
	FrameLength int     `json:"frame_length"`
	Steps       int     `json:"steps"`
	Tokens      int     `json:"tokens_generated"`
	DurationMs  int64   `json:"duration_ms"`
	StepsPerSec float64 `json:"steps_per_sec"`
}

func printSummary(w io.Writer, format string, res *generate.Result) error {
	s := summary{
		State:       res.State.String(),
		Stop:        res.Stop.String(),
		Counts:      res.Counts,
		Steps:       res.Stats.Steps,
		Tokens:      res.Stats.TokensGenerated,
		DurationMs:  res.Stats.Duration.Milliseconds(),
		StepsPerSec: res.Stats.StepsPerSec,
	}
	if res.Frame != nil {
		s.FrameLength = res.Frame.Length
	}
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "", "text":
		_, err := fmt.Fprintf(w, "state: %s (stop: %s)\ncounts: %v\nframe length: %d\nsteps: %d, tokens: %d, %.2f steps/s\n",
			s.State, s.Stop, s.Counts, s.FrameLength, s.Steps, s.Tokens, s.StepsPerSec)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

type progressObserver struct {
	w io.Writer
}

func (p progressObserver) StepDone(ev generate.StepEvent) {
	_, _ = fmt.Fprintf(p.w, "step %4d  accepted %d  tokens %v  %s\n", ev.Step, ev.Accepted, ev.Tokens, ev.Elapsed)
}

func (p progressObserver) Finished(*generate.Result, error) {}
