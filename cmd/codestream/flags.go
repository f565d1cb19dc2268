package main

import (
	"github.com/urfave/cli/v3"
)

var (
	configFile string
	fileConfig Config

	logLevel  string
	logFormat string
	debug     bool

	// generation
	codebooks   int
	vocabSize   int
	maxSteps    int
	padToken    int
	padSet      bool
	strategy    string
	topK        int
	topP        float64
	temperature float64
	seed        int64
	parallel    bool

	// reference engine
	engineHidden  int
	engineSeed    int64
	engineDecay   float64
	halfPrecision bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

func generationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "codebooks",
			Aliases:     []string{"k"},
			Usage:       "number of parallel codebook streams",
			Value:       4,
			Destination: &codebooks,
		},
		&cli.IntFlag{
			Name:        "vocab-size",
			Aliases:     []string{"vocab"},
			Usage:       "per-codebook vocabulary size",
			Value:       1024,
			Destination: &vocabSize,
		},
		&cli.IntFlag{
			Name:        "max-steps",
			Aliases:     []string{"steps", "n"},
			Usage:       "decode steps to run",
			Value:       100,
			Destination: &maxSteps,
		},
		&cli.IntFlag{
			Name:        "pad-token",
			Usage:       "token fed before a codebook has history, outside [0, vocab) (default: vocab size)",
			Destination: &padToken,
		},
		&cli.StringFlag{
			Name:        "strategy",
			Usage:       "token selection (greedy, top-k, top-p, temperature)",
			Value:       "greedy",
			Destination: &strategy,
		},
		&cli.IntFlag{
			Name:        "top-k",
			Usage:       "candidates kept by top-k selection",
			Value:       40,
			Destination: &topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Usage:       "nucleus mass kept by top-p selection",
			Value:       0.95,
			Destination: &topP,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature (0 = greedy)",
			Value:       1,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling seed; codebook c uses seed+c",
			Value:       42,
			Destination: &seed,
		},
		&cli.BoolFlag{
			Name:        "parallel",
			Usage:       "select per-codebook tokens concurrently",
			Destination: &parallel,
		},
	}
}

func engineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "engine-hidden",
			Usage:       "hidden size of the reference engine",
			Value:       64,
			Destination: &engineHidden,
		},
		&cli.Int64Flag{
			Name:        "engine-seed",
			Usage:       "weight seed of the reference engine",
			Value:       1,
			Destination: &engineSeed,
		},
		&cli.Float64Flag{
			Name:        "engine-decay",
			Usage:       "state decay of the reference engine in [0, 1)",
			Value:       0.5,
			Destination: &engineDecay,
		},
		&cli.BoolFlag{
			Name:        "half-precision",
			Usage:       "round reference engine scores through fp16",
			Destination: &halfPrecision,
		},
	}
}
