package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envConfigPath = "CODESTREAM_CONFIG"

// Config represents the codestream configuration file
// (~/.config/codestream/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	Codebooks *int  `yaml:"codebooks"`
	VocabSize *int  `yaml:"vocab_size"`
	MaxSteps  *int  `yaml:"max_steps"`
	PadToken  *int  `yaml:"pad_token"`
	Parallel  *bool `yaml:"parallel"`

	Strategy StrategyConfig `yaml:"strategy"`
	Engine   EngineConfig   `yaml:"engine"`

	LogLevel     string `yaml:"log_level"`
	LogFormat    string `yaml:"log_format"`
	OutputFormat string `yaml:"output_format"`

	ServerAddress string `yaml:"server_address"`
}

type StrategyConfig struct {
	Kind        string   `yaml:"kind"`
	TopK        *int     `yaml:"top_k"`
	TopP        *float64 `yaml:"top_p"`
	Temperature *float64 `yaml:"temperature"`
	Seed        *int64   `yaml:"seed"`
}

type EngineConfig struct {
	Hidden        *int     `yaml:"hidden"`
	Seed          *int64   `yaml:"seed"`
	Decay         *float64 `yaml:"decay"`
	HalfPrecision *bool    `yaml:"half_precision"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "codestream", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config; a
// file that exists but does not parse is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyGenerationConfig applies config file defaults to generation and
// engine variables when the corresponding CLI flag was not explicitly set.
func applyGenerationConfig(c *cli.Command, cfg Config) {
	setInt(c, "codebooks", cfg.Codebooks, &codebooks)
	setInt(c, "vocab-size", cfg.VocabSize, &vocabSize)
	setInt(c, "max-steps", cfg.MaxSteps, &maxSteps)
	padSet = c.IsSet("pad-token")
	if cfg.PadToken != nil && !padSet {
		padToken, padSet = *cfg.PadToken, true
	}
	if cfg.Parallel != nil && !c.IsSet("parallel") {
		parallel = *cfg.Parallel
	}

	if cfg.Strategy.Kind != "" && !c.IsSet("strategy") {
		strategy = cfg.Strategy.Kind
	}
	setInt(c, "top-k", cfg.Strategy.TopK, &topK)
	if cfg.Strategy.TopP != nil && !c.IsSet("top-p") {
		topP = *cfg.Strategy.TopP
	}
	if cfg.Strategy.Temperature != nil && !c.IsSet("temperature") {
		temperature = *cfg.Strategy.Temperature
	}
	if cfg.Strategy.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Strategy.Seed
	}

	setInt(c, "engine-hidden", cfg.Engine.Hidden, &engineHidden)
	if cfg.Engine.Seed != nil && !c.IsSet("engine-seed") {
		engineSeed = *cfg.Engine.Seed
	}
	if cfg.Engine.Decay != nil && !c.IsSet("engine-decay") {
		engineDecay = *cfg.Engine.Decay
	}
	if cfg.Engine.HalfPrecision != nil && !c.IsSet("half-precision") {
		halfPrecision = *cfg.Engine.HalfPrecision
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyGenerationConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

func setInt(c *cli.Command, flag string, v *int, dst *int) {
	if v != nil && !c.IsSet(flag) {
		*dst = *v
	}
}
