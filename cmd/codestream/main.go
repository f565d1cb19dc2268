package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/codestream/internal/logger"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "codestream",
		Usage: "Delay-pattern multi-codebook token generation",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml (default: $XDG_CONFIG_HOME/codestream/config.yaml)",
				Sources:     cli.EnvVars(envConfigPath),
				Destination: &configFile,
			},
		),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			generateCmd(),
			serveCmd(),
			scheduleCmd(),
			versionCmd(),
		},
	}
}

// setup loads the config file and installs the logger into the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := configFile
	if path == "" {
		path = configPath()
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	fileConfig = cfg
	applyLoggingConfig(cmd, cfg)

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	if debug {
		level = slog.LevelDebug
	}
	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	log := logger.ForOutput(os.Stderr, format, level)
	log.Debug("config", "path", path)
	return logger.WithContext(ctx, log), nil
}
