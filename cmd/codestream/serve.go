package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/codestream/internal/api"
	"github.com/samcharles93/codestream/internal/logger"
	"github.com/samcharles93/codestream/internal/metrics"
)

func serveCmd() *cli.Command {
	var (
		addr            string
		readTimeout     time.Duration
		shutdownTimeout time.Duration
		maxConcurrent   int
		queue           bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation REST API",
		Flags: append(append(generationFlags(), engineFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.DurationFlag{
				Name:        "shutdown-timeout",
				Usage:       "how long to wait for running generations on shutdown",
				Value:       10 * time.Second,
				Destination: &shutdownTimeout,
			},
			&cli.IntFlag{
				Name:        "max-concurrent",
				Usage:       "generations allowed to run at once",
				Value:       4,
				Destination: &maxConcurrent,
			},
			&cli.BoolFlag{
				Name:        "queue",
				Usage:       "queue requests when every slot is busy instead of returning 429",
				Destination: &queue,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, fileConfig, &addr)

			defaults, err := generationConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			factory, err := toyFactory()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			recorder := metrics.NewRecorder(reg)

			provider := api.NewPooledEngineProvider(api.EngineProviderConfig{
				Factory:       factory,
				Vocab:         defaults.VocabSize,
				MaxConcurrent: maxConcurrent,
				Queue:         queue,
			})
			service := api.NewGenerationService(provider, defaults,
				api.WithServiceObserver(recorder),
				api.WithServiceLogger(log),
			)
			server := api.NewServer(api.NewGenerationStore(), service,
				api.WithMetricsHandler(metrics.Handler(reg)),
				api.WithLogger(log),
			)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting server",
				"address", addr,
				"codebooks", defaults.Codebooks,
				"vocab_size", defaults.VocabSize,
				"max_steps", defaults.MaxSteps,
				"strategy", defaults.Strategy.Kind.String(),
			)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			serveErr := sc.Start(ctx, e)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Warn("generations still running at shutdown", "error", err)
			}
			return serveErr
		},
	}
}
