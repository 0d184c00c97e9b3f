// Package main provides the entry point for the img2video command.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"github.com/maauso/img2video/internal/bootstrap"
	"github.com/maauso/img2video/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("script started",
		slog.String("input", cfg.InputImagePath),
		slog.String("output", cfg.OutputVideoPath),
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Duration("poll_timeout", cfg.PollTimeout),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	deps, err := bootstrap.NewDependencies(ctx, cfg, otel.Meter("img2video"), logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	gen, err := deps.Pipeline.Run(ctx, bootstrap.Input(cfg))
	if err != nil {
		logger.Error("script failed",
			slog.String("run_id", gen.ID),
			slog.String("status", string(gen.GetStatus())),
		)
		return err
	}

	logger.Info("script finished",
		slog.String("run_id", gen.ID),
		slog.String("video", gen.OutputVideoPath),
	)
	return nil
}
