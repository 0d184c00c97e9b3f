// Package bootstrap provides dependency initialization for img2video.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"github.com/maauso/img2video/internal/config"
	"github.com/maauso/img2video/internal/job"
	"github.com/maauso/img2video/internal/media"
	"github.com/maauso/img2video/internal/metrics"
	"github.com/maauso/img2video/internal/poller"
	"github.com/maauso/img2video/internal/stability"
	"github.com/maauso/img2video/internal/storage"
)

// Dependencies holds all initialized dependencies for a run.
type Dependencies struct {
	Pipeline *job.Pipeline
	Storage  storage.Storage
	Metrics  *metrics.Metrics
}

// NewDependencies creates and initializes all dependencies for the application.
// A nil meter falls back to a no-op meter.
func NewDependencies(ctx context.Context, cfg *config.Config, meter metric.Meter, logger *slog.Logger) (*Dependencies, error) {
	// Initialize storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize Stability client
	client, err := stability.NewClient(
		stability.WithAPIKey(cfg.StableAPIKey),
		stability.WithBaseURL(cfg.BaseURL),
		stability.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("create Stability client: %w", err)
	}

	m := metrics.NewNoop()
	if meter != nil {
		m, err = metrics.NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
	}

	w := poller.New(client, store, logger,
		poller.WithPolicy(poller.Policy{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
			Timeout:     cfg.PollTimeout,
		}),
		poller.WithMetrics(m),
	)

	opts := []job.PipelineOption{job.WithMetrics(m)}
	if cfg.S3Enabled() {
		opts = append(opts, job.WithS3Upload(cfg.S3KeyPrefix))
	}

	pipeline := job.NewPipeline(
		media.NewImagingProcessor(logger),
		client,
		w,
		store,
		logger,
		opts...,
	)

	return &Dependencies{
		Pipeline: pipeline,
		Storage:  store,
		Metrics:  m,
	}, nil
}

// Input builds the pipeline input described by cfg.
func Input(cfg *config.Config) job.Input {
	return job.Input{
		SourceImagePath:  cfg.InputImagePath,
		ResizedImagePath: cfg.ResizedImagePath,
		OutputVideoPath:  cfg.OutputVideoPath,
		Width:            cfg.Width,
		Height:           cfg.Height,
		Options: stability.SubmitOptions{
			Seed:           cfg.Seed,
			CfgScale:       cfg.CfgScale,
			MotionBucketID: cfg.MotionBucketID,
		},
	}
}

// initStorage creates the appropriate storage backend based on configuration.
// Relative paths resolve against the working directory.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, ".", s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(".")
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured")
	return localStore, nil
}
