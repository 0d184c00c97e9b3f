// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrAPIKeyRequired is returned when STABLE_API_KEY is not set.
	ErrAPIKeyRequired = errors.New("config: STABLE_API_KEY is required")
	// ErrInvalid is returned when a configured value is out of range.
	ErrInvalid = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Stability API settings
	StableAPIKey string `env:"STABLE_API_KEY, required" json:"-"` // Masked in JSON
	BaseURL      string `env:"STABLE_API_BASE_URL, default=https://api.stability.ai" json:"base_url" validate:"required,url"`

	// File locations
	InputImagePath   string `env:"INPUT_IMAGE, default=generated_image.png" json:"input_image" validate:"required"`
	ResizedImagePath string `env:"RESIZED_IMAGE, default=resized_image.png" json:"resized_image" validate:"required"`
	OutputVideoPath  string `env:"OUTPUT_VIDEO, default=video.mp4" json:"output_video" validate:"required"`

	// Resize target
	Width  int `env:"TARGET_WIDTH, default=1024" json:"width" validate:"min=1,max=4096"`
	Height int `env:"TARGET_HEIGHT, default=576" json:"height" validate:"min=1,max=4096"`

	// Generation parameters
	Seed           int64   `env:"SEED, default=0" json:"seed" validate:"min=0,max=4294967294"`
	CfgScale       float64 `env:"CFG_SCALE, default=1.8" json:"cfg_scale" validate:"min=0,max=10"`
	MotionBucketID int     `env:"MOTION_BUCKET_ID, default=127" json:"motion_bucket_id" validate:"min=1,max=255"`

	// Polling settings
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=10s" json:"poll_interval" validate:"gt=0"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS, default=0" json:"poll_max_attempts" validate:"min=0"` // 0 means unbounded
	PollTimeout     time.Duration `env:"POLL_TIMEOUT, default=30m" json:"poll_timeout" validate:"min=0"`         // 0 means no deadline
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT, default=2m" json:"http_timeout" validate:"gt=0"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3KeyPrefix        string `env:"S3_KEY_PREFIX, default=videos/" json:"s3_key_prefix"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=json text JSON TEXT"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
// A .env file in the working directory is loaded first when present; variables
// already set in the process environment take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		// Map envconfig errors to our domain errors for required fields
		if strings.Contains(err.Error(), "STABLE_API_KEY") {
			return nil, ErrAPIKeyRequired
		}
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present and in range.
func (c *Config) Validate() error {
	if c.StableAPIKey == "" {
		return ErrAPIKeyRequired
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{BaseURL: %s, InputImage: %s, ResizedImage: %s, OutputVideo: %s, Size: %dx%d, Seed: %d, CfgScale: %g, MotionBucketID: %d, PollInterval: %s, PollMaxAttempts: %d, PollTimeout: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.BaseURL,
		c.InputImagePath,
		c.ResizedImagePath,
		c.OutputVideoPath,
		c.Width,
		c.Height,
		c.Seed,
		c.CfgScale,
		c.MotionBucketID,
		c.PollInterval,
		c.PollMaxAttempts,
		c.PollTimeout,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
