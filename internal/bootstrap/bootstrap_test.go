package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/maauso/img2video/internal/config"
	"github.com/maauso/img2video/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		StableAPIKey:     "test-key",
		BaseURL:          "http://localhost:1",
		InputImagePath:   "in.png",
		ResizedImagePath: "resized.png",
		OutputVideoPath:  "video.mp4",
		Width:            1024,
		Height:           576,
		Seed:             7,
		CfgScale:         1.8,
		MotionBucketID:   127,
		PollInterval:     10 * time.Second,
		HTTPTimeout:      time.Minute,
		S3KeyPrefix:      "videos/",
		LogFormat:        "text",
		LogLevel:         "info",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewDependencies_Local(t *testing.T) {
	deps, err := NewDependencies(context.Background(), testConfig(), nil, discardLogger())
	require.NoError(t, err)

	assert.NotNil(t, deps.Pipeline)
	assert.NotNil(t, deps.Metrics)
	assert.IsType(t, &storage.LocalStorage{}, deps.Storage)
}

func TestNewDependencies_S3(t *testing.T) {
	cfg := testConfig()
	cfg.S3Bucket = "bucket"
	cfg.S3Region = "us-east-1"
	cfg.S3Endpoint = "http://localhost:9000"
	cfg.AWSAccessKeyID = "access"
	cfg.AWSSecretAccessKey = "secret"

	deps, err := NewDependencies(context.Background(), cfg, noop.NewMeterProvider().Meter("test"), discardLogger())
	require.NoError(t, err)

	assert.IsType(t, &storage.S3Storage{}, deps.Storage)
}

func TestNewDependencies_MissingAPIKey(t *testing.T) {
	t.Setenv("STABLE_API_KEY", "")
	cfg := testConfig()
	cfg.StableAPIKey = ""

	_, err := NewDependencies(context.Background(), cfg, nil, discardLogger())
	require.Error(t, err)
}

func TestInput(t *testing.T) {
	in := Input(testConfig())

	assert.Equal(t, "in.png", in.SourceImagePath)
	assert.Equal(t, "resized.png", in.ResizedImagePath)
	assert.Equal(t, "video.mp4", in.OutputVideoPath)
	assert.Equal(t, 1024, in.Width)
	assert.Equal(t, 576, in.Height)
	assert.Equal(t, int64(7), in.Options.Seed)
	assert.InDelta(t, 1.8, in.Options.CfgScale, 1e-9)
	assert.Equal(t, 127, in.Options.MotionBucketID)
}
