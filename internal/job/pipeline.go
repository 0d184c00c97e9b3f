package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/img2video/internal/media"
	"github.com/maauso/img2video/internal/metrics"
	"github.com/maauso/img2video/internal/poller"
	"github.com/maauso/img2video/internal/stability"
	"github.com/maauso/img2video/internal/storage"
)

// Waiter waits for a submitted generation and writes its video to dst.
type Waiter interface {
	Wait(ctx context.Context, generationID, dst string) (poller.Result, error)
}

// Input contains the parameters of one run.
type Input struct {
	// SourceImagePath is the image to animate.
	SourceImagePath string
	// ResizedImagePath is where the resized image is written before upload.
	ResizedImagePath string
	// OutputVideoPath is where the finished video is written.
	OutputVideoPath string
	// Width is the resize target width.
	Width int
	// Height is the resize target height.
	Height int
	// Options are the generation parameters sent with the image.
	Options stability.SubmitOptions
}

// Pipeline runs resize, submit and poll in sequence. Any stage failure
// ends the run; files written by earlier stages are left in place.
type Pipeline struct {
	processor media.Processor
	client    stability.Client
	waiter    Waiter
	store     storage.Storage
	logger    *slog.Logger
	metrics   *metrics.Metrics
	s3Prefix  string
	pushToS3  bool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithS3Upload uploads finished videos under keyPrefix+<generation id>.mp4.
func WithS3Upload(keyPrefix string) PipelineOption {
	return func(p *Pipeline) {
		p.pushToS3 = true
		p.s3Prefix = keyPrefix
	}
}

// NewPipeline creates a Pipeline.
func NewPipeline(
	processor media.Processor,
	client stability.Client,
	waiter Waiter,
	store storage.Storage,
	logger *slog.Logger,
	opts ...PipelineOption,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		processor: processor,
		client:    client,
		waiter:    waiter,
		store:     store,
		logger:    logger,
		metrics:   metrics.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the workflow:
//  1. Resize the source image to Width x Height
//  2. Submit the resized image and receive a generation ID
//  3. Poll until the video is ready and write it to OutputVideoPath
//  4. Optionally push the video to S3
//
// The returned Generation is always non-nil and reflects the terminal state.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Generation, error) {
	gen := New()
	gen.SourceImagePath = in.SourceImagePath
	gen.ResizedImagePath = in.ResizedImagePath

	logger := p.logger.With(slog.String("run_id", gen.ID))
	logger.Info("run started",
		slog.String("input", in.SourceImagePath),
		slog.Int("width", in.Width),
		slog.Int("height", in.Height),
	)

	defer func() {
		p.metrics.RecordGeneration(context.WithoutCancel(ctx), string(gen.GetStatus()), gen.Duration())
	}()

	if err := p.processor.ResizeImage(ctx, in.SourceImagePath, in.ResizedImagePath, in.Width, in.Height); err != nil {
		logger.Error("error resizing image", slog.String("error", err.Error()))
		return gen, p.abort(ctx, gen, fmt.Errorf("resize image: %w", err))
	}

	logger.Info("starting video generation", slog.String("image", in.ResizedImagePath))
	generationID, err := p.client.Submit(ctx, in.ResizedImagePath, in.Options)
	if err != nil {
		logger.Error("video generation request failed", slog.String("error", err.Error()))
		return gen, p.abort(ctx, gen, fmt.Errorf("submit image: %w", err))
	}
	if err := gen.Submitted(generationID); err != nil {
		return gen, err
	}
	logger.Info("video generation request successful", slog.String("generation_id", generationID))

	result, err := p.waiter.Wait(ctx, generationID, in.OutputVideoPath)
	gen.SetAttempts(result.Attempts)
	if err != nil {
		return gen, p.abort(ctx, gen, fmt.Errorf("fetch video: %w", err))
	}

	videoURL := ""
	if p.pushToS3 {
		videoURL, err = p.upload(ctx, generationID, result)
		if err != nil {
			logger.Error("failed to upload video", slog.String("error", err.Error()))
			gen.SetOutput(result.OutputPath, "")
			return gen, p.abort(ctx, gen, fmt.Errorf("upload video: %w", err))
		}
		logger.Info("video uploaded", slog.String("url", videoURL))
	}
	gen.SetOutput(result.OutputPath, videoURL)

	if err := gen.Complete(); err != nil {
		return gen, err
	}

	logger.Info("run finished",
		slog.String("generation_id", generationID),
		slog.String("output", result.OutputPath),
		slog.Int("attempts", result.Attempts),
		slog.Duration("duration", gen.Duration()),
	)
	return gen, nil
}

// upload pushes the saved video to remote storage.
func (p *Pipeline) upload(ctx context.Context, generationID string, result poller.Result) (string, error) {
	f, err := p.store.Open(ctx, result.OutputPath)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	contentType := result.ContentType
	if contentType == "" {
		contentType = "video/mp4"
	}
	return p.store.Upload(ctx, p.s3Prefix+generationID+".mp4", contentType, f)
}

// abort moves gen to the terminal state matching err and returns err.
func (p *Pipeline) abort(ctx context.Context, gen *Generation, err error) error {
	var terr error
	switch {
	case errors.Is(err, poller.ErrTimeout), errors.Is(err, poller.ErrMaxAttempts):
		terr = gen.Timeout(err.Error())
	case ctx.Err() != nil:
		terr = gen.Cancel(err.Error())
	default:
		terr = gen.Fail(err.Error())
	}
	if terr != nil {
		p.logger.Warn("could not record terminal state",
			slog.String("run_id", gen.ID),
			slog.String("error", terr.Error()),
		)
	}
	return err
}
