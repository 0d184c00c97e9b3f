package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/disintegration/imaging"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrUnsupportedFormat is returned when the output extension has no known encoder.
	ErrUnsupportedFormat = errors.New("unsupported output image format")
)

// Compile-time check that ImagingProcessor implements Processor.
var _ Processor = (*ImagingProcessor)(nil)

// ImagingProcessor implements Processor with github.com/disintegration/imaging.
type ImagingProcessor struct {
	filter imaging.ResampleFilter
	logger *slog.Logger
}

// NewImagingProcessor creates a processor that resamples with the Lanczos filter.
func NewImagingProcessor(logger *slog.Logger) *ImagingProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImagingProcessor{
		filter: imaging.Lanczos,
		logger: logger,
	}
}

// ResizeImage decodes src, resamples it to w x h and saves the result to dst.
func (p *ImagingProcessor) ResizeImage(ctx context.Context, src, dst string, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, w, h)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	// Resolve the encoder before anything touches dst.
	if _, err := imaging.FormatFromFilename(dst); err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, dst)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image %s: %w", src, err)
	}

	resized := imaging.Resize(img, w, h, p.filter)

	if err := imaging.Save(resized, dst); err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("save image %s: %w", dst, err)
	}

	p.logger.Info("image resized",
		slog.String("src", src),
		slog.String("dst", dst),
		slog.Int("width", w),
		slog.Int("height", h),
	)

	return nil
}
