// Package media provides image processing for generation inputs.
package media

import "context"

// Processor defines the interface for image processing operations.
type Processor interface {
	// ResizeImage resizes the image at src to exactly w x h pixels and writes
	// it to dst, encoding in the format implied by dst's extension. The
	// aspect ratio is not preserved. On failure no file is left at dst.
	ResizeImage(ctx context.Context, src, dst string, w, h int) error
}
