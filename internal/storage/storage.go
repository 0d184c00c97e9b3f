// Package storage provides output file persistence.
// It defines the Storage interface (port) and implementations for local disk
// and local disk plus S3 upload of the finished video.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for persisting generation outputs.
type Storage interface {
	// SaveFile writes data to path. The file appears complete or not at all:
	// on failure nothing is left at path.
	SaveFile(ctx context.Context, path string, data io.Reader) error

	// Open returns a reader for a file previously written with SaveFile.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Upload stores data under key in remote storage and returns its URL.
	// Returns ErrS3NotConfigured if no remote storage is configured.
	Upload(ctx context.Context, key, contentType string, data io.Reader) (url string, err error)
}
