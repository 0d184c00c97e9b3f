package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

// createTestImage writes a solid-colour image of the given size to path.
func createTestImage(t *testing.T, path string, width, height int) {
	t.Helper()
	img := imaging.New(width, height, color.NRGBA{R: 200, G: 40, B: 90, A: 255})
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("failed to create test image: %v", err)
	}
}

// verifyImageDimensions decodes path and checks its pixel size.
func verifyImageDimensions(t *testing.T, path string, expectedW, expectedH int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open output image: %v", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("failed to decode output image: %v", err)
	}
	if cfg.Width != expectedW || cfg.Height != expectedH {
		t.Errorf("dimensions = %dx%d, want %dx%d", cfg.Width, cfg.Height, expectedW, expectedH)
	}
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no file at %s, stat err = %v", path, err)
	}
}

func TestNewImagingProcessor(t *testing.T) {
	p := NewImagingProcessor(nil)
	if p == nil {
		t.Fatal("expected non-nil processor")
	}
	if p.logger == nil {
		t.Error("expected default logger")
	}
}

func TestResizeImage(t *testing.T) {
	p := NewImagingProcessor(nil)
	ctx := context.Background()

	tests := []struct {
		name       string
		srcW, srcH int
		srcExt     string
		dstExt     string
		targetW    int
		targetH    int
	}{
		{"downscale landscape", 2048, 1152, ".png", ".png", 1024, 576},
		{"upscale small square", 100, 100, ".png", ".png", 1024, 576},
		{"portrait to landscape", 600, 900, ".jpg", ".png", 1024, 576},
		{"jpeg output", 1920, 1080, ".png", ".jpg", 1024, 576},
		{"square target", 640, 480, ".png", ".png", 768, 768},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "src"+tt.srcExt)
			dst := filepath.Join(dir, "dst"+tt.dstExt)
			createTestImage(t, src, tt.srcW, tt.srcH)

			if err := p.ResizeImage(ctx, src, dst, tt.targetW, tt.targetH); err != nil {
				t.Fatalf("ResizeImage() error = %v", err)
			}

			verifyImageDimensions(t, dst, tt.targetW, tt.targetH)
		})
	}
}

func TestResizeImage_InvalidDimensions(t *testing.T) {
	p := NewImagingProcessor(nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	createTestImage(t, src, 10, 10)

	for _, dims := range [][2]int{{0, 576}, {1024, 0}, {-1, 576}} {
		err := p.ResizeImage(context.Background(), src, dst, dims[0], dims[1])
		if !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("ResizeImage(%d, %d) error = %v, want ErrInvalidDimensions", dims[0], dims[1], err)
		}
	}
	assertNotExists(t, dst)
}

func TestResizeImage_MissingInput(t *testing.T) {
	p := NewImagingProcessor(nil)
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.png")

	err := p.ResizeImage(context.Background(), filepath.Join(dir, "missing.png"), dst, 1024, 576)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist in chain, got %v", err)
	}
	assertNotExists(t, dst)
}

func TestResizeImage_CorruptInput(t *testing.T) {
	p := NewImagingProcessor(nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "corrupt.png")
	dst := filepath.Join(dir, "dst.png")
	if err := os.WriteFile(src, []byte("definitely not a png"), 0o600); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	if err := p.ResizeImage(context.Background(), src, dst, 1024, 576); err == nil {
		t.Fatal("expected error for corrupt input")
	}
	assertNotExists(t, dst)
}

func TestResizeImage_UnsupportedOutputFormat(t *testing.T) {
	p := NewImagingProcessor(nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.webp")
	createTestImage(t, src, 10, 10)

	err := p.ResizeImage(context.Background(), src, dst, 1024, 576)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, want ErrUnsupportedFormat", err)
	}
	assertNotExists(t, dst)
}

func TestResizeImage_ContextCancelled(t *testing.T) {
	p := NewImagingProcessor(nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	dst := filepath.Join(dir, "dst.png")
	createTestImage(t, src, 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.ResizeImage(ctx, src, dst, 1024, 576); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	assertNotExists(t, dst)
}
