// Package content caches downloaded media on disk, keyed by fingerprint.
package content

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
)

// ByteSource produces the raw bytes for a piece of content. It is invoked
// only on cache misses.
type ByteSource func(ctx context.Context) ([]byte, error)

// Store materializes content under a cache root. Artifacts are normalized
// to JPEG, downscaled to fit a bounding square, and named by fingerprint,
// so a second materialize of the same content is a cheap stat.
type Store struct {
	root         string
	maxDimension int
	jpegQuality  int
	logger       *slog.Logger
}

type Config struct {
	Dir          string
	MaxDimension int
	JPEGQuality  int
}

func NewStore(cfg Config, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{
		root:         cfg.Dir,
		maxDimension: cfg.MaxDimension,
		jpegQuality:  cfg.JPEGQuality,
		logger:       logger,
	}, nil
}

// Materialize returns the local path for the fingerprint, fetching,
// resizing and re-encoding the content on a cache miss. The source is not
// invoked when a cached artifact already exists.
func (s *Store) Materialize(ctx context.Context, fp string, source ByteSource) (string, error) {
	path := s.Path(fp)

	if _, err := os.Stat(path); err == nil {
		s.logger.Debug("cache hit", "fingerprint", fp)
		return path, nil
	}

	raw, err := source(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch content: %w", err)
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode content: %w", err)
	}

	img = s.downscale(img)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.jpegQuality}); err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write cache file: %w", err)
	}

	s.logger.Debug("cached content",
		"fingerprint", fp,
		"format", format,
		"bytes", buf.Len(),
	)

	return path, nil
}

// MaterializeRaw caches content byte-for-byte under the given extension.
// Video payloads take this path; re-encoding them is not worth it and the
// platform accepts them as uploaded.
func (s *Store) MaterializeRaw(ctx context.Context, fp, ext string, source ByteSource) (string, error) {
	path := filepath.Join(s.root, fp+ext)

	if _, err := os.Stat(path); err == nil {
		s.logger.Debug("cache hit", "fingerprint", fp)
		return path, nil
	}

	raw, err := source(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch content: %w", err)
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write cache file: %w", err)
	}

	s.logger.Debug("cached content", "fingerprint", fp, "bytes", len(raw))
	return path, nil
}

// Path returns the cache path an image artifact for fp would live at.
func (s *Store) Path(fp string) string {
	return filepath.Join(s.root, fp+".jpg")
}

// downscale fits img into the bounding square, preserving aspect ratio.
// Images already within bounds are returned unchanged.
func (s *Store) downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= s.maxDimension && h <= s.maxDimension {
		return img
	}

	scale := float64(s.maxDimension) / float64(w)
	if h > w {
		scale = float64(s.maxDimension) / float64(h)
	}
	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
