// Package media prepares product images and ships them to object storage:
// Transformer resizes and re-encodes, Uploader places the bytes in a bucket,
// and Pipeline chains the two for a single uploaded file.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	// WebP uploads are decoded too; imaging registers jpeg, png, gif, bmp and tiff.
	_ "golang.org/x/image/webp"
)

// DefaultMaxWidth is the widest image, in pixels, the storefront keeps.
const DefaultMaxWidth = 250

// DefaultMaxPixels is the largest width*height accepted for decoding.
const DefaultMaxPixels = 89478485

var (
	// ErrInvalidImage wraps failures to decode an upload.
	ErrInvalidImage = errors.New("invalid image")
	// ErrImageTooLarge is returned when an upload declares more pixels than allowed.
	ErrImageTooLarge = errors.New("image too large")
)

// Transformer normalizes uploaded images into width-capped RGBA PNGs.
type Transformer struct {
	maxWidth  int
	maxPixels int
	log       *zap.Logger
}

// TransformerOption customizes a Transformer.
type TransformerOption func(*Transformer)

// WithMaxPixels caps width*height of decoded images; n <= 0 keeps DefaultMaxPixels.
func WithMaxPixels(n int) TransformerOption {
	return func(t *Transformer) {
		if n > 0 {
			t.maxPixels = n
		}
	}
}

// NewTransformer returns a Transformer capping width at maxWidth
// (DefaultMaxWidth when maxWidth <= 0).
func NewTransformer(maxWidth int, log *zap.Logger, opts ...TransformerOption) *Transformer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	t := &Transformer{maxWidth: maxWidth, maxPixels: DefaultMaxPixels, log: log}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxWidth reports the configured width cap.
func (t *Transformer) MaxWidth() int {
	return t.maxWidth
}

// Transform decodes r and hands the bitmap to TransformImage. The header is
// read first and images declaring more than the pixel cap are rejected with
// ErrImageTooLarge before any bitmap is allocated. Undecodable input yields
// ErrInvalidImage wrapping the decoder's error.
func (t *Transformer) Transform(r io.Reader) (*bytes.Buffer, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image header: %w", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(t.maxPixels) {
		t.log.Warn("image rejected, too many pixels",
			zap.Int("width", cfg.Width), zap.Int("height", cfg.Height), zap.Int("max_pixels", t.maxPixels))
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, t.maxPixels)
	}

	img, err := imaging.Decode(io.MultiReader(&header, r), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %w", ErrInvalidImage, err)
	}
	return t.TransformImage(img)
}

// TransformImage converts img to NRGBA, downsizes it when wider than the cap
// and returns it PNG-encoded with maximum compression. The returned buffer
// reads from its first byte.
func (t *Transformer) TransformImage(img image.Image) (*bytes.Buffer, error) {
	out := t.fit(img)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, out, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf, nil
}

func (t *Transformer) fit(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() <= t.maxWidth {
		t.log.Debug("image within width cap", zap.Int("width", b.Dx()))
		return imaging.Clone(img)
	}

	h := ScaledHeight(b.Dx(), b.Dy(), t.maxWidth)
	t.log.Debug("resizing image",
		zap.Int("from_width", b.Dx()), zap.Int("from_height", b.Dy()),
		zap.Int("to_width", t.maxWidth), zap.Int("to_height", h),
	)
	return imaging.Resize(img, t.maxWidth, h, imaging.Lanczos)
}

// ScaledHeight is round(maxWidth * height / width), never below 1.
func ScaledHeight(width, height, maxWidth int) int {
	h := int(math.Round(float64(maxWidth) * float64(height) / float64(width)))
	if h < 1 {
		return 1
	}
	return h
}
