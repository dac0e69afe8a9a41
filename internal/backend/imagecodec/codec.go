// Package imagecodec turns user-supplied pictures into size-bounded JPEG blobs.
package imagecodec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"log/slog"

	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// FileExtension is appended to every generated blob filename.
const FileExtension = ".jpg"

var (
	// ErrEmptyImage is returned when Encode is called without data.
	ErrEmptyImage = errors.New("image data is empty")
	// ErrImageTooLarge is returned for a raster whose header declares more than MaxPixels.
	ErrImageTooLarge = errors.New("image dimensions exceed pixel limit")
)

// Config bounds the encoded size. Zero values are replaced by DefaultConfig values.
// MaxBytes is the ceiling for an encoded image; MinScale is the smallest resolution
// factor tried once MinQuality is reached. MaxPixels bounds every decoded or rendered
// bitmap.
type Config struct {
	MaxBytes        int             `yaml:"maxBytes"`
	InitialQuality  int             `yaml:"initialQuality"`
	MinQuality      int             `yaml:"minQuality"`
	QualityStep     int             `yaml:"qualityStep"`
	MinScale        float64         `yaml:"minScale"`
	SVGFallbackSize int             `yaml:"svgFallbackSize"`
	MaxPixels       int             `yaml:"maxPixels"`
	Commands        []CommandConfig `yaml:"commands"`
}

// DefaultConfig returns a 150 KiB ceiling with a 100→10 quality ladder in steps of 10.
func DefaultConfig() Config {
	return Config{
		MaxBytes:        150 * 1024,
		InitialQuality:  100,
		MinQuality:      10,
		QualityStep:     10,
		MinScale:        0.25,
		SVGFallbackSize: 1024,
		MaxPixels:       50_000_000,
	}
}

// WithDefaults fills unset fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.MaxBytes == 0 {
		c.MaxBytes = d.MaxBytes
	}
	if c.InitialQuality == 0 {
		c.InitialQuality = d.InitialQuality
	}
	if c.MinQuality == 0 {
		c.MinQuality = d.MinQuality
	}
	if c.QualityStep == 0 {
		c.QualityStep = d.QualityStep
	}
	if c.MinScale == 0 {
		c.MinScale = d.MinScale
	}
	if c.SVGFallbackSize == 0 {
		c.SVGFallbackSize = d.SVGFallbackSize
	}
	if c.MaxPixels == 0 {
		c.MaxPixels = d.MaxPixels
	}
	return c
}

// Validate checks ranges after defaults were applied.
func (c Config) Validate() error {
	switch {
	case c.MaxBytes <= 0:
		return fmt.Errorf("maxBytes must be positive, got %d", c.MaxBytes)
	case c.InitialQuality < 1 || c.InitialQuality > 100:
		return fmt.Errorf("initialQuality must be within 1..100, got %d", c.InitialQuality)
	case c.MinQuality < 1 || c.MinQuality > c.InitialQuality:
		return fmt.Errorf("minQuality must be within 1..initialQuality, got %d", c.MinQuality)
	case c.QualityStep <= 0:
		return fmt.Errorf("qualityStep must be positive, got %d", c.QualityStep)
	case c.MinScale <= 0 || c.MinScale > 1:
		return fmt.Errorf("minScale must be within (0, 1], got %v", c.MinScale)
	case c.SVGFallbackSize <= 0:
		return fmt.Errorf("svgFallbackSize must be positive, got %d", c.SVGFallbackSize)
	case c.MaxPixels <= 0:
		return fmt.Errorf("maxPixels must be positive, got %d", c.MaxPixels)
	}
	return nil
}

// Codec encodes images below a configured ceiling.
type Codec struct {
	config   Config
	pipeline []Command
}

// NewCodec applies defaults, validates and builds the configured command pipeline from
// DefaultRegistry.
func NewCodec(config Config) (*Codec, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid image codec configuration: %w", err)
	}
	pipeline, err := DefaultRegistry.BuildPipeline(config.Commands)
	if err != nil {
		return nil, fmt.Errorf("invalid image codec configuration: %w", err)
	}
	return &Codec{config: config, pipeline: pipeline}, nil
}

// Config returns the effective configuration.
func (c *Codec) Config() Config {
	return c.config
}

// NewFilename returns a fresh "<uuid>.jpg" blob name.
func NewFilename() string {
	return uuid.NewString() + FileExtension
}

// Encode decodes raw (any supported raster format or SVG), runs the pipeline and
// re-encodes as JPEG, lowering quality and then resolution until the result fits
// MaxBytes. If the floor still does not fit, the smallest attempt is returned anyway.
func (c *Codec) Encode(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyImage
	}
	img, err := c.decode(raw)
	if err != nil {
		slog.Debug("ImageCodec: failed to decode image", "error", err, "input_size_bytes", len(raw))
		return nil, err
	}
	for _, command := range c.pipeline {
		img, err = command.Execute(img)
		if err != nil {
			return nil, fmt.Errorf("%s failed: %w", command.Name(), err)
		}
	}
	base := flatten(img, color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})

	var best []byte
	for quality := c.config.InitialQuality; ; quality -= c.config.QualityStep {
		quality = max(quality, c.config.MinQuality)
		best, err = encodeJPEG(base, quality)
		if err != nil {
			return nil, err
		}
		if len(best) <= c.config.MaxBytes || quality == c.config.MinQuality {
			slog.Debug("ImageCodec: quality pass finished", "quality", quality, "output_size_bytes", len(best))
			break
		}
	}

	for scale := 0.5; len(best) > c.config.MaxBytes && scale >= c.config.MinScale; scale /= 2 {
		best, err = encodeJPEG(scaleImage(base, scale), c.config.MinQuality)
		if err != nil {
			return nil, err
		}
		slog.Debug("ImageCodec: downscaled pass", "scale", scale, "output_size_bytes", len(best))
	}

	if len(best) > c.config.MaxBytes {
		slog.Warn("ImageCodec: size ceiling unsatisfiable, keeping best effort",
			"output_size_bytes", len(best), "max_bytes", c.config.MaxBytes)
	}
	return best, nil
}

func (c *Codec) decode(raw []byte) (image.Image, error) {
	if root, ok := svgRoot(raw); ok {
		w, h := svgCanvas(root, c.config.SVGFallbackSize, c.config.MaxPixels)
		return renderSVG(raw, w, h)
	}
	header, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if !c.withinPixelLimit(header.Width, header.Height) {
		return nil, fmt.Errorf("%w: %dx%d, limit %d", ErrImageTooLarge, header.Width, header.Height, c.config.MaxPixels)
	}
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	slog.Debug("ImageCodec: decoded image",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())
	return img, nil
}

func (c *Codec) withinPixelLimit(w, h int) bool {
	limit := c.config.MaxPixels
	if w > limit || h > limit {
		return false
	}
	return int64(w)*int64(h) <= int64(limit)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
