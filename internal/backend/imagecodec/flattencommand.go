package imagecodec

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
)

// FlattenCommand composites the image over an opaque background colour. JPEG has no
// alpha channel, so transparent pixels would otherwise turn black.
type FlattenCommand struct {
	name       string
	background color.RGBA
}

// NewFlattenCommand accepts an optional "background" parameter in #RRGGBB form
func NewFlattenCommand(params map[string]any) (Command, error) {
	background, err := parseHexColor(stringParam(params, "background", "#FFFFFF"))
	if err != nil {
		return nil, err
	}
	return &FlattenCommand{
		name:       "FlattenCommand",
		background: background,
	}, nil
}

// Name returns the command name
func (c *FlattenCommand) Name() string {
	return c.name
}

func (c *FlattenCommand) Execute(img image.Image) (image.Image, error) {
	return flatten(img, c.background), nil
}

func flatten(img image.Image, background color.RGBA) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}

func parseHexColor(s string) (color.RGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("background must be #RRGGBB, got %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("background must be #RRGGBB, got %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

func init() {
	if err := DefaultRegistry.Register("FlattenCommand", NewFlattenCommand); err != nil {
		panic(fmt.Sprintf("failed to register FlattenCommand: %v", err))
	}
}
