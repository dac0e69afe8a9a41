package imagecodec

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"
)

// MaxDimensionCommand downscales an image so its longest side does not exceed a limit,
// preserving the aspect ratio. Smaller images pass through untouched.
type MaxDimensionCommand struct {
	name         string
	maxDimension int
}

// NewMaxDimensionCommand creates the command from configuration parameters
func NewMaxDimensionCommand(params map[string]any) (Command, error) {
	if err := requireParams(params, "maxDimension"); err != nil {
		return nil, err
	}
	maxDimension := intParam(params, "maxDimension", 0)
	if maxDimension <= 0 {
		return nil, fmt.Errorf("maxDimension must be positive, got %d", maxDimension)
	}
	return &MaxDimensionCommand{
		name:         "MaxDimensionCommand",
		maxDimension: maxDimension,
	}, nil
}

// Name returns the command name
func (c *MaxDimensionCommand) Name() string {
	return c.name
}

func (c *MaxDimensionCommand) Execute(img image.Image) (image.Image, error) {
	bounds := img.Bounds()
	longest := max(bounds.Dx(), bounds.Dy())
	if longest <= c.maxDimension {
		return img, nil
	}
	factor := float64(c.maxDimension) / float64(longest)
	slog.Debug("MaxDimensionCommand: downscaling",
		"orig_width", bounds.Dx(),
		"orig_height", bounds.Dy(),
		"max_dimension", c.maxDimension)
	return scaleImage(img, factor), nil
}

// scaleImage resamples img by factor with Catmull-Rom; each side is at least one pixel.
func scaleImage(img image.Image, factor float64) *image.RGBA {
	bounds := img.Bounds()
	w := max(1, int(float64(bounds.Dx())*factor+0.5))
	h := max(1, int(float64(bounds.Dy())*factor+0.5))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	if err := DefaultRegistry.Register("MaxDimensionCommand", NewMaxDimensionCommand); err != nil {
		panic(fmt.Sprintf("failed to register MaxDimensionCommand: %v", err))
	}
}
