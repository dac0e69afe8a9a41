package imagecodec

import (
	"fmt"
	"image"
	"log/slog"

	"golang.org/x/image/draw"
)

const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// OrientationCommand rotates an image by 90 degrees when its aspect does not match the
// configured orientation. Square images are left alone.
type OrientationCommand struct {
	orientation string
	clockwise   bool
}

func NewOrientationCommand(params map[string]any) (Command, error) {
	orientation := stringParam(params, "orientation", OrientationPortrait)
	if orientation != OrientationPortrait && orientation != OrientationLandscape {
		return nil, fmt.Errorf("invalid orientation: %s (must be '%s' or '%s')",
			orientation, OrientationPortrait, OrientationLandscape)
	}
	return &OrientationCommand{
		orientation: orientation,
		clockwise:   boolParam(params, "clockwise", true),
	}, nil
}

func (c *OrientationCommand) Name() string {
	return "OrientationCommand"
}

func (c *OrientationCommand) Execute(img image.Image) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() == b.Dy() {
		return img, nil
	}
	isPortrait := b.Dy() > b.Dx()
	if isPortrait == (c.orientation == OrientationPortrait) {
		return img, nil
	}
	slog.Debug("rotating image", "width", b.Dx(), "height", b.Dy(), "clockwise", c.clockwise)
	return rotate90(img, c.clockwise), nil
}

// rotate90 returns img turned by a quarter turn.
func rotate90(img image.Image, clockwise bool) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)

	dst := image.NewRGBA(image.Rect(0, 0, h, w))
	parallelFor(h, func(y int) {
		for x := 0; x < w; x++ {
			si := src.PixOffset(x, y)
			var di int
			if clockwise {
				di = dst.PixOffset(h-1-y, x)
			} else {
				di = dst.PixOffset(y, w-1-x)
			}
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	})
	return dst
}

func init() {
	if err := DefaultRegistry.Register("OrientationCommand", NewOrientationCommand); err != nil {
		panic(fmt.Sprintf("failed to register OrientationCommand: %v", err))
	}
}
