package imagecodec

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// svgRoot returns the document's first element when raw is XML whose root is <svg>.
// Binary formats are rejected on their first byte.
func svgRoot(raw []byte) (xml.StartElement, bool) {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(raw, utf8BOM), " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '<' {
		return xml.StartElement{}, false
	}
	decoder := xml.NewDecoder(bytes.NewReader(trimmed))
	decoder.Strict = false
	for {
		token, err := decoder.RawToken()
		if err != nil {
			return xml.StartElement{}, false
		}
		if start, ok := token.(xml.StartElement); ok {
			return start, strings.EqualFold(start.Name.Local, "svg")
		}
	}
}

// svgLength reads a width or height attribute. Plain numbers and px are accepted; relative
// units and percentages carry no intrinsic size.
func svgLength(root xml.StartElement, name string) (float64, bool) {
	for _, attr := range root.Attr {
		if attr.Name.Local != name {
			continue
		}
		value := strings.TrimSuffix(strings.TrimSpace(attr.Value), "px")
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// svgCanvas picks the raster size for root: its declared width and height, or a
// fallback×fallback square, shrunk to at most maxPixels.
func svgCanvas(root xml.StartElement, fallback, maxPixels int) (int, int) {
	w, okW := svgLength(root, "width")
	h, okH := svgLength(root, "height")
	if !okW || !okH {
		w, h = float64(fallback), float64(fallback)
	}
	return fitPixels(w, h, maxPixels)
}

// fitPixels scales w×h down, keeping the aspect ratio, until the area is at most
// maxPixels. Neither side drops below one pixel.
func fitPixels(w, h float64, maxPixels int) (int, int) {
	limit := float64(maxPixels)
	w, h = math.Min(w, limit), math.Min(h, limit)
	if area := w * h; area > limit {
		f := math.Sqrt(limit / area)
		w, h = w*f, h*f
	}
	width, height := max(1, int(math.Round(w))), max(1, int(math.Round(h)))
	for width*height > maxPixels && max(width, height) > 1 {
		if width >= height {
			width--
		} else {
			height--
		}
	}
	return width, height
}

// renderSVG rasterizes an SVG onto a white canvas of the given size.
func renderSVG(svgData []byte, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid SVG canvas %dx%d", width, height)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, canvas, canvas.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)
	return canvas, nil
}
