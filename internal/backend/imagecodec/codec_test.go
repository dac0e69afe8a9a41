package imagecodec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand/v2"
	"regexp"
	"testing"
)

// noisyPNG returns a PNG of random pixels, which JPEG cannot compress well.
func noisyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255})
		}
	}
	return encodePNG(t, img)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return buf.Bytes()
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not a valid JPEG: %v", err)
	}
	return img
}

func newTestCodec(t *testing.T, cfg Config) *Codec {
	t.Helper()
	codec, err := NewCodec(cfg)
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	return codec
}

func TestEncode_SmallImageKeepsDimensions(t *testing.T) {
	codec := newTestCodec(t, Config{})

	out, err := codec.Encode(noisyPNG(t, 64, 48))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	img := decodeJPEG(t, out)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Fatalf("expected 64x48, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
	if len(out) > codec.Config().MaxBytes {
		t.Fatalf("expected output under %d bytes, got %d", codec.Config().MaxBytes, len(out))
	}
}

func TestEncode_RespectsCeiling(t *testing.T) {
	const ceiling = 30 * 1024
	codec := newTestCodec(t, Config{MaxBytes: ceiling})

	raw := noisyPNG(t, 512, 512)
	out, err := codec.Encode(raw)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if len(out) > ceiling {
		t.Fatalf("expected output <= %d bytes, got %d", ceiling, len(out))
	}
	decodeJPEG(t, out)
}

func TestEncode_UnsatisfiableCeilingReturnsBestEffort(t *testing.T) {
	codec := newTestCodec(t, Config{MaxBytes: 1})

	out, err := codec.Encode(noisyPNG(t, 128, 128))
	if err != nil {
		t.Fatalf("expected best-effort result, got error: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected non-empty best-effort output")
	}
	img := decodeJPEG(t, out)
	// the floor is a quarter of the resolution
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Fatalf("expected 32x32 floor image, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEncode_InvalidInput(t *testing.T) {
	codec := newTestCodec(t, Config{})

	if _, err := codec.Encode(nil); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("expected ErrEmptyImage, got %v", err)
	}
	if _, err := codec.Encode([]byte("not a valid image")); err == nil {
		t.Fatalf("expected error for undecodable data")
	}
}

func TestEncode_FlattensTransparencyOntoWhite(t *testing.T) {
	codec := newTestCodec(t, Config{})

	transparent := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	out, err := codec.Encode(encodePNG(t, transparent))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	r, g, b, _ := decodeJPEG(t, out).At(8, 8).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("expected near-white pixel, got r=%d g=%d b=%d", r>>8, g>>8, b>>8)
	}
}

func TestEncode_SVGWithExplicitSize(t *testing.T) {
	codec := newTestCodec(t, Config{})
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="40" height="20"><rect width="40" height="20" fill="#ff0000"/></svg>`)

	out, err := codec.Encode(svg)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	img := decodeJPEG(t, out)
	if img.Bounds().Dx() != 40 || img.Bounds().Dy() != 20 {
		t.Fatalf("expected 40x20, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEncode_SVGFallbackSize(t *testing.T) {
	codec := newTestCodec(t, Config{SVGFallbackSize: 64})
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10 10"><circle cx="5" cy="5" r="4"/></svg>`)

	out, err := codec.Encode(svg)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	img := decodeJPEG(t, out)
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
		t.Fatalf("expected 64x64, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEncode_SVGDeclaredSizeIsBoundedByMaxPixels(t *testing.T) {
	codec := newTestCodec(t, Config{MaxPixels: 10_000})
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="100000000" height="100000000"><rect width="10" height="10"/></svg>`)

	out, err := codec.Encode(svg)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	img := decodeJPEG(t, out)
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 100 {
		t.Fatalf("expected 100x100, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestEncode_RasterOverMaxPixelsIsRejected(t *testing.T) {
	codec := newTestCodec(t, Config{MaxPixels: 100})

	_, err := codec.Encode(noisyPNG(t, 20, 20))
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

// pngWithHeaderSize returns a 1x1 PNG whose IHDR claims w×h.
func pngWithHeaderSize(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 1)))
	// 8-byte signature, then IHDR: length(4) type(4) width(4) height(4) ... crc(4).
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestEncode_ForgedRasterHeaderIsRejected(t *testing.T) {
	codec := newTestCodec(t, Config{})

	for _, size := range [][2]uint32{{100_000, 100_000}, {1 << 30, 1}, {60_000, 60_000}} {
		_, err := codec.Encode(pngWithHeaderSize(t, size[0], size[1]))
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("%dx%d: expected ErrImageTooLarge, got %v", size[0], size[1], err)
		}
	}
}

func TestEncode_RunsPipeline(t *testing.T) {
	codec := newTestCodec(t, Config{
		Commands: []CommandConfig{
			{Name: "FlattenCommand", Params: map[string]any{"background": "#000000"}},
			{Name: "MaxDimensionCommand", Params: map[string]any{"maxDimension": 100}},
		},
	})

	out, err := codec.Encode(noisyPNG(t, 400, 200))
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	img := decodeJPEG(t, out)
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 50 {
		t.Fatalf("expected 100x50, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestNewCodec_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "negative ceiling", cfg: Config{MaxBytes: -1}},
		{name: "quality above 100", cfg: Config{InitialQuality: 101}},
		{name: "min above initial", cfg: Config{InitialQuality: 50, MinQuality: 60}},
		{name: "negative step", cfg: Config{QualityStep: -5}},
		{name: "scale above one", cfg: Config{MinScale: 1.5}},
		{name: "negative pixel limit", cfg: Config{MaxPixels: -1}},
		{name: "unknown command", cfg: Config{Commands: []CommandConfig{{Name: "SepiaCommand"}}}},
		{name: "invalid command params", cfg: Config{Commands: []CommandConfig{{Name: "MaxDimensionCommand"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCodec(tt.cfg); err == nil {
				t.Fatalf("expected error for %s", tt.name)
			}
		})
	}
}

func TestNewFilename_FormatAndUniqueness(t *testing.T) {
	// UUID v4 pattern: 8-4-4-4-12 hex, version 4 and variant 10xx
	pattern := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\.jpg$`)

	const n = 256
	seen := make(map[string]struct{}, n)

	for i := 0; i < n; i++ {
		got := NewFilename()
		if !pattern.MatchString(got) {
			t.Fatalf("NewFilename() returned invalid name: %q", got)
		}
		if _, dup := seen[got]; dup {
			t.Fatalf("NewFilename() returned duplicate name: %q", got)
		}
		seen[got] = struct{}{}
	}
}
