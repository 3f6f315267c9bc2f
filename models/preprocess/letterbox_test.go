package preprocess

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolo/images"
)

// createTestImage builds a deterministic, fully opaque RGBA image.
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rng := rand.New(rand.NewSource(42))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

// createSolidImage builds a single-color RGBA image.
func createSolidImage(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestSplitPadding(t *testing.T) {
	tests := []struct {
		total    int
		leading  int
		trailing int
	}{
		{total: 0, leading: 0, trailing: 0},
		{total: 1, leading: 0, trailing: 1},
		{total: 2, leading: 1, trailing: 1},
		{total: 3, leading: 1, trailing: 2},
		{total: 5, leading: 2, trailing: 3},
		{total: 279, leading: 139, trailing: 140},
		{total: 280, leading: 140, trailing: 140},
	}

	for _, tt := range tests {
		leading, trailing := SplitPadding(tt.total)
		assert.Equal(t, tt.leading, leading, "leading pad for total %d", tt.total)
		assert.Equal(t, tt.trailing, trailing, "trailing pad for total %d", tt.total)
		assert.Equal(t, tt.total, leading+trailing, "pads should sum to total %d", tt.total)
	}
}

func TestLetterbox_Scenarios(t *testing.T) {
	tests := []struct {
		name          string
		width         int
		height        int
		target        int
		scale         float64
		resizedWidth  int
		resizedHeight int
		padLeft       int
		padRight      int
		padTop        int
		padBottom     int
	}{
		{
			name: "1280x720 landscape", width: 1280, height: 720, target: 640,
			scale: 0.5, resizedWidth: 640, resizedHeight: 360,
			padLeft: 0, padRight: 0, padTop: 140, padBottom: 140,
		},
		{
			name: "639x640 odd horizontal pad", width: 639, height: 640, target: 640,
			scale: 1.0, resizedWidth: 639, resizedHeight: 640,
			padLeft: 0, padRight: 1, padTop: 0, padBottom: 0,
		},
		{
			name: "480x960 portrait", width: 480, height: 960, target: 640,
			scale: 640.0 / 960.0, resizedWidth: 320, resizedHeight: 640,
			padLeft: 160, padRight: 160, padTop: 0, padBottom: 0,
		},
		{
			name: "100x50 upscale", width: 100, height: 50, target: 640,
			scale: 6.4, resizedWidth: 640, resizedHeight: 320,
			padLeft: 0, padRight: 0, padTop: 160, padBottom: 160,
		},
		{
			name: "1000x333 odd vertical pad", width: 1000, height: 333, target: 640,
			scale: 0.64, resizedWidth: 640, resizedHeight: 213,
			padLeft: 0, padRight: 0, padTop: 213, padBottom: 214,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb, err := LetterboxSquare(createSolidImage(tt.width, tt.height, color.RGBA{10, 20, 30, 255}), tt.target, nil)
			require.NoError(t, err)

			assert.InDelta(t, tt.scale, lb.Scale, 1e-9, "scale")
			assert.Equal(t, tt.resizedWidth, lb.ResizedWidth, "resized width")
			assert.Equal(t, tt.resizedHeight, lb.ResizedHeight, "resized height")
			assert.Equal(t, tt.padLeft, lb.PadLeft, "pad left")
			assert.Equal(t, tt.padRight, lb.PadRight, "pad right")
			assert.Equal(t, tt.padTop, lb.PadTop, "pad top")
			assert.Equal(t, tt.padBottom, lb.PadBottom, "pad bottom")
			assert.Equal(t, image.Rect(0, 0, tt.target, tt.target), lb.Canvas.Bounds(), "canvas bounds")
			assert.Equal(t, tt.width, lb.OriginalWidth)
			assert.Equal(t, tt.height, lb.OriginalHeight)
		})
	}
}

func TestLetterbox_PadAndContentPlacement(t *testing.T) {
	lb, err := LetterboxSquare(createSolidImage(1280, 720, color.RGBA{200, 10, 10, 255}), 640, nil)
	require.NoError(t, err)

	// Padding rows take the default fill.
	assert.Equal(t, DefaultPadColor, lb.Canvas.RGBAAt(0, 0))
	assert.Equal(t, DefaultPadColor, lb.Canvas.RGBAAt(639, 139))
	assert.Equal(t, DefaultPadColor, lb.Canvas.RGBAAt(320, 500))

	// Content rows carry the resized image.
	assert.Equal(t, color.RGBA{200, 10, 10, 255}, lb.Canvas.RGBAAt(0, 140))
	assert.Equal(t, color.RGBA{200, 10, 10, 255}, lb.Canvas.RGBAAt(639, 499))
}

func TestLetterbox_CustomPadColor(t *testing.T) {
	pad := color.RGBA{0, 0, 0, 255}
	lb, err := Letterbox(createSolidImage(10, 20, color.RGBA{255, 255, 255, 255}), 40, 40, pad)
	require.NoError(t, err)

	assert.Equal(t, 10, lb.PadLeft)
	assert.Equal(t, pad, lb.Canvas.RGBAAt(0, 0))
	assert.Equal(t, pad, lb.Canvas.RGBAAt(39, 39))
}

func TestLetterbox_DistinctTargetDimensions(t *testing.T) {
	lb, err := Letterbox(createSolidImage(200, 100, color.RGBA{1, 2, 3, 255}), 320, 256, nil)
	require.NoError(t, err)

	assert.InDelta(t, 1.6, lb.Scale, 1e-9)
	assert.Equal(t, 320, lb.ResizedWidth)
	assert.Equal(t, 160, lb.ResizedHeight)
	assert.Equal(t, 48, lb.PadTop)
	assert.Equal(t, 48, lb.PadBottom)
	assert.Equal(t, image.Rect(0, 0, 320, 256), lb.Canvas.Bounds())
}

// TestLetterbox_Identity checks that an S x S image passes through untouched.
func TestLetterbox_Identity(t *testing.T) {
	src := createTestImage(64, 64)

	lb, err := LetterboxSquare(src, 64, nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, lb.Scale)
	assert.Equal(t, 0, lb.PadLeft)
	assert.Equal(t, 0, lb.PadTop)
	assert.Equal(t, src.Pix, lb.Canvas.Pix, "pixel content should be unchanged")
}

func TestLetterbox_NonZeroOrigin(t *testing.T) {
	src := createTestImage(64, 64)
	sub := src.SubImage(image.Rect(16, 16, 48, 48))

	lb, err := LetterboxSquare(sub, 32, nil)
	require.NoError(t, err)

	assert.Equal(t, src.RGBAAt(16, 16), lb.Canvas.RGBAAt(0, 0))
	assert.Equal(t, src.RGBAAt(47, 47), lb.Canvas.RGBAAt(31, 31))
}

func TestLetterbox_SliverKeepsOnePixel(t *testing.T) {
	lb, err := LetterboxSquare(createSolidImage(1, 4000, color.RGBA{9, 9, 9, 255}), 640, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, lb.ResizedWidth)
	assert.Equal(t, 640, lb.ResizedHeight)
	assert.Equal(t, 319, lb.PadLeft)
	assert.Equal(t, 320, lb.PadRight)
}

func TestLetterbox_DropsAlpha(t *testing.T) {
	translucent := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	for i := 0; i < len(translucent.Pix); i += 4 {
		copy(translucent.Pix[i:i+4], []uint8{255, 255, 255, 128})
	}

	lb, err := LetterboxSquare(translucent, 64, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, lb.PadTop)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, lb.Canvas.RGBAAt(10, 20), "straight color is kept")
	assert.Equal(t, DefaultPadColor, lb.Canvas.RGBAAt(10, 0))

	tensor := ToTensor(lb.Canvas)
	assert.InDelta(t, 1.0, tensor.Data[20*64+10], 1e-6)

	// Premultiplied half-transparent red.
	premultiplied := createSolidImage(8, 8, color.RGBA{128, 0, 0, 128})
	lb, err = LetterboxSquare(premultiplied, 16, nil)
	require.NoError(t, err)
	px := lb.Canvas.RGBAAt(8, 8)
	assert.InDelta(t, 255, int(px.R), 1)
	assert.Equal(t, uint8(0), px.G)
	assert.Equal(t, uint8(255), px.A)
}

func TestLetterbox_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		img    image.Image
		width  int
		height int
	}{
		{name: "nil image", img: nil, width: 640, height: 640},
		{name: "empty image", img: image.NewRGBA(image.Rect(0, 0, 0, 10)), width: 640, height: 640},
		{name: "zero target", img: createSolidImage(4, 4, color.RGBA{}), width: 0, height: 640},
		{name: "negative target", img: createSolidImage(4, 4, color.RGBA{}), width: 640, height: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb, err := Letterbox(tt.img, tt.width, tt.height, nil)
			assert.Nil(t, lb)
			assert.True(t, errors.Is(err, ErrInvalidInput), "expected ErrInvalidInput, got %v", err)
		})
	}
}

// TestLetterbox_RoundTrip projects original-space rectangles through the forward
// mapping and back.
func TestLetterbox_RoundTrip(t *testing.T) {
	sizes := [][2]int{{1280, 720}, {639, 640}, {333, 1000}, {50, 50}, {1920, 1080}}

	for _, size := range sizes {
		lb, err := LetterboxSquare(createSolidImage(size[0], size[1], color.RGBA{}), 640, nil)
		require.NoError(t, err)

		rect := images.Corners{
			X1: float32(size[0]) * 0.1,
			Y1: float32(size[1]) * 0.2,
			X2: float32(size[0]) * 0.7,
			Y2: float32(size[1]) * 0.9,
		}
		box := lb.ToCanvasSpace(rect).ToBox()
		recovered := lb.ToOriginalSpace(box.ToCorners())

		assert.InDelta(t, rect.X1, recovered.X1, 1e-2, "x1 for %v", size)
		assert.InDelta(t, rect.Y1, recovered.Y1, 1e-2, "y1 for %v", size)
		assert.InDelta(t, rect.X2, recovered.X2, 1e-2, "x2 for %v", size)
		assert.InDelta(t, rect.Y2, recovered.Y2, 1e-2, "y2 for %v", size)
	}
}
