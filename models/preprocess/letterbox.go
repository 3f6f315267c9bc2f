// Package preprocess - Letterbox preprocessing for fixed-input-shape detectors.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/images"
)

// ErrInvalidInput is returned for non-positive image or target dimensions.
var ErrInvalidInput = errors.New("invalid input")

// DefaultPadColor is the mid-gray YOLO letterbox fill.
var DefaultPadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// DefaultTargetSize is the canvas edge length used by YOLOv8/v11 exports.
const DefaultTargetSize = 640

// LetterboxResult owns the padded canvas and the parameters needed to invert the mapping.
type LetterboxResult struct {
	// Canvas is exactly TargetWidth x TargetHeight.
	Canvas *image.RGBA
	// Scale is the single ratio applied to both axes.
	Scale float64
	// PadLeft is the x offset of the content's top-left corner within the canvas.
	PadLeft int
	// PadTop is the y offset of the content's top-left corner within the canvas.
	PadTop int
	// PadRight is the fill to the right of the content.
	PadRight int
	// PadBottom is the fill below the content.
	PadBottom int
	// ResizedWidth is the width of the content after scaling.
	ResizedWidth int
	// ResizedHeight is the height of the content after scaling.
	ResizedHeight int
	// OriginalWidth is the source image width.
	OriginalWidth int
	// OriginalHeight is the source image height.
	OriginalHeight int
}

// ToOriginalSpace maps canvas-space corners back onto the source image.
func (r *LetterboxResult) ToOriginalSpace(c images.Corners) images.Corners {
	return images.ToOriginalSpace(c, r.Scale, r.PadLeft, r.PadTop)
}

// ToCanvasSpace maps source-image corners onto the canvas.
func (r *LetterboxResult) ToCanvasSpace(c images.Corners) images.Corners {
	return images.ToCanvasSpace(c, r.Scale, r.PadLeft, r.PadTop)
}

// SplitPadding splits a total pad between the leading (left/top) and trailing
// (right/bottom) sides.
//
// Each half is nudged by 0.1 before rounding, so an odd total puts the extra pixel on the
// trailing side: leading = round(total/2 - 0.1), trailing = round(total/2 + 0.1). Boxes
// only round-trip bit-compatibly with models exported by the Ultralytics tooling when this
// rule is matched exactly.
//
// Arguments:
//   - total: The total padding along one axis.
//
// Returns:
//   - leading: The left or top pad.
//   - trailing: The right or bottom pad.
//
// @example
// left, right := SplitPadding(1)   // 0, 1
// top, bottom := SplitPadding(280) // 140, 140
func SplitPadding(total int) (leading, trailing int) {
	half := float64(total) / 2
	return int(math.Round(half - 0.1)), int(math.Round(half + 0.1))
}

// ScaleFor returns the uniform letterbox scale min(targetW/w, targetH/h).
func ScaleFor(width, height, targetWidth, targetHeight int) float64 {
	return math.Min(float64(targetWidth)/float64(width), float64(targetHeight)/float64(height))
}

// scaledSize rounds half away from zero and keeps at least one pixel of content.
func scaledSize(size int, scale float64, limit int) int {
	n := int(math.Round(float64(size) * scale))
	if n < 1 {
		n = 1
	}
	if n > limit {
		n = limit
	}
	return n
}

// opaque drops the alpha channel of img and keeps the straight color, the way an RGB
// conversion does. Images that are already opaque are returned as is.
func opaque(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	flat := imaging.Clone(img)
	for i := 3; i < len(flat.Pix); i += 4 {
		flat.Pix[i] = 0xff
	}
	return flat
}

// Letterbox resizes img to fit a targetWidth x targetHeight canvas, preserving aspect
// ratio, and pads the remainder with pad.
//
// Arguments:
//   - img: The source image (width and height >= 1). Transparency is discarded.
//   - targetWidth: The canvas width (>= 1).
//   - targetHeight: The canvas height (>= 1).
//   - pad: The fill color. Nil selects DefaultPadColor.
//
// Returns:
//   - *LetterboxResult: The canvas plus scale and pad offsets.
//   - error: ErrInvalidInput for a nil image or non-positive dimensions.
//
// @example
// lb, err := Letterbox(img, 640, 640, nil)
//
//	if err != nil {
//	    return err
//	}
//
// tensor := ToTensor(lb.Canvas)
func Letterbox(img image.Image, targetWidth, targetHeight int, pad color.Color) (*LetterboxResult, error) {
	if img == nil {
		return nil, errors.Wrap(ErrInvalidInput, "image is nil")
	}
	if targetWidth <= 0 || targetHeight <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid target dimensions: %dx%d", targetWidth, targetHeight)
	}

	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, errors.Wrapf(ErrInvalidInput, "invalid image dimensions: %dx%d", srcWidth, srcHeight)
	}

	if pad == nil {
		pad = DefaultPadColor
	}

	scale := ScaleFor(srcWidth, srcHeight, targetWidth, targetHeight)
	newWidth := scaledSize(srcWidth, scale, targetWidth)
	newHeight := scaledSize(srcHeight, scale, targetHeight)

	padLeft, padRight := SplitPadding(targetWidth - newWidth)
	padTop, padBottom := SplitPadding(targetHeight - newHeight)

	content := opaque(img)
	if newWidth != srcWidth || newHeight != srcHeight {
		content = resize.Resize(uint(newWidth), uint(newHeight), content, resize.Bilinear)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: pad}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight),
		content, content.Bounds().Min, draw.Src)

	return &LetterboxResult{
		Canvas:         canvas,
		Scale:          scale,
		PadLeft:        padLeft,
		PadTop:         padTop,
		PadRight:       padRight,
		PadBottom:      padBottom,
		ResizedWidth:   newWidth,
		ResizedHeight:  newHeight,
		OriginalWidth:  srcWidth,
		OriginalHeight: srcHeight,
	}, nil
}

// LetterboxSquare letterboxes img onto a size x size canvas.
func LetterboxSquare(img image.Image, size int, pad color.Color) (*LetterboxResult, error) {
	return Letterbox(img, size, size, pad)
}
