package images

// ToCanvasCoord maps one original-image coordinate onto the letterboxed canvas.
func ToCanvasCoord(v float32, scale float64, pad int) float32 {
	return float32(float64(v)*scale + float64(pad))
}

// ToOriginalCoord maps one canvas coordinate back to the original image:
// original = (canvas - pad) / scale.
func ToOriginalCoord(v float32, scale float64, pad int) float32 {
	return float32((float64(v) - float64(pad)) / scale)
}

// ToOriginalSpace maps canvas-space corners back to original-image corners.
//
// This is the exact inverse of the letterbox forward mapping when scale and the pad
// offsets come from the same transform call.
//
// Arguments:
//   - c: Corners in padded-canvas pixels.
//   - scale: The uniform letterbox scale.
//   - padLeft: The left pad of the canvas.
//   - padTop: The top pad of the canvas.
//
// Returns:
//   - Corners: The corners in original-image pixels (not clamped).
func ToOriginalSpace(c Corners, scale float64, padLeft, padTop int) Corners {
	return Corners{
		X1: ToOriginalCoord(c.X1, scale, padLeft),
		Y1: ToOriginalCoord(c.Y1, scale, padTop),
		X2: ToOriginalCoord(c.X2, scale, padLeft),
		Y2: ToOriginalCoord(c.Y2, scale, padTop),
	}
}

// ToCanvasSpace maps original-image corners onto the padded canvas.
func ToCanvasSpace(c Corners, scale float64, padLeft, padTop int) Corners {
	return Corners{
		X1: ToCanvasCoord(c.X1, scale, padLeft),
		Y1: ToCanvasCoord(c.Y1, scale, padTop),
		X2: ToCanvasCoord(c.X2, scale, padLeft),
		Y2: ToCanvasCoord(c.Y2, scale, padTop),
	}
}
