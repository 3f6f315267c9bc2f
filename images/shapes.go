// Package images - Box geometry and image loading utilities.
package images

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Box is a detection box in center form, as emitted by YOLO-style heads.
type Box struct {
	// CX is the horizontal center of the box.
	CX float32 `json:"cx" yaml:"cx"`
	// CY is the vertical center of the box.
	CY float32 `json:"cy" yaml:"cy"`
	// W is the width of the box.
	W float32 `json:"w" yaml:"w"`
	// H is the height of the box.
	H float32 `json:"h" yaml:"h"`
}

// Corners is a box in (x1, y1, x2, y2) form. X2,Y2 are exclusive (like image.Rectangle).
type Corners struct {
	X1, Y1, X2, Y2 float32
}

// ToCorners converts a center-form box to corner form.
//
// No clamping is applied; corners may fall outside any image bounds.
//
// Returns:
//   - Corners: x1 = cx - w/2, y1 = cy - h/2, x2 = cx + w/2, y2 = cy + h/2.
func (b Box) ToCorners() Corners {
	return Corners{
		X1: b.CX - b.W/2,
		Y1: b.CY - b.H/2,
		X2: b.CX + b.W/2,
		Y2: b.CY + b.H/2,
	}
}

// String formats the box for logs and reports.
func (b Box) String() string {
	return fmt.Sprintf("cx=%.1f, cy=%.1f, w=%.1f, h=%.1f", b.CX, b.CY, b.W, b.H)
}

// ToBox converts corners back to center form.
//
// Returns:
//   - Box: The algebraic inverse of Box.ToCorners.
func (c Corners) ToBox() Box {
	return Box{
		CX: (c.X1 + c.X2) / 2,
		CY: (c.Y1 + c.Y2) / 2,
		W:  c.X2 - c.X1,
		H:  c.Y2 - c.Y1,
	}
}

// Width returns the horizontal extent of the corners.
func (c Corners) Width() float32 {
	return c.X2 - c.X1
}

// Height returns the vertical extent of the corners.
func (c Corners) Height() float32 {
	return c.Y2 - c.Y1
}

// Area returns the area covered by the corners, or 0 for inverted boxes.
func (c Corners) Area() float32 {
	w := c.Width()
	h := c.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Clamp limits the corners to the [0,width]x[0,height] frame.
//
// Arguments:
//   - width: The frame width.
//   - height: The frame height.
//
// Returns:
//   - Corners: The clamped corners.
func (c Corners) Clamp(width, height int) Corners {
	w := float32(width)
	h := float32(height)
	return Corners{
		X1: math32.Max(0, math32.Min(c.X1, w)),
		Y1: math32.Max(0, math32.Min(c.Y1, h)),
		X2: math32.Max(0, math32.Min(c.X2, w)),
		Y2: math32.Max(0, math32.Min(c.Y2, h)),
	}
}

// String formats the corners for logs and reports.
func (c Corners) String() string {
	return fmt.Sprintf("(%.1f, %.1f), (%.1f, %.1f)", c.X1, c.Y1, c.X2, c.Y2)
}

// CalculateIoU measures the overlap of two boxes as intersection area over union area.
//
//	IoU = Area of Intersection / Area of Union
//
// The intersection's top-left corner is the maximum of the two top-left corners and its
// bottom-right corner is the minimum of the two bottom-right corners. A non-positive
// intersection width or height means the boxes do not overlap. The union follows
// inclusion-exclusion: Area(A) + Area(B) - Area(A ∩ B).
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0. Degenerate boxes (zero union) yield 0.
//
// Example Usage:
// ```go
//
//	a := Corners{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Corners{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Corners) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
