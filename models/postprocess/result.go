// Package postprocess - Postprocessing utilities for models.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-yolo/images"
)

// Detection represents a single decoded candidate.
//
// Box is in the coordinate space of the canvas that produced the raw output (padded
// canvas pixels for letterboxed input). ClassID is resolved against a label set by the
// reporting layer, never here.
type Detection struct {
	// The center-form bounding box.
	Box images.Box
	// The predicted class index.
	ClassID int
	// The highest class score of the anchor.
	Confidence float32
	// The index of the anchor row this detection was read from.
	Anchor int
}

// Corners returns the detection box in corner form.
func (d Detection) Corners() images.Corners {
	return d.Box.ToCorners()
}

func (d Detection) String() string {
	return fmt.Sprintf("class %d (confidence %f): %s", d.ClassID, d.Confidence, d.Box)
}
