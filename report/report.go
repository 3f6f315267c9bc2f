// Package report - Human-readable rendering of detection results.
package report

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Labels maps class ids to names in model order.
type Labels []string

// Name returns the label of classID, or "class_<id>" when the id has no name.
func (l Labels) Name(classID int) string {
	if classID >= 0 && classID < len(l) {
		return l[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

// Primary returns the highest-confidence detection. Ties keep the earliest one.
//
// Returns:
//   - postprocess.Detection: The primary detection.
//   - bool: False when detections is empty.
func Primary(detections []postprocess.Detection) (postprocess.Detection, bool) {
	if len(detections) == 0 {
		return postprocess.Detection{}, false
	}
	best := detections[0]
	for _, det := range detections[1:] {
		if det.Confidence > best.Confidence {
			best = det
		}
	}
	return best, true
}

// Write prints one numbered entry per detection:
//
//	1. bar: 90.00%
//	   cx=640.0, cy=360.0, w=200.0, h=100.0
func Write(w io.Writer, detections []postprocess.Detection, labels Labels) error {
	if len(detections) == 0 {
		_, err := fmt.Fprintln(w, "no objects detected")
		return errors.Wrap(err, "write report")
	}

	for i, det := range detections {
		_, err := fmt.Fprintf(w, "%d. %s: %.2f%%\n   cx=%.1f, cy=%.1f, w=%.1f, h=%.1f\n",
			i+1, labels.Name(det.ClassID), det.Confidence*100,
			det.Box.CX, det.Box.CY, det.Box.W, det.Box.H)
		if err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	return nil
}
