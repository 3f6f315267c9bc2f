package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolo/images"
)

// BoxFeatures is the number of geometry values (cx, cy, w, h) leading every anchor row.
const BoxFeatures = 4

var (
	// ErrInvalidShape is returned when an anchor row is not exactly 4+numClasses long.
	ErrInvalidShape = errors.New("invalid shape")
	// ErrUnsupportedLayout is returned when raw output cannot be normalized to anchor rows.
	ErrUnsupportedLayout = errors.New("unsupported layout")
)

// Layout is the memory order of a raw detection tensor.
//
// It is a property of the exported model and is fixed at configuration time; the decoder
// never guesses it from the data.
type Layout string

const (
	// LayoutAnchorMajor is numAnchors x (4+numClasses): one contiguous row per anchor.
	LayoutAnchorMajor Layout = "anchor_major"
	// LayoutFeatureMajor is (4+numClasses) x numAnchors, the YOLOv8/v11 ONNX export order.
	LayoutFeatureMajor Layout = "feature_major"
)

// ParseLayout converts a configuration string into a Layout.
//
// Arguments:
//   - s: "anchor_major" or "feature_major".
//
// Returns:
//   - Layout: The parsed layout.
//   - error: ErrUnsupportedLayout for anything else.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(s); l {
	case LayoutAnchorMajor, LayoutFeatureMajor:
		return l, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedLayout, "unknown layout %q", s)
	}
}

// Decoder turns raw per-anchor score tensors into detections.
type Decoder struct {
	// NumClasses is the class count of the trained model.
	NumClasses int
	// Layout is the memory order of the raw output.
	Layout Layout
}

// NewDecoder creates a decoder for a model with numClasses classes.
//
// Arguments:
//   - numClasses: The class count (>= 1).
//   - layout: The raw output memory order.
//
// Returns:
//   - *Decoder: The decoder.
//   - error: ErrInvalidShape for a non-positive class count, ErrUnsupportedLayout for an
//     unknown layout.
func NewDecoder(numClasses int, layout Layout) (*Decoder, error) {
	if numClasses < 1 {
		return nil, errors.Wrapf(ErrInvalidShape, "num classes must be positive, got %d", numClasses)
	}
	if _, err := ParseLayout(string(layout)); err != nil {
		return nil, err
	}
	return &Decoder{NumClasses: numClasses, Layout: layout}, nil
}

// RowLength returns the per-anchor feature count, 4+NumClasses.
func (d *Decoder) RowLength() int {
	return BoxFeatures + d.NumClasses
}

// Decode scores every anchor of a flat raw output and keeps those above confThreshold.
//
// For each anchor the class is the argmax over the trailing NumClasses scores (ties go
// to the lowest index) and the confidence is the max score. Anchors are kept only when
// confidence > confThreshold, in their original index order. No suppression of
// overlapping boxes is performed here; see ApplyGreedyNMS.
//
// Arguments:
//   - raw: The flat output tensor in the decoder's Layout.
//   - confThreshold: The strict confidence cutoff.
//
// Returns:
//   - []Detection: Kept anchors, possibly empty.
//   - error: ErrUnsupportedLayout or ErrInvalidShape.
func (d *Decoder) Decode(raw []float32, confThreshold float32) ([]Detection, error) {
	rows, err := d.anchorRows(raw)
	if err != nil {
		return nil, err
	}

	rowLen := d.RowLength()
	numAnchors := len(rows) / rowLen
	detections := make([]Detection, 0)

	for i := 0; i < numAnchors; i++ {
		if det, ok := d.scoreRow(rows[i*rowLen:(i+1)*rowLen], i, confThreshold); ok {
			detections = append(detections, det)
		}
	}

	return detections, nil
}

// DecodeTensor validates an engine-reported shape against the decoder's Layout and
// decodes raw.
//
// Accepted shapes are [F, N] or [1, F, N] for LayoutFeatureMajor and [N, F] or
// [1, N, F] for LayoutAnchorMajor, where F = 4+NumClasses.
//
// Arguments:
//   - raw: The flat output tensor.
//   - shape: The tensor shape reported by the inference engine.
//   - confThreshold: The strict confidence cutoff.
//
// Returns:
//   - []Detection: Kept anchors, possibly empty.
//   - error: ErrUnsupportedLayout for a bad rank or batch, ErrInvalidShape for a feature
//     dimension or element count mismatch.
func (d *Decoder) DecodeTensor(raw []float32, shape []int64, confThreshold float32) ([]Detection, error) {
	var dims []int64
	switch len(shape) {
	case 2:
		dims = shape
	case 3:
		if shape[0] != 1 {
			return nil, errors.Wrapf(ErrUnsupportedLayout, "batch size must be 1, got shape %v", shape)
		}
		dims = shape[1:]
	default:
		return nil, errors.Wrapf(ErrUnsupportedLayout, "expected rank 2 or 3 output, got shape %v", shape)
	}

	var features int64
	switch d.Layout {
	case LayoutFeatureMajor:
		features = dims[0]
	case LayoutAnchorMajor:
		features = dims[1]
	default:
		return nil, errors.Wrapf(ErrUnsupportedLayout, "unknown layout %q", d.Layout)
	}

	if features != int64(d.RowLength()) {
		return nil, errors.Wrapf(ErrInvalidShape, "row length %d does not match 4+%d classes (shape %v)",
			features, d.NumClasses, shape)
	}
	if dims[0]*dims[1] != int64(len(raw)) {
		return nil, errors.Wrapf(ErrInvalidShape, "shape %v holds %d values, got %d",
			shape, dims[0]*dims[1], len(raw))
	}

	return d.Decode(raw, confThreshold)
}

// anchorRows normalizes raw into anchor-major order.
func (d *Decoder) anchorRows(raw []float32) ([]float32, error) {
	rowLen := d.RowLength()
	if d.NumClasses < 1 {
		return nil, errors.Wrapf(ErrInvalidShape, "num classes must be positive, got %d", d.NumClasses)
	}
	if len(raw)%rowLen != 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "output length %d is not a multiple of 4+%d classes",
			len(raw), d.NumClasses)
	}

	switch d.Layout {
	case LayoutAnchorMajor:
		return raw, nil
	case LayoutFeatureMajor:
		return transpose(raw, rowLen, len(raw)/rowLen)
	default:
		return nil, errors.Wrapf(ErrUnsupportedLayout, "unknown layout %q", d.Layout)
	}
}

// transpose converts a rows x cols matrix into cols x rows without touching raw.
func transpose(raw []float32, rows, cols int) ([]float32, error) {
	if rows == 0 || cols == 0 {
		return raw, nil
	}

	t := tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(raw))
	transposed, err := tensor.Transpose(t, 1, 0)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedLayout, "transpose %dx%d: %v", rows, cols, err)
	}

	data, ok := transposed.Data().([]float32)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedLayout, "unexpected tensor data type %T", transposed.Data())
	}
	return data, nil
}

// scoreRow picks the best class of one anchor row and applies the threshold.
func (d *Decoder) scoreRow(row []float32, anchor int, confThreshold float32) (Detection, bool) {
	scores := row[BoxFeatures:]

	classID := 0
	confidence := scores[0]
	for c := 1; c < len(scores); c++ {
		if scores[c] > confidence {
			confidence = scores[c]
			classID = c
		}
	}

	// NaN scores never pass.
	if !(confidence > confThreshold) {
		return Detection{}, false
	}

	return Detection{
		Box: images.Box{
			CX: row[0],
			CY: row[1],
			W:  row[2],
			H:  row[3],
		},
		ClassID:    classID,
		Confidence: confidence,
		Anchor:     anchor,
	}, true
}
