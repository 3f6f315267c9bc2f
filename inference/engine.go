// Package inference - Inference engine boundary for letterboxed detection models.
package inference

import (
	"context"

	"github.com/nvr-ai/go-yolo/models/preprocess"
)

// RawOutput is the dense output tensor of a detection model.
//
// Data is always flat; Shape describes how it is laid out, e.g. [1, 84, 8400] for a
// feature-major YOLOv8/v11 export.
type RawOutput struct {
	Data  []float32
	Shape []int64
}

// Engine runs a detection model over a packed input tensor.
//
// Implementations are not required to be safe for concurrent use.
type Engine interface {
	Run(ctx context.Context, input *preprocess.Tensor) (*RawOutput, error)
	Close() error
}

// EngineFunc adapts an ordinary function to the Engine interface.
type EngineFunc func(ctx context.Context, input *preprocess.Tensor) (*RawOutput, error)

// Run calls f(ctx, input).
func (f EngineFunc) Run(ctx context.Context, input *preprocess.Tensor) (*RawOutput, error) {
	return f(ctx, input)
}

// Close is a no-op.
func (f EngineFunc) Close() error {
	return nil
}

// StaticEngine returns an Engine that always yields a copy of output.
func StaticEngine(output RawOutput) Engine {
	return EngineFunc(func(ctx context.Context, _ *preprocess.Tensor) (*RawOutput, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &RawOutput{
			Data:  append([]float32(nil), output.Data...),
			Shape: append([]int64(nil), output.Shape...),
		}, nil
	})
}
