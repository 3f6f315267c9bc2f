package preprocess

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ModelConfig defines preprocessing configuration for a specific model.
type ModelConfig struct {
	// Name of the model for debugging purposes.
	Name string
	// InputWidth is the expected width of the model input.
	InputWidth int
	// InputHeight is the expected height of the model input.
	InputHeight int
	// LetterboxColor is the color used for letterbox padding.
	LetterboxColor color.Color
}

// PreprocessingResult contains the preprocessed tensor and the letterbox that produced it.
type PreprocessingResult struct {
	// Tensor is the model input, shape [1, 3, InputHeight, InputWidth].
	Tensor *Tensor
	// Letterbox holds the canvas, scale and pad offsets for inverting detections.
	Letterbox *LetterboxResult
}

// Preprocessor letterboxes and packs images for a fixed-shape model.
//
// A Preprocessor holds no per-image state and is safe for concurrent use.
type Preprocessor struct {
	config *ModelConfig
	logger *zap.Logger
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The model-specific preprocessing configuration.
// - logger: Debug logger; nil disables logging.
//
// Returns:
// - A configured Preprocessor instance.
//
// @example
// preprocessor := NewPreprocessor(GetYOLOConfig(640), zap.NewNop())
func NewPreprocessor(config *ModelConfig, logger *zap.Logger) *Preprocessor {
	if config.LetterboxColor == nil {
		config.LetterboxColor = DefaultPadColor
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Preprocessor{
		config: config,
		logger: logger,
	}
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() ModelConfig {
	return *p.config
}

// Preprocess letterboxes img and packs the canvas into a tensor.
//
// Arguments:
// - img: The decoded input image.
//
// Returns:
// - PreprocessingResult containing the tensor and letterbox parameters.
// - error if the image or configured dimensions are invalid.
//
// @example
// result, err := preprocessor.Preprocess(img)
//
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// tensor := result.Tensor
func (p *Preprocessor) Preprocess(img image.Image) (*PreprocessingResult, error) {
	lb, err := Letterbox(img, p.config.InputWidth, p.config.InputHeight, p.config.LetterboxColor)
	if err != nil {
		return nil, errors.Wrap(err, "letterbox failed")
	}

	p.logger.Debug("letterboxed image",
		zap.String("model", p.config.Name),
		zap.Int("original_width", lb.OriginalWidth),
		zap.Int("original_height", lb.OriginalHeight),
		zap.Int("resized_width", lb.ResizedWidth),
		zap.Int("resized_height", lb.ResizedHeight),
		zap.Float64("scale", lb.Scale),
		zap.Int("pad_left", lb.PadLeft),
		zap.Int("pad_top", lb.PadTop),
	)

	tensor := ToTensor(lb.Canvas)

	p.logger.Debug("packed tensor", zap.Int64s("shape", tensor.Shape))

	return &PreprocessingResult{
		Tensor:    tensor,
		Letterbox: lb,
	}, nil
}

// GetYOLOConfig returns the standard configuration for Ultralytics YOLO exports.
//
// Arguments:
// - inputSize: The square input size (typically 640).
//
// Returns:
// - A configured ModelConfig with the mid-gray letterbox fill.
//
// @example
// config := GetYOLOConfig(640)
// preprocessor := NewPreprocessor(config, nil)
func GetYOLOConfig(inputSize int) *ModelConfig {
	return &ModelConfig{
		Name:           "yolo",
		InputWidth:     inputSize,
		InputHeight:    inputSize,
		LetterboxColor: DefaultPadColor,
	}
}
