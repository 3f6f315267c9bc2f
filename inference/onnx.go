package inference

import (
	"context"
	"os"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/models/preprocess"
)

// ONNXConfig describes a fixed-shape detection model exported to ONNX.
type ONNXConfig struct {
	// ModelPath is the .onnx file.
	ModelPath string
	// InputName is the input node, "images" for Ultralytics exports.
	InputName string
	// OutputName is the output node, "output0" for Ultralytics exports.
	OutputName string
	// InputSize is the square input side S of a (1, 3, S, S) tensor.
	InputSize int
	// NumClasses is the class count C.
	NumClasses int
	// NumAnchors is the anchor count N, 8400 for a 640 input.
	NumAnchors int
	// Layout is the memory order of the (1, 4+C, N) or (1, N, 4+C) output.
	Layout postprocess.Layout
	// SharedLibPath is the onnxruntime library; see SharedLibPath.
	SharedLibPath string
	// Provider selects the execution provider.
	Provider ProviderConfig
}

// OutputShape returns the output tensor shape implied by the configuration.
func (c ONNXConfig) OutputShape() ort.Shape {
	features := int64(postprocess.BoxFeatures + c.NumClasses)
	if c.Layout == postprocess.LayoutAnchorMajor {
		return ort.NewShape(1, int64(c.NumAnchors), features)
	}
	return ort.NewShape(1, features, int64(c.NumAnchors))
}

func (c ONNXConfig) validate() error {
	if c.ModelPath == "" {
		return errors.New("model path is required")
	}
	if c.InputSize <= 0 || c.NumClasses <= 0 || c.NumAnchors <= 0 {
		return errors.Errorf("input size, classes and anchors must be positive, got %d/%d/%d",
			c.InputSize, c.NumClasses, c.NumAnchors)
	}
	if _, err := postprocess.ParseLayout(string(c.Layout)); err != nil {
		return err
	}
	return nil
}

// ONNXEngine runs a detection model through an ONNX Runtime AdvancedSession with
// preallocated input and output tensors. It is single-flight: callers must serialize Run.
type ONNXEngine struct {
	config  ONNXConfig
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	logger  *zap.Logger
}

// NewONNXEngine loads the model and binds its tensors.
//
// Arguments:
//   - config: The model description.
//   - logger: The logger; nil disables logging.
//
// Returns:
//   - *ONNXEngine: The engine. Close must be called to release native resources.
//   - error: An error if the runtime or model cannot be loaded.
func NewONNXEngine(config ONNXConfig, logger *zap.Logger) (*ONNXEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.InputName == "" {
		config.InputName = "images"
	}
	if config.OutputName == "" {
		config.OutputName = "output0"
	}
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid onnx config")
	}

	libPath, err := SharedLibPath(config.SharedLibPath)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}

	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initialize onnxruntime environment")
		}
	}

	size := int64(config.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](config.OutputShape())
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if err := configureSession(options, config.Provider); err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		config.ModelPath,
		[]string{config.InputName},
		[]string{config.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "create session for %s", config.ModelPath)
	}

	logger.Info("onnx engine ready",
		zap.String("model", config.ModelPath),
		zap.Int("input_size", config.InputSize),
		zap.Int64s("output_shape", config.OutputShape()),
		zap.String("provider", string(config.Provider.Backend)),
	)

	return &ONNXEngine{
		config:  config,
		session: session,
		input:   input,
		output:  output,
		logger:  logger,
	}, nil
}

// Config returns the engine's model description.
func (e *ONNXEngine) Config() ONNXConfig {
	return e.config
}

// Run copies input into the bound tensor, executes the session and returns a copy of the
// output so the result outlives the next call.
func (e *ONNXEngine) Run(ctx context.Context, input *preprocess.Tensor) (*RawOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.session == nil {
		return nil, errors.New("onnx engine is closed")
	}

	want := e.input.GetShape()
	if !sameShape(want, input.Shape) {
		return nil, errors.Errorf("input shape %v does not match model input %v", input.Shape, want)
	}
	copy(e.input.GetData(), input.Data)

	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run onnx session")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &RawOutput{
		Data:  append([]float32(nil), e.output.GetData()...),
		Shape: append([]int64(nil), e.output.GetShape()...),
	}, nil
}

// Close releases the session and its tensors.
func (e *ONNXEngine) Close() error {
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
	if e.session != nil {
		err := e.session.Destroy()
		e.session = nil
		if err != nil {
			return errors.Wrap(err, "destroy onnx session")
		}
	}
	return nil
}

func sameShape(a ort.Shape, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
