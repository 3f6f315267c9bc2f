// Package config - YAML configuration for the detection pipeline.
package config

import (
	"bytes"
	"image/color"
	"io"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolo/inference"
	"github.com/nvr-ai/go-yolo/models/postprocess"
	"github.com/nvr-ai/go-yolo/report"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid config")

// NMSConfig controls suppression of overlapping detections.
type NMSConfig struct {
	Enabled    bool `json:"enabled"     yaml:"enabled"`
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	NumWorkers int  `json:"num_workers" yaml:"num_workers"`
}

// ModelConfig describes the exported ONNX model.
type ModelConfig struct {
	Path          string                   `json:"path"            yaml:"path"`
	InputName     string                   `json:"input_name"      yaml:"input_name"`
	OutputName    string                   `json:"output_name"     yaml:"output_name"`
	NumAnchors    int                      `json:"num_anchors"     yaml:"num_anchors"`
	SharedLibPath string                   `json:"shared_lib_path" yaml:"shared_lib_path"`
	Provider      inference.ProviderConfig `json:"provider"        yaml:"provider"`
}

// Config holds everything needed to letterbox, infer, decode and report.
type Config struct {
	TargetSize    int         `json:"target_size"    yaml:"target_size"`
	PadColor      string      `json:"pad_color"      yaml:"pad_color"`
	ConfThreshold float32     `json:"conf_threshold" yaml:"conf_threshold"`
	IoUThreshold  float32     `json:"iou_threshold"  yaml:"iou_threshold"`
	NumClasses    int         `json:"num_classes"    yaml:"num_classes"`
	ClassNames    []string    `json:"class_names"    yaml:"class_names"`
	ClassSet      string      `json:"class_set"      yaml:"class_set"`
	Layout        string      `json:"layout"         yaml:"layout"`
	Clamp         bool        `json:"clamp"          yaml:"clamp"`
	NMS           NMSConfig   `json:"nms"            yaml:"nms"`
	Model         ModelConfig `json:"model"          yaml:"model"`
	LogLevel      string      `json:"log_level"      yaml:"log_level"`
}

// DefaultConfig returns a Config populated with the YOLO export defaults. NumClasses has
// no default and must be set.
func DefaultConfig() *Config {
	return &Config{
		TargetSize:    640,
		PadColor:      "#727272",
		ConfThreshold: 0.25,
		IoUThreshold:  0.45,
		Layout:        string(postprocess.LayoutFeatureMajor),
		Clamp:         true,
		NMS: NMSConfig{
			Enabled:    true,
			ClassAware: true,
			NumWorkers: 1,
		},
		Model: ModelConfig{
			InputName:  "images",
			OutputName: "output0",
		},
		LogLevel: "info",
	}
}

// Validate fills derived values and rejects anything out of range.
//
// Returns:
//   - error: ErrInvalidConfig wrapped with the offending field.
func (c *Config) Validate() error {
	if c.ClassSet != "" && len(c.ClassNames) == 0 {
		labels, ok := report.Preset(c.ClassSet)
		if !ok {
			return errors.Wrapf(ErrInvalidConfig, "unknown class_set %q", c.ClassSet)
		}
		c.ClassNames = labels
	}
	if c.NumClasses == 0 && len(c.ClassNames) > 0 {
		c.NumClasses = len(c.ClassNames)
	}
	if c.NumClasses <= 0 {
		return errors.Wrap(ErrInvalidConfig, "num_classes is required")
	}
	if len(c.ClassNames) > c.NumClasses {
		return errors.Wrapf(ErrInvalidConfig, "%d class names for %d classes", len(c.ClassNames), c.NumClasses)
	}
	if c.TargetSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "target_size must be positive, got %d", c.TargetSize)
	}
	if c.ConfThreshold < 0 || c.ConfThreshold >= 1 {
		return errors.Wrapf(ErrInvalidConfig, "conf_threshold must be in [0, 1), got %v", c.ConfThreshold)
	}
	if c.IoUThreshold <= 0 || c.IoUThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfig, "iou_threshold must be in (0, 1], got %v", c.IoUThreshold)
	}
	if _, err := c.PadRGBA(); err != nil {
		return err
	}
	if _, err := postprocess.ParseLayout(c.Layout); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "layout: %v", err)
	}
	if _, err := inference.ParseProviderBackend(string(c.Model.Provider.Backend)); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "model.provider: %v", err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "log_level: %v", err)
	}
	if c.Model.NumAnchors == 0 {
		c.Model.NumAnchors = AnchorCount(c.TargetSize)
	}
	if c.Model.NumAnchors < 0 {
		return errors.Wrapf(ErrInvalidConfig, "model.num_anchors must be positive, got %d", c.Model.NumAnchors)
	}
	if c.NMS.NumWorkers < 1 {
		c.NMS.NumWorkers = 1
	}
	return nil
}

// AnchorCount returns the anchor count of a stride 8/16/32 head at a square input size,
// 8400 for 640.
func AnchorCount(size int) int {
	count := 0
	for _, stride := range []int{8, 16, 32} {
		side := size / stride
		count += side * side
	}
	return count
}

// PadRGBA parses PadColor as an opaque color.
func (c *Config) PadRGBA() (color.RGBA, error) {
	parsed, err := colorful.Hex(c.PadColor)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(ErrInvalidConfig, "pad_color %q: %v", c.PadColor, err)
	}
	r, g, b := parsed.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// DecoderLayout returns the parsed output layout.
func (c *Config) DecoderLayout() postprocess.Layout {
	return postprocess.Layout(c.Layout)
}

// NMSOptions returns the suppression settings for postprocess.Apply.
func (c *Config) NMSOptions() *postprocess.NMSConfig {
	return &postprocess.NMSConfig{
		Greedy:       c.NMS.NumWorkers <= 1,
		IoUThreshold: c.IoUThreshold,
		ClassAware:   c.NMS.ClassAware,
		NumWorkers:   c.NMS.NumWorkers,
	}
}

// ONNX returns the engine description for inference.NewONNXEngine.
func (c *Config) ONNX() inference.ONNXConfig {
	return inference.ONNXConfig{
		ModelPath:     c.Model.Path,
		InputName:     c.Model.InputName,
		OutputName:    c.Model.OutputName,
		InputSize:     c.TargetSize,
		NumClasses:    c.NumClasses,
		NumAnchors:    c.Model.NumAnchors,
		Layout:        c.DecoderLayout(),
		SharedLibPath: c.Model.SharedLibPath,
		Provider:      c.Model.Provider,
	}
}

// Logger builds a production zap logger at LogLevel.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "log_level: %v", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	zc.Encoding = "console"
	return zc.Build()
}

// Parse decodes YAML over DefaultConfig and validates the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(ErrInvalidConfig, "decode yaml: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}
