package inference

import (
	"fmt"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names an ONNX Runtime execution provider.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend uses Apple CoreML for macOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// CUDAProviderBackend uses NVIDIA CUDA.
	CUDAProviderBackend ProviderBackend = "cuda"
	// OpenVINOProviderBackend uses Intel OpenVINO.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ProviderConfig selects and tunes the execution provider of a session.
type ProviderConfig struct {
	// Backend is the execution provider; empty means CPU.
	Backend ProviderBackend `json:"backend" yaml:"backend"`
	// DeviceID selects the GPU for CUDA and OpenVINO.
	DeviceID string `json:"device_id" yaml:"device_id"`
	// DeviceType is the OpenVINO device, e.g. "CPU" or "GPU".
	DeviceType string `json:"device_type" yaml:"device_type"`
	// NumThreads bounds intra-op parallelism; 0 lets the runtime decide.
	NumThreads int `json:"num_threads" yaml:"num_threads"`
}

// ParseProviderBackend converts a configuration string into a ProviderBackend.
func ParseProviderBackend(s string) (ProviderBackend, error) {
	switch b := ProviderBackend(s); b {
	case "", CPUProviderBackend:
		return CPUProviderBackend, nil
	case CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend:
		return b, nil
	default:
		return "", errors.Errorf("unsupported execution provider %q", s)
	}
}

// configureSession applies threading, graph optimization and the execution provider to
// options.
func configureSession(options *ort.SessionOptions, cfg ProviderConfig) error {
	if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
		return errors.Wrap(err, "set intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}

	backend, err := ParseProviderBackend(string(cfg.Backend))
	if err != nil {
		return err
	}

	switch backend {
	case CoreMLProviderBackend:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "enable CoreML")
		}
	case OpenVINOProviderBackend:
		deviceType := cfg.DeviceType
		if deviceType == "" {
			deviceType = "CPU"
		}
		settings := map[string]string{
			"device_type": deviceType,
		}
		if cfg.DeviceID != "" {
			settings["device_id"] = cfg.DeviceID
		}
		if cfg.NumThreads > 0 {
			settings["num_of_threads"] = fmt.Sprintf("%d", cfg.NumThreads)
		}
		if err := options.AppendExecutionProviderOpenVINO(settings); err != nil {
			return errors.Wrap(err, "enable OpenVINO")
		}
	case CUDAProviderBackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "create CUDA options")
		}
		defer cuda.Destroy()

		if cfg.DeviceID != "" {
			if err := cuda.Update(map[string]string{"device_id": cfg.DeviceID}); err != nil {
				return errors.Wrap(err, "update CUDA options")
			}
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "enable CUDA")
		}
	}

	return nil
}
