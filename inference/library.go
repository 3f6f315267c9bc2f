package inference

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// SharedLibEnv overrides the ONNX Runtime shared library location.
const SharedLibEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// SharedLibPath returns the ONNX Runtime shared library for the current platform.
//
// Arguments:
//   - configured: An explicit path; wins over the environment and platform defaults.
//
// Returns:
//   - string: The library path.
//   - error: An error if the platform has no known default.
func SharedLibPath(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if env := os.Getenv(SharedLibEnv); env != "" {
		return env, nil
	}

	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}

	return "", errors.Errorf("no onnxruntime library known for %s/%s, set %s",
		runtime.GOOS, runtime.GOARCH, SharedLibEnv)
}
