package inference

import (
	"runtime"

	"github.com/pkg/errors"
)

// SharedLibPath returns the default onnxruntime shared library path for the current platform.
//
// Returns:
//   - string: The path to the shared library.
//   - error: If no build of the library is known for this platform.
func SharedLibPath() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if runtime.GOARCH == "amd64" {
			return "../third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.1.23.0.dylib", nil
	case "linux":
		if runtime.GOARCH == "arm64" {
			return "../third_party/onnxruntime_arm64.so", nil
		}
		return "../third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library for %s/%s", runtime.GOOS, runtime.GOARCH)
}
