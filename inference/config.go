// Package inference - ONNX Runtime adapter that turns an image into the raw YOLACT heads.
package inference

import (
	"github.com/pkg/errors"
)

// Backend is the ONNX Runtime execution provider a session runs on.
type Backend string

const (
	// BackendCPU uses the default CPU provider.
	BackendCPU Backend = "cpu"
	// BackendCoreML uses Apple's CoreML provider.
	BackendCoreML Backend = "coreml"
	// BackendOpenVINO uses Intel's OpenVINO provider.
	BackendOpenVINO Backend = "openvino"
	// BackendCUDA uses NVIDIA's CUDA provider.
	BackendCUDA Backend = "cuda"
)

// Outputs names the four output nodes of an exported YOLACT graph.
type Outputs struct {
	Classes string `json:"classes" yaml:"classes"`
	Boxes   string `json:"boxes" yaml:"boxes"`
	Coefs   string `json:"coefs" yaml:"coefs"`
	Protos  string `json:"protos" yaml:"protos"`
}

// Names returns the output names in head order.
func (o Outputs) Names() []string {
	return []string{o.Classes, o.Boxes, o.Coefs, o.Protos}
}

// SessionConfig describes the exported network.
type SessionConfig struct {
	// ModelPath is the path to the .onnx file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath overrides the onnxruntime shared library location.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Backend selects the execution provider.
	Backend Backend `json:"backend" yaml:"backend"`
	// Input is the name of the [1, 3, S, S] image input.
	Input string `json:"input" yaml:"input"`
	// Outputs are the names of the four heads.
	Outputs Outputs `json:"outputs" yaml:"outputs"`
	// ProtoSize is the side of the square prototype grid.
	ProtoSize int `json:"proto_size" yaml:"proto_size"`
	// NumPrototypes is K, the number of prototypes and mask coefficients.
	NumPrototypes int `json:"num_prototypes" yaml:"num_prototypes"`
	// IntraOpThreads and InterOpThreads size ONNX Runtime's pools (0 = runtime default).
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
}

// DefaultSessionConfig returns the layout of a YOLACT-550 export on CPU.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Backend: BackendCPU,
		Input:   "img",
		Outputs: Outputs{
			Classes: "class",
			Boxes:   "box",
			Coefs:   "coef",
			Protos:  "proto",
		},
		ProtoSize:     138,
		NumPrototypes: 32,
	}
}

// Validate checks the session configuration.
func (c SessionConfig) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model_path is required")
	}
	if c.Input == "" {
		return errors.New("input name is required")
	}
	for _, name := range c.Outputs.Names() {
		if name == "" {
			return errors.Errorf("all four output names are required, got %+v", c.Outputs)
		}
	}
	if c.ProtoSize <= 0 || c.NumPrototypes <= 0 {
		return errors.Errorf("proto_size and num_prototypes must be positive, got %d and %d", c.ProtoSize, c.NumPrototypes)
	}
	switch c.Backend {
	case BackendCPU, BackendCoreML, BackendOpenVINO, BackendCUDA:
	default:
		return errors.Errorf("unsupported backend %q", c.Backend)
	}
	return nil
}
