package inference

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolact/models/model"
	"github.com/nvr-ai/go-yolact/models/yolact"
)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the shared library and initializes ONNX Runtime once per process.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Session runs an exported YOLACT network on preallocated tensors. Run calls are serialized.
type Session struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	size    int
	shapes  [4][]int
	log     *zap.Logger
}

// headShapes returns the per-image shapes of the class, box, coefficient and prototype heads.
func headShapes(cfg model.Config, sc SessionConfig) [4][]int {
	a := cfg.NumAnchors()
	return [4][]int{
		{a, cfg.NumClasses + 1},
		{a, 4},
		{a, sc.NumPrototypes},
		{sc.ProtoSize, sc.ProtoSize, sc.NumPrototypes},
	}
}

// NewSession loads the model and binds its input and output tensors.
//
// Arguments:
//   - cfg: The pipeline configuration (input size, anchor and class counts).
//   - sc: The exported graph layout and runtime options.
//   - log: Logger for session lifecycle events; nil disables logging.
//
// Returns:
//   - *Session: A session ready to Run. The caller must Close it.
//   - error: If the library or model cannot be loaded.
func NewSession(cfg model.Config, sc SessionConfig, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := sc.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid session config")
	}

	libPath := sc.LibraryPath
	if libPath == "" {
		var err error
		if libPath, err = SharedLibPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(libPath); err != nil {
		return nil, errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, errors.Wrap(err, "initialize onnxruntime")
	}

	s := &Session{size: cfg.ImgSize, shapes: headShapes(cfg, sc), log: log}

	var err error
	s.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(cfg.ImgSize), int64(cfg.ImgSize)))
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	for _, shape := range s.shapes {
		dims := []int64{1}
		for _, d := range shape {
			dims = append(dims, int64(d))
		}
		out, err := ort.NewEmptyTensor[float32](ort.NewShape(dims...))
		if err != nil {
			s.Close()
			return nil, errors.Wrap(err, "create output tensor")
		}
		s.outputs = append(s.outputs, out)
	}

	options, err := sessionOptions(sc)
	if err != nil {
		s.Close()
		return nil, err
	}
	defer options.Destroy()

	outputs := make([]ort.ArbitraryTensor, len(s.outputs))
	for i, o := range s.outputs {
		outputs[i] = o
	}
	s.session, err = ort.NewAdvancedSession(
		sc.ModelPath,
		[]string{sc.Input},
		sc.Outputs.Names(),
		[]ort.ArbitraryTensor{s.input},
		outputs,
		options,
	)
	if err != nil {
		s.Close()
		return nil, errors.Wrap(err, "create onnxruntime session")
	}

	log.Info("onnx session ready",
		zap.String("model", sc.ModelPath),
		zap.String("backend", string(sc.Backend)),
		zap.Int("anchors", cfg.NumAnchors()),
	)
	return s, nil
}

func sessionOptions(sc SessionConfig) (*ort.SessionOptions, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}
	fail := func(err error, msg string) (*ort.SessionOptions, error) {
		options.Destroy()
		return nil, errors.Wrap(err, msg)
	}

	if err := options.SetIntraOpNumThreads(sc.IntraOpThreads); err != nil {
		return fail(err, "set intra-op threads")
	}
	if err := options.SetInterOpNumThreads(sc.InterOpThreads); err != nil {
		return fail(err, "set inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return fail(err, "set optimization level")
	}

	switch sc.Backend {
	case BackendCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return fail(err, "enable CoreML")
		}
	case BackendOpenVINO:
		if err := options.AppendExecutionProviderOpenVINO(map[string]string{
			"device_type": "CPU",
			"precision":   "FP32",
		}); err != nil {
			return fail(err, "enable OpenVINO")
		}
	case BackendCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fail(err, "create CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
			return fail(err, "configure CUDA")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return fail(err, "enable CUDA")
		}
	}
	return options, nil
}

// Run preprocesses img, runs the network and returns a copy of its heads.
//
// Arguments:
//   - ctx: Checked before inference starts; a running inference is not interrupted.
//   - img: The image to segment.
//
// Returns:
//   - *yolact.Prediction: Heads with the batch dimension removed.
//   - error: If ctx is done, preprocessing fails or the runtime reports an error.
func (s *Session) Run(ctx context.Context, img image.Image) (*yolact.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	if err := PrepareInput(img, s.size, s.input.GetData()); err != nil {
		return nil, errors.Wrap(err, "prepare input")
	}
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run inference")
	}

	heads := make([][]float32, len(s.outputs))
	for i, o := range s.outputs {
		heads[i] = o.GetData()
	}
	return toPrediction(heads, s.shapes)
}

// toPrediction copies the raw output buffers into tensors of the given per-image shapes.
func toPrediction(heads [][]float32, shapes [4][]int) (*yolact.Prediction, error) {
	if len(heads) != len(shapes) {
		return nil, errors.Errorf("got %d heads, want %d", len(heads), len(shapes))
	}

	dense := make([]*tensor.Dense, len(shapes))
	for i, shape := range shapes {
		n := tensor.Shape(shape).TotalSize()
		if len(heads[i]) != n {
			return nil, errors.Errorf("head %d holds %d values, want %d for shape %v", i, len(heads[i]), n, shape)
		}
		data := make([]float32, n)
		copy(data, heads[i])
		dense[i] = tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
	}

	return &yolact.Prediction{
		Classes: dense[0],
		Boxes:   dense[1],
		Coefs:   dense[2],
		Protos:  dense[3],
	}, nil
}

// Close releases the session and its tensors. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	for _, o := range s.outputs {
		o.Destroy()
	}
	s.outputs = nil
}
