package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolact/inference"
	"github.com/nvr-ai/go-yolact/logger"
	"github.com/nvr-ai/go-yolact/metrics"
	"github.com/nvr-ai/go-yolact/models"
	"github.com/nvr-ai/go-yolact/models/mask"
	"github.com/nvr-ai/go-yolact/models/model"
	"github.com/nvr-ai/go-yolact/models/yolact"
	"github.com/nvr-ai/go-yolact/util"
)

const (
	// DefaultONNXModelPath is the exported network loaded when -onnx-model is not given.
	DefaultONNXModelPath = "yolact_base_550.onnx"
)

func main() {
	var (
		configPath    string
		onnxModelPath string
		libPath       string
		backend       string
		imagePath     string
		imageDir      string
		maskDir       string
		family        string
		logMode       string
		metricsAddr   string
		protoSize     int
		numPrototypes int
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML pipeline configuration (defaults to YOLACT-550 COCO)")
	flag.StringVar(&onnxModelPath, "onnx-model", DefaultONNXModelPath, "Path to the exported YOLACT ONNX model")
	flag.StringVar(&libPath, "lib", "", "Path to the onnxruntime shared library")
	flag.StringVar(&backend, "backend", string(inference.BackendCPU), "Execution provider: cpu, coreml, openvino or cuda")
	flag.StringVar(&imagePath, "image", "", "Path to the image to segment (.jpg, .jpeg, .png)")
	flag.StringVar(&imageDir, "dir", "", "Segment every .jpg, .jpeg and .png file in this directory")
	flag.StringVar(&maskDir, "mask-dir", "", "Write one PNG per detection mask to this directory")
	flag.StringVar(&family, "family", string(models.ModelFamilyCOCO), "Label set: coco or voc")
	flag.StringVar(&logMode, "log", string(logger.ModeProduction), "Log mode: production, development or nop")
	flag.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address and keep running")
	flag.IntVar(&protoSize, "proto-size", 138, "Side of the prototype grid produced by the network")
	flag.IntVar(&numPrototypes, "num-prototypes", 32, "Number of prototypes produced by the network")
	flag.Parse()

	if err := logger.Init(logger.Mode(logMode)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log()

	if (imagePath == "") == (imageDir == "") {
		log.Fatal("exactly one of -image or -dir is required")
	}

	cfg := model.Default()
	if configPath != "" {
		var err error
		if cfg, err = model.Load(configPath); err != nil {
			log.Fatal("failed to load config", zap.String("path", configPath), zap.Error(err))
		}
	}

	labels, err := models.Classes(models.ModelFamily(family))
	if err != nil {
		log.Fatal("failed to resolve labels", zap.Error(err))
	}
	if len(labels) != cfg.NumClasses {
		log.Fatal("label set does not match num_classes",
			zap.String("family", family), zap.Int("labels", len(labels)), zap.Int("num_classes", cfg.NumClasses))
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}

	pipeline, err := yolact.NewModel(cfg, yolact.WithLogger(log), yolact.WithMetrics(collector))
	if err != nil {
		log.Fatal("failed to create pipeline", zap.Error(err))
	}

	sc := inference.DefaultSessionConfig()
	sc.ModelPath = onnxModelPath
	sc.LibraryPath = libPath
	sc.Backend = inference.Backend(backend)
	sc.ProtoSize = protoSize
	sc.NumPrototypes = numPrototypes

	session, err := inference.NewSession(cfg, sc, log)
	if err != nil {
		log.Fatal("failed to create session", zap.Error(err))
	}
	defer session.Close()

	var files []util.ImageFile
	if imageDir != "" {
		files, err = util.LoadDirectoryImages(imageDir)
	} else {
		var img image.Image
		img, err = util.LoadImage(imagePath)
		files = []util.ImageFile{{Path: imagePath, Image: img, Frame: -1}}
	}
	if err != nil {
		log.Fatal("failed to load images", zap.Error(err))
	}

	if err := run(context.Background(), log, session, pipeline, labels, files, maskDir); err != nil {
		log.Error("segmentation failed", zap.Error(err))
		return
	}

	if metricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		log.Info("serving metrics", zap.String("addr", metricsAddr))
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			log.Error("metrics server stopped", zap.Error(err))
		}
	}
}

// run infers every image in turn, post-processes them as one batch and logs (and optionally
// writes) the detections.
func run(
	ctx context.Context,
	log *zap.Logger,
	session *inference.Session,
	pipeline *yolact.Model,
	labels models.ClassSet,
	files []util.ImageFile,
	maskDir string,
) error {
	preds := make([]*yolact.Prediction, len(files))
	sizes := make([]image.Point, len(files))

	start := time.Now()
	for i, f := range files {
		pred, err := session.Run(ctx, f.Image)
		if err != nil {
			return errors.Wrap(err, f.Path)
		}
		preds[i] = pred
		sizes[i] = f.Image.Bounds().Size()
	}
	inferred := time.Since(start)

	results, err := pipeline.PostProcessBatch(preds, sizes)
	if err != nil {
		return err
	}

	log.Info("segmented images",
		zap.Int("images", len(files)),
		zap.Duration("inference", inferred),
		zap.Duration("total", time.Since(start)),
	)

	for i, dets := range results {
		if err := report(log, labels, files[i], dets, maskDir); err != nil {
			return err
		}
	}
	return nil
}

func report(log *zap.Logger, labels models.ClassSet, f util.ImageFile, dets []mask.Detection, maskDir string) error {
	log.Info("segmented image",
		zap.String("image", f.Path),
		zap.Int("width", f.Image.Bounds().Dx()),
		zap.Int("height", f.Image.Bounds().Dy()),
		zap.Int("detections", len(dets)),
	)

	stem := strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
	for i, d := range dets {
		name, err := labels.Name(d.Class)
		if err != nil {
			return err
		}
		log.Info("detection",
			zap.String("image", f.Path),
			zap.Int("index", i),
			zap.String("class", name),
			zap.Float32("score", d.Score),
			zap.Ints("box", []int{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2}),
		)

		if maskDir != "" {
			path := filepath.Join(maskDir, stem, fmt.Sprintf("%03d_%s.png", i, name))
			if err := writeMask(path, d); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeMask(path string, d mask.Detection) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create mask directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create mask file")
	}
	defer f.Close()

	return errors.Wrap(png.Encode(f, d.Mask), "encode mask")
}
