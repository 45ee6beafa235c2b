// Package model - Configuration shared by every stage of the YOLACT post-processing core.
package model

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolact/anchors"
	"github.com/nvr-ai/go-yolact/geometry"
)

// Name is the unique identifier of a model.
type Name string

const (
	// ModelNameYOLACT is the name of the YOLACT instance-segmentation model.
	ModelNameYOLACT Name = "yolact"
)

// Config is the immutable set of knobs used by anchor generation, matching, NMS and mask
// assembly. A Config is passed by value into every component; nothing mutates it after
// construction.
type Config struct {
	// Name of the model for logging purposes.
	Name Name `json:"name" yaml:"name"`
	// ImgSize is the side of the square network input in pixels.
	ImgSize int `json:"img_size" yaml:"img_size"`
	// NumClasses counts the foreground classes (background excluded).
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// AspectRatios are the anchor width/height ratios emitted per cell.
	AspectRatios []float32 `json:"aspect_ratios" yaml:"aspect_ratios"`
	// Levels are the feature-pyramid levels, in network output order.
	Levels []anchors.Level `json:"levels" yaml:"levels"`

	// PosIoUThreshold labels anchors at or above it as foreground.
	PosIoUThreshold float32 `json:"pos_iou_thre" yaml:"pos_iou_thre"`
	// NegIoUThreshold labels anchors below it as background; in between is neutral.
	NegIoUThreshold float32 `json:"neg_iou_thre" yaml:"neg_iou_thre"`

	// NMSScoreThreshold keeps anchors whose best class score exceeds it.
	NMSScoreThreshold float32 `json:"nms_score_thre" yaml:"nms_score_thre"`
	// NMSIoUThreshold suppresses same-class candidates overlapping above it.
	NMSIoUThreshold float32 `json:"nms_iou_thre" yaml:"nms_iou_thre"`
	// TopK caps the candidates per class entering NMS.
	TopK int `json:"top_k" yaml:"top_k"`
	// MaxDetections caps the detections kept across all classes.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// SecondThreshold re-applies NMSScoreThreshold to per-class scores after NMS.
	SecondThreshold bool `json:"second_threshold" yaml:"second_threshold"`
	// Greedy switches from batched Fast NMS to the sequential greedy algorithm.
	Greedy bool `json:"greedy" yaml:"greedy"`

	// VisualThreshold drops detections scoring below it before mask assembly (0 disables).
	VisualThreshold float32 `json:"visual_thre" yaml:"visual_thre"`
	// NoCrop skips cropping the assembled masks to their boxes.
	NoCrop bool `json:"no_crop" yaml:"no_crop"`
	// CropPadding expands every box by this many prototype pixels when cropping.
	CropPadding float32 `json:"crop_padding" yaml:"crop_padding"`
	// MaskThreshold binarizes the resized masks (value >= threshold is on).
	MaskThreshold float32 `json:"mask_threshold" yaml:"mask_threshold"`

	// NumWorkers bounds the goroutines used for per-image and per-class work.
	NumWorkers int `json:"num_workers" yaml:"num_workers"`
}

// Default returns the reference YOLACT-550 configuration for COCO.
//
// Returns:
//   - Config: 80 classes, five pyramid levels (19248 anchors), 0.5/0.4 matching thresholds,
//     Fast NMS at 0.5 IoU with top-k 200 and 100 detections.
func Default() Config {
	return Config{
		Name:         ModelNameYOLACT,
		ImgSize:      550,
		NumClasses:   80,
		AspectRatios: []float32{1, 0.5, 2},
		Levels: []anchors.Level{
			{Grid: anchors.Grid{Height: 69, Width: 69}, Scale: 24},
			{Grid: anchors.Grid{Height: 35, Width: 35}, Scale: 48},
			{Grid: anchors.Grid{Height: 18, Width: 18}, Scale: 96},
			{Grid: anchors.Grid{Height: 9, Width: 9}, Scale: 192},
			{Grid: anchors.Grid{Height: 5, Width: 5}, Scale: 384},
		},
		PosIoUThreshold:   0.5,
		NegIoUThreshold:   0.4,
		NMSScoreThreshold: 0.05,
		NMSIoUThreshold:   0.5,
		TopK:              200,
		MaxDetections:     100,
		VisualThreshold:   0.3,
		CropPadding:       1,
		MaskThreshold:     0.5,
		NumWorkers:        4,
	}
}

// Validate checks the configuration for values no stage can work with.
//
// Returns:
//   - error: The first violated constraint, or nil.
func (c Config) Validate() error {
	if c.ImgSize <= 0 {
		return errors.Errorf("img_size must be positive, got %d", c.ImgSize)
	}
	if c.NumClasses <= 0 {
		return errors.Errorf("num_classes must be positive, got %d", c.NumClasses)
	}
	if len(c.AspectRatios) == 0 {
		return errors.New("aspect_ratios must not be empty")
	}
	for _, r := range c.AspectRatios {
		if r <= 0 {
			return errors.Errorf("aspect ratio must be positive, got %v", r)
		}
	}
	if len(c.Levels) == 0 {
		return errors.New("levels must not be empty")
	}
	for i, l := range c.Levels {
		if l.Grid.Height <= 0 || l.Grid.Width <= 0 || l.Scale <= 0 {
			return errors.Errorf("level %d is invalid: %dx%d scale %v", i, l.Grid.Height, l.Grid.Width, l.Scale)
		}
	}
	if c.PosIoUThreshold <= c.NegIoUThreshold {
		return errors.Errorf("pos_iou_thre (%v) must exceed neg_iou_thre (%v)", c.PosIoUThreshold, c.NegIoUThreshold)
	}
	for name, v := range map[string]float32{
		"pos_iou_thre":   c.PosIoUThreshold,
		"neg_iou_thre":   c.NegIoUThreshold,
		"nms_iou_thre":   c.NMSIoUThreshold,
		"nms_score_thre": c.NMSScoreThreshold,
		"visual_thre":    c.VisualThreshold,
		"mask_threshold": c.MaskThreshold,
	} {
		if v < 0 || v > 1 {
			return errors.Errorf("%s must be within [0, 1], got %v", name, v)
		}
	}
	if c.TopK <= 0 {
		return errors.Errorf("top_k must be positive, got %d", c.TopK)
	}
	if c.MaxDetections <= 0 {
		return errors.Errorf("max_detections must be positive, got %d", c.MaxDetections)
	}
	if c.CropPadding < 0 {
		return errors.Errorf("crop_padding must not be negative, got %v", c.CropPadding)
	}
	if c.NumWorkers <= 0 {
		return errors.Errorf("num_workers must be positive, got %d", c.NumWorkers)
	}
	return nil
}

// NumAnchors returns the anchor count implied by the levels and aspect ratios.
func (c Config) NumAnchors() int {
	return anchors.Count(c.Levels, c.AspectRatios)
}

// Anchors returns the process-wide cached anchor set for this configuration.
func (c Config) Anchors() []geometry.CenterBox {
	return anchors.Cached(c.Levels, c.ImgSize, c.AspectRatios)
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: Path to the YAML configuration file.
//
// Returns:
//   - Config: Defaults overridden by every key present in the file.
//   - error: If the file cannot be read, parsed, or fails validation.
//
// Example:
//
// ```go
//
//	cfg, err := model.Load("configs/yolact_base.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// ```
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

// Parse decodes YAML bytes over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
