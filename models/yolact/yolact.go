// Package yolact - YOLACT post-processing pipeline: from raw network heads to final
// instances, and from ground truth to per-anchor training targets.
package yolact

import (
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolact/geometry"
	"github.com/nvr-ai/go-yolact/metrics"
	"github.com/nvr-ai/go-yolact/models/mask"
	"github.com/nvr-ai/go-yolact/models/match"
	"github.com/nvr-ai/go-yolact/models/model"
	"github.com/nvr-ai/go-yolact/models/postprocess"
)

// Option customizes a Model.
type Option func(*Model)

// WithLogger sets the logger stage counts are written to at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMetrics records every post-processed image on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Model) { m.metrics = c }
}

// Model is the instance of the YOLACT pipeline for one configuration. It holds no mutable
// state and is safe for concurrent use.
type Model struct {
	cfg     model.Config
	anchors []geometry.CenterBox
	matcher *match.Matcher
	nms     *postprocess.NMSConfig
	log     *zap.Logger
	metrics *metrics.Collector
}

// NewModel creates a new pipeline.
//
// Arguments:
//   - cfg: The configuration. It is validated and copied.
//   - opts: Optional logger and metrics.
//
// Returns:
//   - *Model: The pipeline, sharing the process-wide anchor set of cfg.
//   - error: If cfg is invalid.
//
// Example:
//
// ```go
//
//	m, err := yolact.NewModel(model.Default(), yolact.WithLogger(logger.Log()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dets, err := m.PostProcess(pred, 640, 480)
//
// ```
func NewModel(cfg model.Config, opts ...Option) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "NewModel")
	}

	anchors := cfg.Anchors()
	m := &Model{
		cfg:     cfg,
		anchors: anchors,
		matcher: match.NewMatcher(anchors, cfg),
		nms:     postprocess.NewNMSConfig(cfg),
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns the configuration of the model.
func (m *Model) Config() model.Config { return m.cfg }

// Anchors returns the shared, read-only anchor set.
func (m *Model) Anchors() []geometry.CenterBox { return m.anchors }

// PostProcess turns the raw heads of one image into final instances.
//
// Arguments:
//   - pred: The network output for the image.
//   - width, height: The original image size in pixels.
//
// Returns:
//   - []mask.Detection: Sorted by descending score. Empty (nil) when nothing survives.
//   - error: If pred does not match the configuration.
func (m *Model) PostProcess(pred *Prediction, width, height int) ([]mask.Detection, error) {
	start := time.Now()

	if err := pred.Validate(len(m.anchors), m.cfg.NumClasses); err != nil {
		return nil, errors.Wrap(err, "invalid prediction")
	}

	filtered, err := postprocess.Filter(pred.Classes, pred.Boxes, pred.Coefs, m.anchors, m.cfg.NMSScoreThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "filter")
	}

	candidates := postprocess.Suppress(filtered, m.nms)

	var dets []mask.Detection
	if !candidates.Empty() {
		dets, err = mask.Assemble(candidates, pred.Protos, width, height, m.cfg)
		if err != nil {
			return nil, errors.Wrap(err, "assemble masks")
		}
	}

	elapsed := time.Since(start)
	m.metrics.Observe(filtered.Len(), len(dets), elapsed)
	m.log.Debug("postprocess",
		zap.Int("filtered", filtered.Len()),
		zap.Int("candidates", candidates.Len()),
		zap.Int("detections", len(dets)),
		zap.Duration("elapsed", elapsed),
	)

	return dets, nil
}

// PostProcessBatch post-processes a batch on a bounded pool of NumWorkers goroutines.
//
// Arguments:
//   - preds: One prediction per image.
//   - sizes: The original (width, height) of every image, index-aligned with preds.
//
// Returns:
//   - [][]mask.Detection: Index-aligned with preds.
//   - error: The error of the lowest-indexed failing image, if any.
func (m *Model) PostProcessBatch(preds []*Prediction, sizes []image.Point) ([][]mask.Detection, error) {
	if len(preds) != len(sizes) {
		return nil, errors.Errorf("got %d predictions but %d image sizes", len(preds), len(sizes))
	}

	results := make([][]mask.Detection, len(preds))
	errs := make([]error, len(preds))

	jobs := make(chan int, len(preds))
	for i := range preds {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < min(m.cfg.NumWorkers, len(preds)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = m.PostProcess(preds[i], sizes[i].X, sizes[i].Y)
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, errors.Wrapf(err, "image %d", i)
		}
	}
	return results, nil
}

// Targets assigns training targets to the model's anchors for every image of a batch.
func (m *Model) Targets(gts []match.GroundTruth) ([]*match.Result, error) {
	return m.matcher.MatchBatch(gts)
}
