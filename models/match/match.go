// Package match - Training-time assignment of ground truth to anchors.
package match

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-yolact/geometry"
	"github.com/nvr-ai/go-yolact/models/model"
)

// Label values below the first foreground class.
const (
	// LabelNeutral marks anchors ignored by the classification loss.
	LabelNeutral = -1
	// LabelBackground marks anchors trained as background.
	LabelBackground = 0
)

// forced is the overlap written for every ground truth's best anchor. It exceeds any real
// IoU so the anchor always clears both thresholds.
const forced float32 = 2

// GroundTruth holds the annotated objects of one image.
type GroundTruth struct {
	// Boxes in normalized corner form.
	Boxes []geometry.Box
	// Labels are 0-indexed classes, one per box, without a background entry.
	Labels []int
}

// Result holds the per-anchor training targets of one image. Every slice has one entry
// per anchor and every entry is defined, including for background and neutral anchors.
type Result struct {
	// Offsets are the encoded regression targets against the matched box.
	Offsets [][4]float32
	// Labels are LabelNeutral, LabelBackground, or the matched class + 1.
	Labels []int
	// Boxes are the matched ground-truth boxes (zero when there is no ground truth).
	Boxes []geometry.Box
	// Indices point into GroundTruth.Boxes (-1 when there is no ground truth).
	Indices []int
}

// Matcher assigns ground truth to a fixed anchor set.
type Matcher struct {
	anchors []geometry.CenterBox
	corners []geometry.Box
	pos     float32
	neg     float32
	workers int
}

// NewMatcher creates a matcher for the given anchors and thresholds.
//
// Arguments:
//   - anchors: The anchor set in center-size form. It is read, never written.
//   - cfg: Supplies PosIoUThreshold, NegIoUThreshold and NumWorkers.
//
// Returns:
//   - *Matcher: A matcher safe for concurrent use.
func NewMatcher(anchors []geometry.CenterBox, cfg model.Config) *Matcher {
	corners := make([]geometry.Box, len(anchors))
	for i, a := range anchors {
		corners[i] = a.Corners()
	}

	return &Matcher{
		anchors: anchors,
		corners: corners,
		pos:     cfg.PosIoUThreshold,
		neg:     cfg.NegIoUThreshold,
		workers: max(cfg.NumWorkers, 1),
	}
}

// Match assigns every anchor a regression target and a label for one image.
//
// Every ground-truth box first claims its best anchor (force match), in ground-truth order:
// when two boxes share a best anchor, the later box keeps it. Every other anchor takes its
// best-overlapping box and is labeled foreground at or above the positive threshold,
// background below the negative threshold and neutral in between.
//
// Arguments:
//   - gt: The image's ground truth.
//
// Returns:
//   - *Result: Per-anchor targets.
//   - error: If the number of labels does not match the number of boxes.
func (m *Matcher) Match(gt GroundTruth) (*Result, error) {
	if len(gt.Boxes) != len(gt.Labels) {
		return nil, errors.Errorf("ground truth has %d boxes but %d labels", len(gt.Boxes), len(gt.Labels))
	}

	n := len(m.anchors)
	res := &Result{
		Offsets: make([][4]float32, n),
		Labels:  make([]int, n),
		Boxes:   make([]geometry.Box, n),
		Indices: make([]int, n),
	}

	if len(gt.Boxes) == 0 {
		for i := range res.Indices {
			res.Indices[i] = -1
		}
		return res, nil
	}

	overlaps := geometry.Jaccard(gt.Boxes, m.corners)

	bestAnchor := make([]int, len(gt.Boxes))
	for g, row := range overlaps {
		bestAnchor[g] = argmax(row)
	}

	bestOverlap := make([]float32, n)
	for a := 0; a < n; a++ {
		best := 0
		for g := 1; g < len(overlaps); g++ {
			if overlaps[g][a] > overlaps[best][a] {
				best = g
			}
		}
		res.Indices[a] = best
		bestOverlap[a] = overlaps[best][a]
	}

	for g, a := range bestAnchor {
		bestOverlap[a] = forced
		res.Indices[a] = g
	}

	for a := 0; a < n; a++ {
		g := res.Indices[a]
		switch {
		case bestOverlap[a] < m.neg:
			res.Labels[a] = LabelBackground
		case bestOverlap[a] < m.pos:
			res.Labels[a] = LabelNeutral
		default:
			res.Labels[a] = gt.Labels[g] + 1
		}
		res.Boxes[a] = gt.Boxes[g]
		res.Offsets[a] = geometry.Encode(gt.Boxes[g], m.anchors[a])
	}

	return res, nil
}

// MatchBatch matches every image of a batch on a bounded pool of workers.
//
// Arguments:
//   - gts: One ground-truth set per image.
//
// Returns:
//   - []*Result: Index-aligned with gts.
//   - error: The error of the lowest-indexed failing image, if any.
func (m *Matcher) MatchBatch(gts []GroundTruth) ([]*Result, error) {
	results := make([]*Result, len(gts))
	errs := make([]error, len(gts))

	jobs := make(chan int, len(gts))
	for i := range gts {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < min(m.workers, len(gts)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i], errs[i] = m.Match(gts[i])
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

// argmax returns the index of the first maximum.
func argmax(row []float32) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}
