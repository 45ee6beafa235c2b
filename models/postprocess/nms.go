package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-yolact/geometry"
	"github.com/nvr-ai/go-yolact/models/model"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	Greedy          bool    // If true, use sequential greedy NMS instead of Fast NMS.
	IoUThreshold    float32 // Overlap threshold for suppression.
	ScoreThreshold  float32 // Score threshold of the optional second pass.
	SecondThreshold bool    // If true, drop candidates scoring at or below ScoreThreshold after NMS.
	ClassAware      bool    // If true, suppress only within same class (greedy only).
	TopK            int     // Candidates per class entering NMS.
	MaxDetections   int     // Candidates kept across all classes.
}

// NewNMSConfig extracts the NMS knobs from the model configuration.
func NewNMSConfig(cfg model.Config) *NMSConfig {
	return &NMSConfig{
		Greedy:          cfg.Greedy,
		IoUThreshold:    cfg.NMSIoUThreshold,
		ScoreThreshold:  cfg.NMSScoreThreshold,
		SecondThreshold: cfg.SecondThreshold,
		ClassAware:      true,
		TopK:            cfg.TopK,
		MaxDetections:   cfg.MaxDetections,
	}
}

// ranked holds one class's top-k candidates, best first, as indices into Filtered.
type ranked struct {
	idx    []int
	scores []float32
	boxes  []geometry.Box
}

// Suppress runs class-aware NMS over the filtered working set and returns the surviving
// candidates sorted by descending score, truncated to MaxDetections.
//
// Arguments:
//   - f: The output of Filter.
//   - config: NMS configuration.
//
// Returns:
//   - Candidates: Empty() when f holds no anchors or nothing survives.
func Suppress(f *Filtered, config *NMSConfig) Candidates {
	if f.Len() == 0 {
		return Candidates{}
	}

	if config.Greedy {
		return GreedyNMS(f, config)
	}
	return FastNMS(f, config)
}

// rank sorts every class's scores in descending order and keeps the top k. Equal scores
// keep anchor order.
func rank(f *Filtered, k int) []ranked {
	out := make([]ranked, len(f.Scores))
	for c, scores := range f.Scores {
		idx := make([]int, len(scores))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return scores[idx[a]] > scores[idx[b]]
		})
		if len(idx) > k {
			idx = idx[:k]
		}

		r := ranked{
			idx:    idx,
			scores: make([]float32, len(idx)),
			boxes:  make([]geometry.Box, len(idx)),
		}
		for i, j := range idx {
			r.scores[i] = scores[j]
			r.boxes[i] = f.Boxes[j]
		}
		out[c] = r
	}
	return out
}

// FastNMS suppresses all classes in one batched step.
//
// For every class the pairwise IoU matrix of its ranked candidates is computed, the lower
// triangle and diagonal are discarded, and candidate j survives when the largest remaining
// value in column j (its overlap with any higher-scoring candidate of the same class) is
// at most IoUThreshold. Classes are independent and evaluated concurrently.
//
// Unlike the sequential algorithm, a candidate that is itself suppressed still suppresses
// the lower-scoring candidates it overlaps.
//
// Arguments:
//   - f: The output of Filter.
//   - config: NMS configuration.
//
// Returns:
//   - Candidates: Survivors of every class, merged and sorted by descending score.
func FastNMS(f *Filtered, config *NMSConfig) Candidates {
	classes := rank(f, config.TopK)
	boxes := make([][]geometry.Box, len(classes))
	for c := range classes {
		boxes[c] = classes[c].boxes
	}
	iou := geometry.JaccardBatch(boxes, boxes)

	var merged []Result
	for c, r := range classes {
		for j := range r.idx {
			var worst float32
			for i := 0; i < j; i++ {
				worst = max(worst, iou[c][i][j])
			}
			if worst > config.IoUThreshold {
				continue
			}
			if config.SecondThreshold && r.scores[j] <= config.ScoreThreshold {
				continue
			}
			merged = append(merged, Result{
				Box:   r.boxes[j],
				Score: r.scores[j],
				Class: c,
				Coef:  f.Coefs[r.idx[j]],
			})
		}
	}

	return truncate(merged, config.MaxDetections)
}

// GreedyNMS ranks every class like FastNMS, then applies the sequential greedy algorithm:
// suppressed candidates no longer suppress others.
func GreedyNMS(f *Filtered, config *NMSConfig) Candidates {
	classes := rank(f, config.TopK)
	var all []Result
	for c, r := range classes {
		for j := range r.idx {
			all = append(all, Result{
				Box:   r.boxes[j],
				Score: r.scores[j],
				Class: c,
				Coef:  f.Coefs[r.idx[j]],
			})
		}
	}
	sortByScore(all)

	kept := ApplyGreedyNMS(all, config)
	if config.SecondThreshold {
		filtered := kept[:0]
		for _, r := range kept {
			if r.Score > config.ScoreThreshold {
				filtered = append(filtered, r)
			}
		}
		kept = filtered
	}

	return truncate(kept, config.MaxDetections)
}

func truncate(results []Result, n int) Candidates {
	sortByScore(results)
	if len(results) > n {
		results = results[:n]
	}
	return fromResults(results)
}

func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration. If ClassAware, boxes only suppress boxes of their own
//     class.
//
// Returns:
//   - Filtered slice of detections. If no detections are provided, returns nil.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && detections[j].Class != anchor.Class {
				continue
			}

			// Suppress if IoU exceeds threshold
			if geometry.IoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
