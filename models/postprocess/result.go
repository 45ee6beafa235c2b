// Package postprocess - Score filtering and class-aware non-maximum suppression of dense
// per-anchor predictions.
package postprocess

import "github.com/nvr-ai/go-yolact/geometry"

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, normalized corner form.
	Box geometry.Box
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result (0-indexed, background excluded).
	Class int
	// The mask coefficients of the result.
	Coef []float32
}

// Filtered is the working set left after score filtering: every kept anchor with its score
// in every foreground class, its decoded box and its mask coefficients.
type Filtered struct {
	// Scores is indexed [class][kept anchor].
	Scores [][]float32
	// Boxes holds one decoded box per kept anchor.
	Boxes []geometry.Box
	// Coefs holds one coefficient vector per kept anchor.
	Coefs [][]float32
}

// Len returns the number of kept anchors.
func (f *Filtered) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Boxes)
}

// Candidates is the output of NMS: parallel slices sorted by descending score.
type Candidates struct {
	Classes []int
	Scores  []float32
	Boxes   []geometry.Box
	Coefs   [][]float32
}

// Len returns the number of candidates.
func (c Candidates) Len() int { return len(c.Scores) }

// Empty reports the "no detections" result. Callers must check it before assembling masks.
func (c Candidates) Empty() bool { return len(c.Scores) == 0 }

// Results returns the candidates as a slice of Result.
func (c Candidates) Results() []Result {
	out := make([]Result, c.Len())
	for i := range out {
		out[i] = Result{Box: c.Boxes[i], Score: c.Scores[i], Class: c.Classes[i], Coef: c.Coefs[i]}
	}
	return out
}

// Keep returns the candidates whose index satisfies keep, in order.
func (c Candidates) Keep(keep func(i int) bool) Candidates {
	var out Candidates
	for i := 0; i < c.Len(); i++ {
		if !keep(i) {
			continue
		}
		out.Classes = append(out.Classes, c.Classes[i])
		out.Scores = append(out.Scores, c.Scores[i])
		out.Boxes = append(out.Boxes, c.Boxes[i])
		out.Coefs = append(out.Coefs, c.Coefs[i])
	}
	return out
}

func fromResults(results []Result) Candidates {
	out := Candidates{
		Classes: make([]int, len(results)),
		Scores:  make([]float32, len(results)),
		Boxes:   make([]geometry.Box, len(results)),
		Coefs:   make([][]float32, len(results)),
	}
	for i, r := range results {
		out.Classes[i] = r.Class
		out.Scores[i] = r.Score
		out.Boxes[i] = r.Box
		out.Coefs[i] = r.Coef
	}
	return out
}
