package geometry

import (
	"runtime"
	"sync"
)

// IoU (Intersection over Union) measures the overlap of two boxes as the ratio between the
// area they share and the area they cover together:
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the boxes are identical and 0.0 means they do not overlap. The
// union is computed with inclusion-exclusion, Area(A) + Area(B) - Area(A ∩ B), so the
// shared region is only counted once.
//
// Degenerate inputs (zero-area boxes, zero union) yield 0 rather than a division fault.
//
// Arguments:
//   - a: The first box (corner form).
//   - b: The second box (corner form).
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	a := Box{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}
//	b := Box{X1: 0.25, Y1: 0.25, X2: 0.75, Y2: 0.75}
//
//	iou := IoU(a, b) // intersection 0.0625, union 0.4375. Output: 0.142857
//
// ```
func IoU(a, b Box) float32 {
	inter := intersection(a, b)
	if inter <= 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func intersection(a, b Box) float32 {
	w := min(a.X2, b.X2) - max(a.X1, b.X1)
	h := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Intersect returns the len(a)×len(b) matrix of pairwise intersection areas. Boxes that do
// not overlap contribute 0, never a negative area.
func Intersect(a, b []Box) [][]float32 {
	out := make([][]float32, len(a))
	for i := range a {
		row := make([]float32, len(b))
		for j := range b {
			row[j] = intersection(a[i], b[j])
		}
		out[i] = row
	}
	return out
}

// IntersectBatch is the batched form of Intersect: a[n] is compared against b[n] for every
// n of the outer dimension.
func IntersectBatch(a, b [][]Box) [][][]float32 {
	out := make([][][]float32, len(a))
	for n := range a {
		out[n] = Intersect(a[n], b[n])
	}
	return out
}

// Jaccard returns the len(a)×len(b) IoU matrix between two box lists.
//
// Arguments:
//   - a: Boxes in corner form, typically ground truth.
//   - b: Boxes in corner form, typically anchors.
//
// Returns:
//   - [][]float32: out[i][j] = IoU(a[i], b[j]).
func Jaccard(a, b []Box) [][]float32 {
	areaB := make([]float32, len(b))
	for j := range b {
		areaB[j] = b[j].Area()
	}

	inter := Intersect(a, b)
	for i := range a {
		areaA := a[i].Area()
		row := inter[i]
		for j := range row {
			if row[j] <= 0 {
				row[j] = 0
				continue
			}
			union := areaA + areaB[j] - row[j]
			if union <= 0 {
				row[j] = 0
				continue
			}
			row[j] /= union
		}
	}
	return inter
}

// JaccardBatch is the batched form of Jaccard. Every outer entry is independent, so the
// entries are evaluated concurrently on up to GOMAXPROCS goroutines.
//
// Arguments:
//   - a: Outer batch of box lists.
//   - b: Outer batch of box lists, len(b) == len(a).
//
// Returns:
//   - [][][]float32: out[n] = Jaccard(a[n], b[n]).
func JaccardBatch(a, b [][]Box) [][][]float32 {
	out := make([][][]float32, len(a))
	if len(a) == 0 {
		return out
	}

	workers := min(runtime.GOMAXPROCS(0), len(a))
	jobs := make(chan int, len(a))
	for n := range a {
		jobs <- n
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				out[n] = Jaccard(a[n], b[n])
			}
		}()
	}
	wg.Wait()

	return out
}

// BoxIoU is the evaluation-side name for Jaccard.
func BoxIoU(a, b []Box) [][]float32 {
	return Jaccard(a, b)
}
