package geometry

import "gonum.org/v1/gonum/mat"

// MaskIoU computes the pairwise IoU between two sets of flattened masks.
//
// Every mask is a row of pixel values (binary or soft). The intersection of every pair is
// one matrix product a·bᵀ; the union follows from the per-mask sums.
//
// Arguments:
//   - a: len(a) masks of P pixels each.
//   - b: len(b) masks of P pixels each.
//
// Returns:
//   - [][]float32: The len(a)×len(b) IoU matrix. Pairs with an empty union report 0.
func MaskIoU(a, b [][]float32) [][]float32 {
	out := make([][]float32, len(a))
	if len(a) == 0 || len(b) == 0 || len(a[0]) == 0 {
		for i := range out {
			out[i] = make([]float32, len(b))
		}
		return out
	}

	ma, areaA := denseRows(a)
	mb, areaB := denseRows(b)

	var inter mat.Dense
	inter.Mul(ma, mb.T())

	for i := range a {
		row := make([]float32, len(b))
		for j := range b {
			in := inter.At(i, j)
			union := areaA[i] + areaB[j] - in
			if union <= 0 {
				continue
			}
			row[j] = float32(in / union)
		}
		out[i] = row
	}
	return out
}

func denseRows(rows [][]float32) (*mat.Dense, []float64) {
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	areas := make([]float64, len(rows))
	for i, r := range rows {
		for _, v := range r {
			data = append(data, float64(v))
			areas[i] += float64(v)
		}
	}
	return mat.NewDense(len(rows), cols, data), areas
}
