package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolact/geometry"
)

// Filter keeps the anchors whose best foreground score exceeds threshold and decodes their
// boxes.
//
// Arguments:
//   - scores: Float32 [A, C+1] class scores; column 0 is background and is ignored.
//   - offsets: Float32 [A, 4] box regression offsets.
//   - coefs: Float32 [A, K] mask coefficients.
//   - anchors: The A anchors the predictions are relative to.
//   - threshold: Minimum (exclusive) best foreground score.
//
// Returns:
//   - *Filtered: The kept anchors. Len() == 0 when nothing survives.
//   - error: On any shape mismatch between the tensors and the anchors.
func Filter(scores, offsets, coefs *tensor.Dense, anchors []geometry.CenterBox, threshold float32) (*Filtered, error) {
	a := len(anchors)
	if err := checkMatrix("scores", scores, a, -1); err != nil {
		return nil, err
	}
	if err := checkMatrix("offsets", offsets, a, 4); err != nil {
		return nil, err
	}
	if err := checkMatrix("coefs", coefs, a, -1); err != nil {
		return nil, err
	}

	cols := scores.Shape()[1]
	if cols < 2 {
		return nil, errors.Errorf("scores need a background and at least one class column, got %d", cols)
	}
	k := coefs.Shape()[1]

	s := scores.Data().([]float32)
	o := offsets.Data().([]float32)
	c := coefs.Data().([]float32)

	out := &Filtered{Scores: make([][]float32, cols-1)}
	for i := 0; i < a; i++ {
		row := s[i*cols : (i+1)*cols]
		best := row[1]
		for _, v := range row[2:] {
			best = max(best, v)
		}
		if best <= threshold {
			continue
		}

		for cls := 1; cls < cols; cls++ {
			out.Scores[cls-1] = append(out.Scores[cls-1], row[cls])
		}
		out.Boxes = append(out.Boxes, geometry.Decode([4]float32(o[i*4:(i+1)*4]), anchors[i]))

		coef := make([]float32, k)
		copy(coef, c[i*k:(i+1)*k])
		out.Coefs = append(out.Coefs, coef)
	}

	return out, nil
}

func checkMatrix(name string, t *tensor.Dense, rows, cols int) error {
	if t == nil {
		return errors.Errorf("%s tensor is nil", name)
	}
	if t.Dtype() != tensor.Float32 {
		return errors.Errorf("%s must be Float32, got %v", name, t.Dtype())
	}
	shape := t.Shape()
	if shape.Dims() != 2 {
		return errors.Errorf("%s must be 2-D, got shape %v", name, shape)
	}
	if shape[0] != rows {
		return errors.Errorf("%s has %d rows but there are %d anchors", name, shape[0], rows)
	}
	if cols >= 0 && shape[1] != cols {
		return errors.Errorf("%s must have %d columns, got %d", name, cols, shape[1])
	}
	return nil
}
