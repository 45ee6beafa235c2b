package yolact

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Prediction holds the raw network heads for one image.
type Prediction struct {
	// Classes are per-anchor class scores, [A, C+1], column 0 is background.
	Classes *tensor.Dense
	// Boxes are per-anchor regression offsets, [A, 4].
	Boxes *tensor.Dense
	// Coefs are per-anchor mask coefficients, [A, K].
	Coefs *tensor.Dense
	// Protos is the prototype basis, [H, W, K].
	Protos *tensor.Dense
}

// Validate checks every head against the anchor and class counts and against each other.
//
// Arguments:
//   - numAnchors: A, the size of the anchor set.
//   - numClasses: C, foreground classes without background.
//
// Returns:
//   - error: Describing the first mismatching head, or nil.
func (p *Prediction) Validate(numAnchors, numClasses int) error {
	if p == nil {
		return errors.New("prediction is nil")
	}

	heads := []struct {
		name string
		t    *tensor.Dense
		dims int
	}{
		{"classes", p.Classes, 2},
		{"boxes", p.Boxes, 2},
		{"coefs", p.Coefs, 2},
		{"protos", p.Protos, 3},
	}
	for _, h := range heads {
		if h.t == nil {
			return errors.Errorf("%s head is missing", h.name)
		}
		if h.t.Dtype() != tensor.Float32 {
			return errors.Errorf("%s head must be Float32, got %v", h.name, h.t.Dtype())
		}
		if h.t.Shape().Dims() != h.dims {
			return errors.Errorf("%s head must have %d dimensions, got shape %v", h.name, h.dims, h.t.Shape())
		}
	}

	if got := p.Classes.Shape(); got[0] != numAnchors || got[1] != numClasses+1 {
		return errors.Errorf("classes head has shape %v, want [%d %d]", got, numAnchors, numClasses+1)
	}
	if got := p.Boxes.Shape(); got[0] != numAnchors || got[1] != 4 {
		return errors.Errorf("boxes head has shape %v, want [%d 4]", got, numAnchors)
	}
	if got := p.Coefs.Shape(); got[0] != numAnchors {
		return errors.Errorf("coefs head has %d rows, want %d", got[0], numAnchors)
	}
	if k, pk := p.Coefs.Shape()[1], p.Protos.Shape()[2]; k != pk {
		return errors.Errorf("coefs have %d columns but there are %d prototypes", k, pk)
	}
	return nil
}
