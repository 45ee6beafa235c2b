package geometry

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Crop zeroes every mask pixel that falls outside the sanitized bounds of its box.
//
// A pixel at (row, col) of mask n is kept when
//
//	col >= x1[n] && col < x2[n] && row >= y1[n] && row < y2[n]
//
// where the bounds come from Sanitize with the mask's width/height as size. The bounds are
// computed once per mask, then every pixel is compared against them, so no
// per-pixel geometry is repeated.
//
// Arguments:
//   - masks: A Float32 tensor of shape [H, W, N]. It is not modified.
//   - boxes: N boxes in relative corner form.
//   - padding: Pixels the box is expanded by before clamping (1 in the reference pipeline).
//
// Returns:
//   - *tensor.Dense: A new [H, W, N] tensor holding the cropped masks.
//   - error: If the tensor is not a Float32 3-D tensor or N does not match len(boxes).
func Crop(masks *tensor.Dense, boxes []Box, padding float32) (*tensor.Dense, error) {
	shape := masks.Shape()
	if shape.Dims() != 3 {
		return nil, errors.Errorf("crop expects a [H, W, N] tensor, got shape %v", shape)
	}
	if masks.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("crop expects Float32 masks, got %v", masks.Dtype())
	}

	h, w, n := shape[0], shape[1], shape[2]
	if n != len(boxes) {
		return nil, errors.Errorf("crop got %d masks but %d boxes", n, len(boxes))
	}

	x1 := make([]float32, n)
	x2 := make([]float32, n)
	y1 := make([]float32, n)
	y2 := make([]float32, n)
	for i, b := range boxes {
		x1[i], x2[i] = Sanitize(b.X1, b.X2, float32(w), padding)
		y1[i], y2[i] = Sanitize(b.Y1, b.Y2, float32(h), padding)
	}

	src := masks.Data().([]float32)
	dst := make([]float32, len(src))
	for row := 0; row < h; row++ {
		r := float32(row)
		for col := 0; col < w; col++ {
			c := float32(col)
			base := (row*w + col) * n
			for i := 0; i < n; i++ {
				if c >= x1[i] && c < x2[i] && r >= y1[i] && r < y2[i] {
					dst[base+i] = src[base+i]
				}
			}
		}
	}

	return tensor.New(tensor.WithShape(h, w, n), tensor.WithBacking(dst)), nil
}
