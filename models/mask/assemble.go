// Package mask - Turns surviving candidates and the prototype basis into per-detection
// pixel masks at the original image resolution.
package mask

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolact/geometry"
	"github.com/nvr-ai/go-yolact/models/model"
	"github.com/nvr-ai/go-yolact/models/postprocess"
)

// On is the value of a mask pixel that belongs to the instance.
const On = 0xff

// Detection is one final instance.
type Detection struct {
	// Class is the 0-indexed foreground class.
	Class int
	// Score is the class confidence.
	Score float32
	// Box is the detection box in absolute pixels of the square max(h, w) frame.
	Box geometry.Rect
	// Mask is the binary instance mask sized to the original image (On or 0).
	Mask *image.Gray
}

// Assemble builds the final detections for one image.
//
// The steps are applied in order:
//  1. Drop candidates scoring below VisualThreshold (when it is positive).
//  2. masks = sigmoid(protos · coefsᵀ).
//  3. Zero every mask outside its padded box, unless NoCrop.
//  4. Resize every mask bilinearly to max(h, w) square and binarize at MaskThreshold.
//  5. Keep the top-left h × w region and scale boxes by max(h, w).
//
// Arguments:
//   - c: The NMS survivors, best first.
//   - protos: Float32 prototype basis of shape [H, W, K].
//   - width, height: Original image size in pixels.
//   - cfg: Supplies VisualThreshold, NoCrop, CropPadding and MaskThreshold.
//
// Returns:
//   - []Detection: Ordered like c. Nil when there is nothing to assemble.
//   - error: On shape mismatches between protos and the coefficients.
func Assemble(c postprocess.Candidates, protos *tensor.Dense, width, height int, cfg model.Config) ([]Detection, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid image size %dx%d", width, height)
	}

	if cfg.VisualThreshold > 0 {
		c = c.Keep(func(i int) bool { return c.Scores[i] >= cfg.VisualThreshold })
	}
	if c.Empty() {
		return nil, nil
	}

	masks, err := Combine(protos, c.Coefs)
	if err != nil {
		return nil, err
	}

	if !cfg.NoCrop {
		if masks, err = geometry.Crop(masks, c.Boxes, cfg.CropPadding); err != nil {
			return nil, errors.Wrap(err, "crop masks")
		}
	}

	size := max(width, height)
	planes := Split(masks)
	dets := make([]Detection, c.Len())
	for i, plane := range planes {
		dets[i] = Detection{
			Class: c.Classes[i],
			Score: c.Scores[i],
			Box:   c.Boxes[i].Scale(float32(size)),
			Mask:  Binarize(plane, size, cfg.MaskThreshold, image.Rect(0, 0, width, height)),
		}
	}

	return dets, nil
}

// Combine computes the sigmoid of the linear combination of the prototypes with every
// coefficient vector.
//
// Arguments:
//   - protos: Float32 tensor of shape [H, W, K].
//   - coefs: N vectors of length K.
//
// Returns:
//   - *tensor.Dense: A new Float32 tensor of shape [H, W, N] with values in (0, 1).
//   - error: If protos is not [H, W, K] or a vector is not of length K.
func Combine(protos *tensor.Dense, coefs [][]float32) (*tensor.Dense, error) {
	if protos == nil {
		return nil, errors.New("protos tensor is nil")
	}
	shape := protos.Shape()
	if shape.Dims() != 3 || protos.Dtype() != tensor.Float32 {
		return nil, errors.Errorf("protos must be a Float32 [H, W, K] tensor, got %v %v", protos.Dtype(), shape)
	}
	h, w, k := shape[0], shape[1], shape[2]
	n := len(coefs)
	if n == 0 {
		return nil, errors.New("no coefficients to combine")
	}

	// coefsᵀ, [K, N]
	flat := make([]float32, k*n)
	for i, v := range coefs {
		if len(v) != k {
			return nil, errors.Errorf("coefficient vector %d has length %d, prototypes have %d", i, len(v), k)
		}
		for j, c := range v {
			flat[j*n+i] = c
		}
	}

	basis := make([]float32, h*w*k)
	copy(basis, protos.Data().([]float32))

	g := G.NewGraph()
	p := G.NewMatrix(g, tensor.Float32, G.WithShape(h*w, k), G.WithName("protos"),
		G.WithValue(tensor.New(tensor.WithShape(h*w, k), tensor.WithBacking(basis))))
	ct := G.NewMatrix(g, tensor.Float32, G.WithShape(k, n), G.WithName("coefs"),
		G.WithValue(tensor.New(tensor.WithShape(k, n), tensor.WithBacking(flat))))

	lin, err := G.Mul(p, ct)
	if err != nil {
		return nil, errors.Wrap(err, "prototype product")
	}
	out, err := G.Sigmoid(lin)
	if err != nil {
		return nil, errors.Wrap(err, "sigmoid")
	}

	vm := G.NewTapeMachine(g)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, errors.Wrap(err, "run mask graph")
	}

	res, ok := out.Value().Data().([]float32)
	if !ok {
		return nil, errors.Errorf("mask graph produced %T", out.Value().Data())
	}
	data := make([]float32, h*w*n)
	copy(data, res)

	return tensor.New(tensor.WithShape(h, w, n), tensor.WithBacking(data)), nil
}

// Split converts an [H, W, N] Float32 tensor into N 16-bit gray planes. Values are clamped
// to [0, 1] and quantized to the full uint16 range.
func Split(masks *tensor.Dense) []*image.Gray16 {
	shape := masks.Shape()
	h, w, n := shape[0], shape[1], shape[2]
	src := masks.Data().([]float32)

	planes := make([]*image.Gray16, n)
	for i := range planes {
		planes[i] = image.NewGray16(image.Rect(0, 0, w, h))
	}
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			base := (row*w + col) * n
			for i, plane := range planes {
				plane.SetGray16(col, row, color.Gray16{Y: quantize(src[base+i])})
			}
		}
	}
	return planes
}

// Binarize resizes plane to a size × size square with bilinear interpolation, thresholds it
// and keeps the top-left region the size of bounds.
//
// Arguments:
//   - plane: A soft mask as produced by Split.
//   - size: Side of the square the mask is resized to.
//   - threshold: Pixels at or above it are On.
//   - bounds: The region to keep, anchored at the top-left corner.
//
// Returns:
//   - *image.Gray: A binary mask with bounds.Dx() × bounds.Dy() pixels.
func Binarize(plane *image.Gray16, size int, threshold float32, bounds image.Rectangle) *image.Gray {
	resized := resize.Resize(uint(size), uint(size), plane, resize.Bilinear)
	gray, ok := resized.(*image.Gray16)
	if !ok {
		gray = image.NewGray16(resized.Bounds())
		draw.Draw(gray, gray.Bounds(), resized, resized.Bounds().Min, draw.Src)
	}
	cut := threshold * 0xffff

	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if float32(gray.Gray16At(x, y).Y) >= cut {
				out.Pix[y*out.Stride+x] = On
			}
		}
	}
	return out
}

func quantize(v float32) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}
