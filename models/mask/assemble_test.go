package mask

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolact/geometry"
	"github.com/nvr-ai/go-yolact/models/model"
	"github.com/nvr-ai/go-yolact/models/postprocess"
)

func protos(h, w, k int, v float32) *tensor.Dense {
	data := make([]float32, h*w*k)
	for i := range data {
		data[i] = v
	}
	return tensor.New(tensor.WithShape(h, w, k), tensor.WithBacking(data))
}

func single(box geometry.Box, score float32, coef ...float32) postprocess.Candidates {
	return postprocess.Candidates{
		Classes: []int{3},
		Scores:  []float32{score},
		Boxes:   []geometry.Box{box},
		Coefs:   [][]float32{coef},
	}
}

func config() model.Config {
	cfg := model.Default()
	cfg.CropPadding = 0
	return cfg
}

func countOn(m *image.Gray) int {
	n := 0
	for _, v := range m.Pix {
		if v == On {
			n++
		}
	}
	return n
}

func TestAssembleZeroCoefficientIsFullyOn(t *testing.T) {
	c := single(geometry.Box{X1: 0, Y1: 0, X2: 1, Y2: 1}, 0.9, 0)

	dets, err := Assemble(c, protos(4, 4, 1, 0.7), 6, 3, config())
	require.NoError(t, err)
	require.Len(t, dets, 1)

	d := dets[0]
	assert.Equal(t, 3, d.Class)
	assert.Equal(t, float32(0.9), d.Score)
	assert.Equal(t, geometry.Rect{X1: 0, Y1: 0, X2: 6, Y2: 6}, d.Box)
	assert.Equal(t, image.Rect(0, 0, 6, 3), d.Mask.Bounds())
	assert.Equal(t, 6*3, countOn(d.Mask), "sigmoid(0) sits exactly on the threshold")
}

func TestAssembleCropsToBox(t *testing.T) {
	c := single(geometry.Box{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}, 0.9, 10)

	dets, err := Assemble(c, protos(8, 8, 1, 1), 8, 8, config())
	require.NoError(t, err)
	require.Len(t, dets, 1)

	m := dets[0].Mask
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := uint8(0)
			if x < 4 && y < 4 {
				want = On
			}
			assert.Equal(t, want, m.GrayAt(x, y).Y, "pixel (%d, %d)", x, y)
		}
	}
	assert.Equal(t, geometry.Rect{X1: 0, Y1: 0, X2: 4, Y2: 4}, dets[0].Box)

	cfg := config()
	cfg.NoCrop = true
	dets, err = Assemble(c, protos(8, 8, 1, 1), 8, 8, cfg)
	require.NoError(t, err)
	assert.Equal(t, 64, countOn(dets[0].Mask))
}

func TestAssembleSlicesTopLeft(t *testing.T) {
	c := single(geometry.Box{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}, 0.9, 10)

	// A wide image: masks are resized to 8 × 8 and cut to 8 × 4.
	dets, err := Assemble(c, protos(8, 8, 1, 1), 8, 4, config())
	require.NoError(t, err)

	m := dets[0].Mask
	require.Equal(t, image.Rect(0, 0, 8, 4), m.Bounds())
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			assert.Equal(t, x < 4, m.GrayAt(x, y).Y == On, "pixel (%d, %d)", x, y)
		}
	}
}

func TestAssembleUpsamples(t *testing.T) {
	c := single(geometry.Box{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}, 0.9, 10)

	dets, err := Assemble(c, protos(4, 4, 1, 1), 8, 8, config())
	require.NoError(t, err)

	m := dets[0].Mask
	require.Equal(t, image.Rect(0, 0, 8, 8), m.Bounds())
	for i := 0; i <= 2; i++ {
		assert.Equal(t, uint8(On), m.GrayAt(i, i).Y)
	}
	for i := 6; i < 8; i++ {
		assert.Equal(t, uint8(0), m.GrayAt(i, 0).Y)
		assert.Equal(t, uint8(0), m.GrayAt(0, i).Y)
	}
}

func TestAssembleVisualThreshold(t *testing.T) {
	c := postprocess.Candidates{
		Classes: []int{0, 1},
		Scores:  []float32{0.4, 0.2},
		Boxes:   make([]geometry.Box, 2),
		Coefs:   [][]float32{{0}, {0}},
	}

	cfg := config()
	cfg.VisualThreshold = 0.3
	dets, err := Assemble(c, protos(2, 2, 1, 0), 2, 2, cfg)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.Equal(t, 0, dets[0].Class)

	cfg.VisualThreshold = 0.5
	dets, err = Assemble(c, protos(2, 2, 1, 0), 2, 2, cfg)
	require.NoError(t, err)
	assert.Nil(t, dets)
}

func TestAssembleEmpty(t *testing.T) {
	dets, err := Assemble(postprocess.Candidates{}, nil, 10, 10, config())
	require.NoError(t, err)
	assert.Nil(t, dets)

	_, err = Assemble(postprocess.Candidates{}, nil, 0, 10, config())
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	p := tensor.New(tensor.WithShape(1, 2, 2), tensor.WithBacking([]float32{1, 2, 3, 4}))

	out, err := Combine(p, [][]float32{{1, 0}, {0, -1}})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 2}, out.Shape())

	sigmoid := func(x float64) float64 { return 1 / (1 + math.Exp(-x)) }
	want := []float64{sigmoid(1), sigmoid(-2), sigmoid(3), sigmoid(-4)}
	for i, v := range out.Data().([]float32) {
		assert.InDelta(t, want[i], v, 1e-5)
	}

	// The prototypes are left untouched.
	assert.Equal(t, []float32{1, 2, 3, 4}, p.Data())
}

func TestCombineRejectsShapes(t *testing.T) {
	_, err := Combine(protos(2, 2, 3, 0), [][]float32{{1, 2}})
	assert.Error(t, err)

	flat := tensor.New(tensor.WithShape(4, 3), tensor.WithBacking(make([]float32, 12)))
	_, err = Combine(flat, [][]float32{{1, 2, 3}})
	assert.Error(t, err)

	_, err = Combine(nil, [][]float32{{1}})
	assert.Error(t, err)
}
