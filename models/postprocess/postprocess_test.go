package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-yolact/geometry"
	"github.com/nvr-ai/go-yolact/models/model"
)

func dense(rows, cols int, data []float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
}

func testConfig() *NMSConfig {
	return &NMSConfig{
		IoUThreshold:   0.5,
		ScoreThreshold: 0.05,
		ClassAware:     true,
		TopK:           200,
		MaxDetections:  100,
	}
}

func TestFilter(t *testing.T) {
	anchors := []geometry.CenterBox{
		{CX: 0.2, CY: 0.2, W: 0.2, H: 0.2},
		{CX: 0.5, CY: 0.5, W: 0.4, H: 0.4},
		{CX: 0.75, CY: 0.25, W: 0.5, H: 0.5},
	}
	scores := dense(3, 3, []float32{
		0.9, 0.05, 0.02, // best foreground equals the threshold: dropped
		0.1, 0.7, 0.2,
		0.2, 0.1, 0.6,
	})
	offsets := dense(3, 4, make([]float32, 12))
	coefData := []float32{1, 2, 3, 4, 5, 6}
	coefs := dense(3, 2, coefData)

	f, err := Filter(scores, offsets, coefs, anchors, 0.05)
	require.NoError(t, err)
	require.Equal(t, 2, f.Len())

	assert.Equal(t, [][]float32{{0.7, 0.1}, {0.2, 0.6}}, f.Scores)
	assert.Equal(t, [][]float32{{3, 4}, {5, 6}}, f.Coefs)
	for i, a := range anchors[1:] {
		want := a.Corners()
		assert.InDelta(t, want.X1, f.Boxes[i].X1, 1e-6)
		assert.InDelta(t, want.Y1, f.Boxes[i].Y1, 1e-6)
		assert.InDelta(t, want.X2, f.Boxes[i].X2, 1e-6)
		assert.InDelta(t, want.Y2, f.Boxes[i].Y2, 1e-6)
	}

	// Coefficients are copied out of the prediction.
	coefData[2] = 42
	assert.Equal(t, float32(3), f.Coefs[0][0])
}

func TestFilterNothingSurvives(t *testing.T) {
	anchors := []geometry.CenterBox{{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}}
	f, err := Filter(dense(1, 2, []float32{0.99, 0.01}), dense(1, 4, make([]float32, 4)),
		dense(1, 1, []float32{0}), anchors, 0.05)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	assert.True(t, Suppress(f, testConfig()).Empty())
}

func TestFilterRejectsShapes(t *testing.T) {
	anchors := []geometry.CenterBox{{CX: 0.5, CY: 0.5, W: 0.2, H: 0.2}, {CX: 0.1, CY: 0.1, W: 0.1, H: 0.1}}
	scores := dense(2, 3, make([]float32, 6))
	offsets := dense(2, 4, make([]float32, 8))
	coefs := dense(2, 4, make([]float32, 8))

	tests := []struct {
		name                    string
		scores, offsets, coefs *tensor.Dense
	}{
		{"nil coefs", scores, offsets, nil},
		{"scores rows", dense(3, 3, make([]float32, 9)), offsets, coefs},
		{"offsets columns", scores, dense(2, 5, make([]float32, 10)), coefs},
		{"background only", dense(2, 1, make([]float32, 2)), offsets, coefs},
		{"3-D scores", tensor.New(tensor.WithShape(2, 3, 1), tensor.WithBacking(make([]float32, 6))), offsets, coefs},
		{"float64 offsets", scores, tensor.New(tensor.WithShape(2, 4), tensor.WithBacking(make([]float64, 8))), coefs},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Filter(tt.scores, tt.offsets, tt.coefs, anchors, 0.05)
			assert.Error(t, err)
		})
	}
}

func TestSuppressSameClass(t *testing.T) {
	f := &Filtered{
		Scores: [][]float32{{0.8, 0.9}},
		Boxes:  []geometry.Box{{X1: 0, Y1: 0, X2: 1, Y2: 0.9}, {X1: 0, Y1: 0, X2: 1, Y2: 1}},
		Coefs:  [][]float32{{1}, {2}},
	}

	for _, greedy := range []bool{false, true} {
		cfg := testConfig()
		cfg.Greedy = greedy

		got := Suppress(f, cfg)
		require.Equal(t, 1, got.Len())
		assert.Equal(t, float32(0.9), got.Scores[0])
		assert.Equal(t, []float32{2}, got.Coefs[0])
		assert.Equal(t, 0, got.Classes[0])
	}
}

func TestSuppressIgnoresOtherClasses(t *testing.T) {
	box := geometry.Box{X1: 0.1, Y1: 0.1, X2: 0.6, Y2: 0.6}
	f := &Filtered{
		Scores: [][]float32{{0.9, 0}, {0, 0.8}},
		Boxes:  []geometry.Box{box, box},
		Coefs:  [][]float32{{1}, {2}},
	}

	got := Suppress(f, testConfig())
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []int{0, 1}, got.Classes)
	assert.Equal(t, []float32{0.9, 0.8}, got.Scores)
	assert.Equal(t, []geometry.Box{box, box}, got.Boxes)
}

func TestSuppressSecondThreshold(t *testing.T) {
	f := &Filtered{
		Scores: [][]float32{{0.9, 0.01}},
		Boxes:  []geometry.Box{{X1: 0, Y1: 0, X2: 0.4, Y2: 0.4}, {X1: 0.6, Y1: 0.6, X2: 1, Y2: 1}},
		Coefs:  [][]float32{{1}, {2}},
	}

	for _, greedy := range []bool{false, true} {
		cfg := testConfig()
		cfg.Greedy = greedy
		assert.Equal(t, 2, Suppress(f, cfg).Len())

		cfg.SecondThreshold = true
		got := Suppress(f, cfg)
		require.Equal(t, 1, got.Len())
		assert.Equal(t, float32(0.9), got.Scores[0])
	}
}

func TestSuppressTruncates(t *testing.T) {
	f := &Filtered{
		Scores: [][]float32{{0.3, 0.9, 0.6}, {0.1, 0.2, 0.7}},
		Boxes: []geometry.Box{
			{X1: 0, Y1: 0, X2: 0.2, Y2: 0.2},
			{X1: 0.4, Y1: 0.4, X2: 0.6, Y2: 0.6},
			{X1: 0.8, Y1: 0.8, X2: 1, Y2: 1},
		},
		Coefs: [][]float32{{0}, {1}, {2}},
	}

	cfg := testConfig()
	cfg.TopK = 2
	got := Suppress(f, cfg)
	assert.Equal(t, []float32{0.9, 0.7, 0.6, 0.2}, got.Scores)
	assert.Equal(t, []int{0, 1, 0, 1}, got.Classes)

	cfg.MaxDetections = 3
	got = Suppress(f, cfg)
	assert.Equal(t, []float32{0.9, 0.7, 0.6}, got.Scores)
}

func TestFastNMSChainedSuppression(t *testing.T) {
	// a overlaps b (IoU 0.6) and b overlaps c (IoU 0.6), a and c barely overlap (IoU 1/3).
	f := &Filtered{
		Scores: [][]float32{{0.9, 0.8, 0.7}},
		Boxes: []geometry.Box{
			{X1: 0, Y1: 0, X2: 0.4, Y2: 1},
			{X1: 0.1, Y1: 0, X2: 0.5, Y2: 1},
			{X1: 0.2, Y1: 0, X2: 0.6, Y2: 1},
		},
		Coefs: [][]float32{{0}, {1}, {2}},
	}

	fast := FastNMS(f, testConfig())
	assert.Equal(t, []float32{0.9}, fast.Scores, "a suppressed box still suppresses")

	greedy := GreedyNMS(f, testConfig())
	assert.Equal(t, []float32{0.9, 0.7}, greedy.Scores)
}

func TestSuppressEmpty(t *testing.T) {
	assert.True(t, Suppress(nil, testConfig()).Empty())
	assert.True(t, Suppress(&Filtered{Scores: make([][]float32, 3)}, testConfig()).Empty())
}

func TestApplyGreedyNMSClassAware(t *testing.T) {
	box := geometry.Box{X1: 0, Y1: 0, X2: 1, Y2: 1}
	dets := []Result{
		{Box: box, Score: 0.9, Class: 0},
		{Box: box, Score: 0.8, Class: 1},
		{Box: box, Score: 0.7, Class: 0},
	}

	cfg := testConfig()
	assert.Len(t, ApplyGreedyNMS(dets, cfg), 2)

	cfg.ClassAware = false
	assert.Len(t, ApplyGreedyNMS(dets, cfg), 1)

	assert.Nil(t, ApplyGreedyNMS(nil, cfg))
}

func TestNewNMSConfig(t *testing.T) {
	cfg := model.Default()
	cfg.Greedy = true
	n := NewNMSConfig(cfg)
	assert.True(t, n.Greedy)
	assert.True(t, n.ClassAware)
	assert.Equal(t, 200, n.TopK)
	assert.Equal(t, 100, n.MaxDetections)
	assert.InDelta(t, 0.5, n.IoUThreshold, 1e-6)
}

func TestCandidatesKeep(t *testing.T) {
	c := Candidates{
		Classes: []int{0, 1, 2},
		Scores:  []float32{0.9, 0.5, 0.2},
		Boxes:   make([]geometry.Box, 3),
		Coefs:   [][]float32{{0}, {1}, {2}},
	}
	kept := c.Keep(func(i int) bool { return c.Scores[i] >= 0.5 })
	assert.Equal(t, []int{0, 1}, kept.Classes)
	assert.Len(t, kept.Results(), 2)
	assert.True(t, c.Keep(func(int) bool { return false }).Empty())
}
