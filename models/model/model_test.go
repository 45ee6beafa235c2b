package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 19248, cfg.NumAnchors())
	assert.Len(t, cfg.Anchors(), 19248)
	assert.False(t, cfg.SecondThreshold, "second threshold pass is opt-in")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"pos not above neg", func(c *Config) { c.PosIoUThreshold = 0.4 }},
		{"threshold above one", func(c *Config) { c.NMSIoUThreshold = 1.5 }},
		{"negative score threshold", func(c *Config) { c.NMSScoreThreshold = -0.1 }},
		{"zero top k", func(c *Config) { c.TopK = 0 }},
		{"zero max detections", func(c *Config) { c.MaxDetections = 0 }},
		{"no levels", func(c *Config) { c.Levels = nil }},
		{"no ratios", func(c *Config) { c.AspectRatios = nil }},
		{"negative ratio", func(c *Config) { c.AspectRatios = []float32{1, -2} }},
		{"zero image size", func(c *Config) { c.ImgSize = 0 }},
		{"zero classes", func(c *Config) { c.NumClasses = 0 }},
		{"negative padding", func(c *Config) { c.CropPadding = -1 }},
		{"zero workers", func(c *Config) { c.NumWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
num_classes: 20
pos_iou_thre: 0.6
neg_iou_thre: 0.3
second_threshold: true
no_crop: true
levels:
  - grid: {height: 4, width: 4}
    scale: 32
`))
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.NumClasses)
	assert.InDelta(t, 0.6, cfg.PosIoUThreshold, 1e-6)
	assert.InDelta(t, 0.3, cfg.NegIoUThreshold, 1e-6)
	assert.True(t, cfg.SecondThreshold)
	assert.True(t, cfg.NoCrop)
	require.Len(t, cfg.Levels, 1)
	assert.Equal(t, 4, cfg.Levels[0].Grid.Height)
	assert.Equal(t, 4*4*3, cfg.NumAnchors())

	// Keys absent from the file keep their defaults.
	assert.Equal(t, 550, cfg.ImgSize)
	assert.Equal(t, 200, cfg.TopK)
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("pos_iou_thre: 0.3\nneg_iou_thre: 0.4\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("top_k: [not, a, number]"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yolact.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_detections: 50\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxDetections)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
