package depict_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/depict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := depict.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.ImagesPerModel)
	assert.Equal(t, depict.BackgroundTransparent, cfg.Background)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*depict.Config)
	}{
		{"no images", func(c *depict.Config) { c.ImagesPerModel = 0 }},
		{"too many images", func(c *depict.Config) { c.ImagesPerModel = depict.MaxImagesPerModel + 1 }},
		{"zero width", func(c *depict.Config) { c.Width = 0 }},
		{"negative height", func(c *depict.Config) { c.Height = -1 }},
		{"zoom inverted", func(c *depict.Config) { c.ZoomMin, c.ZoomMax = 2, 1 }},
		{"zoom zero", func(c *depict.Config) { c.ZoomMin = 0 }},
		{"bad background", func(c *depict.Config) { c.Background = 42 }},
		{"negative attempts", func(c *depict.Config) { c.MaxAttempts = -1 }},
		{"no output dir", func(c *depict.Config) { c.ImagesDir = "" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := depict.DefaultConfig()
			tc.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := depict.DefaultConfig()
	cfg.ZoomMin, cfg.ZoomMax = 1, 1
	assert.NoError(t, cfg.Validate(), "fixed zoom is allowed")
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "depict.yaml")
	err := os.WriteFile(filename, []byte(`
images_per_model: 12
width: 640
background: white
zoom_min: 0.8
patterns: ["*.stl"]
seed: 99
`), 0o644)
	require.NoError(t, err)

	cfg, err := depict.LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.ImagesPerModel)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 500, cfg.Height, "unset fields keep defaults")
	assert.Equal(t, depict.BackgroundWhite, cfg.Background)
	assert.Equal(t, 0.8, cfg.ZoomMin)
	assert.Equal(t, 1.5, cfg.ZoomMax)
	assert.Equal(t, []string{"*.stl"}, cfg.Patterns)
	assert.Equal(t, uint64(99), cfg.Seed)
	assert.NoError(t, cfg.Validate())

	err = os.WriteFile(filename, []byte("background: purple\n"), 0o644)
	require.NoError(t, err)
	_, err = depict.LoadConfig(filename)
	assert.ErrorContains(t, err, "purple")

	_, err = depict.LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBackgroundText(t *testing.T) {
	for _, name := range []string{"White", "Black", "Transparent", "Current"} {
		bg, err := depict.ParseBackground(name)
		require.NoError(t, err)
		assert.Equal(t, name, bg.String())
		text, err := bg.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))
	}
	bg, err := depict.ParseBackground("TRANSPARENT")
	require.NoError(t, err)
	assert.Equal(t, depict.BackgroundTransparent, bg)

	_, err = depict.ParseBackground("")
	assert.Error(t, err)

	var cfg struct {
		BG depict.Background `yaml:"bg"`
	}
	cfg.BG = depict.BackgroundCurrent
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Equal(t, "bg: Current\n", string(out))
}
