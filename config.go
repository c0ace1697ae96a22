package depict

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MaxImagesPerModel is the number of 10° cells in the angle space (36³). Asking for
// more images than that cannot satisfy the distinctness rule.
const MaxImagesPerModel = 36 * 36 * 36

// Config holds the static settings of a batch run. It is fixed before a run starts.
type Config struct {
	// ImagesPerModel is the number of images rendered for each model.
	ImagesPerModel int `yaml:"images_per_model"`
	// Width and Height are the output resolution in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Background is painted behind the model.
	Background Background `yaml:"background"`
	// ZoomMin and ZoomMax bound the camera height factor applied after fitting
	// the model to the view.
	ZoomMin float64 `yaml:"zoom_min"`
	ZoomMax float64 `yaml:"zoom_max"`
	// ModelsDir is searched for files matching Patterns.
	ModelsDir string   `yaml:"models_dir"`
	Patterns  []string `yaml:"patterns"`
	// ImagesDir receives the rendered images. It is created if missing.
	ImagesDir string `yaml:"images_dir"`
	// Seed makes a run reproducible. Zero picks a random seed.
	Seed uint64 `yaml:"seed"`
	// MaxAttempts bounds the angle rejection sampling. Zero uses DefaultMaxAttempts.
	MaxAttempts int `yaml:"max_attempts"`
	// FailFast stops the run on the first failing model.
	FailFast bool `yaml:"fail_fast"`
}

// DefaultConfig returns the settings used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		ImagesPerModel: 5,
		Width:          500,
		Height:         500,
		Background:     BackgroundTransparent,
		ZoomMin:        0.5,
		ZoomMax:        1.5,
		ModelsDir:      "models",
		Patterns:       []string{"*.step", "*.stp", "*.stl"},
		ImagesDir:      "images",
	}
}

// Validate checks every field and returns all violations joined.
func (cfg Config) Validate() error {
	var errs []error
	if cfg.ImagesPerModel < 1 || cfg.ImagesPerModel > MaxImagesPerModel {
		errs = append(errs, fmt.Errorf("images per model must be in [1, %d], got %d", MaxImagesPerModel, cfg.ImagesPerModel))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		errs = append(errs, fmt.Errorf("resolution must be positive, got %dx%d", cfg.Width, cfg.Height))
	}
	if int(cfg.Background) >= len(backgroundNames) {
		errs = append(errs, fmt.Errorf("invalid background %d", cfg.Background))
	}
	if cfg.ZoomMin <= 0 {
		errs = append(errs, fmt.Errorf("zoom minimum must be positive, got %g", cfg.ZoomMin))
	}
	if cfg.ZoomMin > cfg.ZoomMax {
		errs = append(errs, fmt.Errorf("zoom minimum %g exceeds maximum %g", cfg.ZoomMin, cfg.ZoomMax))
	}
	if cfg.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max attempts must not be negative, got %d", cfg.MaxAttempts))
	}
	if cfg.ImagesDir == "" {
		errs = append(errs, errors.New("empty images directory"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML configuration file. Fields missing from the file keep
// their [DefaultConfig] values. The result is not validated.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", filename, err)
	}
	return cfg, nil
}
