package depict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Batch renders randomized preview images for a sequence of models.
// Models are processed strictly one after the other.
type Batch struct {
	host    Host
	cfg     Config
	rng     *rand.Rand
	sampler *Sampler
	log     *slog.Logger
	metrics *Metrics
}

// Option configures a [Batch].
type Option func(*Batch)

// WithLogger sets the logger. By default logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(b *Batch) { b.log = l }
}

// WithMetrics records batch metrics in m.
func WithMetrics(m *Metrics) Option {
	return func(b *Batch) { b.metrics = m }
}

// WithRand sets the random generator used for angles and zoom, overriding Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(b *Batch) { b.rng = rng }
}

// NewBatch validates cfg and returns a Batch rendering through host.
func NewBatch(host Host, cfg Config, opts ...Option) (*Batch, error) {
	if host == nil {
		return nil, errors.New("nil host")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Patterns = slices.Clone(cfg.Patterns)
	b := &Batch{host: host, cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if b.rng == nil {
		seed := cfg.Seed
		if seed == 0 {
			seed = rand.Uint64()
		}
		b.rng = rand.New(rand.NewPCG(seed, seed))
	}
	b.sampler = NewSampler(b.rng)
	b.sampler.MaxAttempts = cfg.MaxAttempts
	return b, nil
}

// Config returns the configuration the batch was created with.
func (b *Batch) Config() Config { return b.cfg }

// ImageRecord describes one saved image.
type ImageRecord struct {
	File   string  `yaml:"file"`
	Angles Triple  `yaml:"angles"`
	Zoom   float64 `yaml:"zoom"`
}

// ModelReport describes the images rendered for one model. Images lists only
// files known to be written: for a [DeferredSaver] document whose Close fails
// it is empty.
type ModelReport struct {
	Model  string        `yaml:"model"`
	Images []ImageRecord `yaml:"images"`
	Error  string        `yaml:"error,omitempty"`
}

// Report describes a whole run.
type Report struct {
	Models []ModelReport `yaml:"models"`
}

// ImagesRendered returns the total number of images saved across all models.
func (r Report) ImagesRendered() (n int) {
	for _, m := range r.Models {
		n += len(m.Images)
	}
	return n
}

// WriteManifest writes the report as YAML to filename.
func (r Report) WriteManifest(filename string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// ImageName returns the file name of image index of the model at modelPath.
func ImageName(modelPath string, index int) string {
	base := filepath.Base(modelPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s_#%d.png", stem, index)
}

// FindModels returns the sorted, de-duplicated files in dir matching any of patterns.
func FindModels(dir string, patterns []string) ([]string, error) {
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", pattern, err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	return slices.Compact(paths), nil
}

// CheckImageNames returns an error if two of paths would save images under the
// same file names. Names are compared case insensitively since some file
// systems do.
func CheckImageNames(paths []string) error {
	seen := make(map[string]string, len(paths))
	var errs []error
	for _, path := range paths {
		base := filepath.Base(path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		key := strings.ToLower(stem)
		if first, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s and %s both render to %s_#N.png", first, path, stem))
			continue
		}
		seen[key] = path
	}
	return errors.Join(errs...)
}

// Run renders every model in paths. A failing model aborts its remaining images.
// Unless Config.FailFast is set the run continues with the next model and all
// failures are returned joined together. The returned report always covers the
// models that were attempted. Paths whose images would overwrite each other
// are rejected before any model is opened.
func (b *Batch) Run(ctx context.Context, paths []string) (Report, error) {
	var report Report
	if err := CheckImageNames(paths); err != nil {
		return report, fmt.Errorf("conflicting image names: %w", err)
	}
	var errs []error
	watch := stopwatch()
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		mr, err := b.RenderModel(ctx, path)
		report.Models = append(report.Models, mr)
		if err != nil {
			errs = append(errs, err)
			if b.cfg.FailFast || ctx.Err() != nil {
				break
			}
		}
	}
	b.log.Info("batch finished", "models", len(report.Models), "images", report.ImagesRendered(), "failed", len(errs), "elapsed", watch())
	return report, errors.Join(errs...)
}

// RenderModel loads the model at path and saves Config.ImagesPerModel images of
// it, each with a rotation distinct from the previous ones and a random zoom.
// The document is closed before returning, also on failure.
func (b *Batch) RenderModel(ctx context.Context, path string) (report ModelReport, err error) {
	report.Model = path
	log := b.log.With("model", path)
	defer func() {
		if err != nil {
			report.Error = err.Error()
			log.Error("model failed", "error", err, "images", len(report.Images))
			b.countModel("failed")
		} else {
			b.countModel("ok")
		}
		if b.metrics != nil {
			b.metrics.ImagesRendered.Add(float64(len(report.Images)))
		}
	}()
	if err := os.MkdirAll(b.cfg.ImagesDir, 0o755); err != nil {
		return report, err
	}

	watch := stopwatch()
	doc, err := b.host.Open(ctx, path)
	if err != nil {
		return report, fmt.Errorf("loading %s: %w", path, err)
	}
	defer func() {
		cerr := doc.Close(ctx)
		if cerr == nil {
			return
		}
		err = errors.Join(err, fmt.Errorf("closing %s: %w", path, cerr))
		if ds, ok := doc.(DeferredSaver); ok && ds.SavesOnClose() && len(report.Images) > 0 {
			log.Warn("queued images not written", "images", len(report.Images))
			report.Images = nil
		}
	}()
	log.Debug("model loaded", "document", doc.Name(), "elapsed", watch())

	roots := doc.RootObjects()
	if len(roots) == 0 {
		return report, fmt.Errorf("%s: %w", path, ErrNoRootObject)
	} else if len(roots) > 1 {
		log.Warn("only the first root object is rotated", "roots", len(roots))
	}
	baseline := roots[0].Placement()
	view := doc.View()
	history := make([]Triple, 0, b.cfg.ImagesPerModel)

	for i := 0; i < b.cfg.ImagesPerModel; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		watch = stopwatch()
		rejectionsBefore := b.sampler.Rejections()
		rec, err := b.renderImage(doc, view, baseline, path, i, history)
		if b.metrics != nil {
			b.metrics.SamplerRejections.Add(float64(b.sampler.Rejections() - rejectionsBefore))
		}
		if err != nil {
			return report, fmt.Errorf("%s image %d: %w", path, i, err)
		}
		history = append(history, rec.Angles)
		report.Images = append(report.Images, rec)
		elapsed := watch()
		if b.metrics != nil {
			b.metrics.ImageDuration.Observe(elapsed.Seconds())
		}
		log.Debug("image saved", "file", rec.File, "angles_deg", rec.Angles.Degrees(), "zoom", rec.Zoom, "elapsed", elapsed)
	}
	log.Info("model rendered", "images", len(report.Images))
	return report, nil
}

func (b *Batch) renderImage(doc Document, view View, baseline Placement, path string, index int, history []Triple) (rec ImageRecord, err error) {
	obj := doc.RootObjects()[0]
	if err = obj.SetPlacement(baseline); err != nil {
		return rec, fmt.Errorf("resetting placement: %w", err)
	}
	rec.Angles, err = b.sampler.Sample(history)
	if err != nil {
		return rec, err
	}
	if err = Apply(doc, rec.Angles); err != nil {
		return rec, fmt.Errorf("rotating: %w", err)
	}
	// Fitting resets the zoom so the factor is relative to the fitted view.
	if err = view.FitAll(); err != nil {
		return rec, fmt.Errorf("fitting view: %w", err)
	}
	rec.Zoom = b.cfg.ZoomMin + b.rng.Float64()*(b.cfg.ZoomMax-b.cfg.ZoomMin)
	if err = view.ScaleHeight(rec.Zoom); err != nil {
		return rec, fmt.Errorf("zooming: %w", err)
	}
	rec.File = filepath.Join(b.cfg.ImagesDir, ImageName(path, index))
	err = view.SaveImage(rec.File, b.cfg.Width, b.cfg.Height, b.cfg.Background)
	if err != nil {
		return rec, fmt.Errorf("saving image: %w", err)
	}
	return rec, nil
}

func (b *Batch) countModel(status string) {
	if b.metrics != nil {
		b.metrics.Models.WithLabelValues(status).Inc()
	}
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
