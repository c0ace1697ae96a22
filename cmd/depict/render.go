package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/soypat/depict"
	"github.com/soypat/depict/fcmacro"
	"github.com/soypat/depict/meshhost"
	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render [models-dir]",
	Short: "Render preview images for every model in a directory",
	Long: `Renders the configured number of images for each model file. STL files are
rendered in process, STEP files are handed to FreeCAD. Images are named
{model}_#{index}.png.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	def := depict.DefaultConfig()
	bg := def.Background

	f := renderCmd.Flags()
	f.IntP("images", "n", def.ImagesPerModel, "Images per model")
	f.Int("width", def.Width, "Image width in pixels")
	f.Int("height", def.Height, "Image height in pixels")
	f.Var(&bg, "background", "Image background: White, Black, Transparent or Current")
	f.Float64("zoom-min", def.ZoomMin, "Minimum camera height factor")
	f.Float64("zoom-max", def.ZoomMax, "Maximum camera height factor")
	f.StringP("out", "o", def.ImagesDir, "Output directory for images")
	f.StringSlice("pattern", def.Patterns, "Model file glob patterns")
	f.Uint64("seed", 0, "Random seed, 0 picks one")
	f.Int("max-attempts", 0, "Angle sampling attempts per image before giving up, 0 for the default")
	f.Bool("fail-fast", false, "Stop at the first failing model")

	f.String("host", "auto", "Rendering host: auto, mesh or freecad")
	f.Int("supersample", meshhost.DefaultConfig().Supersample, "Mesh host supersampling factor")
	f.Bool("label", false, "Mesh host draws the model name on each image")
	f.String("freecad-python", "python3", "Python interpreter able to import FreeCAD")
	f.String("freecad-lib", "", "Directory added to sys.path to import FreeCAD")
	f.String("macro-dir", "", "Keep generated FreeCAD macros in this directory")
	f.Bool("dry-run", false, "Write FreeCAD macros without running them")

	f.String("manifest", "", "Write a YAML manifest of angles and zoom per image")
	f.String("metrics-file", "", "Write Prometheus metrics to this textfile")
}

func runRender(cmd *cobra.Command, args []string) error {
	log, err := newLogger(cmd)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	host, err := newHost(cmd)
	if err != nil {
		return err
	}
	metrics := depict.NewMetrics()
	batch, err := depict.NewBatch(host, cfg, depict.WithLogger(log), depict.WithMetrics(metrics))
	if err != nil {
		return err
	}
	paths, err := depict.FindModels(cfg.ModelsDir, cfg.Patterns)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no models matching %s in %s", strings.Join(cfg.Patterns, ", "), cfg.ModelsDir)
	}
	log.Info("rendering", "models", len(paths), "images_per_model", cfg.ImagesPerModel, "out", cfg.ImagesDir)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	report, runErr := batch.Run(ctx, paths)

	var errs []error
	errs = append(errs, runErr)
	if manifest, _ := cmd.Flags().GetString("manifest"); manifest != "" {
		errs = append(errs, report.WriteManifest(manifest))
	}
	if metricsFile, _ := cmd.Flags().GetString("metrics-file"); metricsFile != "" {
		errs = append(errs, metrics.WriteTextfile(metricsFile))
	}
	return errors.Join(errs...)
}

// loadConfig reads the configuration file if given and applies flags set on the command line.
func loadConfig(cmd *cobra.Command, args []string) (depict.Config, error) {
	cfg := depict.DefaultConfig()
	if filename, _ := cmd.Flags().GetString("config"); filename != "" {
		var err error
		cfg, err = depict.LoadConfig(filename)
		if err != nil {
			return cfg, err
		}
	}
	if len(args) > 0 {
		cfg.ModelsDir = args[0]
	}
	f := cmd.Flags()
	var err error
	if f.Changed("images") {
		cfg.ImagesPerModel, err = f.GetInt("images")
	}
	if err == nil && f.Changed("width") {
		cfg.Width, err = f.GetInt("width")
	}
	if err == nil && f.Changed("height") {
		cfg.Height, err = f.GetInt("height")
	}
	if err == nil && f.Changed("background") {
		err = cfg.Background.Set(f.Lookup("background").Value.String())
	}
	if err == nil && f.Changed("zoom-min") {
		cfg.ZoomMin, err = f.GetFloat64("zoom-min")
	}
	if err == nil && f.Changed("zoom-max") {
		cfg.ZoomMax, err = f.GetFloat64("zoom-max")
	}
	if err == nil && f.Changed("out") {
		cfg.ImagesDir, err = f.GetString("out")
	}
	if err == nil && f.Changed("pattern") {
		cfg.Patterns, err = f.GetStringSlice("pattern")
	}
	if err == nil && f.Changed("seed") {
		cfg.Seed, err = f.GetUint64("seed")
	}
	if err == nil && f.Changed("max-attempts") {
		cfg.MaxAttempts, err = f.GetInt("max-attempts")
	}
	if err == nil && f.Changed("fail-fast") {
		cfg.FailFast, err = f.GetBool("fail-fast")
	}
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func newHost(cmd *cobra.Command) (depict.Host, error) {
	f := cmd.Flags()
	kind, _ := f.GetString("host")
	meshCfg := meshhost.DefaultConfig()
	meshCfg.Supersample, _ = f.GetInt("supersample")
	meshCfg.Label, _ = f.GetBool("label")
	mesh := meshhost.New(meshCfg)

	var fcCfg fcmacro.Config
	fcCfg.Python, _ = f.GetString("freecad-python")
	fcCfg.LibPath, _ = f.GetString("freecad-lib")
	fcCfg.MacroDir, _ = f.GetString("macro-dir")
	fcCfg.DryRun, _ = f.GetBool("dry-run")
	switch kind {
	case "mesh":
		return mesh, nil
	case "freecad":
		return fcmacro.New(fcCfg)
	case "auto":
		fc, err := fcmacro.New(fcCfg)
		if err != nil {
			return nil, err
		}
		return extHost{stl: mesh, other: fc}, nil
	}
	return nil, fmt.Errorf("unknown host %q, want auto, mesh or freecad", kind)
}

// extHost opens STL files in process and everything else with FreeCAD.
type extHost struct {
	stl, other depict.Host
}

func (h extHost) Open(ctx context.Context, path string) (depict.Document, error) {
	if strings.EqualFold(filepath.Ext(path), ".stl") {
		return h.stl.Open(ctx, path)
	}
	return h.other.Open(ctx, path)
}
