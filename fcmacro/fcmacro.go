// Package fcmacro drives FreeCAD out of process. Documents record the
// operations performed on them and, when closed, are turned into a Python
// macro that FreeCAD's interpreter executes. One process runs per document
// so a crash in the host only affects the model being rendered.
package fcmacro

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/soypat/depict"
)

// Config selects how FreeCAD is run.
type Config struct {
	// Python is the interpreter able to import the FreeCAD modules, for instance
	// the one shipped with FreeCAD. Defaults to "python3".
	Python string
	// Args are passed to the interpreter before the macro path.
	Args []string
	// LibPath is appended to sys.path before importing FreeCAD. Needed when the
	// FreeCAD libraries are not on the interpreter's default path.
	LibPath string
	// MacroDir keeps generated macros in this directory. When empty macros are
	// written to temporary files and removed after running.
	MacroDir string
	// DryRun writes macros without executing them. Requires MacroDir.
	DryRun bool
	// Env is appended to the environment of the FreeCAD process.
	Env []string
}

// Host opens STEP (or any format FreeCAD's Import module reads) models.
type Host struct {
	cfg Config
}

// New returns a Host running FreeCAD as configured.
func New(cfg Config) (*Host, error) {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.DryRun && cfg.MacroDir == "" {
		return nil, errors.New("dry run requires a macro directory")
	}
	return &Host{cfg: cfg}, nil
}

// Open records a new document for the model at path. The model is only loaded
// by FreeCAD once the document is closed.
func (h *Host) Open(ctx context.Context, path string) (depict.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	} else if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	base := filepath.Base(abs)
	doc := &Document{
		host:  h,
		name:  strings.TrimSuffix(base, filepath.Ext(base)),
		model: abs,
	}
	doc.obj = &object{doc: doc, placement: depict.IdentityPlacement()}
	doc.view = &view{doc: doc}
	return doc, nil
}

// Document records operations on a FreeCAD document.
//
// Placements are tracked relative to the placement the model is loaded with:
// the first root object starts at the identity and whatever is set is applied
// on top of the loaded placement inside FreeCAD. FreeCAD documents may have
// several root objects but only the first one is visible through RootObjects.
type Document struct {
	host   *Host
	name   string
	model  string
	obj    *object
	view   *view
	ops    []op
	closed bool
}

func (d *Document) Name() string { return d.name }

func (d *Document) RootObjects() []depict.Object { return []depict.Object{d.obj} }

func (d *Document) View() depict.View { return d.view }

// Macro returns the Python source for the operations recorded so far.
func (d *Document) Macro() []byte {
	return appendMacro(nil, macro{model: d.model, libPath: d.host.cfg.LibPath, ops: d.ops})
}

// Close generates the macro and runs it, which loads the model in FreeCAD and
// saves every recorded image. A document with no saved images runs nothing.
func (d *Document) Close(ctx context.Context) error {
	if d.closed {
		return errors.New("document already closed")
	}
	d.closed = true
	if !d.savesImages() {
		return nil
	}
	cfg := d.host.cfg
	src := d.Macro()
	var macroPath string
	if cfg.MacroDir != "" {
		if err := os.MkdirAll(cfg.MacroDir, 0o755); err != nil {
			return err
		}
		macroPath = filepath.Join(cfg.MacroDir, "depict_"+d.name+".py")
		if err := os.WriteFile(macroPath, src, 0o644); err != nil {
			return err
		}
	} else {
		fp, err := os.CreateTemp("", "depict-*.py")
		if err != nil {
			return err
		}
		macroPath = fp.Name()
		defer os.Remove(macroPath)
		_, err = fp.Write(src)
		if cerr := fp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	if cfg.DryRun {
		return nil
	}
	return run(ctx, cfg, macroPath)
}

// SavesOnClose reports true since images are only written when the macro runs.
func (d *Document) SavesOnClose() bool { return true }

func (d *Document) savesImages() bool {
	for _, o := range d.ops {
		if o.kind == opSaveImage {
			return true
		}
	}
	return false
}

func (d *Document) record(o op) error {
	if d.closed {
		return errors.New("document closed")
	}
	d.ops = append(d.ops, o)
	return nil
}

// run executes the macro and includes FreeCAD's stderr in the returned error.
func run(ctx context.Context, cfg Config, macroPath string) error {
	args := append(append([]string{}, cfg.Args...), macroPath)
	cmd := exec.CommandContext(ctx, cfg.Python, args...)
	cmd.Env = append(cmd.Environ(), cfg.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return fmt.Errorf("running FreeCAD macro %s: %w: %s", macroPath, err, msg)
		}
		return fmt.Errorf("running FreeCAD macro %s: %w", macroPath, err)
	}
	return nil
}

type object struct {
	doc       *Document
	placement depict.Placement
}

func (o *object) Placement() depict.Placement { return o.placement }

func (o *object) SetPlacement(p depict.Placement) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("non finite placement")
		}
	}
	err := o.doc.record(op{kind: opPlacement, placement: p})
	if err != nil {
		return err
	}
	o.placement = p
	return nil
}

type view struct {
	doc *Document
}

func (v *view) FitAll() error {
	return v.doc.record(op{kind: opFitAll})
}

func (v *view) ScaleHeight(factor float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("invalid height factor %g", factor)
	}
	return v.doc.record(op{kind: opScaleHeight, factor: factor})
}

// SaveImage records an image export. The file is written when the document is closed.
func (v *view) SaveImage(path string, width, height int, bg depict.Background) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if _, err := bg.MarshalText(); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return v.doc.record(op{kind: opSaveImage, path: abs, width: width, height: height, bg: bg})
}
