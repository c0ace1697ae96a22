// Package meshhost implements a [depict.Host] in pure Go that loads STL meshes
// and renders them with an orthographic software rasterizer. It needs no CAD
// application or display, which makes it suited to headless batch runs and tests.
package meshhost

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/depict"
	"github.com/soypat/depict/depictaux"
	"github.com/soypat/depict/meshrender"
	"github.com/soypat/geometry/ms3"
)

// ErrUnsupportedFormat is returned when opening a file the host cannot read.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// Config configures the look of rendered images.
type Config struct {
	// Shadow and Lit are the model colors for faces seen edge on and face on.
	Shadow, Lit color.Color
	// BackgroundTop and BackgroundBottom form the gradient used for [depict.BackgroundCurrent].
	BackgroundTop, BackgroundBottom color.Color
	// Supersample renders at this many times the output resolution and scales down.
	// Values below 1 are treated as 1.
	Supersample int
	// ViewDir is the camera viewing direction. The zero value is the isometric direction.
	ViewDir ms3.Vec
	// Label draws the model name in the image corner when true.
	Label      bool
	LabelColor color.Color
}

// DefaultConfig returns a steel blue model over a light gray gradient,
// rendered with 2x supersampling.
func DefaultConfig() Config {
	return Config{
		Shadow:           color.RGBA{R: 0x1c, G: 0x2b, B: 0x3d, A: 255},
		Lit:              color.RGBA{R: 0xa8, G: 0xc4, B: 0xe0, A: 255},
		BackgroundTop:    color.RGBA{R: 0x97, G: 0x9b, B: 0xaa, A: 255},
		BackgroundBottom: color.RGBA{R: 0xec, G: 0xec, B: 0xf0, A: 255},
		Supersample:      2,
		LabelColor:       color.Black,
	}
}

// isometric is the viewing direction of an isometric view with Z up.
var isometric = ms3.Vec{X: -1, Y: 1, Z: -1}

// Host opens STL files as documents.
type Host struct {
	cfg Config
}

// New returns a Host rendering with cfg.
func New(cfg Config) *Host {
	if cfg.Supersample < 1 {
		cfg.Supersample = 1
	}
	if cfg.ViewDir == (ms3.Vec{}) {
		cfg.ViewDir = isometric
	}
	def := DefaultConfig()
	if cfg.Shadow == nil || cfg.Lit == nil {
		cfg.Shadow, cfg.Lit = def.Shadow, def.Lit
	}
	if cfg.BackgroundTop == nil || cfg.BackgroundBottom == nil {
		cfg.BackgroundTop, cfg.BackgroundBottom = def.BackgroundTop, def.BackgroundBottom
	}
	if cfg.LabelColor == nil {
		cfg.LabelColor = def.LabelColor
	}
	return &Host{cfg: cfg}
}

// Open loads an STL file. Every solid of the file becomes a root object
// with the identity placement.
func (h *Host) Open(ctx context.Context, path string) (depict.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".stl" {
		return nil, fmt.Errorf("%w %q: mesh host reads STL files only", ErrUnsupportedFormat, ext)
	}
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	meshes, err := meshrender.ReadSolids(fp)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return newDocument(h.cfg, path, meshes), nil
}

type document struct {
	name    string
	objects []*object
	view    *view
	closed  bool
}

func newDocument(cfg Config, path string, meshes []meshrender.Mesh) *document {
	base := filepath.Base(path)
	doc := &document{name: strings.TrimSuffix(base, filepath.Ext(base))}
	for _, m := range meshes {
		doc.objects = append(doc.objects, &object{mesh: m, placement: depict.IdentityPlacement()})
	}
	doc.view = &view{doc: doc, cfg: cfg, raster: meshrender.NewRasterizer(depictaux.ShadingConversion(cfg.Shadow, cfg.Lit))}
	doc.view.cam = meshrender.Camera{Dir: cfg.ViewDir, Up: ms3.Vec{Z: 1}, Height: 1}
	if cfg.ViewDir.X == 0 && cfg.ViewDir.Y == 0 {
		// Looking along Z, use Y as the vertical image axis.
		doc.view.cam.Up = ms3.Vec{Y: 1}
	}
	return doc
}

func (d *document) Name() string { return d.name }

func (d *document) RootObjects() []depict.Object {
	objs := make([]depict.Object, len(d.objects))
	for i, o := range d.objects {
		objs[i] = o
	}
	return objs
}

func (d *document) View() depict.View { return d.view }

func (d *document) Close(ctx context.Context) error {
	if d.closed {
		return errors.New("document already closed")
	}
	d.closed = true
	d.objects = nil
	d.view.raster = nil
	return nil
}

// worldTriangles returns all root object triangles with their placements applied.
func (d *document) worldTriangles() []ms3.Triangle {
	n := 0
	for _, o := range d.objects {
		n += len(o.mesh.Triangles)
	}
	world := make([]ms3.Triangle, 0, n)
	for _, o := range d.objects {
		for _, t := range o.mesh.Triangles {
			world = append(world, ms3.Triangle{
				transform(o.placement, t[0]),
				transform(o.placement, t[1]),
				transform(o.placement, t[2]),
			})
		}
	}
	return world
}

func transform(p depict.Placement, v ms3.Vec) ms3.Vec {
	x, y, z := p.Transform(float64(v.X), float64(v.Y), float64(v.Z))
	return ms3.Vec{X: float32(x), Y: float32(y), Z: float32(z)}
}

type object struct {
	mesh      meshrender.Mesh
	placement depict.Placement
}

func (o *object) Placement() depict.Placement { return o.placement }

func (o *object) SetPlacement(p depict.Placement) error {
	for _, v := range p {
		if math.IsNaN(v) {
			return errors.New("NaN in placement")
		}
	}
	o.placement = p
	return nil
}

type view struct {
	doc    *document
	cfg    Config
	cam    meshrender.Camera
	raster *meshrender.Rasterizer
}

// FitAll centers the camera on the bounding box of the placed model and sets
// the view height to the box diagonal so the model is visible from any direction.
func (v *view) FitAll() error {
	if v.doc.closed {
		return errors.New("document closed")
	}
	bb := meshrender.Bounds(v.doc.worldTriangles())
	diag := bb.Diagonal()
	if diag == 0 {
		diag = 1
	}
	v.cam.Center = bb.Center()
	v.cam.Height = diag
	return nil
}

func (v *view) ScaleHeight(factor float64) error {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("invalid height factor %g", factor)
	}
	v.cam.Height *= float32(factor)
	return nil
}

func (v *view) SaveImage(path string, width, height int, bg depict.Background) error {
	if v.doc.closed {
		return errors.New("document closed")
	}
	img, err := v.Image(width, height, bg)
	if err != nil {
		return err
	}
	return depictaux.SavePNGFile(path, img)
}

// Image renders the current view to a width x height image over bg.
func (v *view) Image(width, height int, bg depict.Background) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	ss := v.cfg.Supersample
	hi := image.NewNRGBA(image.Rect(0, 0, width*ss, height*ss))
	err := v.raster.Render(hi, v.doc.worldTriangles(), v.cam)
	if err != nil {
		return nil, err
	}
	fg := depictaux.Downsample(hi, width, height)
	var back image.Image
	switch bg {
	case depict.BackgroundWhite:
		back = image.NewUniform(color.White)
	case depict.BackgroundBlack:
		back = image.NewUniform(color.Black)
	case depict.BackgroundTransparent:
	case depict.BackgroundCurrent:
		back = depictaux.VerticalGradient(width, height, v.cfg.BackgroundTop, v.cfg.BackgroundBottom)
	default:
		return nil, fmt.Errorf("invalid background %d", bg)
	}
	out := depictaux.Composite(fg, back)
	if v.cfg.Label {
		size := max(10, float64(height)/24)
		err = depictaux.DrawLabel(out, v.doc.name, size, v.cfg.LabelColor)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
