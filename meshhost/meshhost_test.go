package meshhost

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/depict"
	"github.com/soypat/depict/meshrender"
	"github.com/soypat/geometry/ms3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// box returns the triangles of an axis aligned box with the given half sizes.
func box(hx, hy, hz float32) []ms3.Triangle {
	v := func(x, y, z float32) ms3.Vec { return ms3.Vec{X: x * hx, Y: y * hy, Z: z * hz} }
	faces := [6][4]ms3.Vec{
		{v(-1, -1, -1), v(-1, 1, -1), v(1, 1, -1), v(1, -1, -1)},
		{v(-1, -1, 1), v(1, -1, 1), v(1, 1, 1), v(-1, 1, 1)},
		{v(-1, -1, -1), v(1, -1, -1), v(1, -1, 1), v(-1, -1, 1)},
		{v(-1, 1, -1), v(-1, 1, 1), v(1, 1, 1), v(1, 1, -1)},
		{v(-1, -1, -1), v(-1, -1, 1), v(-1, 1, 1), v(-1, 1, -1)},
		{v(1, -1, -1), v(1, 1, -1), v(1, 1, 1), v(1, -1, 1)},
	}
	var tris []ms3.Triangle
	for _, f := range faces {
		tris = append(tris, ms3.Triangle{f[0], f[1], f[2]}, ms3.Triangle{f[0], f[2], f[3]})
	}
	return tris
}

func writeSTL(t *testing.T, dir, name string, tris []ms3.Triangle) string {
	t.Helper()
	filename := filepath.Join(dir, name)
	fp, err := os.Create(filename)
	require.NoError(t, err)
	defer fp.Close()
	_, err = meshrender.WriteBinarySTL(fp, tris)
	require.NoError(t, err)
	return filename
}

func openFitted(t *testing.T, h *Host, filename string) *document {
	t.Helper()
	d, err := h.Open(context.Background(), filename)
	require.NoError(t, err)
	doc := d.(*document)
	require.NoError(t, doc.View().FitAll())
	return doc
}

func opaquePixels(img *image.NRGBA) (n int) {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 128 {
			n++
		}
	}
	return n
}

func TestOpenSTL(t *testing.T) {
	filename := writeSTL(t, t.TempDir(), "cube.stl", box(1, 1, 1))
	d, err := New(DefaultConfig()).Open(context.Background(), filename)
	require.NoError(t, err)
	assert.Equal(t, "cube", d.Name())
	roots := d.RootObjects()
	require.Len(t, roots, 1)
	assert.Equal(t, depict.IdentityPlacement(), roots[0].Placement())

	require.NoError(t, d.Close(context.Background()))
	assert.Error(t, d.Close(context.Background()), "double close")
	assert.Error(t, d.View().FitAll())
	assert.Error(t, d.View().SaveImage(filepath.Join(t.TempDir(), "x.png"), 8, 8, depict.BackgroundWhite))
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()
	h := New(DefaultConfig())
	step := filepath.Join(dir, "part.step")
	require.NoError(t, os.WriteFile(step, []byte("ISO-10303-21;"), 0o644))
	_, err := h.Open(context.Background(), step)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = h.Open(context.Background(), filepath.Join(dir, "missing.stl"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Open(ctx, writeSTL(t, dir, "cube.stl", box(1, 1, 1)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenMultipleSolids(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "pair.STL")
	err := os.WriteFile(filename, []byte(`solid left
facet normal 0 0 1
outer loop
vertex 0 0 0
vertex 1 0 0
vertex 0 1 0
endloop
endfacet
endsolid left
solid right
facet normal 0 0 1
outer loop
vertex 3 0 0
vertex 4 0 0
vertex 3 1 0
endloop
endfacet
endsolid right
`), 0o644)
	require.NoError(t, err)
	d, err := New(DefaultConfig()).Open(context.Background(), filename)
	require.NoError(t, err)
	assert.Len(t, d.RootObjects(), 2)
	assert.Equal(t, "pair", d.Name())
}

func TestSaveImageBackgrounds(t *testing.T) {
	dir := t.TempDir()
	filename := writeSTL(t, dir, "cube.stl", box(1, 1, 1))
	doc := openFitted(t, New(DefaultConfig()), filename)
	const w, h = 40, 30
	tests := []struct {
		bg     depict.Background
		corner color.NRGBA
	}{
		{depict.BackgroundWhite, color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{depict.BackgroundBlack, color.NRGBA{A: 255}},
		{depict.BackgroundTransparent, color.NRGBA{}},
	}
	for _, tc := range tests {
		t.Run(tc.bg.String(), func(t *testing.T) {
			out := filepath.Join(dir, tc.bg.String()+".png")
			require.NoError(t, doc.View().SaveImage(out, w, h, tc.bg))
			img := decodePNG(t, out)
			require.Equal(t, image.Rect(0, 0, w, h), img.Bounds())
			assert.Equal(t, tc.corner, color.NRGBAModel.Convert(img.At(0, 0)))
			center := color.NRGBAModel.Convert(img.At(w/2, h/2)).(color.NRGBA)
			assert.Greater(t, center.A, uint8(200), "model drawn at center")
			assert.NotEqual(t, tc.corner, center)
		})
	}

	img, err := doc.view.Image(w, h, depict.BackgroundCurrent)
	require.NoError(t, err)
	top, bottom := img.NRGBAAt(0, 0), img.NRGBAAt(0, h-1)
	assert.Equal(t, uint8(255), top.A)
	assert.Less(t, top.R, bottom.R, "gradient gets lighter towards the bottom")

	_, err = doc.view.Image(0, h, depict.BackgroundWhite)
	assert.Error(t, err)
	_, err = doc.view.Image(w, h, depict.Background(9))
	assert.Error(t, err)
}

func decodePNG(t *testing.T, filename string) image.Image {
	t.Helper()
	fp, err := os.Open(filename)
	require.NoError(t, err)
	defer fp.Close()
	img, err := png.Decode(fp)
	require.NoError(t, err)
	return img
}

func TestScaleHeightZoomsOut(t *testing.T) {
	filename := writeSTL(t, t.TempDir(), "cube.stl", box(1, 1, 1))
	doc := openFitted(t, New(DefaultConfig()), filename)
	img, err := doc.view.Image(64, 64, depict.BackgroundTransparent)
	require.NoError(t, err)
	fitted := opaquePixels(img)
	require.Positive(t, fitted)

	require.NoError(t, doc.View().ScaleHeight(2))
	img, err = doc.view.Image(64, 64, depict.BackgroundTransparent)
	require.NoError(t, err)
	assert.Less(t, opaquePixels(img), fitted/2)

	// FitAll resets previous zoom.
	require.NoError(t, doc.View().FitAll())
	img, err = doc.view.Image(64, 64, depict.BackgroundTransparent)
	require.NoError(t, err)
	assert.Equal(t, fitted, opaquePixels(img))

	for _, f := range []float64{0, -1} {
		assert.Error(t, doc.View().ScaleHeight(f))
	}
}

func TestPlacementChangesImage(t *testing.T) {
	filename := writeSTL(t, t.TempDir(), "slab.stl", box(3, 1, 0.2))
	doc := openFitted(t, New(Config{ViewDir: ms3.Vec{Z: -1}}), filename)
	before, err := doc.view.Image(48, 48, depict.BackgroundTransparent)
	require.NoError(t, err)

	require.NoError(t, depict.Apply(doc, depict.Triple{0, 0, 1.2}))
	require.NoError(t, doc.View().FitAll())
	after, err := doc.view.Image(48, 48, depict.BackgroundTransparent)
	require.NoError(t, err)
	assert.NotEqual(t, before.Pix, after.Pix)

	// World bounds follow the placement.
	p := depict.IdentityPlacement()
	p[3] = 10
	require.NoError(t, doc.RootObjects()[0].SetPlacement(p))
	bb := meshrender.Bounds(doc.worldTriangles())
	assert.InDelta(t, 7, bb.Min.X, 1e-5)
	assert.InDelta(t, 13, bb.Max.X, 1e-5)

	nan := depict.IdentityPlacement()
	nan[0] = math.NaN()
	assert.Error(t, doc.RootObjects()[0].SetPlacement(nan))
}

func TestLabel(t *testing.T) {
	filename := writeSTL(t, t.TempDir(), "cube.stl", box(1, 1, 1))
	cfg := DefaultConfig()
	plain := openFitted(t, New(cfg), filename)
	cfg.Label = true
	labeled := openFitted(t, New(cfg), filename)

	a, err := plain.view.Image(240, 240, depict.BackgroundWhite)
	require.NoError(t, err)
	b, err := labeled.view.Image(240, 240, depict.BackgroundWhite)
	require.NoError(t, err)
	assert.NotEqual(t, a.Pix, b.Pix)
	assert.Equal(t, a.NRGBAAt(239, 0), b.NRGBAAt(239, 0), "label stays in the bottom left corner")
}

func TestBatchWithMeshHost(t *testing.T) {
	modelsDir := t.TempDir()
	writeSTL(t, modelsDir, "cube.stl", box(1, 1, 1))
	writeSTL(t, modelsDir, "bar.stl", box(4, 0.5, 0.5))

	cfg := depict.DefaultConfig()
	cfg.ImagesPerModel = 4
	cfg.Width, cfg.Height = 32, 24
	cfg.ImagesDir = filepath.Join(t.TempDir(), "images")
	cfg.Seed = 1
	b, err := depict.NewBatch(New(DefaultConfig()), cfg)
	require.NoError(t, err)
	paths, err := depict.FindModels(modelsDir, cfg.Patterns)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	report, err := b.Run(context.Background(), paths)
	require.NoError(t, err)
	assert.Equal(t, 8, report.ImagesRendered())
	for _, stem := range []string{"bar", "cube"} {
		for i := 0; i < cfg.ImagesPerModel; i++ {
			img := decodePNG(t, filepath.Join(cfg.ImagesDir, fmt.Sprintf("%s_#%d.png", stem, i)))
			assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
		}
	}
	entries, err := os.ReadDir(cfg.ImagesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 8)
}
