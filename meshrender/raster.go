package meshrender

import (
	"errors"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Camera is an orthographic camera. Height is the extent of the model space
// visible along the vertical image axis, the same quantity CAD viewers scale to zoom.
type Camera struct {
	// Center is the point the camera looks at, mapped to the image center.
	Center ms3.Vec
	// Dir is the viewing direction, from the eye into the scene.
	Dir ms3.Vec
	// Up is projected onto the image plane to define the vertical image axis.
	Up     ms3.Vec
	Height float32
}

// basis returns the orthonormal right, up and forward camera axes.
func (c Camera) basis() (right, up, fwd ms3.Vec, err error) {
	l := ms3.Norm(c.Dir)
	if l == 0 {
		return right, up, fwd, errors.New("zero camera direction")
	}
	fwd = ms3.Scale(1/l, c.Dir)
	right = ms3.Cross(fwd, c.Up)
	l = ms3.Norm(right)
	if l < 1e-6 {
		return right, up, fwd, errors.New("camera up vector parallel to direction")
	}
	right = ms3.Scale(1/l, right)
	up = ms3.Cross(right, fwd)
	return right, up, fwd, nil
}

// Rasterizer converts triangle meshes to images with a depth buffer. Shading is
// flat per triangle: conv receives the absolute cosine between the triangle normal
// and the viewing direction, so it behaves like a light placed at the camera.
type Rasterizer struct {
	conv  func(intensity float32) color.Color
	depth []float32
}

// NewRasterizer instances a new [Rasterizer]. A nil intensity->color conversion
// results in grayscale shading.
func NewRasterizer(conversion func(intensity float32) color.Color) *Rasterizer {
	if conversion == nil {
		conversion = func(f float32) color.Color {
			return color.Gray{Y: uint8(255 * (0.2 + 0.8*f))}
		}
	}
	return &Rasterizer{conv: conversion}
}

// Render clears img to transparent and draws triangles as seen by cam. Pixels
// not covered by any triangle stay fully transparent.
func (rz *Rasterizer) Render(img *image.NRGBA, triangles []ms3.Triangle, cam Camera) error {
	if cam.Height <= 0 || math32.IsNaN(cam.Height) || math32.IsInf(cam.Height, 0) {
		return errors.New("camera height must be positive and finite")
	}
	right, up, fwd, err := cam.basis()
	if err != nil {
		return err
	}
	bb := img.Bounds()
	w, h := bb.Dx(), bb.Dy()
	if w == 0 || h == 0 {
		return errors.New("empty image")
	}
	clear(img.Pix)
	if cap(rz.depth) < w*h {
		rz.depth = make([]float32, w*h)
	}
	rz.depth = rz.depth[:w*h]
	for i := range rz.depth {
		rz.depth[i] = math32.Inf(1)
	}

	// Pixels per model unit, identical on both axes.
	k := float32(h) / cam.Height
	halfW, halfH := float32(w)/2, float32(h)/2
	var screen [3]ms3.Vec // X,Y in pixels, Z is depth along fwd.
	for _, t := range triangles {
		n := normal(t)
		nlen := ms3.Norm(n)
		if nlen == 0 {
			continue // Degenerate.
		}
		intensity := math32.Abs(ms3.Dot(n, fwd)) / nlen
		c := color.NRGBAModel.Convert(rz.conv(intensity)).(color.NRGBA)
		for i, v := range t {
			rel := ms3.Sub(v, cam.Center)
			screen[i] = ms3.Vec{
				X: halfW + k*ms3.Dot(rel, right),
				Y: halfH - k*ms3.Dot(rel, up),
				Z: ms3.Dot(rel, fwd),
			}
		}
		rz.fill(img, screen, c)
	}
	return nil
}

// fill scan converts a projected triangle with a depth test using edge functions
// sampled at pixel centers.
func (rz *Rasterizer) fill(img *image.NRGBA, s [3]ms3.Vec, c color.NRGBA) {
	area := edge(s[0], s[1], s[2])
	if area == 0 {
		return
	}
	bb := img.Bounds()
	w, h := bb.Dx(), bb.Dy()
	minx := max(0, int(math32.Floor(min(s[0].X, s[1].X, s[2].X))))
	maxx := min(w-1, int(math32.Ceil(max(s[0].X, s[1].X, s[2].X))))
	miny := max(0, int(math32.Floor(min(s[0].Y, s[1].Y, s[2].Y))))
	maxy := min(h-1, int(math32.Ceil(max(s[0].Y, s[1].Y, s[2].Y))))
	inv := 1 / area
	for y := miny; y <= maxy; y++ {
		for x := minx; x <= maxx; x++ {
			p := ms3.Vec{X: float32(x) + 0.5, Y: float32(y) + 0.5}
			w0 := edge(s[1], s[2], p) * inv
			w1 := edge(s[2], s[0], p) * inv
			w2 := edge(s[0], s[1], p) * inv
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*s[0].Z + w1*s[1].Z + w2*s[2].Z
			idx := y*w + x
			if z >= rz.depth[idx] {
				continue
			}
			rz.depth[idx] = z
			img.SetNRGBA(x+bb.Min.X, y+bb.Min.Y, c)
		}
	}
}

// edge is the signed doubled area of triangle (a, b, p) in the XY plane.
func edge(a, b, p ms3.Vec) float32 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}
