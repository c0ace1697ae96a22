package meshrender

import (
	"io"

	"github.com/soypat/geometry/ms3"
)

// TriangleReader streams triangles into dst.
type TriangleReader interface {
	ReadTriangles(dst []ms3.Triangle) (n int, err error)
}

// ReadAll reads the full contents of a TriangleReader and returns the slice read.
// It does not return error on io.EOF, like the io.ReadAll implementation.
func ReadAll(r TriangleReader) ([]ms3.Triangle, error) {
	const startSize = 4096
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// Mesh is a named triangle soup, typically one solid of an STL file.
type Mesh struct {
	Name      string
	Triangles []ms3.Triangle
}

// Bounds returns the axis aligned bounding box of the mesh triangles.
func (m Mesh) Bounds() ms3.Box { return Bounds(m.Triangles) }

// Bounds returns the axis aligned bounding box of triangles. An empty slice returns the zero box.
func Bounds(triangles []ms3.Triangle) ms3.Box {
	if len(triangles) == 0 {
		return ms3.Box{}
	}
	bb := ms3.Box{Min: triangles[0][0], Max: triangles[0][0]}
	for _, t := range triangles {
		for _, v := range t {
			bb.Min = ms3.MinElem(bb.Min, v)
			bb.Max = ms3.MaxElem(bb.Max, v)
		}
	}
	return bb
}

func normal(t ms3.Triangle) ms3.Vec {
	return ms3.Cross(ms3.Sub(t[1], t[0]), ms3.Sub(t[2], t[0]))
}
