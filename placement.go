package depict

import (
	"errors"
	"math"
)

// ErrNoRootObject is returned when a document holds no root object to rotate.
var ErrNoRootObject = errors.New("document has no root object")

// Placement is a 4x4 affine transform stored in row-major order, the same layout
// CAD hosts expose as a flat 16 element tuple. The upper left 3x3 block is the
// rotation and the last column holds the translation.
type Placement [16]float64

// IdentityPlacement returns the placement that does not move an object.
func IdentityPlacement() Placement {
	return Placement{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// At returns the element at row i and column j.
func (p Placement) At(i, j int) float64 { return p[i*4+j] }

// Mul returns the product p·q.
func (p Placement) Mul(q Placement) (r Placement) {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += p[i*4+k] * q[k*4+j]
			}
			r[i*4+j] = sum
		}
	}
	return r
}

// RotateX left multiplies p in place by a rotation of angle radians around the X axis.
func (p *Placement) RotateX(angle float64) {
	s, c := math.Sincos(angle)
	*p = Placement{
		1, 0, 0, 0,
		0, c, -s, 0,
		0, s, c, 0,
		0, 0, 0, 1,
	}.Mul(*p)
}

// RotateY left multiplies p in place by a rotation of angle radians around the Y axis.
func (p *Placement) RotateY(angle float64) {
	s, c := math.Sincos(angle)
	*p = Placement{
		c, 0, s, 0,
		0, 1, 0, 0,
		-s, 0, c, 0,
		0, 0, 0, 1,
	}.Mul(*p)
}

// RotateZ left multiplies p in place by a rotation of angle radians around the Z axis.
func (p *Placement) RotateZ(angle float64) {
	s, c := math.Sincos(angle)
	*p = Placement{
		c, -s, 0, 0,
		s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}.Mul(*p)
}

// Rotated returns p rotated around X, then Y, then Z, which is Rz·Ry·Rx·p.
func (p Placement) Rotated(t Triple) Placement {
	p.RotateX(t[0])
	p.RotateY(t[1])
	p.RotateZ(t[2])
	return p
}

// Transform applies p to the point (x, y, z).
func (p Placement) Transform(x, y, z float64) (tx, ty, tz float64) {
	tx = p[0]*x + p[1]*y + p[2]*z + p[3]
	ty = p[4]*x + p[5]*y + p[6]*z + p[7]
	tz = p[8]*x + p[9]*y + p[10]*z + p[11]
	return tx, ty, tz
}

// Apply rotates the first root object of doc by the angles in t, composing the
// rotation onto the object's current placement. Other root objects are left as is.
func Apply(doc Document, t Triple) error {
	roots := doc.RootObjects()
	if len(roots) == 0 {
		return ErrNoRootObject
	}
	obj := roots[0]
	return obj.SetPlacement(obj.Placement().Rotated(t))
}
