package depict_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/soypat/depict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Placement of a model at the identity after rotating by 10 radians around X, Y
// and Z, as reported by FreeCAD's Matrix.A.
var rotated10 = depict.Placement{
	0.704041030906696, -0.7048033701048229, -0.08705421465225388, 0.0,
	0.4564726253638138, 0.5430331037628842, -0.7048033701048229, 0.0,
	0.5440211108893698, 0.4564726253638138, 0.704041030906696, 0.0,
	0.0, 0.0, 0.0, 1.0,
}

type memObject struct {
	p       depict.Placement
	setErr  error
	setCall int
}

func (o *memObject) Placement() depict.Placement { return o.p }
func (o *memObject) SetPlacement(p depict.Placement) error {
	o.setCall++
	if o.setErr != nil {
		return o.setErr
	}
	o.p = p
	return nil
}

type memDocument struct {
	roots []depict.Object
}

func (d *memDocument) Name() string                    { return "mem" }
func (d *memDocument) RootObjects() []depict.Object    { return d.roots }
func (d *memDocument) View() depict.View               { return nil }
func (d *memDocument) Close(ctx context.Context) error { return nil }

func TestApplyRotationMatrix(t *testing.T) {
	obj := &memObject{p: depict.IdentityPlacement()}
	other := &memObject{p: depict.IdentityPlacement()}
	doc := &memDocument{roots: []depict.Object{obj, other}}

	err := depict.Apply(doc, depict.Triple{10, 10, 10})
	require.NoError(t, err)
	assert.InDeltaSlice(t, rotated10[:], obj.p[:], 1e-12)
	assert.Equal(t, depict.IdentityPlacement(), other.p, "only the first root object is rotated")
	assert.Zero(t, other.setCall)
}

func TestRotationComposition(t *testing.T) {
	// Rotating X then Y then Z equals the product Rz·Ry·Rx.
	a := depict.Triple{0.3, -1.2, 2.5}
	var rx, ry, rz depict.Placement = depict.IdentityPlacement(), depict.IdentityPlacement(), depict.IdentityPlacement()
	rx.RotateX(a[0])
	ry.RotateY(a[1])
	rz.RotateZ(a[2])
	want := rz.Mul(ry.Mul(rx))
	got := depict.IdentityPlacement().Rotated(a)
	assert.InDeltaSlice(t, want[:], got[:], 1e-12)

	// Rotation composes onto an existing placement, translation included.
	start := depict.IdentityPlacement()
	start[3], start[7], start[11] = 1, 2, 3
	moved := start.Rotated(a)
	x, y, z := got.Transform(1, 2, 3)
	assert.InDelta(t, x, moved.At(0, 3), 1e-12)
	assert.InDelta(t, y, moved.At(1, 3), 1e-12)
	assert.InDelta(t, z, moved.At(2, 3), 1e-12)
}

func TestRotateQuarterTurns(t *testing.T) {
	p := depict.IdentityPlacement()
	p.RotateZ(math.Pi / 2)
	x, y, z := p.Transform(1, 0, 0)
	assert.InDelta(t, 0, x, 1e-15)
	assert.InDelta(t, 1, y, 1e-15)
	assert.InDelta(t, 0, z, 1e-15)

	p = depict.IdentityPlacement()
	p.RotateX(math.Pi / 2)
	x, y, z = p.Transform(0, 1, 0)
	assert.InDelta(t, 0, x, 1e-15)
	assert.InDelta(t, 0, y, 1e-15)
	assert.InDelta(t, 1, z, 1e-15)
}

func TestApplyErrors(t *testing.T) {
	err := depict.Apply(&memDocument{}, depict.Triple{})
	assert.ErrorIs(t, err, depict.ErrNoRootObject)

	errSet := errors.New("read only")
	obj := &memObject{p: depict.IdentityPlacement(), setErr: errSet}
	err = depict.Apply(&memDocument{roots: []depict.Object{obj}}, depict.Triple{1, 2, 3})
	assert.ErrorIs(t, err, errSet)
}
