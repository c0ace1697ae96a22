package fcmacro

import (
	"strconv"

	"github.com/soypat/depict"
)

type opKind uint8

const (
	opPlacement opKind = iota
	opFitAll
	opScaleHeight
	opSaveImage
)

// op is one recorded document operation.
type op struct {
	kind      opKind
	placement depict.Placement
	factor    float64
	path      string
	width     int
	height    int
	bg        depict.Background
}

// macro holds everything needed to generate the FreeCAD script of one document.
type macro struct {
	model   string
	libPath string
	ops     []op
}

// placeFunc reassigns the first root object's placement as the recorded
// matrix applied on top of the placement the model was loaded with.
const placeFunc = `def place(*rows):
    obj.Placement = FreeCAD.Placement(FreeCAD.Matrix(*rows).multiply(base))
`

// appendMacro appends the Python source of the macro to b.
func appendMacro(b []byte, m macro) []byte {
	b = append(b, "# Generated by depict for "...)
	b = append(b, m.model...)
	b = append(b, ".\n"...)
	if m.libPath != "" {
		b = append(b, "import sys\nsys.path.append("...)
		b = appendPyString(b, m.libPath)
		b = append(b, ")\n"...)
	}
	b = append(b, "import FreeCAD\nimport FreeCADGui\nimport Import\n\n"...)
	b = append(b, "FreeCADGui.showMainWindow()\nImport.open("...)
	b = appendPyString(b, m.model)
	b = append(b, ")\n"...)
	b = append(b, `doc = FreeCAD.ActiveDocument
view = FreeCADGui.getDocument(doc.Name).ActiveView
camera = view.getCameraNode()
obj = doc.RootObjects[0]
base = obj.Placement.toMatrix()

`...)
	b = append(b, placeFunc...)
	b = append(b, '\n')
	for _, o := range m.ops {
		b = appendOp(b, o)
	}
	b = append(b, "\nFreeCAD.closeDocument(doc.Name)\n"...)
	return b
}

func appendOp(b []byte, o op) []byte {
	switch o.kind {
	case opPlacement:
		b = append(b, "place("...)
		for i, v := range o.placement {
			if i != 0 {
				b = append(b, ", "...)
			}
			b = appendPyFloat(b, v)
		}
		b = append(b, ")\n"...)
	case opFitAll:
		b = append(b, "view.fitAll()\n"...)
	case opScaleHeight:
		b = append(b, "camera.scaleHeight("...)
		b = appendPyFloat(b, o.factor)
		b = append(b, ")\n"...)
	case opSaveImage:
		b = append(b, "view.saveImage("...)
		b = appendPyString(b, o.path)
		b = append(b, ", "...)
		b = strconv.AppendInt(b, int64(o.width), 10)
		b = append(b, ", "...)
		b = strconv.AppendInt(b, int64(o.height), 10)
		b = append(b, ", "...)
		b = appendPyString(b, o.bg.String())
		b = append(b, ")\n"...)
	default:
		panic("unknown macro op")
	}
	return b
}

// appendPyFloat appends the shortest representation that parses back to v exactly.
func appendPyFloat(b []byte, v float64) []byte {
	start := len(b)
	b = strconv.AppendFloat(b, v, 'g', -1, 64)
	for _, c := range b[start:] {
		if c == '.' || c == 'e' {
			return b
		}
	}
	return append(b, ".0"...)
}

// appendPyString appends s as a double quoted Python string literal. Go escape
// sequences produced by strconv are a subset of Python's.
func appendPyString(b []byte, s string) []byte {
	return strconv.AppendQuote(b, s)
}
