package meshrender

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/soypat/geometry/ms3"
)

const (
	stlHeaderSize = 80
	stlRecordSize = 50
	// stlSniffSize is how much of the file is inspected to tell ASCII from binary STL.
	stlSniffSize = 512
)

var errNoSolid = errors.New("ReadTriangles called before NextSolid")

// STLReader reads triangles from binary or ASCII STL files. Like archive/tar,
// a call to NextSolid advances to the next solid and ReadTriangles then reads
// that solid's triangles until io.EOF. Binary files contain exactly one solid.
type STLReader struct {
	br    *bufio.Reader
	ascii bool
	name  string
	// binary
	headerRead bool
	remaining  uint32
	record     [stlRecordSize]byte
	// ascii
	inSolid bool
	line    int
	eof     bool
}

// NewSTLReader detects the STL flavor of r and returns a reader for it.
func NewSTLReader(r io.Reader) (*STLReader, error) {
	br := bufio.NewReaderSize(r, 4096)
	head, err := br.Peek(stlSniffSize)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(head) == 0 {
		return nil, errors.New("empty STL file")
	}
	trimmed := bytes.TrimLeft(head, " \t\r\n")
	ascii := bytes.HasPrefix(trimmed, []byte("solid")) &&
		(bytes.Contains(head, []byte("facet")) || bytes.Contains(head, []byte("endsolid")))
	return &STLReader{br: br, ascii: ascii}, nil
}

// IsASCII reports whether the file is an ASCII STL.
func (sr *STLReader) IsASCII() bool { return sr.ascii }

// Name returns the name of the current solid.
func (sr *STLReader) Name() string { return sr.name }

// NextSolid advances to the next solid in the file and returns its name.
// It returns io.EOF when there are no more solids. Unread triangles of the
// previous solid are skipped.
func (sr *STLReader) NextSolid() (name string, err error) {
	if sr.ascii {
		return sr.nextSolidASCII()
	}
	if sr.headerRead {
		return "", io.EOF
	}
	var header [stlHeaderSize + 4]byte
	_, err = io.ReadFull(sr.br, header[:])
	if err != nil {
		return "", fmt.Errorf("reading STL header: %w", err)
	}
	sr.headerRead = true
	sr.remaining = binary.LittleEndian.Uint32(header[stlHeaderSize:])
	sr.name = strings.TrimSpace(strings.TrimRight(string(header[:stlHeaderSize]), "\x00"))
	return sr.name, nil
}

// ReadTriangles reads up to len(dst) triangles of the current solid. It returns
// io.EOF once all triangles of the solid have been read.
func (sr *STLReader) ReadTriangles(dst []ms3.Triangle) (n int, err error) {
	if sr.ascii {
		return sr.readASCII(dst)
	}
	if !sr.headerRead {
		return 0, errNoSolid
	}
	for n < len(dst) && sr.remaining > 0 {
		_, err = io.ReadFull(sr.br, sr.record[:])
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, fmt.Errorf("reading STL triangle: %w", err)
		}
		// Skip the 12 byte normal, it is recomputed from the vertices when needed.
		for i := range dst[n] {
			dst[n][i] = readVec(sr.record[12+12*i:])
		}
		sr.remaining--
		n++
	}
	if sr.remaining == 0 {
		return n, io.EOF
	}
	return n, nil
}

func readVec(b []byte) ms3.Vec {
	return ms3.Vec{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	}
}

func (sr *STLReader) nextSolidASCII() (string, error) {
	for sr.inSolid {
		// Drain unread triangles of the current solid.
		var discard [64]ms3.Triangle
		_, err := sr.readASCII(discard[:])
		if err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}
	}
	for {
		fields, err := sr.nextLine()
		if err != nil {
			return "", err
		}
		if len(fields) == 0 {
			continue
		}
		if fields[0] != "solid" {
			return "", sr.errorf("expected solid, got %q", fields[0])
		}
		sr.inSolid = true
		sr.name = strings.Join(fields[1:], " ")
		return sr.name, nil
	}
}

func (sr *STLReader) readASCII(dst []ms3.Triangle) (n int, err error) {
	if !sr.inSolid {
		if sr.eof {
			return 0, io.EOF
		}
		return 0, errNoSolid
	}
	for n < len(dst) {
		fields, err := sr.nextLine()
		if err == io.EOF {
			return n, sr.errorf("missing endsolid")
		} else if err != nil {
			return n, err
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "endsolid":
			sr.inSolid = false
			return n, io.EOF
		case "facet":
			err = sr.readFacet(&dst[n])
			if err != nil {
				return n, err
			}
			n++
		default:
			return n, sr.errorf("unexpected keyword %q", fields[0])
		}
	}
	return n, nil
}

// readFacet reads the body of a facet after its "facet normal" line.
func (sr *STLReader) readFacet(dst *ms3.Triangle) error {
	nv := 0
	for {
		fields, err := sr.nextLine()
		if err == io.EOF {
			return sr.errorf("unterminated facet")
		} else if err != nil {
			return err
		}
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "outer", "endloop":
		case "vertex":
			if nv == 3 {
				return sr.errorf("facet with more than 3 vertices")
			} else if len(fields) != 4 {
				return sr.errorf("vertex needs 3 coordinates")
			}
			var xyz [3]float32
			for i := range xyz {
				f, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					return sr.errorf("bad vertex coordinate: %w", err)
				}
				xyz[i] = float32(f)
			}
			dst[nv] = ms3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}
			nv++
		case "endfacet":
			if nv != 3 {
				return sr.errorf("facet with %d vertices", nv)
			}
			return nil
		default:
			return sr.errorf("unexpected keyword %q in facet", fields[0])
		}
	}
}

func (sr *STLReader) nextLine() ([]string, error) {
	if sr.eof {
		return nil, io.EOF
	}
	line, err := sr.br.ReadString('\n')
	if err == io.EOF {
		sr.eof = true
		if line == "" {
			return nil, io.EOF
		}
	} else if err != nil {
		return nil, err
	}
	sr.line++
	return strings.Fields(line), nil
}

func (sr *STLReader) errorf(format string, args ...any) error {
	return fmt.Errorf("STL line %d: %w", sr.line, fmt.Errorf(format, args...))
}

// ReadSolids reads every solid of an STL file.
func ReadSolids(r io.Reader) ([]Mesh, error) {
	sr, err := NewSTLReader(r)
	if err != nil {
		return nil, err
	}
	var meshes []Mesh
	for {
		name, err := sr.NextSolid()
		if err == io.EOF {
			break
		} else if err != nil {
			return meshes, err
		}
		triangles, err := ReadAll(sr)
		if err != nil {
			return meshes, fmt.Errorf("solid %q: %w", name, err)
		}
		meshes = append(meshes, Mesh{Name: name, Triangles: triangles})
	}
	if len(meshes) == 0 {
		return nil, errors.New("STL file contains no solid")
	}
	return meshes, nil
}

// WriteBinarySTL writes triangles to w as a binary STL file with normals computed
// from the vertex winding. It returns the number of bytes written.
func WriteBinarySTL(w io.Writer, triangles []ms3.Triangle) (int, error) {
	if uint64(len(triangles)) > math.MaxUint32 {
		return 0, errors.New("too many triangles for STL")
	}
	var header [stlHeaderSize + 4]byte
	copy(header[:], "binary STL written by depict")
	binary.LittleEndian.PutUint32(header[stlHeaderSize:], uint32(len(triangles)))
	bw := bufio.NewWriter(w)
	n, err := bw.Write(header[:])
	if err != nil {
		return n, err
	}
	var record [stlRecordSize]byte
	for _, t := range triangles {
		nrm := normal(t)
		if l := ms3.Norm(nrm); l > 0 {
			nrm = ms3.Scale(1/l, nrm)
		}
		putVec(record[0:], nrm)
		for i, v := range t {
			putVec(record[12+12*i:], v)
		}
		ngot, err := bw.Write(record[:])
		n += ngot
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

func putVec(b []byte, v ms3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}
