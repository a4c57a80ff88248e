package geometry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ReadOFF parses a mesh in OFF format. Only triangular faces are
// accepted; malformed input fails fast with a descriptive error.
func ReadOFF(r io.Reader) (*Mesh, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	fields, err := nextFields(sc)
	if err != nil {
		return nil, fmt.Errorf("off: missing header: %w", err)
	}
	if len(fields) != 1 || fields[0] != "OFF" {
		return nil, fmt.Errorf("off: bad magic %q", strings.Join(fields, " "))
	}

	fields, err = nextFields(sc)
	if err != nil {
		return nil, fmt.Errorf("off: missing counts: %w", err)
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("off: bad count line %q", strings.Join(fields, " "))
	}
	nv, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("off: bad vertex count: %w", err)
	}
	nf, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("off: bad face count: %w", err)
	}

	mesh := &Mesh{Pos: make([]r3.Vec, 0, nv), Faces: make([][3]int32, 0, nf)}
	for i := 0; i < nv; i++ {
		fields, err = nextFields(sc)
		if err != nil {
			return nil, fmt.Errorf("off: vertex %d: %w", i, err)
		}
		v, err := parseVec(fields)
		if err != nil {
			return nil, fmt.Errorf("off: vertex %d: %w", i, err)
		}
		mesh.Pos = append(mesh.Pos, v)
	}
	for i := 0; i < nf; i++ {
		fields, err = nextFields(sc)
		if err != nil {
			return nil, fmt.Errorf("off: face %d: %w", i, err)
		}
		f, err := parseFace(fields)
		if err != nil {
			return nil, fmt.Errorf("off: face %d: %w", i, err)
		}
		mesh.Faces = append(mesh.Faces, f)
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// WriteOFF writes a mesh in OFF format.
func WriteOFF(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "OFF\n%d %d 0\n", len(m.Pos), len(m.Faces))
	for _, p := range m.Pos {
		fmt.Fprintf(bw, "%g %g %g\n", p.X, p.Y, p.Z)
	}
	for _, f := range m.Faces {
		fmt.Fprintf(bw, "3 %d %d %d\n", f[0], f[1], f[2])
	}
	return bw.Flush()
}

// ReadPLY parses an ASCII PLY mesh. Binary PLY is rejected.
func ReadPLY(r io.Reader) (*Mesh, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)

	fields, err := nextFields(sc)
	if err != nil || len(fields) != 1 || fields[0] != "ply" {
		return nil, fmt.Errorf("ply: bad magic")
	}

	nv, nf := -1, -1
	xProp := -1
	propCount := 0
	inVertex := false
	for {
		fields, err = nextFields(sc)
		if err != nil {
			return nil, fmt.Errorf("ply: truncated header: %w", err)
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "ascii" {
				return nil, fmt.Errorf("ply: only ascii format is supported, got %q", strings.Join(fields[1:], " "))
			}
		case "element":
			if len(fields) < 3 {
				return nil, fmt.Errorf("ply: bad element line")
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("ply: bad element count: %w", err)
			}
			switch fields[1] {
			case "vertex":
				nv = n
				inVertex = true
			case "face":
				nf = n
				inVertex = false
			default:
				inVertex = false
			}
		case "property":
			if inVertex {
				if len(fields) >= 3 && fields[len(fields)-1] == "x" {
					xProp = propCount
				}
				propCount++
			}
		case "comment":
		case "end_header":
			goto body
		}
	}

body:
	if nv < 0 {
		return nil, fmt.Errorf("ply: no vertex element")
	}
	if xProp < 0 {
		xProp = 0
	}
	mesh := &Mesh{Pos: make([]r3.Vec, 0, nv)}
	for i := 0; i < nv; i++ {
		fields, err = nextFields(sc)
		if err != nil {
			return nil, fmt.Errorf("ply: vertex %d: %w", i, err)
		}
		if len(fields) < xProp+3 {
			return nil, fmt.Errorf("ply: vertex %d: want at least %d values, got %d", i, xProp+3, len(fields))
		}
		v, err := parseVec(fields[xProp : xProp+3])
		if err != nil {
			return nil, fmt.Errorf("ply: vertex %d: %w", i, err)
		}
		mesh.Pos = append(mesh.Pos, v)
	}
	for i := 0; i < nf; i++ {
		fields, err = nextFields(sc)
		if err != nil {
			return nil, fmt.Errorf("ply: face %d: %w", i, err)
		}
		f, err := parseFace(fields)
		if err != nil {
			return nil, fmt.Errorf("ply: face %d: %w", i, err)
		}
		mesh.Faces = append(mesh.Faces, f)
	}
	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// LoadMesh reads a mesh file, dispatching on extension (.off, .ply).
func LoadMesh(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geometry: open mesh: %w", err)
	}
	defer f.Close()

	var m *Mesh
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".off":
		m, err = ReadOFF(f)
	case ".ply":
		m, err = ReadPLY(f)
	default:
		return nil, fmt.Errorf("geometry: unsupported mesh format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("geometry: %s: %w", path, err)
	}
	return m, nil
}

// nextFields returns the fields of the next non-empty line.
func nextFields(sc *bufio.Scanner) ([]string, error) {
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		return fields, nil
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

func parseVec(fields []string) (r3.Vec, error) {
	if len(fields) < 3 {
		return r3.Vec{}, fmt.Errorf("want 3 coordinates, got %d", len(fields))
	}
	var coords [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("bad coordinate %q: %w", fields[i], err)
		}
		coords[i] = v
	}
	return r3.Vec{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func parseFace(fields []string) ([3]int32, error) {
	if len(fields) != 4 || fields[0] != "3" {
		return [3]int32{}, fmt.Errorf("only triangular faces are supported, got %q", strings.Join(fields, " "))
	}
	var f [3]int32
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return [3]int32{}, fmt.Errorf("bad vertex index %q: %w", fields[i+1], err)
		}
		f[i] = int32(v)
	}
	return f, nil
}
