package shape

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ReadOBJ parses the vertex and face records of a Wavefront OBJ stream.
// Polygons are fan-triangulated; texture and normal indices are ignored.
// Vertex coordinates are multiplied by scale.
func ReadOBJ(r io.Reader, scale float64) (*Shape, error) {
	var (
		verts []r3.Vec
		faces [][3]int
	)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrShape, line)
			}
			var c [3]float64
			for i := range c {
				v, err := strconv.ParseFloat(fields[i+1], 64)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrShape, line, err)
				}
				c[i] = v * scale
			}
			verts = append(verts, r3.Vec{X: c[0], Y: c[1], Z: c[2]})
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs 3 vertices", ErrShape, line)
			}
			idx := make([]int, len(fields)-1)
			for i, f := range fields[1:] {
				ref := f
				if j := strings.IndexByte(f, '/'); j >= 0 {
					ref = f[:j]
				}
				v, err := strconv.Atoi(ref)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrShape, line, err)
				}
				// OBJ indices are 1-based; negative ones count back from the end.
				if v < 0 {
					v = len(verts) + v
				} else {
					v--
				}
				idx[i] = v
			}
			for i := 1; i+1 < len(idx); i++ {
				faces = append(faces, [3]int{idx[0], idx[i], idx[i+1]})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return New(verts, faces)
}

// LoadOBJ reads an OBJ file from disk.
func LoadOBJ(path string, scale float64) (*Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadOBJ(f, scale)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteOBJ writes the facets as an OBJ mesh with three vertices per face.
func WriteOBJ(w io.Writer, s *Shape) error {
	bw := bufio.NewWriter(w)
	for _, f := range s.facets {
		for _, v := range f.Vertices {
			fmt.Fprintf(bw, "v %g %g %g\n", v.X, v.Y, v.Z)
		}
	}
	for i := range s.facets {
		fmt.Fprintf(bw, "f %d %d %d\n", 3*i+1, 3*i+2, 3*i+3)
	}
	return bw.Flush()
}
