// Package shape holds the triangulated facet model of a body.
package shape

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var ErrShape = errors.New("shape: invalid mesh")

// Facet is one planar triangle of the surface, body-fixed frame, metres.
type Facet struct {
	Vertices [3]r3.Vec
	Normal   r3.Vec // outward unit normal
	Area     float64
	Centroid r3.Vec
	// Visible lists the facets this facet can see, used for shadowing and
	// scattering. Nil when no visibility was computed.
	Visible []int
}

// Shape is an immutable facet set.
type Shape struct {
	facets []Facet
	areas  []float64
	radius float64
}

// New builds a shape from a vertex list and triangles given as vertex
// indices. Degenerate triangles are rejected.
func New(vertices []r3.Vec, faces [][3]int) (*Shape, error) {
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: no faces", ErrShape)
	}
	s := &Shape{
		facets: make([]Facet, len(faces)),
		areas:  make([]float64, len(faces)),
	}
	for i, f := range faces {
		var tri [3]r3.Vec
		for j, vi := range f {
			if vi < 0 || vi >= len(vertices) {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrShape, i, vi, len(vertices))
			}
			tri[j] = vertices[vi]
		}
		n := r3.Cross(r3.Sub(tri[1], tri[0]), r3.Sub(tri[2], tri[0]))
		norm := r3.Norm(n)
		if norm == 0 {
			return nil, fmt.Errorf("%w: face %d is degenerate", ErrShape, i)
		}
		s.facets[i] = Facet{
			Vertices: tri,
			Normal:   r3.Scale(1/norm, n),
			Area:     norm / 2,
			Centroid: r3.Scale(1.0/3, r3.Add(r3.Add(tri[0], tri[1]), tri[2])),
		}
		s.areas[i] = norm / 2
		for _, v := range tri {
			s.radius = math.Max(s.radius, r3.Norm(v))
		}
	}
	return s, nil
}

func (s *Shape) Len() int { return len(s.facets) }

func (s *Shape) Facet(i int) *Facet { return &s.facets[i] }

func (s *Shape) Facets() []Facet { return s.facets }

// Areas returns the facet areas. The slice is shared and must not be modified.
func (s *Shape) Areas() []float64 { return s.areas }

// BoundingRadius is the largest vertex distance from the body origin.
func (s *Shape) BoundingRadius() float64 { return s.radius }

// TotalArea sums the facet areas.
func (s *Shape) TotalArea() float64 {
	var a float64
	for _, v := range s.areas {
		a += v
	}
	return a
}

// HasVisibility reports whether visibility lists are attached.
func (s *Shape) HasVisibility() bool {
	for i := range s.facets {
		if s.facets[i].Visible != nil {
			return true
		}
	}
	return false
}

// Intersects reports whether the ray origin + t·dir, t > 0, hits any facet
// other than skip. Pass skip < 0 to test every facet.
func (s *Shape) Intersects(origin, dir r3.Vec, skip int) bool {
	for i := range s.facets {
		if i == skip {
			continue
		}
		if _, ok := IntersectTriangle(origin, dir, s.facets[i].Vertices); ok {
			return true
		}
	}
	return false
}

const epsilon = 1e-12

// IntersectTriangle returns the ray parameter t of the hit between the ray
// origin + t·dir and triangle tri, using the Möller–Trumbore test. Only hits
// with t > 0 are reported.
func IntersectTriangle(origin, dir r3.Vec, tri [3]r3.Vec) (float64, bool) {
	e1 := r3.Sub(tri[1], tri[0])
	e2 := r3.Sub(tri[2], tri[0])
	p := r3.Cross(dir, e2)
	det := r3.Dot(e1, p)
	if math.Abs(det) < epsilon {
		return 0, false
	}
	inv := 1 / det
	tv := r3.Sub(origin, tri[0])
	u := r3.Dot(tv, p) * inv
	if u < 0 || u > 1 {
		return 0, false
	}
	q := r3.Cross(tv, e1)
	v := r3.Dot(dir, q) * inv
	if v < 0 || u+v > 1 {
		return 0, false
	}
	t := r3.Dot(e2, q) * inv
	if t <= epsilon {
		return 0, false
	}
	return t, true
}
