package shape

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/parallel"
)

// Icosphere returns a sphere of the given radius built by subdividing an
// icosahedron subdiv times. It has 20·4^subdiv facets.
func Icosphere(radius float64, subdiv int) *Shape {
	p := (1 + math.Sqrt(5)) / 2
	verts := []r3.Vec{
		{X: -1, Y: p}, {X: 1, Y: p}, {X: -1, Y: -p}, {X: 1, Y: -p},
		{Y: -1, Z: p}, {Y: 1, Z: p}, {Y: -1, Z: -p}, {Y: 1, Z: -p},
		{X: p, Z: -1}, {X: p, Z: 1}, {X: -p, Z: -1}, {X: -p, Z: 1},
	}
	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}
	for i := range verts {
		verts[i] = r3.Unit(verts[i])
	}

	for s := 0; s < subdiv; s++ {
		mid := map[[2]int]int{}
		midpoint := func(a, b int) int {
			key := [2]int{a, b}
			if a > b {
				key = [2]int{b, a}
			}
			if i, ok := mid[key]; ok {
				return i
			}
			verts = append(verts, r3.Unit(r3.Add(verts[a], verts[b])))
			mid[key] = len(verts) - 1
			return len(verts) - 1
		}
		next := make([][3]int, 0, 4*len(faces))
		for _, f := range faces {
			a := midpoint(f[0], f[1])
			b := midpoint(f[1], f[2])
			c := midpoint(f[2], f[0])
			next = append(next,
				[3]int{f[0], a, c}, [3]int{f[1], b, a},
				[3]int{f[2], c, b}, [3]int{a, b, c})
		}
		faces = next
	}

	for i := range verts {
		verts[i] = r3.Scale(radius, verts[i])
	}
	sh, err := New(verts, faces)
	if err != nil {
		panic(err)
	}
	return sh
}

// FindVisible fills the visibility list of every facet with the facets whose
// centroids it can see without obstruction. It is O(N³) and meant for small
// meshes; larger models should ship precomputed lists.
func (s *Shape) FindVisible(workers int) {
	n := len(s.facets)
	lists := make([][]int, n)
	parallel.For(n, 16, workers, func(start, end int) {
		for i := start; i < end; i++ {
			fi := &s.facets[i]
			vis := []int{}
			for j := 0; j < n; j++ {
				if j == i {
					continue
				}
				fj := &s.facets[j]
				d := r3.Sub(fj.Centroid, fi.Centroid)
				if r3.Dot(d, fi.Normal) <= 0 || r3.Dot(d, fj.Normal) >= 0 {
					continue
				}
				if s.blocked(fi.Centroid, d, i, j) {
					continue
				}
				vis = append(vis, j)
			}
			lists[i] = vis
		}
	})
	for i := range s.facets {
		s.facets[i].Visible = lists[i]
	}
}

// SetVisible attaches precomputed visibility lists.
func (s *Shape) SetVisible(lists [][]int) error {
	if len(lists) != len(s.facets) {
		return ErrShape
	}
	for i := range s.facets {
		s.facets[i].Visible = lists[i]
	}
	return nil
}

// blocked reports whether the segment from origin along d (length 1 in units
// of d) hits any facet other than from and to.
func (s *Shape) blocked(origin, d r3.Vec, from, to int) bool {
	for k := range s.facets {
		if k == from || k == to {
			continue
		}
		if t, ok := IntersectTriangle(origin, d, s.facets[k].Vertices); ok && t < 1 {
			return true
		}
	}
	return false
}
