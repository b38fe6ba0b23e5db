package thermo

import (
	"fmt"
	"math"
)

// Temperature is the dense (depth node, facet, time step) temperature field.
// Each (facet, step) column is contiguous in memory.
type Temperature struct {
	nz, ns, nt int
	data       []float64
}

// NewTemperature allocates a zero field.
func NewTemperature(nz, ns, nt int) *Temperature {
	return &Temperature{nz: nz, ns: ns, nt: nt, data: make([]float64, nz*ns*nt)}
}

// NewTemperatureFrom wraps an existing buffer laid out column by column.
func NewTemperatureFrom(data []float64, nz, ns, nt int) (*Temperature, error) {
	if nz <= 0 || ns <= 0 || nt <= 0 || len(data) != nz*ns*nt {
		return nil, fmt.Errorf("%w: %d values for shape (%d, %d, %d)", ErrShapeMismatch, len(data), nz, ns, nt)
	}
	return &Temperature{nz: nz, ns: ns, nt: nt, data: data}, nil
}

// Shape returns (depth nodes, facets, time steps).
func (t *Temperature) Shape() (nz, ns, nt int) { return t.nz, t.ns, t.nt }

// CheckShape fails with ErrShapeMismatch unless the field is (nz, ns, nt).
func (t *Temperature) CheckShape(nz, ns, nt int) error {
	if t.nz != nz || t.ns != ns || t.nt != nt {
		return fmt.Errorf("%w: have (%d, %d, %d), want (%d, %d, %d)",
			ErrShapeMismatch, t.nz, t.ns, t.nt, nz, ns, nt)
	}
	return nil
}

func (t *Temperature) index(z, facet, step int) int {
	return (step*t.ns+facet)*t.nz + z
}

// Column returns the depth profile of one facet at one step. The slice aliases
// the field.
func (t *Temperature) Column(facet, step int) []float64 {
	i := t.index(0, facet, step)
	return t.data[i : i+t.nz : i+t.nz]
}

func (t *Temperature) At(z, facet, step int) float64 { return t.data[t.index(z, facet, step)] }

func (t *Temperature) Set(z, facet, step int, v float64) { t.data[t.index(z, facet, step)] = v }

// Surface copies the surface temperatures at step into dst, allocating when
// dst is too short.
func (t *Temperature) Surface(step int, dst []float64) []float64 {
	if len(dst) < t.ns {
		dst = make([]float64, t.ns)
	}
	for i := 0; i < t.ns; i++ {
		dst[i] = t.data[t.index(0, i, step)]
	}
	return dst[:t.ns]
}

// Fill sets every node of every facet at step to v.
func (t *Temperature) Fill(step int, v float64) {
	start := t.index(0, 0, step)
	block := t.data[start : start+t.ns*t.nz]
	for i := range block {
		block[i] = v
	}
}

// SurfaceFinite reports whether every surface node at step is finite.
func (t *Temperature) SurfaceFinite(step int) bool {
	for i := 0; i < t.ns; i++ {
		v := t.data[t.index(0, i, step)]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Data exposes the backing buffer, e.g. for persistence.
func (t *Temperature) Data() []float64 { return t.data }
