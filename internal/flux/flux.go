// Package flux computes the per-facet incoming energy flux of one time step.
package flux

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/parallel"
	"github.com/san-kum/tpmsim/internal/shape"
	"github.com/san-kum/tpmsim/internal/thermo"
)

// Record is the incoming flux on one facet, W m^-2.
type Record struct {
	Sun  float64 // direct solar
	Scat float64 // sunlight scattered by other facets
	Rad  float64 // thermal emission of other facets
}

// Absorbed returns (1−A_B)(Sun+Scat) + (1−A_TH)Rad.
func (r Record) Absorbed(bondAlbedo, irAlbedo float64) float64 {
	return (1-bondAlbedo)*(r.Sun+r.Scat) + (1-irAlbedo)*r.Rad
}

// Reflected returns the part of the incoming flux that is not absorbed.
func (r Record) Reflected(bondAlbedo, irAlbedo float64) float64 {
	return bondAlbedo*(r.Sun+r.Scat) + irAlbedo*r.Rad
}

// Provider updates dst with the flux at step n. sun is the sun position in
// the body-fixed frame and surface the surface temperatures at step n.
type Provider interface {
	Update(n int, sun r3.Vec, surface []float64, dst []Record) error
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(n int, sun r3.Vec, surface []float64, dst []Record) error

func (f ProviderFunc) Update(n int, sun r3.Vec, surface []float64, dst []Record) error {
	return f(n, sun, surface, dst)
}

// Options selects the interactions of a Direct provider. All of them need
// visibility lists on the shape and are ignored without them.
type Options struct {
	Shadowing  bool
	Scattering bool
	Reemission bool
	Workers    int
}

type link struct {
	to     int
	factor float64
}

// Direct computes insolation from the facet geometry.
type Direct struct {
	shape *shape.Shape
	tab   *thermo.Table
	opts  Options
	views [][]link
}

// NewDirect prepares the view factors of sh when they are needed.
func NewDirect(sh *shape.Shape, tab *thermo.Table, opts Options) (*Direct, error) {
	if tab.N != sh.Len() {
		return nil, fmt.Errorf("%w: parameters for %d facets, shape has %d", thermo.ErrShapeMismatch, tab.N, sh.Len())
	}
	d := &Direct{shape: sh, tab: tab, opts: opts}
	if !sh.HasVisibility() {
		d.opts.Shadowing, d.opts.Scattering, d.opts.Reemission = false, false, false
	}
	if d.opts.Scattering || d.opts.Reemission {
		d.views = viewFactors(sh)
	}
	return d, nil
}

// viewFactors returns, for every facet i, the Lambertian view factors
// F_ij = cosθi·cosθj·A_j / (π·d²) toward each facet j in its visibility list.
func viewFactors(sh *shape.Shape) [][]link {
	fs := sh.Facets()
	out := make([][]link, len(fs))
	for i := range fs {
		for _, j := range fs[i].Visible {
			d := r3.Sub(fs[j].Centroid, fs[i].Centroid)
			d2 := r3.Norm2(d)
			if d2 == 0 {
				continue
			}
			u := r3.Scale(1/math.Sqrt(d2), d)
			ci := r3.Dot(fs[i].Normal, u)
			cj := -r3.Dot(fs[j].Normal, u)
			if ci <= 0 || cj <= 0 {
				continue
			}
			out[i] = append(out[i], link{to: j, factor: ci * cj * fs[j].Area / (math.Pi * d2)})
		}
	}
	return out
}

// SolarFlux returns the solar constant scaled to a heliocentric distance in
// metres.
func SolarFlux(distance float64) float64 {
	au := distance / thermo.AU
	return thermo.SolarConstant / (au * au)
}

func (d *Direct) Update(n int, sun r3.Vec, surface []float64, dst []Record) error {
	fs := d.shape.Facets()
	if len(dst) != len(fs) {
		return fmt.Errorf("%w: %d flux records for %d facets", thermo.ErrShapeMismatch, len(dst), len(fs))
	}
	dist := r3.Norm(sun)
	if dist == 0 {
		return fmt.Errorf("flux: zero sun vector at step %d", n)
	}
	s := r3.Scale(1/dist, sun)
	solar := SolarFlux(dist)

	parallel.For(len(fs), parallel.DefaultMinChunk, d.opts.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			f := &fs[i]
			mu := r3.Dot(f.Normal, s)
			dst[i] = Record{}
			if mu <= 0 {
				continue
			}
			if d.opts.Shadowing && d.shadowed(f, s) {
				continue
			}
			dst[i].Sun = solar * mu
		}
	})

	if d.views == nil {
		return nil
	}
	parallel.For(len(fs), parallel.DefaultMinChunk, d.opts.Workers, func(start, end int) {
		for i := start; i < end; i++ {
			var scat, rad float64
			for _, l := range d.views[i] {
				if d.opts.Scattering {
					scat += l.factor * d.tab.BondAlbedo[l.to] * dst[l.to].Sun
				}
				if d.opts.Reemission && surface != nil {
					t := surface[l.to]
					rad += l.factor * d.tab.Emissivity[l.to] * thermo.StefanBoltzmann * t * t * t * t
				}
			}
			dst[i].Scat = scat
			dst[i].Rad = rad
		}
	})
	return nil
}

// shadowed tests the sun ray from the facet centroid against the facets it
// can see; only those can cast a shadow on it.
func (d *Direct) shadowed(f *shape.Facet, s r3.Vec) bool {
	for _, j := range f.Visible {
		if _, ok := shape.IntersectTriangle(f.Centroid, s, d.shape.Facet(j).Vertices); ok {
			return true
		}
	}
	return false
}
