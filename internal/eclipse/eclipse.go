// Package eclipse flags the facets of a binary system whose view of the sun
// is blocked by the other body.
package eclipse

import (
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/parallel"
	"github.com/san-kum/tpmsim/internal/shape"
)

// Geometry is the configuration of the pair at one step. Offset is the
// secondary's centre in the primary frame and Rotation maps secondary-frame
// vectors to the primary frame.
type Geometry struct {
	SunPrimary   r3.Vec
	SunSecondary r3.Vec
	Offset       r3.Vec
	Rotation     mat.Matrix
}

type Detector struct {
	Primary   *shape.Shape
	Secondary *shape.Shape
	Workers   int
}

// Detect sets flagsA[i] when primary facet i faces the sun but the secondary
// blocks it, and flagsB likewise for the secondary. It returns the number of
// flagged facets on each body.
func (d *Detector) Detect(g Geometry, flagsA, flagsB []bool) (int, int) {
	var rt mat.Dense
	rt.CloneFrom(g.Rotation.T())

	sA := r3.Unit(g.SunPrimary)
	sB := r3.Unit(g.SunSecondary)

	// Primary facets: rays in the primary frame, secondary mapped by Rᵀ(x − offset).
	nA := d.scan(d.Primary, flagsA, sA, func(c r3.Vec) bool {
		if !hitsSphere(c, sA, g.Offset, d.Secondary.BoundingRadius()) {
			return false
		}
		o := ephem.Apply(&rt, r3.Sub(c, g.Offset))
		return d.Secondary.Intersects(o, ephem.Apply(&rt, sA), -1)
	})

	// Secondary facets: rays mapped into the primary frame by R·x + offset.
	nB := d.scan(d.Secondary, flagsB, sB, func(c r3.Vec) bool {
		o := r3.Add(ephem.Apply(g.Rotation, c), g.Offset)
		dir := ephem.Apply(g.Rotation, sB)
		if !hitsSphere(o, dir, r3.Vec{}, d.Primary.BoundingRadius()) {
			return false
		}
		return d.Primary.Intersects(o, dir, -1)
	})
	return nA, nB
}

func (d *Detector) scan(sh *shape.Shape, flags []bool, sun r3.Vec, blocked func(r3.Vec) bool) int {
	var count atomic.Int64
	fs := sh.Facets()
	parallel.For(len(fs), 64, d.Workers, func(start, end int) {
		var local int64
		for i := start; i < end; i++ {
			flags[i] = false
			if r3.Dot(fs[i].Normal, sun) <= 0 {
				continue
			}
			if blocked(fs[i].Centroid) {
				flags[i] = true
				local++
			}
		}
		count.Add(local)
	})
	return int(count.Load())
}

// hitsSphere reports whether the ray origin + t·dir, t ≥ 0, passes within
// radius of centre. dir must be a unit vector.
func hitsSphere(origin, dir, centre r3.Vec, radius float64) bool {
	v := r3.Sub(centre, origin)
	tca := r3.Dot(v, dir)
	v2 := r3.Norm2(v)
	r2 := radius * radius
	if tca < 0 {
		return v2 <= r2
	}
	return v2-tca*tca <= r2
}

// Apply zeroes the direct and scattered sunlight of flagged facets and
// returns how many were flagged.
func Apply(flags []bool, recs []flux.Record) int {
	n := 0
	for i, f := range flags {
		if f {
			recs[i].Sun = 0
			recs[i].Scat = 0
			n++
		}
	}
	return n
}
