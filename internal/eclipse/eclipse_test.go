package eclipse

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/shape"
	"github.com/san-kum/tpmsim/internal/thermo"
)

func pair() *Detector {
	return &Detector{
		Primary:   shape.Icosphere(1, 2),
		Secondary: shape.Icosphere(0.5, 2),
		Workers:   2,
	}
}

func geometry(sun r3.Vec, rot float64) Geometry {
	offset := r3.Vec{X: 3}
	r := ephem.RotZ(rot)
	rt := ephem.RotZ(-rot)
	return Geometry{
		SunPrimary:   sun,
		SunSecondary: ephem.Apply(rt, r3.Sub(sun, offset)),
		Offset:       offset,
		Rotation:     r,
	}
}

func lit(sh *shape.Shape, sun r3.Vec) int {
	n := 0
	for _, f := range sh.Facets() {
		if r3.Dot(f.Normal, sun) > 0 {
			n++
		}
	}
	return n
}

func TestSecondaryShadowsPrimary(t *testing.T) {
	d := pair()
	a := make([]bool, d.Primary.Len())
	b := make([]bool, d.Secondary.Len())

	nA, nB := d.Detect(geometry(r3.Vec{X: thermo.AU}, 0), a, b)
	assert.Greater(t, nA, 0)
	assert.Less(t, nA, lit(d.Primary, r3.Vec{X: 1}))
	assert.Zero(t, nB)

	for i, f := range d.Primary.Facets() {
		if !a[i] {
			continue
		}
		assert.Greater(t, f.Normal.X, 0.0, "flagged facet %d faces away from the sun", i)
		// Only facets inside the secondary's cylinder can be shadowed.
		assert.Less(t, math.Hypot(f.Centroid.Y, f.Centroid.Z), 0.5+1e-9)
	}
}

func TestPrimaryShadowsSecondary(t *testing.T) {
	d := pair()
	a := make([]bool, d.Primary.Len())
	b := make([]bool, d.Secondary.Len())

	sun := r3.Vec{X: -thermo.AU}
	nA, nB := d.Detect(geometry(sun, 0), a, b)
	assert.Zero(t, nA)
	// The whole sunward hemisphere of the smaller body sits in the umbra.
	assert.Equal(t, lit(d.Secondary, r3.Vec{X: -1}), nB)
}

func TestRotatedSecondary(t *testing.T) {
	d := pair()
	a := make([]bool, d.Primary.Len())
	b := make([]bool, d.Secondary.Len())

	g := geometry(r3.Vec{X: -thermo.AU}, math.Pi/3)
	_, nB := d.Detect(g, a, b)
	require.Greater(t, nB, 0)

	s := r3.Unit(g.SunSecondary)
	for i, f := range d.Secondary.Facets() {
		if b[i] {
			assert.Greater(t, r3.Dot(f.Normal, s), 0.0)
		}
	}
}

func TestNoEclipseOutOfLine(t *testing.T) {
	d := pair()
	a := make([]bool, d.Primary.Len())
	b := make([]bool, d.Secondary.Len())
	nA, nB := d.Detect(geometry(r3.Vec{Z: thermo.AU}, 0), a, b)
	assert.Zero(t, nA)
	assert.Zero(t, nB)
}

func TestApply(t *testing.T) {
	recs := []flux.Record{{Sun: 1, Scat: 2, Rad: 3}, {Sun: 4, Scat: 5, Rad: 6}}
	n := Apply([]bool{false, true}, recs)
	assert.Equal(t, 1, n)
	assert.Equal(t, flux.Record{Sun: 1, Scat: 2, Rad: 3}, recs[0])
	assert.Equal(t, flux.Record{Rad: 6}, recs[1])
}

func TestHitsSphere(t *testing.T) {
	assert.True(t, hitsSphere(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 5, Y: 0.9}, 1))
	assert.False(t, hitsSphere(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: 5, Y: 1.1}, 1))
	assert.False(t, hitsSphere(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: -5}, 1))
	assert.True(t, hitsSphere(r3.Vec{}, r3.Vec{X: 1}, r3.Vec{X: -0.5}, 1))
}
