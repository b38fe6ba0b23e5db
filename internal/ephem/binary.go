package ephem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Binary is the geometry of a two-body system. Primary carries the sample
// times and the sun in the primary frame. For every sample, Offset is the
// secondary's centre in the primary frame and Rotation maps secondary-frame
// vectors into the primary frame.
type Binary struct {
	Primary      *Ephemeris
	SunSecondary []r3.Vec
	Offset       []r3.Vec
	Rotation     []*mat.Dense
}

// Secondary returns the ephemeris seen from the secondary.
func (b *Binary) Secondary() *Ephemeris {
	return &Ephemeris{Epoch: b.Primary.Epoch, Times: b.Primary.Times, Sun: b.SunSecondary}
}

func (b *Binary) Validate() error {
	if b.Primary == nil {
		return fmt.Errorf("%w: binary without primary ephemeris", ErrEphemeris)
	}
	if err := b.Primary.Validate(); err != nil {
		return err
	}
	n := b.Primary.Len()
	if len(b.SunSecondary) != n || len(b.Offset) != n || len(b.Rotation) != n {
		return fmt.Errorf("%w: binary arrays %d/%d/%d for %d samples", ErrEphemeris,
			len(b.SunSecondary), len(b.Offset), len(b.Rotation), n)
	}
	for i, r := range b.Rotation {
		if r == nil {
			return fmt.Errorf("%w: missing rotation at sample %d", ErrEphemeris, i)
		}
		if rr, cc := r.Dims(); rr != 3 || cc != 3 {
			return fmt.Errorf("%w: rotation %d is %dx%d", ErrEphemeris, i, rr, cc)
		}
	}
	return nil
}

// Subset returns the samples at the given indices.
func (b *Binary) Subset(idx []int) *Binary {
	out := &Binary{
		Primary:      b.Primary.Subset(idx),
		SunSecondary: make([]r3.Vec, len(idx)),
		Offset:       make([]r3.Vec, len(idx)),
		Rotation:     make([]*mat.Dense, len(idx)),
	}
	for i, n := range idx {
		out.SunSecondary[i] = b.SunSecondary[n]
		out.Offset[i] = b.Offset[n]
		out.Rotation[i] = mat.DenseCopyOf(b.Rotation[n])
	}
	return out
}

// OrbitConfig describes a secondary on a circular orbit in the primary's
// equatorial plane, spinning synchronously with its orbit.
type OrbitConfig struct {
	Spin        SpinConfig // primary spin and sampling
	OrbitPeriod float64    // s
	Separation  float64    // m
}

// MutualOrbit generates the geometry of a synchronous binary under a fixed
// sun.
func MutualOrbit(cfg OrbitConfig) (*Binary, error) {
	if !(cfg.OrbitPeriod > 0) || !(cfg.Separation > 0) {
		return nil, fmt.Errorf("%w: orbit period %g and separation %g must be positive",
			ErrEphemeris, cfg.OrbitPeriod, cfg.Separation)
	}
	prim, err := Spin(cfg.Spin)
	if err != nil {
		return nil, err
	}
	n := prim.Len()
	b := &Binary{
		Primary:      prim,
		SunSecondary: make([]r3.Vec, n),
		Offset:       make([]r3.Vec, n),
		Rotation:     make([]*mat.Dense, n),
	}

	r := cfg.Spin.Distance * auMeters
	sd, cd := math.Sincos(cfg.Spin.SubsolarLatitude)
	sun := r3.Vec{X: r * cd, Z: r * sd}
	for i, t := range prim.Times {
		spin := 2 * math.Pi * t / cfg.Spin.Period
		orbit := 2 * math.Pi * t / cfg.OrbitPeriod

		so, co := math.Sincos(orbit)
		pos := r3.Vec{X: cfg.Separation * co, Y: cfg.Separation * so}

		b.Offset[i] = rotateZ(pos, -spin)
		b.Rotation[i] = RotZ(orbit - spin)
		b.SunSecondary[i] = rotateZ(r3.Sub(sun, pos), -orbit)
	}
	return b, nil
}

// RotZ returns the matrix rotating vectors by angle a about +z.
func RotZ(a float64) *mat.Dense {
	s, c := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{c, -s, 0, s, c, 0, 0, 0, 1})
}

// Apply multiplies v by the 3×3 matrix m.
func Apply(m mat.Matrix, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

func rotateZ(v r3.Vec, a float64) r3.Vec {
	s, c := math.Sincos(a)
	return r3.Vec{X: c*v.X - s*v.Y, Y: s*v.X + c*v.Y, Z: v.Z}
}
