// Package ephem supplies the per-step geometry that drives a run: the sun
// position in the body-fixed frame and, for binaries, the relative position
// and orientation of the secondary.
package ephem

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrEphemeris = errors.New("ephem: invalid ephemeris")

// Ephemeris is a time series of sun positions in the body-fixed frame.
type Ephemeris struct {
	Epoch time.Time
	Times []float64 // seconds since Epoch, strictly increasing
	Sun   []r3.Vec  // metres
}

func (e *Ephemeris) Len() int { return len(e.Times) }

func (e *Ephemeris) Validate() error {
	if len(e.Times) < 2 {
		return fmt.Errorf("%w: need at least 2 samples, got %d", ErrEphemeris, len(e.Times))
	}
	if len(e.Sun) != len(e.Times) {
		return fmt.Errorf("%w: %d sun vectors for %d times", ErrEphemeris, len(e.Sun), len(e.Times))
	}
	for i, t := range e.Times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: non-finite time at sample %d", ErrEphemeris, i)
		}
		if i > 0 && !(t > e.Times[i-1]) {
			return fmt.Errorf("%w: times not increasing at sample %d", ErrEphemeris, i)
		}
		if r3.Norm(e.Sun[i]) == 0 {
			return fmt.Errorf("%w: zero sun vector at sample %d", ErrEphemeris, i)
		}
	}
	return nil
}

// Step returns the interval t[n+1] − t[n].
func (e *Ephemeris) Step(n int) float64 { return e.Times[n+1] - e.Times[n] }

// MaxStep returns the longest sampling interval.
func (e *Ephemeris) MaxStep() float64 {
	var m float64
	for n := 0; n+1 < len(e.Times); n++ {
		m = math.Max(m, e.Step(n))
	}
	return m
}

// JulianDate returns the Julian date of sample n.
func (e *Ephemeris) JulianDate(n int) float64 {
	return julian.TimeToJD(e.Epoch) + e.Times[n]/86400
}

// Time returns the calendar time of sample n.
func (e *Ephemeris) Time(n int) time.Time {
	return e.Epoch.Add(time.Duration(e.Times[n] * float64(time.Second)))
}

// Heliocentric distance of sample n in AU.
func (e *Ephemeris) Distance(n int) float64 {
	return r3.Norm(e.Sun[n]) / auMeters
}

// Subset returns the samples at the given indices, in order.
func (e *Ephemeris) Subset(idx []int) *Ephemeris {
	out := &Ephemeris{
		Epoch: e.Epoch,
		Times: make([]float64, len(idx)),
		Sun:   make([]r3.Vec, len(idx)),
	}
	for i, n := range idx {
		out.Times[i] = e.Times[n]
		out.Sun[i] = e.Sun[n]
	}
	return out
}

const auMeters = 1.495978707e11

// SpinConfig describes a body spinning uniformly about its +z axis under a
// fixed sun.
type SpinConfig struct {
	Period           float64 // s
	Distance         float64 // AU
	SubsolarLatitude float64 // rad
	StepsPerRotation int
	Rotations        int
	Epoch            time.Time
}

// Spin samples Rotations·StepsPerRotation+1 points so the last sample closes
// the final rotation.
func Spin(cfg SpinConfig) (*Ephemeris, error) {
	if !(cfg.Period > 0) || !(cfg.Distance > 0) || cfg.StepsPerRotation < 1 || cfg.Rotations < 1 {
		return nil, fmt.Errorf("%w: spin config %+v", ErrEphemeris, cfg)
	}
	n := cfg.Rotations*cfg.StepsPerRotation + 1
	e := &Ephemeris{
		Epoch: cfg.Epoch,
		Times: make([]float64, n),
		Sun:   make([]r3.Vec, n),
	}
	dt := cfg.Period / float64(cfg.StepsPerRotation)
	r := cfg.Distance * auMeters
	sd, cd := math.Sincos(cfg.SubsolarLatitude)
	for i := 0; i < n; i++ {
		t := float64(i) * dt
		// The body turns by +ωt, so the sun moves by −ωt in its frame.
		s, c := math.Sincos(-2 * math.Pi * t / cfg.Period)
		e.Times[i] = t
		e.Sun[i] = r3.Vec{X: r * cd * c, Y: r * cd * s, Z: r * sd}
	}
	return e, nil
}
