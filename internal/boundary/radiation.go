package boundary

import (
	"math"

	"github.com/san-kum/tpmsim/internal/thermo"
)

// Newton iteration budget and relative tolerance of the radiation boundary.
const (
	MaxIterations = 20
	Tolerance     = 1e-10
)

func radiation(col []float64, s Surface) Solution {
	t, sol := SolveRadiation(col[0], col[1], s)
	col[0] = t
	return sol
}

// SolveRadiation finds the surface temperature T0 satisfying
//
//	F + C·(T1 − T0) − εσT0⁴ = 0
//
// by Newton–Raphson from start, where F is s.Absorbed and C is s.Coupling.
// Iterates are kept in [0, ((F + C·T1)/εσ)^¼], which brackets the root from
// above, so cold starts do not overshoot. If the relative change does not
// fall below Tolerance within MaxIterations the last iterate is returned with
// Converged false.
func SolveRadiation(start, t1 float64, s Surface) (float64, Solution) {
	c := s.Emissivity * thermo.StefanBoltzmann
	b := s.Coupling
	a := s.Absorbed + b*t1
	if a <= 0 {
		return 0, Solution{Converged: true}
	}

	upper := math.Sqrt(math.Sqrt(a / c))
	t := math.Min(math.Max(start, 0), upper)

	for i := 1; i <= MaxIterations; i++ {
		t3 := t * t * t
		f := a - b*t - c*t3*t
		fp := -b - 4*c*t3

		next := upper
		if fp != 0 {
			next = t - f/fp
		}
		next = math.Min(math.Max(next, 0), upper)

		if next == t || (next != 0 && math.Abs(1-t/next) < Tolerance) {
			return next, Solution{Iterations: i, Converged: true}
		}
		t = next
	}
	return t, Solution{Iterations: MaxIterations}
}

// Equilibrium returns the radiative-equilibrium temperature (F/(εσ))^¼.
func Equilibrium(flux, emissivity float64) float64 {
	if flux <= 0 {
		return 0
	}
	return math.Sqrt(math.Sqrt(flux / (emissivity * thermo.StefanBoltzmann)))
}
