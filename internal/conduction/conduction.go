// Package conduction advances the depth-temperature field of every facet by
// one time step.
//
// The interior uses the explicit forward-time centred-space scheme
//
//	T[z, n+1] = (1−2λ')·T[z, n] + λ'·(T[z+1, n] + T[z−1, n])
//
// after which the upper and then the lower boundary conditions fill the two
// end nodes of each column. Facets are independent within a step and are
// processed in parallel.
package conduction

import (
	"fmt"
	"sync"

	"github.com/san-kum/tpmsim/internal/boundary"
	"github.com/san-kum/tpmsim/internal/parallel"
	"github.com/san-kum/tpmsim/internal/thermo"
)

// Problem holds the per-step inputs of one body. Lambda and Surfaces are
// indexed by facet.
type Problem struct {
	Lambda   []float64
	Surfaces []boundary.Surface
	Upper    boundary.UpperFunc
	Lower    boundary.LowerFunc
}

// Report aggregates the upper-boundary solutions of one step.
type Report struct {
	NonConverged  int
	MaxIterations int
}

func (r *Report) merge(o Report) {
	r.NonConverged += o.NonConverged
	if o.MaxIterations > r.MaxIterations {
		r.MaxIterations = o.MaxIterations
	}
}

// Stepper runs the per-facet update. The zero value uses every CPU.
type Stepper struct {
	Workers  int
	MinChunk int
}

func NewStepper(workers int) *Stepper {
	return &Stepper{Workers: workers, MinChunk: parallel.DefaultMinChunk}
}

// Check validates p against a field of ns facets. Lambda values above the
// stability limit fail with thermo.ErrUnstable.
func (p *Problem) Check(ns int) error {
	if len(p.Lambda) != ns || len(p.Surfaces) != ns {
		return fmt.Errorf("%w: problem sized for %d/%d facets, field has %d",
			thermo.ErrShapeMismatch, len(p.Lambda), len(p.Surfaces), ns)
	}
	if p.Upper == nil || p.Lower == nil {
		return fmt.Errorf("conduction: boundary conditions not set")
	}
	for i, l := range p.Lambda {
		if !(l >= 0) || l > thermo.StabilityLimit {
			return fmt.Errorf("%w: diffusion number %g at facet %d exceeds %g",
				thermo.ErrUnstable, l, i, thermo.StabilityLimit)
		}
	}
	return nil
}

// Step writes step n+1 of t from step n. Step n is only read.
func (s *Stepper) Step(t *thermo.Temperature, n int, p *Problem) (Report, error) {
	nz, ns, nt := t.Shape()
	if n < 0 || n+1 >= nt {
		return Report{}, fmt.Errorf("conduction: step %d has no successor in %d steps", n, nt)
	}
	if len(p.Lambda) != ns || len(p.Surfaces) != ns {
		return Report{}, fmt.Errorf("%w: problem sized for %d facets, field has %d",
			thermo.ErrShapeMismatch, len(p.Lambda), ns)
	}

	var (
		mu  sync.Mutex
		rep Report
	)
	last := nz - 1
	parallel.For(ns, s.MinChunk, s.Workers, func(start, end int) {
		var local Report
		for f := start; f < end; f++ {
			old := t.Column(f, n)
			col := t.Column(f, n+1)
			lam := p.Lambda[f]
			c := 1 - 2*lam
			for z := 1; z < last; z++ {
				col[z] = c*old[z] + lam*(old[z+1]+old[z-1])
			}
			col[0] = old[0]
			col[last] = old[last]

			sol := p.Upper(col, p.Surfaces[f])
			if !sol.Converged {
				local.NonConverged++
			}
			if sol.Iterations > local.MaxIterations {
				local.MaxIterations = sol.Iterations
			}
			p.Lower(col)
		}
		mu.Lock()
		rep.merge(local)
		mu.Unlock()
	})
	return rep, nil
}
