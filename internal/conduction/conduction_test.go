package conduction

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/tpmsim/internal/boundary"
	"github.com/san-kum/tpmsim/internal/thermo"
)

func mustBoundaries(t *testing.T, up, low boundary.Condition) (boundary.UpperFunc, boundary.LowerFunc) {
	t.Helper()
	u, err := up.Upper()
	if err != nil {
		t.Fatal(err)
	}
	l, err := low.Lower()
	if err != nil {
		t.Fatal(err)
	}
	return u, l
}

func TestInteriorUpdateMatchesScheme(t *testing.T) {
	temp := thermo.NewTemperature(5, 1, 2)
	copy(temp.Column(0, 0), []float64{100, 200, 300, 400, 500})

	u, l := mustBoundaries(t, boundary.NewIsothermal(100), boundary.NewIsothermal(500))
	p := &Problem{
		Lambda:   []float64{0.25},
		Surfaces: make([]boundary.Surface, 1),
		Upper:    u,
		Lower:    l,
	}
	if _, err := NewStepper(1).Step(temp, 0, p); err != nil {
		t.Fatal(err)
	}

	// A linear profile is a steady state of the interior update.
	want := []float64{100, 200, 300, 400, 500}
	for z, v := range temp.Column(0, 1) {
		if math.Abs(v-want[z]) > 1e-12 {
			t.Errorf("z=%d: got %g, want %g", z, v, want[z])
		}
	}

	copy(temp.Column(0, 0), []float64{0, 0, 100, 0, 0})
	if _, err := NewStepper(1).Step(temp, 0, p); err != nil {
		t.Fatal(err)
	}
	col := temp.Column(0, 1)
	if col[1] != 25 || col[2] != 50 || col[3] != 25 {
		t.Errorf("interior = %v, want [25 50 25]", col[1:4])
	}
}

func TestStepLeavesPreviousStep(t *testing.T) {
	temp := thermo.NewTemperature(4, 3, 3)
	temp.Fill(0, 200)
	u, l := mustBoundaries(t, boundary.NewRadiation(), boundary.NewInsulation())
	p := &Problem{
		Lambda:   []float64{0.3, 0.3, 0.3},
		Surfaces: []boundary.Surface{{Absorbed: 500, Emissivity: 1, Coupling: 3}, {Emissivity: 1, Coupling: 3}, {Absorbed: 50, Emissivity: 1, Coupling: 3}},
		Upper:    u,
		Lower:    l,
	}
	if _, err := NewStepper(2).Step(temp, 0, p); err != nil {
		t.Fatal(err)
	}
	for f := 0; f < 3; f++ {
		for _, v := range temp.Column(f, 0) {
			if v != 200 {
				t.Fatalf("step 0 of facet %d was modified: %v", f, temp.Column(f, 0))
			}
		}
		for _, v := range temp.Column(f, 2) {
			if v != 0 {
				t.Fatalf("step 2 of facet %d was written: %v", f, temp.Column(f, 2))
			}
		}
	}
	if _, err := NewStepper(1).Step(temp, 2, p); err == nil {
		t.Error("stepping past the last step should fail")
	}
}

func TestBoundedAtStabilityLimit(t *testing.T) {
	const (
		nz    = 12
		ns    = 40
		steps = 2000
	)
	rng := rand.New(rand.NewSource(7))
	temp := thermo.NewTemperature(nz, ns, steps)
	for f := 0; f < ns; f++ {
		col := temp.Column(f, 0)
		for z := range col {
			col[z] = 400 * rng.Float64()
		}
	}

	u, l := mustBoundaries(t, boundary.NewRadiation(), boundary.NewInsulation())
	p := &Problem{
		Lambda:   make([]float64, ns),
		Surfaces: make([]boundary.Surface, ns),
		Upper:    u,
		Lower:    l,
	}
	for f := range p.Lambda {
		p.Lambda[f] = thermo.StabilityLimit * float64(f+1) / ns
	}
	if err := p.Check(ns); err != nil {
		t.Fatal(err)
	}

	s := NewStepper(4)
	s.MinChunk = 8
	for n := 0; n+1 < steps; n++ {
		for f := range p.Surfaces {
			p.Surfaces[f] = boundary.Surface{
				Absorbed:   2000 * rng.Float64(),
				Emissivity: 0.9,
				Coupling:   thermo.Coupling(300, 3600, 0.2),
			}
		}
		rep, err := s.Step(temp, n, p)
		if err != nil {
			t.Fatal(err)
		}
		if rep.NonConverged != 0 {
			t.Fatalf("step %d: %d facets did not converge", n, rep.NonConverged)
		}
	}
	for f := 0; f < ns; f++ {
		for z, v := range temp.Column(f, steps-1) {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > 1000 {
				t.Fatalf("facet %d node %d unbounded: %g", f, z, v)
			}
		}
	}
}

func TestCheckRejectsUnstable(t *testing.T) {
	u, l := mustBoundaries(t, boundary.NewRadiation(), boundary.NewInsulation())
	p := &Problem{
		Lambda:   []float64{0.2, 0.51},
		Surfaces: make([]boundary.Surface, 2),
		Upper:    u,
		Lower:    l,
	}
	if err := p.Check(2); !errors.Is(err, thermo.ErrUnstable) {
		t.Errorf("expected ErrUnstable, got %v", err)
	}
	if err := p.Check(3); !errors.Is(err, thermo.ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestReportCountsNonConverged(t *testing.T) {
	temp := thermo.NewTemperature(3, 600, 2)
	p := &Problem{
		Lambda:   make([]float64, 600),
		Surfaces: make([]boundary.Surface, 600),
		Upper: func(col []float64, _ boundary.Surface) boundary.Solution {
			return boundary.Solution{Iterations: boundary.MaxIterations}
		},
		Lower: func([]float64) {},
	}
	rep, err := NewStepper(3).Step(temp, 0, p)
	if err != nil {
		t.Fatal(err)
	}
	if rep.NonConverged != 600 || rep.MaxIterations != boundary.MaxIterations {
		t.Errorf("report = %+v", rep)
	}
}
