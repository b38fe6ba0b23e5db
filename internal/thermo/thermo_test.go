package thermo

import (
	"errors"
	"math"
	"testing"
)

func regolith() Params {
	return Params{
		BondAlbedo:   Scalar(0.04),
		IRAlbedo:     Scalar(0),
		Inertia:      Scalar(200),
		Density:      Scalar(1270),
		HeatCapacity: Scalar(600),
		Emissivity:   Scalar(0.9),
		Period:       7.63 * 3600,
	}
}

func TestParamResolve(t *testing.T) {
	tests := []struct {
		name    string
		p       Param
		n       int
		want    []float64
		wantErr bool
	}{
		{"scalar broadcast", Scalar(0.1), 3, []float64{0.1, 0.1, 0.1}, false},
		{"per facet", PerFacet([]float64{1, 2, 3}), 3, []float64{1, 2, 3}, false},
		{"length mismatch", PerFacet([]float64{1, 2}), 3, nil, true},
		{"unset", Param{}, 3, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p.Resolve(tt.n)
			if tt.wantErr {
				if !errors.Is(err, ErrParameter) {
					t.Fatalf("expected ErrParameter, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve failed: %v", err)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("value %d = %g, want %g", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPerFacetCopies(t *testing.T) {
	src := []float64{1, 2}
	p := PerFacet(src)
	src[0] = 99
	if p.At(0) != 1 {
		t.Error("PerFacet aliases its input")
	}
}

func TestResolveDerivedQuantities(t *testing.T) {
	p := regolith()
	p.Emissivity = PerFacet([]float64{0.9, 0.95})

	tab, err := p.Resolve(2)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	k := 200.0 * 200.0 / (1270 * 600)
	if math.Abs(tab.Conductivity[0]-k) > 1e-12 {
		t.Errorf("conductivity = %g, want %g", tab.Conductivity[0], k)
	}
	if math.Abs(tab.Inertia[1]-200) > 1e-9 {
		t.Errorf("inertia round trip = %g, want 200", tab.Inertia[1])
	}
	l := math.Sqrt(k * p.Period / (1270 * 600))
	if math.Abs(tab.SkinDepth[0]-l) > 1e-12 {
		t.Errorf("skin depth = %g, want %g", tab.SkinDepth[0], l)
	}
	if tab.Emissivity[1] != 0.95 {
		t.Errorf("per-facet emissivity lost: %g", tab.Emissivity[1])
	}
}

func TestResolveRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"both k and inertia", func(p *Params) { p.Conductivity = Scalar(0.1) }},
		{"neither k nor inertia", func(p *Params) { p.Inertia = Param{} }},
		{"albedo above one", func(p *Params) { p.BondAlbedo = Scalar(1.5) }},
		{"zero emissivity", func(p *Params) { p.Emissivity = Scalar(0) }},
		{"negative density", func(p *Params) { p.Density = Scalar(-1) }},
		{"zero period", func(p *Params) { p.Period = 0 }},
		{"missing heat capacity", func(p *Params) { p.HeatCapacity = Param{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := regolith()
			tt.mutate(&p)
			if _, err := p.Resolve(4); !errors.Is(err, ErrParameter) {
				t.Errorf("expected ErrParameter, got %v", err)
			}
		})
	}
}

func TestGridStepRatio(t *testing.T) {
	g := Grid{Nodes: 11, Max: 5, Unit: SkinDepths}
	if got := g.StepRatio(0.01); got != 0.5 {
		t.Errorf("skin-depth grid ratio = %g, want 0.5", got)
	}

	m := Grid{Nodes: 11, Max: 0.1, Unit: Meters}
	if got := m.StepRatio(0.02); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("metre grid ratio = %g, want 0.5", got)
	}
	if !math.IsInf(m.StepRatio(0), 1) {
		t.Error("zero skin depth should decouple the column")
	}

	// Γ=0 decouples the column whatever the grid unit.
	s := Grid{Nodes: 5, Max: 0.4, Unit: SkinDepths}
	r := s.StepRatio(SkinDepth(0, 1500, 600, 3600))
	if !math.IsInf(r, 1) {
		t.Fatalf("zero skin depth on a skin-depth grid = %g, want +Inf", r)
	}
	if l := DiffusionNumber(36, 3600, r); l != 0 {
		t.Errorf("diffusion number at zero conduction = %g, want 0", l)
	}
	if c := Coupling(0, 3600, r); c != 0 {
		t.Errorf("coupling at zero conduction = %g, want 0", c)
	}
}

func TestGridValidate(t *testing.T) {
	bad := []Grid{
		{Nodes: 2, Max: 1, Unit: SkinDepths},
		{Nodes: 10, Max: 0, Unit: SkinDepths},
		{Nodes: 10, Max: 1},
	}
	for _, g := range bad {
		if err := g.Validate(); !errors.Is(err, ErrParameter) {
			t.Errorf("grid %+v: expected ErrParameter, got %v", g, err)
		}
	}
	if err := (Grid{Nodes: 3, Max: 1, Unit: Meters}).Validate(); err != nil {
		t.Errorf("valid grid rejected: %v", err)
	}
}

func TestDiffusionNumberAndCoupling(t *testing.T) {
	period := 3600.0
	dt := 36.0
	ratio := StepRatioFor(0.2, dt, period)
	if got := DiffusionNumber(dt, period, ratio); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("round trip lambda = %g, want 0.2", got)
	}

	// k/Δz must equal Γ/sqrt(4πP)/Δz̄ with Δz̄ = Δz/(sqrt(4π) l).
	k, rho, cp := 0.05, 1500.0, 700.0
	l := SkinDepth(k, rho, cp, period)
	g := ThermalInertia(k, rho, cp)
	dz := 0.3 * l
	want := k / dz
	if got := Coupling(g, period, dz/l); math.Abs(got-want)/want > 1e-12 {
		t.Errorf("coupling = %g, want %g", got, want)
	}
	dzBar := dz / (math.Sqrt(4*math.Pi) * l)
	if alt := g / math.Sqrt(4*math.Pi*period) / dzBar; math.Abs(alt-want)/want > 1e-12 {
		t.Errorf("nondimensional form = %g, want %g", alt, want)
	}
}

func TestTemperatureShape(t *testing.T) {
	if _, err := NewTemperatureFrom(make([]float64, 10), 5, 2, 2); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}

	temp := NewTemperature(5, 2, 3)
	if err := temp.CheckShape(5, 2, 4); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("expected ErrShapeMismatch, got %v", err)
	}
	if err := temp.CheckShape(5, 2, 3); err != nil {
		t.Errorf("matching shape rejected: %v", err)
	}
}

func TestTemperatureColumnAliases(t *testing.T) {
	temp := NewTemperature(4, 3, 2)
	col := temp.Column(2, 1)
	col[3] = 42
	if temp.At(3, 2, 1) != 42 {
		t.Error("column does not alias the field")
	}

	temp.Fill(0, 100)
	s := temp.Surface(0, nil)
	if len(s) != 3 || s[2] != 100 {
		t.Errorf("surface = %v", s)
	}
	if temp.At(0, 0, 1) != 0 {
		t.Error("fill leaked into the next step")
	}

	temp.Set(0, 1, 1, math.NaN())
	if temp.SurfaceFinite(1) {
		t.Error("NaN surface not detected")
	}
}
