package thermo

import (
	"fmt"
	"math"
)

// Param is a physical property given either as one value for every facet or
// as one value per facet.
type Param struct {
	scalar float64
	values []float64
	set    bool
}

// Scalar returns a Param broadcasting v to every facet.
func Scalar(v float64) Param {
	return Param{scalar: v, set: true}
}

// PerFacet returns a Param with one value per facet. The slice is copied.
func PerFacet(vs []float64) Param {
	c := make([]float64, len(vs))
	copy(c, vs)
	return Param{values: c, set: true}
}

func (p Param) IsSet() bool      { return p.set }
func (p Param) IsPerFacet() bool { return p.values != nil }

// At returns the value for facet i.
func (p Param) At(i int) float64 {
	if p.values != nil {
		return p.values[i]
	}
	return p.scalar
}

// Resolve expands p into a lookup table of length n.
func (p Param) Resolve(n int) ([]float64, error) {
	if !p.set {
		return nil, fmt.Errorf("%w: value not supplied", ErrParameter)
	}
	out := make([]float64, n)
	if p.values == nil {
		for i := range out {
			out[i] = p.scalar
		}
		return out, nil
	}
	if len(p.values) != n {
		return nil, fmt.Errorf("%w: %d per-facet values for %d facets", ErrParameter, len(p.values), n)
	}
	copy(out, p.values)
	return out, nil
}

// Params is the thermophysical parameter set of one body. Exactly one of
// Conductivity and Inertia must be set; the other is derived.
type Params struct {
	BondAlbedo   Param
	IRAlbedo     Param
	Conductivity Param // W m^-1 K^-1
	Inertia      Param // J m^-2 K^-1 s^-1/2
	Density      Param // kg m^-3
	HeatCapacity Param // J kg^-1 K^-1
	Emissivity   Param
	Period       float64 // rotation period, s
}

// Table is a Params set resolved to per-facet lookups.
type Table struct {
	N            int
	Period       float64
	BondAlbedo   []float64
	IRAlbedo     []float64
	Conductivity []float64
	Inertia      []float64
	Density      []float64
	HeatCapacity []float64
	Emissivity   []float64
	SkinDepth    []float64
}

// Resolve validates p and expands it for n facets.
func (p Params) Resolve(n int) (*Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: no facets", ErrParameter)
	}
	if !(p.Period > 0) {
		return nil, fmt.Errorf("%w: rotation period must be positive, got %g", ErrParameter, p.Period)
	}
	if p.Conductivity.IsSet() == p.Inertia.IsSet() {
		return nil, fmt.Errorf("%w: exactly one of conductivity and thermal inertia must be given", ErrParameter)
	}

	t := &Table{N: n, Period: p.Period}
	fields := []struct {
		name string
		p    Param
		dst  *[]float64
		ok   func(float64) bool
	}{
		{"bond albedo", p.BondAlbedo, &t.BondAlbedo, unit},
		{"thermal-infrared albedo", p.IRAlbedo, &t.IRAlbedo, unit},
		{"density", p.Density, &t.Density, positive},
		{"heat capacity", p.HeatCapacity, &t.HeatCapacity, positive},
		{"emissivity", p.Emissivity, &t.Emissivity, func(v float64) bool { return v > 0 && v <= 1 }},
	}
	for _, f := range fields {
		vs, err := f.p.Resolve(n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		for i, v := range vs {
			if !f.ok(v) {
				return nil, fmt.Errorf("%w: %s %g out of range at facet %d", ErrParameter, f.name, v, i)
			}
		}
		*f.dst = vs
	}

	t.Conductivity = make([]float64, n)
	t.Inertia = make([]float64, n)
	t.SkinDepth = make([]float64, n)
	if p.Conductivity.IsSet() {
		ks, err := p.Conductivity.Resolve(n)
		if err != nil {
			return nil, fmt.Errorf("conductivity: %w", err)
		}
		copy(t.Conductivity, ks)
	} else {
		gs, err := p.Inertia.Resolve(n)
		if err != nil {
			return nil, fmt.Errorf("thermal inertia: %w", err)
		}
		for i, g := range gs {
			t.Conductivity[i] = ConductivityFromInertia(g, t.Density[i], t.HeatCapacity[i])
		}
	}
	for i, k := range t.Conductivity {
		if !nonNegative(k) {
			return nil, fmt.Errorf("%w: conductivity %g out of range at facet %d", ErrParameter, k, i)
		}
		t.Inertia[i] = ThermalInertia(k, t.Density[i], t.HeatCapacity[i])
		t.SkinDepth[i] = SkinDepth(k, t.Density[i], t.HeatCapacity[i], p.Period)
	}
	return t, nil
}

// ThermalInertia returns Γ = sqrt(kρCp).
func ThermalInertia(k, rho, cp float64) float64 {
	return math.Sqrt(k * rho * cp)
}

// ConductivityFromInertia returns k = Γ²/(ρCp).
func ConductivityFromInertia(inertia, rho, cp float64) float64 {
	return inertia * inertia / (rho * cp)
}

// SkinDepth returns l = sqrt(kP/(ρCp)).
func SkinDepth(k, rho, cp, period float64) float64 {
	return math.Sqrt(k * period / (rho * cp))
}

func unit(v float64) bool        { return v >= 0 && v <= 1 }
func positive(v float64) bool    { return v > 0 && !math.IsInf(v, 0) }
func nonNegative(v float64) bool { return v >= 0 && !math.IsInf(v, 0) }
