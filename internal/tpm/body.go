package tpm

import (
	"fmt"

	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/shape"
	"github.com/san-kum/tpmsim/internal/thermo"
)

// Body owns the facets, resolved parameters, temperature field and current
// flux of one asteroid.
type Body struct {
	Name   string
	Shape  *shape.Shape
	Params thermo.Params
	Table  *thermo.Table
	Grid   thermo.Grid
	Temp   *thermo.Temperature
	Flux   []flux.Record

	stepRatio []float64
	coupling  []float64
}

type BodyOption func(*bodyOptions)

type bodyOptions struct {
	temp    *thermo.Temperature
	initial float64
}

// WithTemperature uses t as the temperature field. Its shape must be
// (grid nodes, facets, nt).
func WithTemperature(t *thermo.Temperature) BodyOption {
	return func(o *bodyOptions) { o.temp = t }
}

// WithInitialTemperature fills step 0 with v kelvin. The default is 0 K.
func WithInitialTemperature(v float64) BodyOption {
	return func(o *bodyOptions) { o.initial = v }
}

// NewBody validates the parameters against the shape and allocates the state
// for nt time steps.
func NewBody(name string, sh *shape.Shape, p thermo.Params, g thermo.Grid, nt int, opts ...BodyOption) (*Body, error) {
	var o bodyOptions
	for _, opt := range opts {
		opt(&o)
	}
	if sh == nil || sh.Len() == 0 {
		return nil, fmt.Errorf("%w: body %q has no facets", ErrParameter, name)
	}
	if nt < 1 {
		return nil, fmt.Errorf("%w: body %q needs at least one time step", ErrShapeMismatch, name)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("body %q: %w", name, err)
	}
	tab, err := p.Resolve(sh.Len())
	if err != nil {
		return nil, fmt.Errorf("body %q: %w", name, err)
	}
	if o.initial < 0 {
		return nil, fmt.Errorf("%w: negative initial temperature %g", ErrParameter, o.initial)
	}

	ns := sh.Len()
	temp := o.temp
	if temp == nil {
		temp = thermo.NewTemperature(g.Nodes, ns, nt)
	} else if err := temp.CheckShape(g.Nodes, ns, nt); err != nil {
		return nil, fmt.Errorf("body %q: %w", name, err)
	}
	if o.initial != 0 {
		temp.Fill(0, o.initial)
	}

	b := &Body{
		Name:      name,
		Shape:     sh,
		Params:    p,
		Table:     tab,
		Grid:      g,
		Temp:      temp,
		Flux:      make([]flux.Record, ns),
		stepRatio: make([]float64, ns),
		coupling:  make([]float64, ns),
	}
	for i := 0; i < ns; i++ {
		b.stepRatio[i] = g.StepRatio(tab.SkinDepth[i])
		b.coupling[i] = thermo.Coupling(tab.Inertia[i], tab.Period, b.stepRatio[i])
	}
	return b, nil
}

func (b *Body) Len() int { return b.Shape.Len() }

// Steps returns the number of time steps the temperature field holds.
func (b *Body) Steps() int {
	_, _, nt := b.Temp.Shape()
	return nt
}

// StepRatio returns Δz/l of facet i.
func (b *Body) StepRatio(i int) float64 { return b.stepRatio[i] }

// Coupling returns k/Δz of facet i.
func (b *Body) Coupling(i int) float64 { return b.coupling[i] }

// MaxDiffusionNumber returns the largest λ' over all facets for a time step
// of dt seconds.
func (b *Body) MaxDiffusionNumber(dt float64) float64 {
	var m float64
	for _, r := range b.stepRatio {
		if l := thermo.DiffusionNumber(dt, b.Table.Period, r); l > m {
			m = l
		}
	}
	return m
}

// CheckStability fails with ErrUnstable when a time step of dt seconds would
// exceed the explicit stability limit on any facet.
func (b *Body) CheckStability(dt float64) error {
	if l := b.MaxDiffusionNumber(dt); l > thermo.StabilityLimit {
		return fmt.Errorf("%w: body %q: diffusion number %.4g exceeds %g for Δt=%g s",
			ErrUnstable, b.Name, l, thermo.StabilityLimit, dt)
	}
	return nil
}
