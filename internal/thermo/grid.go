package thermo

import (
	"fmt"
	"math"
	"strings"
)

// DepthUnit selects how Grid.Max is interpreted.
type DepthUnit uint8

const (
	SkinDepths DepthUnit = iota + 1
	Meters
)

func (u DepthUnit) String() string {
	switch u {
	case SkinDepths:
		return "skin_depths"
	case Meters:
		return "meters"
	}
	return fmt.Sprintf("DepthUnit(%d)", uint8(u))
}

// ParseDepthUnit accepts "skin_depths" or "meters" (and a few spellings).
func ParseDepthUnit(s string) (DepthUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "skin_depths", "skin_depth", "l":
		return SkinDepths, nil
	case "meters", "metres", "m":
		return Meters, nil
	}
	return 0, fmt.Errorf("%w: unknown depth unit %q", ErrParameter, s)
}

// Grid is a uniform depth discretization with Nodes nodes from the surface
// (node 0) down to Max.
type Grid struct {
	Nodes int
	Max   float64
	Unit  DepthUnit
}

func (g Grid) Validate() error {
	if g.Nodes < 3 {
		return fmt.Errorf("%w: depth grid needs at least 3 nodes, got %d", ErrParameter, g.Nodes)
	}
	if !(g.Max > 0) || math.IsInf(g.Max, 0) {
		return fmt.Errorf("%w: depth grid extent must be positive, got %g", ErrParameter, g.Max)
	}
	if g.Unit != SkinDepths && g.Unit != Meters {
		return fmt.Errorf("%w: depth unit not set", ErrParameter)
	}
	return nil
}

// StepRatio returns Δz/l for a facet with skin depth l. A zero skin depth
// yields +Inf: the column is thermally decoupled from the surface.
func (g Grid) StepRatio(skinDepth float64) float64 {
	if skinDepth == 0 {
		return math.Inf(1)
	}
	step := g.Max / float64(g.Nodes-1)
	if g.Unit == SkinDepths {
		return step
	}
	return step / skinDepth
}

// Depths returns node depths in metres for a facet with skin depth l.
func (g Grid) Depths(skinDepth float64) []float64 {
	step := g.Max / float64(g.Nodes-1)
	if g.Unit == SkinDepths {
		step *= skinDepth
	}
	z := make([]float64, g.Nodes)
	for i := range z {
		z[i] = float64(i) * step
	}
	return z
}

// DiffusionNumber returns λ' = (Δt/P)/(Δz/l)².
func DiffusionNumber(dt, period, stepRatio float64) float64 {
	if math.IsInf(stepRatio, 1) {
		return 0
	}
	return dt / period / (stepRatio * stepRatio)
}

// Coupling returns the conduction coefficient of the surface energy balance,
// Γ/sqrt(4πP)/Δz̄ with Δz̄ = Δz/(sqrt(4π)·l). It equals k/Δz in W m^-2 K^-1.
func Coupling(inertia, period, stepRatio float64) float64 {
	if math.IsInf(stepRatio, 1) {
		return 0
	}
	return inertia / math.Sqrt(period) / stepRatio
}

// StepRatioFor returns the Δz/l that gives diffusion number lambda for a time
// step of dt seconds.
func StepRatioFor(lambda, dt, period float64) float64 {
	return math.Sqrt(dt / period / lambda)
}
