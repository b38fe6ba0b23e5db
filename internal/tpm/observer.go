package tpm

import "fmt"

// Phase is the last state a step reached in the driver cycle.
type Phase uint8

const (
	AwaitingFlux Phase = iota
	FluxReady
	ForceComputed
	TemperatureAdvanced
)

func (p Phase) String() string {
	switch p {
	case AwaitingFlux:
		return "awaiting_flux"
	case FluxReady:
		return "flux_ready"
	case ForceComputed:
		return "force_computed"
	case TemperatureAdvanced:
		return "temperature_advanced"
	}
	return fmt.Sprintf("Phase(%d)", uint8(p))
}

// StepInfo is the per-step diagnostic stream. It is advisory only.
type StepInfo struct {
	Body         string
	Step         int
	Steps        int
	Time         float64
	Phase        Phase
	Saved        bool
	EnergyRatio  float64
	NonConverged int
	Eclipsed     int
	MeanSurface  float64
}

// Observer receives StepInfo after each step, from the goroutine that called
// Run. Binary runs report the primary before the secondary.
type Observer interface {
	OnStep(StepInfo)
}

type ObserverFunc func(StepInfo)

func (f ObserverFunc) OnStep(s StepInfo) { f(s) }
