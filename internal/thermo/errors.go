package thermo

import "errors"

// Configuration errors. All of them are detected before the first time step.
var (
	// ErrShapeMismatch indicates a temperature buffer whose dimensions differ
	// from (depth nodes, facets, time steps).
	ErrShapeMismatch = errors.New("thermo: temperature array shape mismatch")

	// ErrParameter indicates a missing or out-of-range physical parameter.
	ErrParameter = errors.New("thermo: invalid thermophysical parameter")

	// ErrUnstable indicates a diffusion number above the explicit stability
	// limit, or a non-finite temperature found at a step boundary.
	ErrUnstable = errors.New("thermo: explicit scheme unstable")
)
