// Package thermo holds the thermophysical parameter model and the depth
// discretization shared by the conduction stepper and the boundary solvers.
//
// Every physical property is a [Param]: either one value broadcast to all
// facets or one value per facet. [Params.Resolve] turns a parameter set into
// a [Table] of per-facet lookups once, before stepping, so the hot loops
// never branch on how a property was supplied.
//
// # Units
//
// The solver measures depth in units of sqrt(4π)·l, where l = sqrt(kP/(ρCp))
// is the thermal skin depth. With that choice the conduction term of the
// surface energy balance is (Γ/sqrt(4πP))·(T1−T0)/Δz̄ and the explicit
// diffusion number reduces to λ' = (Δt/P)/(Δz/l)² = κΔt/Δz².
//
// [Temperature] is the dense (depth, facet, step) field that carries the whole
// simulation state.
package thermo
