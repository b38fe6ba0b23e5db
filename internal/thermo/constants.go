package thermo

// Physical constants (SI).
const (
	StefanBoltzmann = 5.670374419e-8 // W m^-2 K^-4
	SolarConstant   = 1361.0         // W m^-2 at 1 au
	SpeedOfLight    = 299792458.0    // m s^-1
	AU              = 1.495978707e11 // m
)

// StabilityLimit is the largest diffusion number the explicit scheme accepts.
const StabilityLimit = 0.5
