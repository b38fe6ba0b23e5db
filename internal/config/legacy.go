package config

import (
	"math"

	"gopkg.in/gcfg.v1"
)

// legacyConfig is the INI-style layout. It carries scalar parameters only.
type legacyConfig struct {
	Run struct {
		Name               string
		Workers            int
		InitialTemperature float64
		Save               string
		Last               int
	}
	Shape struct {
		Path         string
		Scale        float64
		Radius       float64
		Subdivisions int
		Visibility   bool
	}
	Ephemeris struct {
		Path             string
		Epoch            string
		Period           float64
		Distance         float64
		SubsolarLatitude float64
		StepsPerRotation int
		Rotations        int
	}
	Params struct {
		BondAlbedo   float64
		IRAlbedo     float64
		Conductivity float64
		Inertia      float64
		Density      float64
		HeatCapacity float64
		Emissivity   float64
	}
	Depth struct {
		Nodes int
		Max   float64
		Unit  string
	}
	Boundary struct {
		Upper            string
		Lower            string
		UpperTemperature float64
		LowerTemperature float64
	}
	Flux struct {
		Shadowing  bool
		Scattering bool
		Reemission bool
	}
}

// LoadLegacy reads an INI-style config. Keys left out keep their defaults;
// exactly one of Conductivity and Inertia is expected.
func LoadLegacy(path string) (*Config, error) {
	def := DefaultConfig()
	nan := math.NaN()

	var lc legacyConfig
	lc.Run.Name = def.Name
	lc.Run.InitialTemperature = def.InitialTemperature
	lc.Run.Save = def.Save.Mode
	lc.Shape.Scale = def.Shape.Scale
	lc.Shape.Radius = def.Shape.Radius
	lc.Shape.Subdivisions = def.Shape.Subdivisions
	lc.Ephemeris.Epoch = def.Ephemeris.Epoch
	lc.Ephemeris.Period = def.Ephemeris.Period
	lc.Ephemeris.Distance = def.Ephemeris.Distance
	lc.Ephemeris.StepsPerRotation = def.Ephemeris.StepsPerRotation
	lc.Ephemeris.Rotations = def.Ephemeris.Rotations
	lc.Params.BondAlbedo = def.Params.BondAlbedo.Scalar
	lc.Params.IRAlbedo = def.Params.IRAlbedo.Scalar
	lc.Params.Conductivity = nan
	lc.Params.Inertia = nan
	lc.Params.Density = def.Params.Density.Scalar
	lc.Params.HeatCapacity = def.Params.HeatCapacity.Scalar
	lc.Params.Emissivity = def.Params.Emissivity.Scalar
	lc.Depth.Nodes = def.Depth.Nodes
	lc.Depth.Max = def.Depth.Max
	lc.Depth.Unit = def.Depth.Unit
	lc.Boundary.Upper = def.Boundary.Upper
	lc.Boundary.Lower = def.Boundary.Lower
	lc.Boundary.UpperTemperature = nan
	lc.Boundary.LowerTemperature = nan

	if err := gcfg.ReadFileInto(&lc, path); err != nil {
		return nil, err
	}

	cfg := &Config{
		Name: lc.Run.Name,
		Shape: ShapeConfig{
			Path:         lc.Shape.Path,
			Scale:        lc.Shape.Scale,
			Radius:       lc.Shape.Radius,
			Subdivisions: lc.Shape.Subdivisions,
			Visibility:   lc.Shape.Visibility,
		},
		Ephemeris: EphemerisConfig(lc.Ephemeris),
		Params: ParamsConfig{
			BondAlbedo:   Scalar(lc.Params.BondAlbedo),
			IRAlbedo:     Scalar(lc.Params.IRAlbedo),
			Density:      Scalar(lc.Params.Density),
			HeatCapacity: Scalar(lc.Params.HeatCapacity),
			Emissivity:   Scalar(lc.Params.Emissivity),
		},
		Depth:              DepthConfig(lc.Depth),
		Boundary:           BoundaryConfig{Upper: lc.Boundary.Upper, Lower: lc.Boundary.Lower},
		Flux:               FluxConfig(lc.Flux),
		Save:               SaveConfig{Mode: lc.Run.Save, Last: lc.Run.Last},
		InitialTemperature: lc.Run.InitialTemperature,
		Workers:            lc.Run.Workers,
	}
	if !math.IsNaN(lc.Params.Conductivity) {
		cfg.Params.Conductivity = Scalar(lc.Params.Conductivity)
	}
	if !math.IsNaN(lc.Params.Inertia) {
		cfg.Params.Inertia = Scalar(lc.Params.Inertia)
	}
	if cfg.Params.Conductivity.IsZero() && cfg.Params.Inertia.IsZero() {
		cfg.Params.Inertia = def.Params.Inertia
	}
	if t := lc.Boundary.UpperTemperature; !math.IsNaN(t) {
		cfg.Boundary.UpperTemperature = &t
	}
	if t := lc.Boundary.LowerTemperature; !math.IsNaN(t) {
		cfg.Boundary.LowerTemperature = &t
	}
	return cfg, nil
}
