package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/tpmsim/internal/boundary"
	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/thermo"
	"github.com/san-kum/tpmsim/internal/tpm"
)

const (
	DefaultPeriod           = 7.6 * 3600
	DefaultDistance         = 1.0
	DefaultStepsPerRotation = 360
	DefaultRotations        = 10
	DefaultNodes            = 30
	DefaultMaxDepth         = 3.0
	DefaultRadius           = 500.0
	DefaultSubdivisions     = 2
	DefaultInitialTemp      = 200.0
	DefaultEpoch            = "2000-01-01T12:00:00Z"
)

type Config struct {
	Name               string          `yaml:"name"`
	Shape              ShapeConfig     `yaml:"shape"`
	Ephemeris          EphemerisConfig `yaml:"ephemeris"`
	Params             ParamsConfig    `yaml:"params"`
	Depth              DepthConfig     `yaml:"depth"`
	Boundary           BoundaryConfig  `yaml:"boundary"`
	Flux               FluxConfig      `yaml:"flux"`
	Save               SaveConfig      `yaml:"save"`
	InitialTemperature float64         `yaml:"initial_temperature"`
	Workers            int             `yaml:"workers,omitempty"`
	Binary             *BinaryConfig   `yaml:"binary,omitempty"`
}

// ShapeConfig loads an OBJ file when Path is set and generates an icosphere
// otherwise.
type ShapeConfig struct {
	Path         string  `yaml:"path,omitempty"`
	Scale        float64 `yaml:"scale,omitempty"`
	Radius       float64 `yaml:"radius,omitempty"`
	Subdivisions int     `yaml:"subdivisions,omitempty"`
	Visibility   bool    `yaml:"visibility,omitempty"`
}

// EphemerisConfig reads a CSV file when Path is set and generates a uniform
// spin otherwise. Angles are in degrees.
type EphemerisConfig struct {
	Path             string  `yaml:"path,omitempty"`
	Epoch            string  `yaml:"epoch"`
	Period           float64 `yaml:"period"`
	Distance         float64 `yaml:"distance"`
	SubsolarLatitude float64 `yaml:"subsolar_latitude"`
	StepsPerRotation int     `yaml:"steps_per_rotation"`
	Rotations        int     `yaml:"rotations"`
}

type ParamsConfig struct {
	BondAlbedo   Value `yaml:"bond_albedo"`
	IRAlbedo     Value `yaml:"ir_albedo"`
	Conductivity Value `yaml:"conductivity,omitempty"`
	Inertia      Value `yaml:"thermal_inertia,omitempty"`
	Density      Value `yaml:"density"`
	HeatCapacity Value `yaml:"heat_capacity"`
	Emissivity   Value `yaml:"emissivity"`
}

type DepthConfig struct {
	Nodes int     `yaml:"nodes"`
	Max   float64 `yaml:"max"`
	Unit  string  `yaml:"unit"`
}

// BoundaryConfig names the boundary kinds. Isothermal boundaries need the
// matching temperature.
type BoundaryConfig struct {
	Upper            string   `yaml:"upper"`
	Lower            string   `yaml:"lower"`
	UpperTemperature *float64 `yaml:"upper_temperature,omitempty"`
	LowerTemperature *float64 `yaml:"lower_temperature,omitempty"`
}

type FluxConfig struct {
	Shadowing  bool `yaml:"shadowing"`
	Scattering bool `yaml:"scattering"`
	Reemission bool `yaml:"reemission"`
}

// SaveConfig selects the retained steps. Mode is one of all, last, range,
// steps or last_rotation.
type SaveConfig struct {
	Mode  string `yaml:"mode"`
	Last  int    `yaml:"last,omitempty"`
	From  int    `yaml:"from,omitempty"`
	To    int    `yaml:"to,omitempty"`
	Steps []int  `yaml:"steps,omitempty"`
}

type BinaryConfig struct {
	Shape         ShapeConfig   `yaml:"shape"`
	Params        *ParamsConfig `yaml:"params,omitempty"`
	OrbitPeriod   float64       `yaml:"orbit_period"`
	Separation    float64       `yaml:"separation"`
	MutualHeating bool          `yaml:"mutual_heating,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "sphere",
		Shape: ShapeConfig{
			Scale:        1,
			Radius:       DefaultRadius,
			Subdivisions: DefaultSubdivisions,
		},
		Ephemeris: EphemerisConfig{
			Epoch:            DefaultEpoch,
			Period:           DefaultPeriod,
			Distance:         DefaultDistance,
			StepsPerRotation: DefaultStepsPerRotation,
			Rotations:        DefaultRotations,
		},
		Params: ParamsConfig{
			BondAlbedo:   Scalar(0.1),
			IRAlbedo:     Scalar(0),
			Inertia:      Scalar(200),
			Density:      Scalar(1500),
			HeatCapacity: Scalar(600),
			Emissivity:   Scalar(0.9),
		},
		Depth: DepthConfig{
			Nodes: DefaultNodes,
			Max:   DefaultMaxDepth,
			Unit:  thermo.SkinDepths.String(),
		},
		Boundary: BoundaryConfig{
			Upper: boundary.Radiation.String(),
			Lower: boundary.Insulation.String(),
		},
		Save:               SaveConfig{Mode: "last_rotation"},
		InitialTemperature: DefaultInitialTemp,
	}
}

// Load reads a YAML config, or an INI-style one for .gcfg and .ini files.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gcfg", ".ini":
		return LoadLegacy(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	// Explicit parameters replace the defaults rather than merging with them.
	cfg.Params = ParamsConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Params.isZero() {
		cfg.Params = DefaultConfig().Params
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks everything that can be checked without loading files.
func (c *Config) Validate() error {
	if _, err := c.ThermoParams(c.Params); err != nil {
		return err
	}
	g, err := c.Grid()
	if err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return err
	}
	if _, err := c.TPMConfig(); err != nil {
		return err
	}
	if _, err := c.Epoch(); err != nil {
		return err
	}
	if c.Ephemeris.Path == "" {
		if _, err := ephem.Spin(c.SpinConfig()); err != nil {
			return err
		}
	}
	if c.InitialTemperature < 0 {
		return fmt.Errorf("%w: negative initial temperature", thermo.ErrParameter)
	}
	if b := c.Binary; b != nil {
		if !(b.OrbitPeriod > 0) || !(b.Separation > 0) {
			return fmt.Errorf("%w: binary orbit period and separation must be positive", thermo.ErrParameter)
		}
		if b.Params != nil {
			if _, err := c.ThermoParams(*b.Params); err != nil {
				return fmt.Errorf("secondary: %w", err)
			}
		}
	}
	return nil
}

// ThermoParams converts p using the ephemeris rotation period. Parameters are
// only resolved against a facet count later.
func (c *Config) ThermoParams(p ParamsConfig) (thermo.Params, error) {
	tp := thermo.Params{
		BondAlbedo:   p.BondAlbedo.Param(),
		IRAlbedo:     p.IRAlbedo.Param(),
		Conductivity: p.Conductivity.Param(),
		Inertia:      p.Inertia.Param(),
		Density:      p.Density.Param(),
		HeatCapacity: p.HeatCapacity.Param(),
		Emissivity:   p.Emissivity.Param(),
		Period:       c.Ephemeris.Period,
	}
	if tp.Conductivity.IsSet() == tp.Inertia.IsSet() {
		return tp, fmt.Errorf("%w: set exactly one of conductivity and thermal_inertia", thermo.ErrParameter)
	}
	if !(tp.Period > 0) {
		return tp, fmt.Errorf("%w: rotation period must be positive", thermo.ErrParameter)
	}
	return tp, nil
}

func (c *Config) Grid() (thermo.Grid, error) {
	u, err := thermo.ParseDepthUnit(c.Depth.Unit)
	if err != nil {
		return thermo.Grid{}, err
	}
	return thermo.Grid{Nodes: c.Depth.Nodes, Max: c.Depth.Max, Unit: u}, nil
}

func condition(kind string, temp *float64) (boundary.Condition, error) {
	k, err := boundary.ParseKind(kind)
	if err != nil {
		return boundary.Condition{}, err
	}
	if k == boundary.Isothermal {
		if temp == nil {
			return boundary.Condition{}, fmt.Errorf("%w: isothermal boundary needs a temperature", boundary.ErrUnsupported)
		}
		return boundary.NewIsothermal(*temp), nil
	}
	return boundary.Condition{Kind: k}, nil
}

// SaveWindow converts the save section. last_rotation keeps one rotation
// plus the closing sample.
func (c *Config) SaveWindow() (tpm.SaveWindow, error) {
	s := c.Save
	switch strings.ToLower(s.Mode) {
	case "", "all":
		return tpm.SaveAll(), nil
	case "last":
		return tpm.SaveLast(s.Last), nil
	case "last_rotation":
		return tpm.SaveLast(c.Ephemeris.StepsPerRotation + 1), nil
	case "range":
		return tpm.SaveRange(s.From, s.To), nil
	case "steps":
		return tpm.SaveSteps(s.Steps...), nil
	}
	return tpm.SaveWindow{}, fmt.Errorf("%w: unknown save mode %q", thermo.ErrParameter, s.Mode)
}

// TPMConfig builds the driver configuration.
func (c *Config) TPMConfig() (tpm.Config, error) {
	up, err := condition(c.Boundary.Upper, c.Boundary.UpperTemperature)
	if err != nil {
		return tpm.Config{}, fmt.Errorf("upper boundary: %w", err)
	}
	low, err := condition(c.Boundary.Lower, c.Boundary.LowerTemperature)
	if err != nil {
		return tpm.Config{}, fmt.Errorf("lower boundary: %w", err)
	}
	if _, err := low.Lower(); err != nil {
		return tpm.Config{}, fmt.Errorf("lower boundary: %w", err)
	}
	save, err := c.SaveWindow()
	if err != nil {
		return tpm.Config{}, err
	}
	cfg := tpm.Config{Upper: up, Lower: low, Save: save, Workers: c.Workers}
	if c.Binary != nil {
		cfg.MutualHeating = c.Binary.MutualHeating
	}
	return cfg, nil
}

func (c *Config) Epoch() (time.Time, error) {
	if c.Ephemeris.Epoch == "" {
		return time.Parse(time.RFC3339, DefaultEpoch)
	}
	t, err := time.Parse(time.RFC3339, c.Ephemeris.Epoch)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: epoch: %v", ephem.ErrEphemeris, err)
	}
	return t, nil
}

func (c *Config) SpinConfig() ephem.SpinConfig {
	epoch, _ := c.Epoch()
	e := c.Ephemeris
	return ephem.SpinConfig{
		Period:           e.Period,
		Distance:         e.Distance,
		SubsolarLatitude: e.SubsolarLatitude * math.Pi / 180,
		StepsPerRotation: e.StepsPerRotation,
		Rotations:        e.Rotations,
		Epoch:            epoch,
	}
}
