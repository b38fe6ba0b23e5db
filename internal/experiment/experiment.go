// Package experiment turns a run configuration into ready-to-run bodies,
// ephemerides and flux providers.
package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/tpmsim/internal/config"
	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/shape"
	"github.com/san-kum/tpmsim/internal/thermo"
	"github.com/san-kum/tpmsim/internal/tpm"
)

const (
	PrimaryName   = "primary"
	SecondaryName = "secondary"
)

type Experiment struct {
	Config    *config.Config
	Ephemeris *ephem.Ephemeris // primary ephemeris
	Binary    *ephem.Binary    // nil for single-body runs
	Bodies    []*tpm.Body

	providers []flux.Provider
	tpmCfg    tpm.Config
}

// Build validates cfg and prepares every body. No step has run when it
// returns.
func Build(cfg *config.Config, reg *Registry) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tpmCfg, err := cfg.TPMConfig()
	if err != nil {
		return nil, err
	}
	e := &Experiment{Config: cfg, tpmCfg: tpmCfg}

	if cfg.Binary == nil {
		e.Ephemeris, err = loadEphemeris(cfg)
	} else {
		if cfg.Ephemeris.Path != "" {
			return nil, fmt.Errorf("%w: binary runs generate their orbit; ephemeris.path is not used", ephem.ErrEphemeris)
		}
		e.Binary, err = ephem.MutualOrbit(ephem.OrbitConfig{
			Spin:        cfg.SpinConfig(),
			OrbitPeriod: cfg.Binary.OrbitPeriod,
			Separation:  cfg.Binary.Separation,
		})
		if e.Binary != nil {
			e.Ephemeris = e.Binary.Primary
		}
	}
	if err != nil {
		return nil, err
	}

	params, err := cfg.ThermoParams(cfg.Params)
	if err != nil {
		return nil, err
	}
	if err := e.addBody(reg, PrimaryName, cfg.Shape, params); err != nil {
		return nil, err
	}

	if b := cfg.Binary; b != nil {
		pc := cfg.Params
		if b.Params != nil {
			pc = *b.Params
		}
		sp, err := cfg.ThermoParams(pc)
		if err != nil {
			return nil, fmt.Errorf("secondary: %w", err)
		}
		// The secondary rotates synchronously with its orbit.
		sp.Period = b.OrbitPeriod
		if err := e.addBody(reg, SecondaryName, b.Shape, sp); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func loadEphemeris(cfg *config.Config) (*ephem.Ephemeris, error) {
	if cfg.Ephemeris.Path == "" {
		return ephem.Spin(cfg.SpinConfig())
	}
	epoch, err := cfg.Epoch()
	if err != nil {
		return nil, err
	}
	return ephem.LoadCSV(cfg.Ephemeris.Path, epoch)
}

func (e *Experiment) addBody(reg *Registry, name string, sc config.ShapeConfig, p thermo.Params) error {
	sh, err := reg.Shape(sc)
	if err != nil {
		return fmt.Errorf("%s shape: %w", name, err)
	}
	if sc.Visibility {
		sh.FindVisible(e.Config.Workers)
	}
	g, err := e.Config.Grid()
	if err != nil {
		return err
	}
	body, err := tpm.NewBody(name, sh, p, g, e.Ephemeris.Len(),
		tpm.WithInitialTemperature(e.Config.InitialTemperature))
	if err != nil {
		return err
	}
	fl := e.Config.Flux
	prov, err := flux.NewDirect(sh, body.Table, flux.Options{
		Shadowing:  fl.Shadowing,
		Scattering: fl.Scattering,
		Reemission: fl.Reemission,
		Workers:    e.Config.Workers,
	})
	if err != nil {
		return err
	}
	e.Bodies = append(e.Bodies, body)
	e.providers = append(e.providers, prov)
	return nil
}

func (e *Experiment) IsBinary() bool { return e.Binary != nil }

func (e *Experiment) BodyNames() []string {
	names := make([]string, len(e.Bodies))
	for i, b := range e.Bodies {
		names[i] = b.Name
	}
	return names
}

// Shapes returns the shape of each body in BodyNames order.
func (e *Experiment) Shapes() []*shape.Shape {
	out := make([]*shape.Shape, len(e.Bodies))
	for i, b := range e.Bodies {
		out[i] = b.Shape
	}
	return out
}

// Run executes the experiment. On cancellation the partial results are
// returned with the context error.
func (e *Experiment) Run(ctx context.Context, opts ...tpm.Option) ([]*tpm.Result, error) {
	if !e.IsBinary() {
		res, err := tpm.New(e.Bodies[0], e.Ephemeris, e.providers[0], e.tpmCfg, opts...).Run(ctx)
		if res == nil {
			return nil, err
		}
		return []*tpm.Result{res}, err
	}

	sim := tpm.NewBinary(e.Bodies[0], e.Bodies[1], e.Binary, e.providers[0], e.providers[1], e.tpmCfg, opts...)
	res, err := sim.Run(ctx)
	if res == nil {
		return nil, err
	}
	var out []*tpm.Result
	for _, r := range []*tpm.Result{res.Primary, res.Secondary} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out, err
}
