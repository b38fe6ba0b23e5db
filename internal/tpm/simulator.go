// Package tpm drives the thermophysical model: for every time step it updates
// the incoming flux, records force, torque and surface temperature inside the
// save window, keeps the energy ledger and advances the temperature field.
package tpm

import (
	"context"
	"fmt"
	"math"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/boundary"
	"github.com/san-kum/tpmsim/internal/conduction"
	"github.com/san-kum/tpmsim/internal/energy"
	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/thermo"
)

// Config selects the run policies shared by single and binary drivers.
type Config struct {
	Upper   boundary.Condition
	Lower   boundary.Condition
	Save    SaveWindow
	Workers int
	// MutualHeating requests re-emission between the bodies of a binary.
	MutualHeating bool
}

// DefaultConfig uses a radiating surface, an insulated bottom and keeps
// every step.
func DefaultConfig() Config {
	return Config{
		Upper: boundary.NewRadiation(),
		Lower: boundary.NewInsulation(),
		Save:  SaveAll(),
	}
}

// Diagnostics summarises the numerical health of a run.
type Diagnostics struct {
	Steps         int
	NonConverged  int
	MaxIterations int
	EnergyRatio   float64
	Absorbed      float64 // J over the whole run
	Emitted       float64
	Eclipsed      int // facet-steps in eclipse
}

// Result holds the saved outputs of one body.
type Result struct {
	Body        string
	Steps       []int
	Times       []float64
	Surface     *mat.Dense // facets × saved steps, K
	Force       []r3.Vec   // N, body frame
	Torque      []r3.Vec   // N m, body frame
	Eclipsed    [][]bool   // per saved step, binary runs only
	Diagnostics Diagnostics
}

// MeanForce averages the saved force vectors.
func (r *Result) MeanForce() r3.Vec { return mean(r.Force) }

// MeanTorque averages the saved torque vectors.
func (r *Result) MeanTorque() r3.Vec { return mean(r.Torque) }

func mean(vs []r3.Vec) r3.Vec {
	var m r3.Vec
	if len(vs) == 0 {
		return m
	}
	for _, v := range vs {
		m = r3.Add(m, v)
	}
	return r3.Scale(1/float64(len(vs)), m)
}

type Option func(*options)

type options struct {
	logger    log.Logger
	observers []Observer
}

func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

func buildOptions(opts []Option) options {
	o := options{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Simulator runs a single body through its ephemeris.
type Simulator struct {
	body     *Body
	eph      *ephem.Ephemeris
	provider flux.Provider
	cfg      Config
	opts     options
}

func New(body *Body, eph *ephem.Ephemeris, provider flux.Provider, cfg Config, opts ...Option) *Simulator {
	return &Simulator{
		body:     body,
		eph:      eph,
		provider: provider,
		cfg:      cfg,
		opts:     buildOptions(opts),
	}
}

// Run steps the body through every ephemeris sample. All configuration
// errors are reported before the first step. On cancellation the partial
// result is returned with the context error.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	r, err := newRunner(s.body, s.eph, s.provider, s.cfg)
	if err != nil {
		return nil, err
	}
	logger := log.With(s.opts.logger, "body", s.body.Name)
	level.Info(logger).Log("msg", "run started", "facets", s.body.Len(), "steps", r.nt,
		"nodes", s.body.Grid.Nodes, "lambda_max", r.lambdaMax, "save", s.cfg.Save)

	stop := func(err error) (*Result, error) {
		res := r.finish()
		r.logSummary(logger, err)
		return res, err
	}
	for n := 0; n < r.nt; n++ {
		select {
		case <-ctx.Done():
			return stop(ctx.Err())
		default:
		}

		if err := r.updateFlux(n); err != nil {
			return stop(err)
		}
		r.record(n, nil)
		if n < r.nt-1 {
			if err := r.advance(n); err != nil {
				return stop(err)
			}
		}
		for _, o := range s.opts.observers {
			o.OnStep(r.info)
		}
	}
	return stop(nil)
}

// runner holds the per-body state of one run.
type runner struct {
	body     *Body
	eph      *ephem.Ephemeris
	provider flux.Provider
	stepper  *conduction.Stepper
	problem  conduction.Problem
	ledger   *energy.Ledger

	nt        int
	slot      []int
	lambdaMax float64

	surface  []float64
	absorbed []float64
	emitted  []float64

	res  *Result
	info StepInfo
}

func newRunner(b *Body, eph *ephem.Ephemeris, p flux.Provider, cfg Config) (*runner, error) {
	if b == nil || eph == nil || p == nil {
		return nil, fmt.Errorf("tpm: body, ephemeris and flux provider are required")
	}
	if err := eph.Validate(); err != nil {
		return nil, err
	}
	nt := eph.Len()
	ns := b.Len()
	if err := b.Temp.CheckShape(b.Grid.Nodes, b.Len(), nt); err != nil {
		return nil, fmt.Errorf("body %q against %d ephemeris samples: %w", b.Name, nt, err)
	}
	upper, err := cfg.Upper.Upper()
	if err != nil {
		return nil, err
	}
	lower, err := cfg.Lower.Lower()
	if err != nil {
		return nil, err
	}
	maxStep := eph.MaxStep()
	if err := b.CheckStability(maxStep); err != nil {
		return nil, err
	}
	if !b.Temp.SurfaceFinite(0) {
		return nil, fmt.Errorf("%w: non-finite initial temperature", ErrUnstable)
	}
	steps, err := cfg.Save.Resolve(nt)
	if err != nil {
		return nil, err
	}

	r := &runner{
		body:     b,
		eph:      eph,
		provider: p,
		stepper:  conduction.NewStepper(cfg.Workers),
		problem: conduction.Problem{
			Lambda:   make([]float64, ns),
			Surfaces: make([]boundary.Surface, ns),
			Upper:    upper,
			Lower:    lower,
		},
		ledger:    energy.NewLedger(b.Table.Period),
		nt:        nt,
		slot:      slots(steps, nt),
		lambdaMax: b.MaxDiffusionNumber(maxStep),
		surface:   make([]float64, ns),
		absorbed:  make([]float64, ns),
		emitted:   make([]float64, ns),
		res: &Result{
			Body:    b.Name,
			Steps:   steps,
			Times:   make([]float64, len(steps)),
			Surface: mat.NewDense(ns, len(steps), nil),
			Force:   make([]r3.Vec, len(steps)),
			Torque:  make([]r3.Vec, len(steps)),
		},
	}
	r.res.Diagnostics.EnergyRatio = math.NaN()
	for j, n := range steps {
		r.res.Times[j] = eph.Times[n]
	}
	return r, nil
}

func (r *runner) stepError(n int, err error) error {
	return &StepError{Body: r.body.Name, Step: n, Time: r.eph.Times[n], Err: err}
}

// updateFlux fills the body's flux records for step n.
func (r *runner) updateFlux(n int) error {
	r.info = StepInfo{Body: r.body.Name, Step: n, Steps: r.nt, Time: r.eph.Times[n], Phase: AwaitingFlux}
	r.surface = r.body.Temp.Surface(n, r.surface)
	return r.updateFluxFrom(n, r.eph.Sun[n])
}

func (r *runner) updateFluxFrom(n int, sun r3.Vec) error {
	if err := r.provider.Update(n, sun, r.surface, r.body.Flux); err != nil {
		return r.stepError(n, err)
	}
	r.info.Phase = FluxReady
	return nil
}

// record computes the absorbed flux, saves outputs when n is in the window
// and updates the energy ledger. eclipsed is the binary eclipse mask.
func (r *runner) record(n int, eclipsed []bool) {
	tab := r.body.Table
	for i, rec := range r.body.Flux {
		r.absorbed[i] = rec.Absorbed(tab.BondAlbedo[i], tab.IRAlbedo[i])
	}

	if j := r.slot[n]; j >= 0 {
		f, tq := Recoil(r.body.Shape, tab, r.body.Flux, r.surface)
		r.res.Force[j] = f
		r.res.Torque[j] = tq
		r.res.Surface.SetCol(j, r.surface)
		if eclipsed != nil {
			if r.res.Eclipsed == nil {
				r.res.Eclipsed = make([][]bool, len(r.res.Steps))
			}
			r.res.Eclipsed[j] = append([]bool(nil), eclipsed...)
		}
		r.info.Phase = ForceComputed
		r.info.Saved = true
	}

	bal := energy.Evaluate(r.absorbed, r.surface, tab.Emissivity, r.body.Shape.Areas(), r.emitted)
	r.ledger.Observe(r.eph.Times[n], r.interval(n), bal)
	r.info.EnergyRatio = r.ledger.Ratio()

	var sum float64
	for _, t := range r.surface {
		sum += t
	}
	r.info.MeanSurface = sum / float64(len(r.surface))
	r.res.Diagnostics.Steps = n + 1
}

// interval is the time a sample stands for in the energy ledger.
func (r *runner) interval(n int) float64 {
	if n+1 < r.nt {
		return r.eph.Step(n)
	}
	return r.eph.Step(n - 1)
}

// advance writes step n+1 of the temperature field.
func (r *runner) advance(n int) error {
	b := r.body
	dt := r.eph.Step(n)
	for i := range r.problem.Lambda {
		r.problem.Lambda[i] = thermo.DiffusionNumber(dt, b.Table.Period, b.stepRatio[i])
		r.problem.Surfaces[i] = boundary.Surface{
			Absorbed:   r.absorbed[i],
			Emissivity: b.Table.Emissivity[i],
			Coupling:   b.coupling[i],
		}
	}
	rep, err := r.stepper.Step(b.Temp, n, &r.problem)
	if err != nil {
		return r.stepError(n, err)
	}
	d := &r.res.Diagnostics
	d.NonConverged += rep.NonConverged
	if rep.MaxIterations > d.MaxIterations {
		d.MaxIterations = rep.MaxIterations
	}
	r.info.NonConverged = d.NonConverged
	if !b.Temp.SurfaceFinite(n + 1) {
		return r.stepError(n+1, fmt.Errorf("%w: non-finite surface temperature", ErrUnstable))
	}
	r.info.Phase = TemperatureAdvanced
	return nil
}

func (r *runner) finish() *Result {
	d := &r.res.Diagnostics
	d.EnergyRatio = r.ledger.Ratio()
	tot := r.ledger.Total()
	d.Absorbed, d.Emitted = tot.Absorbed, tot.Emitted
	return r.res
}

// logSummary reports the diagnostics gathered so far. A non-nil err marks a
// run that stopped early.
func (r *runner) logSummary(logger log.Logger, err error) {
	d := r.res.Diagnostics
	if d.NonConverged > 0 {
		level.Warn(logger).Log("msg", "radiation boundary did not converge", "facet_steps", d.NonConverged)
	}
	if err != nil {
		level.Warn(logger).Log("msg", "run stopped", "err", err, "steps", d.Steps,
			"energy_ratio", d.EnergyRatio, "max_iterations", d.MaxIterations, "eclipsed", d.Eclipsed)
		return
	}
	level.Info(logger).Log("msg", "run finished", "steps", d.Steps, "energy_ratio", d.EnergyRatio,
		"max_iterations", d.MaxIterations, "eclipsed", d.Eclipsed)
}
