package tpm

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/tpmsim/internal/eclipse"
	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/flux"
)

// BinaryResult holds the outputs of both bodies.
type BinaryResult struct {
	Primary   *Result
	Secondary *Result
}

// Binary runs two bodies in lockstep with mutual eclipsing.
type Binary struct {
	primary, secondary   *Body
	eph                  *ephem.Binary
	provPrim, provSecond flux.Provider
	cfg                  Config
	opts                 options
}

func NewBinary(primary, secondary *Body, eph *ephem.Binary, provPrim, provSecond flux.Provider, cfg Config, opts ...Option) *Binary {
	return &Binary{
		primary:    primary,
		secondary:  secondary,
		eph:        eph,
		provPrim:   provPrim,
		provSecond: provSecond,
		cfg:        cfg,
		opts:       buildOptions(opts),
	}
}

// Run steps both bodies through the binary ephemeris. Each step updates the
// flux of both bodies, zeroes direct and scattered sunlight on eclipsed
// facets, records outputs and then advances both temperature fields.
func (b *Binary) Run(ctx context.Context) (*BinaryResult, error) {
	if b.cfg.MutualHeating {
		return nil, fmt.Errorf("%w: mutual heating between binary components", ErrNotImplemented)
	}
	if b.eph == nil {
		return nil, fmt.Errorf("%w: binary ephemeris is required", ErrParameter)
	}
	if err := b.eph.Validate(); err != nil {
		return nil, err
	}
	ra, err := newRunner(b.primary, b.eph.Primary, b.provPrim, b.cfg)
	if err != nil {
		return nil, err
	}
	rb, err := newRunner(b.secondary, b.eph.Secondary(), b.provSecond, b.cfg)
	if err != nil {
		return nil, err
	}

	det := &eclipse.Detector{Primary: b.primary.Shape, Secondary: b.secondary.Shape, Workers: b.cfg.Workers}
	flagsA := make([]bool, b.primary.Len())
	flagsB := make([]bool, b.secondary.Len())

	logger := b.opts.logger
	level.Info(logger).Log("msg", "binary run started", "primary", b.primary.Name, "secondary", b.secondary.Name,
		"steps", ra.nt, "lambda_max", max(ra.lambdaMax, rb.lambdaMax))

	stop := func(err error) (*BinaryResult, error) {
		res := &BinaryResult{Primary: ra.finish(), Secondary: rb.finish()}
		ra.logSummary(log.With(logger, "body", b.primary.Name), err)
		rb.logSummary(log.With(logger, "body", b.secondary.Name), err)
		return res, err
	}

	for n := 0; n < ra.nt; n++ {
		select {
		case <-ctx.Done():
			return stop(ctx.Err())
		default:
		}

		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error { return ra.updateFlux(n) })
		g.Go(func() error { return rb.updateFlux(n) })
		if err := g.Wait(); err != nil {
			return stop(err)
		}

		nA, nB := det.Detect(eclipse.Geometry{
			SunPrimary:   b.eph.Primary.Sun[n],
			SunSecondary: b.eph.SunSecondary[n],
			Offset:       b.eph.Offset[n],
			Rotation:     b.eph.Rotation[n],
		}, flagsA, flagsB)
		ra.applyEclipse(flagsA, nA)
		rb.applyEclipse(flagsB, nB)

		ra.record(n, flagsA)
		rb.record(n, flagsB)

		if n < ra.nt-1 {
			g, _ := errgroup.WithContext(ctx)
			g.Go(func() error { return ra.advance(n) })
			g.Go(func() error { return rb.advance(n) })
			if err := g.Wait(); err != nil {
				return stop(err)
			}
		}

		for _, o := range b.opts.observers {
			o.OnStep(ra.info)
			o.OnStep(rb.info)
		}
	}

	return stop(nil)
}

func (r *runner) applyEclipse(flags []bool, n int) {
	if n > 0 {
		eclipse.Apply(flags, r.body.Flux)
	}
	r.info.Eclipsed = n
	r.res.Diagnostics.Eclipsed += n
}
