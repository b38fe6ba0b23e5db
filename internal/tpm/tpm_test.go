package tpm_test

import (
	"bytes"
	"context"
	"errors"
	"math"

	"github.com/go-kit/kit/log"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/tpmsim/internal/boundary"
	"github.com/san-kum/tpmsim/internal/ephem"
	"github.com/san-kum/tpmsim/internal/flux"
	"github.com/san-kum/tpmsim/internal/shape"
	"github.com/san-kum/tpmsim/internal/thermo"
	"github.com/san-kum/tpmsim/internal/tpm"
)

// plates returns n disjoint unit triangles facing +z.
func plates(n int) *shape.Shape {
	var (
		verts []r3.Vec
		faces [][3]int
	)
	for i := 0; i < n; i++ {
		x := 3 * float64(i)
		verts = append(verts, r3.Vec{X: x}, r3.Vec{X: x + 1}, r3.Vec{X: x, Y: 1})
		faces = append(faces, [3]int{3 * i, 3*i + 1, 3*i + 2})
	}
	sh, err := shape.New(verts, faces)
	Expect(err).NotTo(HaveOccurred())
	return sh
}

func uniformEphemeris(nt int, dt float64) *ephem.Ephemeris {
	e := &ephem.Ephemeris{Times: make([]float64, nt), Sun: make([]r3.Vec, nt)}
	for i := range e.Times {
		e.Times[i] = float64(i) * dt
		e.Sun[i] = r3.Vec{Z: thermo.AU}
	}
	return e
}

func params(inertia, period float64) thermo.Params {
	return thermo.Params{
		BondAlbedo:   thermo.Scalar(0),
		IRAlbedo:     thermo.Scalar(0),
		Inertia:      thermo.Scalar(inertia),
		Density:      thermo.Scalar(1500),
		HeatCapacity: thermo.Scalar(600),
		Emissivity:   thermo.Scalar(1),
		Period:       period,
	}
}

// constantFlux gives facet i a direct flux of fs[i].
func constantFlux(fs ...float64) flux.Provider {
	return flux.ProviderFunc(func(_ int, _ r3.Vec, _ []float64, dst []flux.Record) error {
		for i := range dst {
			dst[i] = flux.Record{Sun: fs[i]}
		}
		return nil
	})
}

var _ = Describe("Single body", func() {
	const (
		period = 3600.0
		dt     = 36000.0
		nt     = 101
		nodes  = 5
	)
	var (
		ratio float64
		grid  thermo.Grid
	)

	BeforeEach(func() {
		ratio = thermo.StepRatioFor(0.2, dt, period)
		grid = thermo.Grid{Nodes: nodes, Max: float64(nodes-1) * ratio, Unit: thermo.SkinDepths}
	})

	Context("two facets with and without sunlight", func() {
		var (
			body *tpm.Body
			res  *tpm.Result
		)

		BeforeEach(func() {
			temp := thermo.NewTemperature(nodes, 2, nt)
			col := temp.Column(1, 0)
			for z := range col {
				col[z] = 300
			}
			var err error
			body, err = tpm.NewBody("plates", plates(2), params(500, period), grid, nt, tpm.WithTemperature(temp))
			Expect(err).NotTo(HaveOccurred())
			Expect(body.MaxDiffusionNumber(dt)).To(BeNumerically("~", 0.2, 1e-12))

			res, err = tpm.New(body, uniformEphemeris(nt, dt), constantFlux(1000, 0), tpm.DefaultConfig()).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("warms the lit facet monotonically to radiative equilibrium", func() {
			eq := boundary.Equilibrium(1000, 1)
			Expect(eq).To(BeNumerically("~", 364.4, 0.1))
			prev := body.Temp.At(0, 0, 0)
			Expect(prev).To(BeZero())
			for n := 1; n < nt; n++ {
				t0 := body.Temp.At(0, 0, n)
				Expect(t0).To(BeNumerically(">=", prev-1e-9), "step %d", n)
				prev = t0
			}
			Expect(prev).To(BeNumerically("~", eq, 0.03*eq))
			Expect(prev).To(BeNumerically("<=", eq))
		})

		It("cools the dark facet monotonically from its seed", func() {
			prev := body.Temp.At(0, 1, 0)
			Expect(prev).To(Equal(300.0))
			for n := 1; n < nt; n++ {
				t0 := body.Temp.At(0, 1, n)
				Expect(t0).To(BeNumerically("<=", prev+1e-9), "step %d", n)
				prev = t0
			}
			Expect(prev).To(BeNumerically("<", 200))
			Expect(prev).To(BeNumerically("<", body.Temp.At(0, 1, 1)))
		})

		It("saves every step and reports diagnostics", func() {
			Expect(res.Steps).To(HaveLen(nt))
			r, c := res.Surface.Dims()
			Expect([]int{r, c}).To(Equal([]int{2, nt}))
			Expect(res.Surface.At(0, nt-1)).To(Equal(body.Temp.At(0, 0, nt-1)))
			Expect(res.Diagnostics.Steps).To(Equal(nt))
			Expect(res.Diagnostics.NonConverged).To(BeZero())
			Expect(res.Diagnostics.MaxIterations).To(BeNumerically("<=", boundary.MaxIterations))
			Expect(res.Eclipsed).To(BeNil())
		})

		It("pushes the lit plate away from its normal", func() {
			f := res.Force[nt-1]
			Expect(f.Z).To(BeNumerically("<", 0))
			Expect(math.Abs(f.X)).To(BeNumerically("<", 1e-30))
		})
	})

	It("rejects a temperature field of the wrong shape before stepping", func() {
		_, err := tpm.NewBody("plates", plates(2), params(500, period), grid, nt,
			tpm.WithTemperature(thermo.NewTemperature(nodes, 2, 50)))
		Expect(err).To(MatchError(tpm.ErrShapeMismatch))

		body, err := tpm.NewBody("plates", plates(2), params(500, period), grid, 50)
		Expect(err).NotTo(HaveOccurred())
		calls := 0
		prov := flux.ProviderFunc(func(int, r3.Vec, []float64, []flux.Record) error { calls++; return nil })
		_, err = tpm.New(body, uniformEphemeris(nt, dt), prov, tpm.DefaultConfig()).Run(context.Background())
		Expect(err).To(MatchError(tpm.ErrShapeMismatch))
		Expect(calls).To(BeZero())
	})

	It("rejects an unstable diffusion number at setup", func() {
		unstable := thermo.Grid{Nodes: nodes, Max: float64(nodes-1) * thermo.StepRatioFor(0.6, dt, period), Unit: thermo.SkinDepths}
		body, err := tpm.NewBody("plates", plates(2), params(500, period), unstable, nt)
		Expect(err).NotTo(HaveOccurred())
		_, err = tpm.New(body, uniformEphemeris(nt, dt), constantFlux(1000, 0), tpm.DefaultConfig()).Run(context.Background())
		Expect(err).To(MatchError(tpm.ErrUnstable))
	})

	It("requires a temperature for isothermal boundaries", func() {
		body, err := tpm.NewBody("plates", plates(2), params(500, period), grid, nt)
		Expect(err).NotTo(HaveOccurred())
		cfg := tpm.DefaultConfig()
		cfg.Lower = boundary.Condition{Kind: boundary.Isothermal}
		_, err = tpm.New(body, uniformEphemeris(nt, dt), constantFlux(1000, 0), cfg).Run(context.Background())
		Expect(err).To(MatchError(boundary.ErrUnsupported))

		cfg.Lower = boundary.NewIsothermal(150)
		res, err := tpm.New(body, uniformEphemeris(nt, dt), constantFlux(1000, 0), cfg).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(body.Temp.At(nodes-1, 1, nt-1)).To(Equal(150.0))
		Expect(res.Diagnostics.Steps).To(Equal(nt))
	})

	It("keeps only the save window and notifies observers", func() {
		body, err := tpm.NewBody("plates", plates(2), params(500, period), grid, nt, tpm.WithInitialTemperature(100))
		Expect(err).NotTo(HaveOccurred())
		cfg := tpm.DefaultConfig()
		cfg.Save = tpm.SaveLast(10)

		var infos []tpm.StepInfo
		obs := tpm.ObserverFunc(func(s tpm.StepInfo) { infos = append(infos, s) })
		res, err := tpm.New(body, uniformEphemeris(nt, dt), constantFlux(1000, 0), cfg, tpm.WithObserver(obs)).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Steps).To(Equal([]int{91, 92, 93, 94, 95, 96, 97, 98, 99, 100}))
		Expect(res.Times[0]).To(Equal(91 * dt))
		Expect(res.Surface.At(1, 9)).To(Equal(body.Temp.At(0, 1, 100)))

		Expect(infos).To(HaveLen(nt))
		Expect(infos[0].Phase).To(Equal(tpm.TemperatureAdvanced))
		Expect(infos[0].Saved).To(BeFalse())
		Expect(infos[95].Saved).To(BeTrue())
		Expect(infos[nt-1].Phase).To(Equal(tpm.ForceComputed))
	})

	It("stops on cancellation", func() {
		body, err := tpm.NewBody("plates", plates(2), params(500, period), grid, nt)
		Expect(err).NotTo(HaveOccurred())
		ctx, cancel := context.WithCancel(context.Background())
		obs := tpm.ObserverFunc(func(s tpm.StepInfo) {
			if s.Step == 4 {
				cancel()
			}
		})
		var logs bytes.Buffer
		res, err := tpm.New(body, uniformEphemeris(nt, dt), constantFlux(1000, 0), tpm.DefaultConfig(),
			tpm.WithObserver(obs), tpm.WithLogger(log.NewLogfmtLogger(&logs))).Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.Diagnostics.Steps).To(Equal(5))
		Expect(logs.String()).To(ContainSubstring("msg=\"run stopped\""))
		Expect(logs.String()).To(ContainSubstring("steps=5"))
	})

	It("logs diagnostics when a step fails", func() {
		body, err := tpm.NewBody("plates", plates(2), params(500, period), grid, nt)
		Expect(err).NotTo(HaveOccurred())
		boom := errors.New("flux unavailable")
		failing := flux.ProviderFunc(func(n int, _ r3.Vec, _ []float64, dst []flux.Record) error {
			if n == 3 {
				return boom
			}
			for i := range dst {
				dst[i] = flux.Record{Sun: 1000}
			}
			return nil
		})

		var logs bytes.Buffer
		res, err := tpm.New(body, uniformEphemeris(nt, dt), failing, tpm.DefaultConfig(),
			tpm.WithLogger(log.NewLogfmtLogger(&logs))).Run(context.Background())
		Expect(err).To(MatchError(boom))
		Expect(res).NotTo(BeNil())
		Expect(logs.String()).To(ContainSubstring("msg=\"run stopped\""))
		Expect(logs.String()).To(ContainSubstring("flux unavailable"))
	})

	It("leaves the column untouched when the body does not conduct", func() {
		const short = 11
		cold := thermo.Grid{Nodes: nodes, Max: 0.4, Unit: thermo.SkinDepths}
		body, err := tpm.NewBody("plates", plates(2), params(0, period), cold, short, tpm.WithInitialTemperature(200))
		Expect(err).NotTo(HaveOccurred())
		Expect(body.MaxDiffusionNumber(36)).To(BeZero())
		Expect(body.CheckStability(36)).To(Succeed())

		_, err = tpm.New(body, uniformEphemeris(short, 36), constantFlux(1000, 500), tpm.DefaultConfig()).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		for n := 1; n < short; n++ {
			Expect(body.Temp.At(0, 0, n)).To(BeNumerically("~", boundary.Equilibrium(1000, 1), 1e-6))
			Expect(body.Temp.At(0, 1, n)).To(BeNumerically("~", boundary.Equilibrium(500, 1), 1e-6))
			for z := 1; z < nodes; z++ {
				Expect(body.Temp.At(z, 0, n)).To(Equal(200.0))
			}
		}
	})
})

var _ = Describe("Energy conservation", func() {
	It("approaches unity over the trailing rotation as the run spins up", func() {
		const (
			period  = 21600.0
			perRot  = 360
			periods = 12
			f0      = 1000.0
		)
		dt := period / perRot
		nt := periods*perRot + 1
		grid := thermo.Grid{Nodes: 16, Max: 1.5, Unit: thermo.SkinDepths}
		body, err := tpm.NewBody("facet", plates(1), params(200, period), grid, nt, tpm.WithInitialTemperature(260))
		Expect(err).NotTo(HaveOccurred())

		eph := uniformEphemeris(nt, dt)
		prov := flux.ProviderFunc(func(n int, _ r3.Vec, _ []float64, dst []flux.Record) error {
			dst[0] = flux.Record{Sun: f0 * math.Max(0, math.Cos(2*math.Pi*eph.Times[n]/period))}
			return nil
		})

		var firstRotation float64
		obs := tpm.ObserverFunc(func(s tpm.StepInfo) {
			if s.Step == perRot {
				firstRotation = s.EnergyRatio
			}
		})
		cfg := tpm.DefaultConfig()
		cfg.Save = tpm.SaveLast(perRot)
		res, err := tpm.New(body, eph, prov, cfg, tpm.WithObserver(obs)).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		ratio := res.Diagnostics.EnergyRatio
		Expect(ratio).To(BeNumerically("~", 1, 0.01))
		Expect(math.Abs(ratio - 1)).To(BeNumerically("<", math.Abs(firstRotation-1)))
		Expect(res.Diagnostics.Absorbed).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Binary system", func() {
	const (
		period = 3600.0
		nt     = 21
	)
	var (
		prim, sec *tpm.Body
		eph       *ephem.Binary
		cfg       tpm.Config
	)

	BeforeEach(func() {
		dt := period / 100
		grid := thermo.Grid{Nodes: 8, Max: 7 * thermo.StepRatioFor(0.25, dt, period), Unit: thermo.SkinDepths}
		var err error
		prim, err = tpm.NewBody("primary", shape.Icosphere(400, 2), params(300, period), grid, nt, tpm.WithInitialTemperature(200))
		Expect(err).NotTo(HaveOccurred())
		sec, err = tpm.NewBody("secondary", shape.Icosphere(100, 2), params(300, period), grid, nt, tpm.WithInitialTemperature(200))
		Expect(err).NotTo(HaveOccurred())

		sun := r3.Vec{X: thermo.AU}
		offset := r3.Vec{X: 1200}
		eph = &ephem.Binary{Primary: uniformEphemeris(nt, dt)}
		for n := 0; n < nt; n++ {
			eph.Primary.Sun[n] = sun
			eph.SunSecondary = append(eph.SunSecondary, r3.Sub(sun, offset))
			eph.Offset = append(eph.Offset, offset)
			eph.Rotation = append(eph.Rotation, mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}))
		}
		cfg = tpm.DefaultConfig()
		cfg.Save = tpm.SaveSteps(0, nt-1)
	})

	direct := func(b *tpm.Body) flux.Provider {
		d, err := flux.NewDirect(b.Shape, b.Table, flux.Options{})
		Expect(err).NotTo(HaveOccurred())
		return d
	}

	It("shadows the primary behind the secondary", func() {
		res, err := tpm.NewBinary(prim, sec, eph, direct(prim), direct(sec), cfg).Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Expect(res.Primary.Diagnostics.Eclipsed).To(BeNumerically(">", 0))
		Expect(res.Secondary.Diagnostics.Eclipsed).To(BeZero())
		Expect(res.Primary.Diagnostics.Eclipsed % nt).To(BeZero())
		Expect(res.Primary.Eclipsed).To(HaveLen(2))

		flagged := 0
		for i, e := range res.Primary.Eclipsed[1] {
			if !e {
				continue
			}
			flagged++
			Expect(prim.Flux[i].Sun).To(BeZero())
			Expect(prim.Shape.Facet(i).Normal.X).To(BeNumerically(">", 0))
		}
		Expect(flagged * nt).To(Equal(res.Primary.Diagnostics.Eclipsed))
		Expect(res.Secondary.Diagnostics.NonConverged).To(BeZero())
	})

	It("refuses mutual heating", func() {
		cfg.MutualHeating = true
		_, err := tpm.NewBinary(prim, sec, eph, direct(prim), direct(sec), cfg).Run(context.Background())
		Expect(err).To(MatchError(tpm.ErrNotImplemented))
	})

	It("logs both bodies when cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		var logs bytes.Buffer
		res, err := tpm.NewBinary(prim, sec, eph, direct(prim), direct(sec), cfg,
			tpm.WithLogger(log.NewLogfmtLogger(&logs))).Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.Primary).NotTo(BeNil())
		Expect(logs.String()).To(ContainSubstring("body=primary"))
		Expect(logs.String()).To(ContainSubstring("body=secondary"))
		Expect(bytes.Count(logs.Bytes(), []byte("run stopped"))).To(Equal(2))
	})

	It("checks both bodies before stepping", func() {
		eph.Offset = eph.Offset[:nt-1]
		_, err := tpm.NewBinary(prim, sec, eph, direct(prim), direct(sec), cfg).Run(context.Background())
		Expect(err).To(MatchError(ephem.ErrEphemeris))
	})
})
