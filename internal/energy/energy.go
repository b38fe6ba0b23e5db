// Package energy keeps the absorbed-versus-emitted bookkeeping used to judge
// whether a run has reached periodic steady state.
package energy

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/tpmsim/internal/thermo"
)

// Emitted returns the radiative loss εσT⁴ of a surface at t0 kelvin.
func Emitted(t0, emissivity float64) float64 {
	t2 := t0 * t0
	return emissivity * thermo.StefanBoltzmann * t2 * t2
}

// Balance is an area-weighted energy rate, W.
type Balance struct {
	Absorbed float64
	Emitted  float64
}

// Ratio returns Emitted/Absorbed, or NaN when nothing was absorbed.
func (b Balance) Ratio() float64 {
	if b.Absorbed == 0 {
		return math.NaN()
	}
	return b.Emitted / b.Absorbed
}

// Evaluate totals the per-facet absorbed flux and the emission of the given
// surface temperatures, weighted by facet area. When emitted is non-nil it
// receives the per-facet emission in W m^-2.
func Evaluate(absorbed, surface, emissivity, areas, emitted []float64) Balance {
	if emitted == nil || len(emitted) < len(surface) {
		emitted = make([]float64, len(surface))
	}
	emitted = emitted[:len(surface)]
	for i, t0 := range surface {
		emitted[i] = Emitted(t0, emissivity[i])
	}
	return Balance{
		Absorbed: floats.Dot(absorbed, areas),
		Emitted:  floats.Dot(emitted, areas),
	}
}

type sample struct {
	t, in, out float64
}

// Ledger integrates balances over a trailing window of one rotation period.
type Ledger struct {
	name    string
	period  float64
	samples []sample
	in, out float64
	total   Balance
}

func NewLedger(period float64) *Ledger {
	return &Ledger{name: "energy_ratio", period: period}
}

func (l *Ledger) Name() string { return l.name }

// Observe records balance b held for dt seconds at time t. Samples older than
// one period before t drop out of the window.
func (l *Ledger) Observe(t, dt float64, b Balance) {
	s := sample{t: t, in: b.Absorbed * dt, out: b.Emitted * dt}
	l.samples = append(l.samples, s)
	l.in += s.in
	l.out += s.out
	l.total.Absorbed += s.in
	l.total.Emitted += s.out

	cut := 0
	for cut < len(l.samples) && l.samples[cut].t <= t-l.period {
		cut++
	}
	// Window totals are re-summed from the kept samples.
	if cut > 0 {
		l.samples = append(l.samples[:0], l.samples[cut:]...)
		l.in, l.out = 0, 0
		for _, s := range l.samples {
			l.in += s.in
			l.out += s.out
		}
	}
}

// Ratio is emitted over absorbed energy within the trailing period, NaN while
// nothing has been absorbed.
func (l *Ledger) Ratio() float64 {
	if l.in == 0 {
		return math.NaN()
	}
	return l.out / l.in
}

func (l *Ledger) Value() float64 { return l.Ratio() }

// Total returns the energy absorbed and emitted over the whole run, J.
func (l *Ledger) Total() Balance { return l.total }

func (l *Ledger) Reset() {
	l.samples = l.samples[:0]
	l.in, l.out = 0, 0
	l.total = Balance{}
}
