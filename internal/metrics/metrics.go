// Package metrics exports the per-step diagnostics of a run as Prometheus
// metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/tpmsim/internal/tpm"
)

// Collector implements tpm.Observer. Each Collector owns its registry so
// several runs in one process do not collide.
type Collector struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	saved        *prometheus.CounterVec
	progress     *prometheus.GaugeVec
	energyRatio  *prometheus.GaugeVec
	meanSurface  *prometheus.GaugeVec
	nonConverged *prometheus.GaugeVec
	eclipsed     *prometheus.GaugeVec
	stepDuration *prometheus.HistogramVec

	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpm_steps_total",
				Help: "Time steps completed",
			},
			[]string{"body"},
		),
		saved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpm_saved_steps_total",
				Help: "Time steps written to the result",
			},
			[]string{"body"},
		),
		progress: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tpm_progress_ratio",
				Help: "Fraction of the ephemeris processed",
			},
			[]string{"body"},
		),
		energyRatio: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tpm_energy_ratio",
				Help: "Emitted over absorbed energy in the trailing rotation",
			},
			[]string{"body"},
		),
		meanSurface: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tpm_mean_surface_temperature_kelvin",
				Help: "Mean surface temperature over all facets",
			},
			[]string{"body"},
		),
		nonConverged: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tpm_nonconverged_facet_steps",
				Help: "Facet-steps where the surface solver hit its iteration cap",
			},
			[]string{"body"},
		),
		eclipsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tpm_eclipsed_facets",
				Help: "Facets shadowed by the companion at the last step",
			},
			[]string{"body"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tpm_step_duration_seconds",
				Help:    "Wall time between consecutive steps",
				Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
			},
			[]string{"body"},
		),
		last: make(map[string]time.Time),
		now:  time.Now,
	}

	c.registry.MustRegister(
		c.steps,
		c.saved,
		c.progress,
		c.energyRatio,
		c.meanSurface,
		c.nonConverged,
		c.eclipsed,
		c.stepDuration,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) OnStep(info tpm.StepInfo) {
	body := info.Body
	c.steps.WithLabelValues(body).Inc()
	if info.Saved {
		c.saved.WithLabelValues(body).Inc()
	}
	if info.Steps > 0 {
		c.progress.WithLabelValues(body).Set(float64(info.Step+1) / float64(info.Steps))
	}
	c.energyRatio.WithLabelValues(body).Set(info.EnergyRatio)
	c.meanSurface.WithLabelValues(body).Set(info.MeanSurface)
	c.nonConverged.WithLabelValues(body).Set(float64(info.NonConverged))
	c.eclipsed.WithLabelValues(body).Set(float64(info.Eclipsed))

	now := c.now()
	c.mu.Lock()
	prev, ok := c.last[body]
	c.last[body] = now
	c.mu.Unlock()
	if ok {
		c.stepDuration.WithLabelValues(body).Observe(now.Sub(prev).Seconds())
	}
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
