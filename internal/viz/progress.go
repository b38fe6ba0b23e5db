package viz

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/time/rate"

	"github.com/san-kum/tpmsim/internal/tpm"
)

// Progress logs at most one line per interval and body, plus the final step.
type Progress struct {
	logger   log.Logger
	interval time.Duration
	bodies   map[string]*rate.Sometimes
}

func NewProgress(logger log.Logger, interval time.Duration) *Progress {
	return &Progress{logger: logger, interval: interval, bodies: make(map[string]*rate.Sometimes)}
}

func (p *Progress) OnStep(info tpm.StepInfo) {
	s, ok := p.bodies[info.Body]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: p.interval}
		p.bodies[info.Body] = s
	}
	last := info.Step == info.Steps-1
	if last {
		p.log(info)
		return
	}
	s.Do(func() { p.log(info) })
}

func (p *Progress) log(info tpm.StepInfo) {
	level.Info(p.logger).Log(
		"msg", "progress",
		"body", info.Body,
		"step", info.Step+1,
		"of", info.Steps,
		"mean_surface", info.MeanSurface,
		"energy_ratio", info.EnergyRatio,
		"non_converged", info.NonConverged,
	)
}
