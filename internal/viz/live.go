package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/time/rate"

	"github.com/san-kum/tpmsim/internal/tpm"
)

const (
	barWidth        = 40
	historyCapacity = 60
)

type StepMsg tpm.StepInfo

// DoneMsg ends the view. Err is the run error, if any.
type DoneMsg struct{ Err error }

type bodyView struct {
	info    tpm.StepInfo
	history []float64
}

// Model is the Bubble Tea model of a running simulation.
type Model struct {
	title  string
	order  []string
	bodies map[string]*bodyView
	start  time.Time
	now    func() time.Time
	done   bool
	err    error
	cancel func()
}

// NewModel shows one panel per body. cancel is called when the user quits.
func NewModel(title string, cancel func(), bodies ...string) Model {
	m := Model{
		title:  title,
		order:  bodies,
		bodies: make(map[string]*bodyView, len(bodies)),
		start:  time.Now(),
		now:    time.Now,
		cancel: cancel,
	}
	for _, b := range bodies {
		m.bodies[b] = &bodyView{}
	}
	return m
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case StepMsg:
		bv, ok := m.bodies[msg.Body]
		if !ok {
			bv = &bodyView{}
			m.bodies[msg.Body] = bv
			m.order = append(m.order, msg.Body)
		}
		bv.info = tpm.StepInfo(msg)
		bv.history = append(bv.history, msg.MeanSurface)
		if len(bv.history) > historyCapacity {
			bv.history = bv.history[1:]
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(Title.Render(m.title))
	b.WriteString("  ")
	switch {
	case m.err != nil:
		b.WriteString(StatusFailed.Render("failed: " + m.err.Error()))
	case m.done:
		b.WriteString(StatusDone.Render("done"))
	default:
		b.WriteString(StatusRunning.Render("running"))
	}
	b.WriteString(Subtle.Render(fmt.Sprintf("  %s", m.now().Sub(m.start).Round(time.Second))))
	b.WriteString("\n\n")

	panels := make([]string, 0, len(m.order))
	for _, name := range m.order {
		panels = append(panels, m.panel(name, m.bodies[name]))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
	b.WriteString("\n")
	b.WriteString(KeyHint.Render("q: stop"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) panel(name string, bv *bodyView) string {
	info := bv.info
	fraction := 0.0
	if info.Steps > 0 {
		fraction = float64(info.Step+1) / float64(info.Steps)
	}
	row := func(label, value string) string {
		return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
	}
	ratio := "-"
	if !math.IsNaN(info.EnergyRatio) && info.Steps > 0 {
		ratio = fmt.Sprintf("%.4f", info.EnergyRatio)
	}

	var b strings.Builder
	b.WriteString(Title.Render(name) + "\n")
	b.WriteString(ProgressBar(fraction, barWidth) + fmt.Sprintf(" %5.1f%%\n", 100*fraction))
	b.WriteString(row("step", fmt.Sprintf("%d / %d", info.Step+1, info.Steps)))
	b.WriteString(row("time", fmt.Sprintf("%.0f s", info.Time)))
	b.WriteString(row("mean T", fmt.Sprintf("%.2f K", info.MeanSurface)))
	b.WriteString(row("energy ratio", ratio))
	b.WriteString(row("not converged", fmt.Sprintf("%d", info.NonConverged)))
	if info.Eclipsed > 0 {
		b.WriteString(row("eclipsed", fmt.Sprintf("%d facets", info.Eclipsed)))
	}
	b.WriteString(Sparkline(bv.history, historyCapacity))
	return Panel.Render(b.String())
}

// Forward sends step diagnostics to a running program, at most every
// interval per body. The final step of each body is always sent.
func Forward(p *tea.Program, interval time.Duration) tpm.Observer {
	limits := make(map[string]*rate.Sometimes)
	return tpm.ObserverFunc(func(info tpm.StepInfo) {
		if info.Step == info.Steps-1 {
			p.Send(StepMsg(info))
			return
		}
		s, ok := limits[info.Body]
		if !ok {
			s = &rate.Sometimes{First: 1, Interval: interval}
			limits[info.Body] = s
		}
		s.Do(func() { p.Send(StepMsg(info)) })
	})
}
