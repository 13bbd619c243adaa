// Package tui renders a terminal progress monitor for running simulations.
package tui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/mrsim/internal/dynamo"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const (
	barWidth    = 40
	historySize = 60
)

// StepMsg carries a throttled copy of an accepted step.
type StepMsg dynamo.StepEvent

// DoneMsg ends the monitor once Simulate returns.
type DoneMsg struct {
	Err error
}

// Sender is the part of *tea.Program the observer needs.
type Sender interface {
	Send(msg tea.Msg)
}

type throttled struct {
	mu    sync.Mutex
	out   Sender
	every time.Duration
	last  time.Time
}

// Observer forwards at most one step per interval to the program. It is
// safe to call from the goroutine running the engine.
func Observer(out Sender, every time.Duration) dynamo.Observer {
	return &throttled{out: out, every: every}
}

func (o *throttled) OnStep(ev dynamo.StepEvent) {
	o.mu.Lock()
	now := time.Now()
	if !o.last.IsZero() && now.Sub(o.last) < o.every {
		o.mu.Unlock()
		return
	}
	o.last = now
	o.mu.Unlock()

	ev.States = dynamo.CloneStates(ev.States)
	o.out.Send(StepMsg(ev))
}

type Monitor struct {
	scenario string
	names    []string
	tEnd     float64
	cancel   func()

	t        float64
	dt       float64
	step     int
	rejected int
	dropped  int
	errEst   float64
	states   []dynamo.SystemState
	dtHist   []float64

	done    bool
	err     error
	started time.Time
	width   int
}

// NewMonitor builds the model. cancel is called when the user quits early.
func NewMonitor(scenario string, names []string, tEnd float64, cancel func()) Monitor {
	return Monitor{
		scenario: scenario,
		names:    names,
		tEnd:     tEnd,
		cancel:   cancel,
		dtHist:   make([]float64, 0, historySize),
		started:  time.Now(),
		width:    80,
	}
}

func (m Monitor) Init() tea.Cmd { return nil }

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.done && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case StepMsg:
		m.t = msg.T
		m.dt = msg.Dt
		m.step = msg.Step
		m.rejected += msg.Rejections
		m.dropped += msg.Dropped
		m.errEst = msg.ErrorEstimate
		m.states = msg.States
		m.dtHist = append(m.dtHist, msg.Dt)
		if len(m.dtHist) > historySize {
			m.dtHist = m.dtHist[1:]
		}
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

// Progress is the fraction of simulated time completed.
func (m Monitor) Progress() float64 {
	if m.tEnd <= 0 {
		return 1
	}
	return math.Max(0, math.Min(1, m.t/m.tEnd))
}

func (m Monitor) View() string {
	var b strings.Builder

	b.WriteString(cyan.Render("mrsim") + " " + white.Render(m.scenario) + "\n\n")

	p := m.Progress()
	filled := int(p * barWidth)
	bar := green.Render(strings.Repeat("█", filled)) + dim.Render(strings.Repeat("░", barWidth-filled))
	b.WriteString(fmt.Sprintf("  %s %5.1f%%  t=%.4g / %.4g\n\n", bar, 100*p, m.t, m.tEnd))

	b.WriteString(fmt.Sprintf("  %s %-10d %s %-8d %s %d\n",
		dim.Render("steps"), m.step,
		dim.Render("rejected"), m.rejected,
		dim.Render("dropped"), m.dropped))
	b.WriteString(fmt.Sprintf("  %s %-10.3g %s %.3g\n",
		dim.Render("dt"), m.dt,
		dim.Render("err"), m.errEst))
	b.WriteString("  " + dim.Render("dt history ") + yellow.Render(sparkline(m.dtHist)) + "\n\n")

	for i, name := range m.names {
		if i >= len(m.states) {
			break
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", magenta.Render(fmt.Sprintf("%-12s", name)), formatState(m.states[i].Q, 4)))
	}
	if len(m.states) > 0 {
		c := newCanvas(max(10, min(m.width-4, 60)), 9)
		var qs []float64
		for _, s := range m.states {
			qs = append(qs, s.Q...)
		}
		c.bars(qs)
		b.WriteString("\n" + dim.Render(indent(c.String(), "  ")) + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.done && m.err != nil:
		b.WriteString("  " + red.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("  " + green.Render(fmt.Sprintf("done in %s", time.Since(m.started).Round(time.Millisecond))) + "\n")
	default:
		b.WriteString("  " + dim.Render("q to stop") + "\n")
	}
	return b.String()
}

// Err is the error reported by DoneMsg.
func (m Monitor) Err() error { return m.err }

var sparks = []rune("▁▂▃▄▅▆▇█")

// sparkline maps values onto eight levels on a log10 scale.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	logs := make([]float64, len(values))
	for i, v := range values {
		logs[i] = math.Log10(math.Max(v, 1e-300))
		lo = math.Min(lo, logs[i])
		hi = math.Max(hi, logs[i])
	}
	out := make([]rune, len(values))
	for i, l := range logs {
		k := 0
		if hi > lo {
			k = int((l - lo) / (hi - lo) * float64(len(sparks)-1))
		}
		out[i] = sparks[k]
	}
	return string(out)
}

func formatState(q dynamo.State, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, v := range q {
		if i >= limit {
			parts = append(parts, "…")
			break
		}
		parts = append(parts, fmt.Sprintf("q%d=%+.3f", i, v))
	}
	return strings.Join(parts, " ")
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
