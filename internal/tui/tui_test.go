package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/mrsim/internal/dynamo"
)

type fakeSender struct {
	msgs []tea.Msg
}

func (f *fakeSender) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestObserverThrottles(t *testing.T) {
	out := &fakeSender{}
	obs := Observer(out, time.Hour)
	states := []dynamo.SystemState{{Q: dynamo.State{1}}}
	obs.OnStep(dynamo.StepEvent{Step: 1, States: states})
	obs.OnStep(dynamo.StepEvent{Step: 2, States: states})

	if len(out.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out.msgs))
	}
	msg := out.msgs[0].(StepMsg)
	states[0].Q[0] = 5
	if msg.States[0].Q[0] != 1 {
		t.Error("observer must copy states")
	}
}

func TestObserverUnthrottled(t *testing.T) {
	out := &fakeSender{}
	obs := Observer(out, 0)
	for i := 0; i < 3; i++ {
		obs.OnStep(dynamo.StepEvent{Step: i})
	}
	if len(out.msgs) != 3 {
		t.Errorf("expected 3 messages, got %d", len(out.msgs))
	}
}

func TestMonitorUpdate(t *testing.T) {
	m := NewMonitor("coupled_springs", []string{"left", "right"}, 10, nil)
	next, _ := m.Update(StepMsg{Step: 3, T: 2.5, Dt: 0.01, Rejections: 2, States: []dynamo.SystemState{
		{Q: dynamo.State{0.5}}, {Q: dynamo.State{-0.25}},
	}})
	m = next.(Monitor)
	next, _ = m.Update(StepMsg{Step: 4, T: 5, Dt: 0.02, Rejections: 1, Dropped: 1})
	m = next.(Monitor)

	if m.Progress() != 0.5 {
		t.Errorf("progress = %v, want 0.5", m.Progress())
	}
	if m.rejected != 3 || m.dropped != 1 || m.step != 4 {
		t.Errorf("unexpected counters: %+v", m)
	}
	if len(m.dtHist) != 2 {
		t.Errorf("dt history has %d entries", len(m.dtHist))
	}

	view := m.View()
	for _, want := range []string{"coupled_springs", "q to stop", "50.0%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestMonitorDone(t *testing.T) {
	m := NewMonitor("stiff", nil, 1, nil)
	next, cmd := m.Update(DoneMsg{Err: errors.New("boom")})
	m = next.(Monitor)
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if m.Err() == nil || !strings.Contains(m.View(), "failed: boom") {
		t.Errorf("expected failure in view:\n%s", m.View())
	}
}

func TestMonitorQuitCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor("stiff", nil, 1, cancel)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if ctx.Err() == nil {
		t.Error("quitting should cancel the run")
	}
}

func TestSparkline(t *testing.T) {
	if got := sparkline([]float64{1e-4, 1e-3, 1e-2}); got != "▁▄█" {
		t.Errorf("sparkline = %q", got)
	}
	if got := sparkline([]float64{0.1, 0.1}); got != "▁▁" {
		t.Errorf("flat sparkline = %q", got)
	}
}

func TestCanvasBars(t *testing.T) {
	c := newCanvas(12, 5)
	c.bars([]float64{2, -2})
	rows := strings.Split(c.String(), "\n")
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if !strings.Contains(rows[1], "#") || !strings.Contains(rows[3], "#") {
		t.Errorf("bars should sit either side of the axis:\n%s", c.String())
	}
	if !strings.Contains(rows[2], "-") {
		t.Errorf("missing axis:\n%s", c.String())
	}
}
