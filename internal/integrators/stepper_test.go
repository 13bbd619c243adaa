package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/mrsim/internal/dynamo"
)

type harmonicOscillator struct {
	k float64
}

func (h *harmonicOscillator) StateDim() int   { return 2 }
func (h *harmonicOscillator) ControlDim() int { return 0 }

func (h *harmonicOscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	k := h.k
	if k == 0 {
		k = 1
	}
	return dynamo.State{x[1], -k * x[0]}
}

type nanSystem struct{}

func (nanSystem) StateDim() int   { return 1 }
func (nanSystem) ControlDim() int { return 0 }
func (nanSystem) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{math.NaN()}
}

func newStepper(t *testing.T, modify func(c *dynamo.StepperConfig)) *Stepper {
	t.Helper()
	cfg := dynamo.DefaultStepperConfig()
	if modify != nil {
		modify(&cfg)
	}
	s, err := NewStepper(cfg)
	if err != nil {
		t.Fatalf("NewStepper: %v", err)
	}
	return s
}

func integrate(t *testing.T, s *Stepper, sys dynamo.System, x dynamo.State, tEnd float64) dynamo.State {
	t.Helper()
	tm := 0.0
	for tEnd-tm > 1e-12 {
		dt := math.Min(s.State().Dt, tEnd-tm)
		res, err := s.Step(sys, x, nil, tm, dt)
		if err != nil {
			t.Fatalf("Step at t=%g: %v", tm, err)
		}
		x, tm = res.X, res.T
	}
	return x
}

func TestStepper_Determinism(t *testing.T) {
	sys := &harmonicOscillator{}
	run := func() []dynamo.State {
		s := newStepper(t, nil)
		x := dynamo.State{1, 0}
		var out []dynamo.State
		tm := 0.0
		for i := 0; i < 200; i++ {
			res, err := s.Step(sys, x, nil, tm, s.State().Dt)
			if err != nil {
				t.Fatal(err)
			}
			x, tm = res.X, res.T
			out = append(out, append(x.Clone(), res.Dt))
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("step %d differs: %v vs %v", i, a[i], b[i])
			}
		}
	}
}

func TestStepper_ToleranceScaling(t *testing.T) {
	sys := &harmonicOscillator{}
	tEnd := 10.0
	prev := math.Inf(1)

	for _, tol := range []float64{1e-3, 1e-6, 1e-9} {
		s := newStepper(t, func(c *dynamo.StepperConfig) {
			c.Atol = tol
			c.Rtol = tol
			c.DtMax = 1
		})
		x := integrate(t, s, sys, dynamo.State{1, 0}, tEnd)
		globalErr := math.Hypot(x[0]-math.Cos(tEnd), x[1]+math.Sin(tEnd))

		if globalErr >= prev {
			t.Errorf("tol=%g: error %e did not decrease from %e", tol, globalErr, prev)
		}
		if globalErr > 1000*tol {
			t.Errorf("tol=%g: global error %e exceeds %e", tol, globalErr, 1000*tol)
		}
		prev = globalErr
	}
}

func TestStepper_DtBounds(t *testing.T) {
	sys := &harmonicOscillator{k: 100}
	s := newStepper(t, func(c *dynamo.StepperConfig) {
		c.DtMin = 1e-6
		c.DtMax = 0.05
		c.DtInitial = 0.05
	})

	x := dynamo.State{1, 0}
	tm := 0.0
	for i := 0; i < 500; i++ {
		res, err := s.Step(sys, x, nil, tm, s.State().Dt)
		if err != nil {
			t.Fatal(err)
		}
		x, tm = res.X, res.T
		st := s.State()
		if st.Dt < st.DtMin || st.Dt > st.DtMax {
			t.Fatalf("step %d: dt %g outside [%g, %g]", i, st.Dt, st.DtMin, st.DtMax)
		}
		if st.T != tm {
			t.Fatalf("stepper time %g != result time %g", st.T, tm)
		}
	}
}

func TestStepper_StiffRejectsFirst(t *testing.T) {
	sys := &harmonicOscillator{k: 1e6}
	s := newStepper(t, func(c *dynamo.StepperConfig) {
		c.DtInitial = 1
		c.DtMax = 1
	})

	res, err := s.Step(sys, dynamo.State{1, 0}, nil, 0, s.State().Dt)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Rejections == 0 {
		t.Error("expected at least one rejection before the first acceptance")
	}
	if res.Dt >= 1 {
		t.Errorf("accepted dt %g should be below the initial step", res.Dt)
	}
	if s.State().Rejected != res.Rejections {
		t.Errorf("Rejected = %d, want %d", s.State().Rejected, res.Rejections)
	}
}

func TestStepper_StepWithinLeavesRoom(t *testing.T) {
	sys := &harmonicOscillator{k: 1e4}
	for _, horizon := range []float64{0.0105, 0.012, 0.05, 0.2, 1} {
		s := newStepper(t, func(c *dynamo.StepperConfig) {
			c.DtMin = 0.01
			c.DtInitial = 1
			c.DtMax = 1
		})
		res, err := s.StepWithin(sys, dynamo.State{1, 0}, nil, 0, horizon, horizon)
		if errors.Is(err, dynamo.ErrStepperDivergence) {
			continue
		}
		if err != nil {
			t.Fatalf("horizon %g: %v", horizon, err)
		}
		if res.Dt < 0.01 || res.Dt > horizon {
			t.Errorf("horizon %g: accepted dt %g outside [0.01, %g]", horizon, res.Dt, horizon)
		}
		if left := horizon - res.Dt; left > 0 && left < 0.01 {
			t.Errorf("horizon %g: dt %g leaves %g before the breakpoint", horizon, res.Dt, left)
		}
	}
}

func TestStepper_Divergence(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *dynamo.StepperConfig)
	}{
		{"below minimum", nil},
		{"reject budget", func(c *dynamo.StepperConfig) { c.MaxStepRejects = 2 }},
		{"fixed step", func(c *dynamo.StepperConfig) { c.Solver = dynamo.SolverEuler }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStepper(t, tt.modify)
			before := s.State()

			_, err := s.Step(nanSystem{}, dynamo.State{1}, nil, 0, before.Dt)
			if !errors.Is(err, dynamo.ErrStepperDivergence) {
				t.Fatalf("expected ErrStepperDivergence, got %v", err)
			}
			after := s.State()
			if after.T != before.T || after.Dt != before.Dt || after.Rejected != before.Rejected {
				t.Errorf("state not restored: before %+v after %+v", before, after)
			}
		})
	}
}

func TestStepper_Projector(t *testing.T) {
	sys := &harmonicOscillator{}
	s := newStepper(t, nil)

	calls := 0
	s.SetProjector(ProjectorFunc(func(x dynamo.State, tm, dt float64) (dynamo.State, error) {
		calls++
		r := math.Hypot(x[0], x[1])
		return dynamo.State{x[0] / r, x[1] / r}, nil
	}))

	x := integrate(t, s, sys, dynamo.State{1, 0}, 1)
	if calls != s.State().Accepted {
		t.Errorf("projector called %d times for %d accepted steps", calls, s.State().Accepted)
	}
	if r := math.Hypot(x[0], x[1]); math.Abs(r-1) > 1e-15 {
		t.Errorf("projected radius = %v", r)
	}

	failing := errors.New("boom")
	s.SetProjector(ProjectorFunc(func(x dynamo.State, tm, dt float64) (dynamo.State, error) {
		return nil, failing
	}))
	before := s.State()
	if _, err := s.Step(sys, x, nil, before.T, before.Dt); !errors.Is(err, failing) {
		t.Fatalf("expected projector error, got %v", err)
	}
	if s.State().Accepted != before.Accepted {
		t.Error("failed projection must not count as accepted")
	}
}

func TestStepper_TryStepIsPure(t *testing.T) {
	s := newStepper(t, nil)
	before := s.State()
	att, err := s.TryStep(&harmonicOscillator{}, dynamo.State{1, 0}, nil, 0, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if !att.Accepted || att.DtNext <= 0 {
		t.Errorf("unexpected attempt %+v", att)
	}
	if s.State() != before {
		t.Error("TryStep modified stepper state")
	}

	if _, err := s.TryStep(&harmonicOscillator{}, dynamo.State{1, 0}, nil, 0, 0); err == nil {
		t.Error("expected error for zero step")
	}
}

func TestRK4Accuracy(t *testing.T) {
	s := newStepper(t, func(c *dynamo.StepperConfig) {
		c.Solver = dynamo.SolverRK4
		c.DtInitial = 0.01
		c.DtMax = 0.01
	})

	x := integrate(t, s, &harmonicOscillator{}, dynamo.State{1, 0}, 1)

	if math.Abs(x[0]-math.Cos(1)) > 1e-8 {
		t.Errorf("position error too large: got %.10f, expected %.10f", x[0], math.Cos(1))
	}
	if math.Abs(x[1]+math.Sin(1)) > 1e-8 {
		t.Errorf("velocity error too large: got %.10f, expected %.10f", x[1], -math.Sin(1))
	}
	if s.State().Rejected != 0 {
		t.Error("fixed-step solver should never reject")
	}
}

func TestSolvers_Converge(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			s := newStepper(t, func(c *dynamo.StepperConfig) {
				c.Solver = name
				c.DtInitial = 1e-3
				c.DtMax = 1e-3
			})
			x := integrate(t, s, &harmonicOscillator{}, dynamo.State{1, 0}, 1)
			if math.Abs(x[0]-math.Cos(1)) > 1e-3 {
				t.Errorf("%s: x(1) = %v, want %v", name, x[0], math.Cos(1))
			}
		})
	}
}

func TestTableau_Consistency(t *testing.T) {
	for _, name := range Names() {
		tab, err := Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		sumB := 0.0
		for _, b := range tab.B {
			sumB += b
		}
		if math.Abs(sumB-1) > 1e-14 {
			t.Errorf("%s: weights sum to %v", name, sumB)
		}
		for i, row := range tab.A {
			sum := 0.0
			for _, a := range row {
				sum += a
			}
			if math.Abs(sum-tab.C[i]) > 1e-14 {
				t.Errorf("%s: row %d sums to %v, node %v", name, i, sum, tab.C[i])
			}
		}
		if tab.Adaptive() {
			sumE := 0.0
			for _, e := range tab.E {
				sumE += e
			}
			if math.Abs(sumE) > 1e-14 {
				t.Errorf("%s: error weights sum to %v", name, sumE)
			}
		}
	}

	if _, err := Lookup("leapfrog"); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestHistory_Ring(t *testing.T) {
	var h History
	if _, ok := h.Last(); ok {
		t.Error("empty history has a last entry")
	}
	for i := 0; i < 20; i++ {
		h.Push(Outcome{T: float64(i)})
	}
	if h.Len() != historySize {
		t.Fatalf("Len() = %d", h.Len())
	}
	if h.At(0).T != 4 {
		t.Errorf("oldest = %v, want 4", h.At(0).T)
	}
	if last, _ := h.Last(); last.T != 19 {
		t.Errorf("last = %v, want 19", last.T)
	}
	if len(h.Slice()) != historySize {
		t.Error("Slice length mismatch")
	}
}
