package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// Projector maps an accepted candidate back onto the constraint manifold.
type Projector interface {
	Project(x dynamo.State, t, dt float64) (dynamo.State, error)
}

type ProjectorFunc func(x dynamo.State, t, dt float64) (dynamo.State, error)

func (f ProjectorFunc) Project(x dynamo.State, t, dt float64) (dynamo.State, error) {
	return f(x, t, dt)
}

// StepperState is mutated only by Step and Reset.
type StepperState struct {
	T             float64
	Dt            float64
	DtMin         float64
	DtMax         float64
	ErrorEstimate float64
	LastAccepted  bool
	Accepted      int
	Rejected      int
	History       History
}

// Attempt is the outcome of a single trial step.
type Attempt struct {
	X        dynamo.State
	Err      float64
	Accepted bool
	DtNext   float64
}

// Result is an accepted step.
type Result struct {
	X          dynamo.State
	T          float64
	Dt         float64
	DtNext     float64
	Err        float64
	Rejections int
}

type Stepper struct {
	cfg   dynamo.StepperConfig
	tab   *Tableau
	proj  Projector
	state StepperState

	k       []dynamo.State
	scratch dynamo.State
}

func NewStepper(cfg dynamo.StepperConfig) (*Stepper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tab, err := Lookup(cfg.Solver)
	if err != nil {
		return nil, err
	}
	s := &Stepper{cfg: cfg, tab: tab}
	s.Reset(0, cfg.DtInitial)
	return s, nil
}

func (s *Stepper) Config() dynamo.StepperConfig { return s.cfg }

func (s *Stepper) Tableau() *Tableau { return s.tab }

func (s *Stepper) SetProjector(p Projector) { s.proj = p }

// State returns a copy of the stepper state.
func (s *Stepper) State() StepperState { return s.state }

// Reset rewinds the stepper to t0 with the given initial step.
func (s *Stepper) Reset(t0, dt0 float64) {
	s.state = StepperState{
		T:     t0,
		Dt:    s.clamp(dt0),
		DtMin: s.cfg.DtMin,
		DtMax: s.cfg.DtMax,
	}
}

// SetDt overrides the next proposed step, clamped into [DtMin, DtMax].
func (s *Stepper) SetDt(dt float64) { s.state.Dt = s.clamp(dt) }

func (s *Stepper) clamp(dt float64) float64 {
	return math.Min(math.Max(dt, s.cfg.DtMin), s.cfg.DtMax)
}

func (s *Stepper) ensureScratch(n int) {
	stages := s.tab.Stages()
	if len(s.k) != stages || len(s.scratch) != n {
		s.k = make([]dynamo.State, stages)
		for i := range s.k {
			s.k[i] = make(dynamo.State, n)
		}
		s.scratch = make(dynamo.State, n)
	}
}

// TryStep runs one trial of size dt from (x, t). It does not modify the
// stepper state.
func (s *Stepper) TryStep(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) (Attempt, error) {
	if !(dt > 0) {
		return Attempt{}, fmt.Errorf("%w: step size %g", dynamo.ErrInvalidConfig, dt)
	}
	n := len(x)
	s.ensureScratch(n)
	tab := s.tab

	for st := 0; st < tab.Stages(); st++ {
		copy(s.scratch, x)
		for j, a := range tab.A[st] {
			if a == 0 {
				continue
			}
			kj := s.k[j]
			for i := 0; i < n; i++ {
				s.scratch[i] += dt * a * kj[i]
			}
		}
		k := sys.Derive(s.scratch, u, t+tab.C[st]*dt)
		if len(k) != n {
			return Attempt{}, fmt.Errorf("%w: derivative has %d entries, want %d", dynamo.ErrDimensionMismatch, len(k), n)
		}
		copy(s.k[st], k)
	}

	xNew := x.Clone()
	for st, b := range tab.B {
		if b == 0 {
			continue
		}
		xNew.AddScaled(dt*b, s.k[st])
	}

	if !tab.Adaptive() {
		if !xNew.IsValid() {
			return Attempt{X: xNew, Err: math.Inf(1), DtNext: s.cfg.DtMax}, nil
		}
		return Attempt{X: xNew, Accepted: true, DtNext: s.cfg.DtMax}, nil
	}

	errNorm := s.errorNorm(x, xNew, dt)
	return Attempt{
		X:        xNew,
		Err:      errNorm,
		Accepted: errNorm <= 1,
		DtNext:   s.propose(dt, errNorm),
	}, nil
}

// errorNorm is the RMS of the embedded error scaled by
// atol + rtol*max(|high|, |low|), where low = high - e.
func (s *Stepper) errorNorm(x, xNew dynamo.State, dt float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	if !xNew.IsValid() {
		return math.Inf(1)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		e := 0.0
		for st, c := range s.tab.E {
			if c != 0 {
				e += c * s.k[st][i]
			}
		}
		e *= dt
		sc := s.cfg.Atol + s.cfg.Rtol*math.Max(math.Abs(xNew[i]), math.Abs(xNew[i]-e))
		r := e / sc
		sum += r * r
	}
	errNorm := math.Sqrt(sum / float64(n))
	if math.IsNaN(errNorm) {
		return math.Inf(1)
	}
	return errNorm
}

// propose applies the step-size controller and clamps into [DtMin, DtMax].
func (s *Stepper) propose(dt, errNorm float64) float64 {
	var factor float64
	switch {
	case errNorm == 0:
		factor = s.cfg.DtGrowMax
	case math.IsInf(errNorm, 1):
		factor = s.cfg.DtShrinkMax
	default:
		factor = s.cfg.SafetyFactor * math.Pow(errNorm, -1/s.tab.ErrorExponent())
		factor = math.Min(s.cfg.DtGrowMax, math.Max(s.cfg.DtShrinkMax, factor))
	}
	return s.clamp(dt * factor)
}

// Step advances from (x, t) with the first trial of size dtProposed,
// shrinking and retrying on rejection. On failure the stepper state is left
// as it was before the call.
func (s *Stepper) Step(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dtProposed float64) (Result, error) {
	return s.StepWithin(sys, x, u, t, dtProposed, math.Inf(1))
}

// StepWithin is Step for a caller that must land exactly on t+horizon
// later. Retries after a rejection never leave less than DtMin of the
// horizon uncovered.
func (s *Stepper) StepWithin(sys dynamo.System, x dynamo.State, u dynamo.Control, t, dtProposed, horizon float64) (Result, error) {
	saved := s.state
	dt := dtProposed
	rejects := 0

	for {
		att, err := s.TryStep(sys, x, u, t, dt)
		if err != nil {
			s.state = saved
			return Result{}, err
		}
		s.state.ErrorEstimate = att.Err

		if att.Accepted {
			xNew := att.X
			if s.proj != nil {
				xNew, err = s.proj.Project(xNew, t+dt, dt)
				if err != nil {
					s.state = saved
					return Result{}, err
				}
			}
			s.state.T = t + dt
			s.state.Dt = att.DtNext
			s.state.LastAccepted = true
			s.state.Accepted++
			s.state.History.Push(Outcome{T: t, Dt: dt, Err: att.Err, Accepted: true})
			return Result{
				X:          xNew,
				T:          t + dt,
				Dt:         dt,
				DtNext:     att.DtNext,
				Err:        att.Err,
				Rejections: rejects,
			}, nil
		}

		rejects++
		s.state.Rejected++
		s.state.LastAccepted = false
		s.state.History.Push(Outcome{T: t, Dt: dt, Err: att.Err})

		if !s.tab.Adaptive() {
			s.state = saved
			return Result{}, fmt.Errorf("%w: non-finite state with fixed step %g", dynamo.ErrStepperDivergence, dt)
		}
		if dt <= s.cfg.DtMin {
			s.state = saved
			return Result{}, fmt.Errorf("%w: step %g at minimum with error %g", dynamo.ErrStepperDivergence, dt, att.Err)
		}
		if rejects > s.cfg.MaxStepRejects {
			s.state = saved
			return Result{}, fmt.Errorf("%w: %d consecutive rejections", dynamo.ErrStepperDivergence, rejects)
		}
		dt = math.Min(att.DtNext, dt)
		if left := horizon - dt; left > 0 && left < s.cfg.DtMin {
			dt = horizon - s.cfg.DtMin
		}
		if dt < s.cfg.DtMin {
			s.state = saved
			return Result{}, fmt.Errorf("%w: no step of at least %g fits before the next breakpoint", dynamo.ErrStepperDivergence, s.cfg.DtMin)
		}
		s.state.Dt = dt
	}
}
