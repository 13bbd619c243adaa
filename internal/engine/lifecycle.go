package engine

import (
	"errors"
	"fmt"

	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/san-kum/mrsim/internal/integrators"
	"github.com/sirupsen/logrus"
)

// Start validates the initial states, attaches constraints, evaluates the
// controllers once and closes registration.
func (e *Engine) Start(initial map[string]dynamo.SystemState) error {
	if e.busy {
		return dynamo.ErrReentrantCall
	}
	if e.status != StatusUninitialized {
		return fmt.Errorf("%w: engine is %s, call Reset first", dynamo.ErrRegistrationClosed, e.status)
	}
	if len(e.systems) == 0 {
		return fmt.Errorf("%w: no systems registered", dynamo.ErrInvalidConfig)
	}
	for name := range initial {
		if _, err := e.lookup(name); err != nil {
			return err
		}
	}

	states := make([]dynamo.SystemState, len(e.systems))
	for i, s := range e.systems {
		b := e.layout.Block(i)
		st, ok := initial[s.name]
		if !ok {
			return fmt.Errorf("%w: no initial state for %q", dynamo.ErrDimensionMismatch, s.name)
		}
		if err := st.Validate(b.NQ, b.NV); err != nil {
			return fmt.Errorf("system %q: %w", s.name, err)
		}
		if !st.Q.IsValid() || !st.V.IsValid() {
			return fmt.Errorf("system %q: %w", s.name, dynamo.ErrInvalidState)
		}
		states[i] = st.Clone()
	}

	if err := e.checkBreakpoints(); err != nil {
		return err
	}

	stepper, err := integrators.NewStepper(e.cfg.Stepper)
	if err != nil {
		return err
	}
	stepper.SetProjector(integrators.ProjectorFunc(e.project))

	e.uOffset = make([]int, len(e.systems))
	e.controlDim = 0
	for i := range e.systems {
		e.uOffset[i] = e.controlDim
		e.controlDim += e.layout.Block(i).NV
	}

	for i, s := range e.systems {
		zero := make(dynamo.State, e.layout.Block(i).NV)
		if acc := s.robot.Dynamics(states[i].Q, states[i].V, 0, zero); len(acc) != len(zero) {
			return fmt.Errorf("%w: system %q returns %d accelerations, want %d", dynamo.ErrDimensionMismatch, s.name, len(acc), len(zero))
		}
		for _, c := range s.constraints {
			if err := c.Attach(s.robot, states[i].Q); err != nil {
				return fmt.Errorf("system %q: %w", s.name, err)
			}
		}
		s.command = make(dynamo.State, e.layout.Block(i).NV)
	}

	e.x = make(dynamo.State, e.layout.Size())
	if err := e.layout.Pack(states, e.x); err != nil {
		return err
	}
	e.stepper = stepper
	e.t = 0
	e.step = 0
	e.ctrlIdx = 0
	e.stats = Stats{}
	e.warnedDrop = false
	e.stopHit = false
	e.stopPending = false
	e.states = make([]dynamo.SystemState, len(e.systems))

	e.busy = true
	defer func() { e.busy = false }()
	e.refresh()
	e.controllerDue()
	e.updateControllers()
	e.refresh()

	e.layout.Close()
	e.status = StatusReady
	e.log.WithFields(logrus.Fields{
		"systems":   len(e.systems),
		"couplings": len(e.couplings),
		"solver":    stepper.Tableau().Name,
	}).Info("engine started")

	return e.record()
}

// Stop ends the run and closes the recorder. Calling it again is a no-op.
// From inside a callback the stop takes effect once the current step is
// committed.
func (e *Engine) Stop() error {
	if e.busy {
		e.stopPending = true
		return nil
	}
	if e.status == StatusUninitialized || e.status == StatusStopped {
		return nil
	}
	e.status = StatusStopped
	e.log.WithFields(logrus.Fields{
		"t":        e.t,
		"accepted": e.stats.Accepted,
		"rejected": e.stats.Rejected,
	}).Info("engine stopped")
	return e.closeRecorder()
}

// Reset returns to Uninitialized and reopens registration. Registered
// systems, couplings and forces are kept; controllers with a Reset method
// are reset.
func (e *Engine) Reset() error {
	if e.busy {
		return dynamo.ErrReentrantCall
	}
	err := e.closeRecorder()
	for _, s := range e.systems {
		if r, ok := s.controller.(interface{ Reset() }); ok {
			r.Reset()
		}
		s.command = nil
		for _, c := range s.constraints {
			if c.Unilateral() {
				c.SetActive(false)
			}
		}
	}
	e.layout.Reopen()
	e.stepper = nil
	e.states = nil
	e.x = nil
	e.t = 0
	e.step = 0
	e.status = StatusUninitialized
	return err
}

func (e *Engine) closeRecorder() error {
	if e.recorder == nil || e.recClosed {
		return nil
	}
	e.recClosed = true
	if err := e.recorder.Close(); err != nil {
		return fmt.Errorf("close recorder: %w", err)
	}
	return nil
}

func (e *Engine) record() error {
	if e.recorder == nil || e.recClosed {
		return nil
	}
	if err := e.recorder.Record(dynamo.Sample{T: e.t, States: dynamo.CloneStates(e.states)}); err != nil {
		e.log.WithError(err).Error("recorder failed")
		return fmt.Errorf("record sample: %w", err)
	}
	return nil
}

func (e *Engine) ready() error {
	if e.busy {
		return dynamo.ErrReentrantCall
	}
	switch e.status {
	case StatusUninitialized:
		return dynamo.ErrEngineNotInitialized
	case StatusStopped:
		return dynamo.ErrEngineStopped
	}
	return nil
}

func (e *Engine) fail(err error) error {
	var se *dynamo.SimulationError
	if errors.As(err, &se) {
		return err
	}
	return &dynamo.SimulationError{Step: e.step, Time: e.t, State: e.x.Clone(), Wrapped: err}
}
