// Package engine drives several robots through time with a shared adaptive
// stepper, constraint projection and inter-robot coupling forces.
package engine

import (
	"fmt"

	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/control"
	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/san-kum/mrsim/internal/integrators"
	"github.com/san-kum/mrsim/internal/logging"
	"github.com/sirupsen/logrus"
)

type Status int

const (
	StatusUninitialized Status = iota
	StatusReady
	StatusRunning
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type system struct {
	name        string
	robot       dynamo.Robot
	controller  dynamo.Controller
	constraints []constraint.Constraint
	rate        dynamo.ConfigurationRate

	command dynamo.State
}

type coupling struct {
	name  string
	a, b  int
	force dynamo.CouplingForce
}

type impulse struct {
	sys      int
	t        float64
	duration float64
	force    dynamo.State
}

type profile struct {
	sys int
	fn  dynamo.ForceProfile
}

// Stats counts stepper activity since Start.
type Stats struct {
	Accepted int
	Rejected int
	Dropped  int
	LastDt   float64
	LastErr  float64
}

type Option func(*Engine)

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l.WithField("component", "engine")
		}
	}
}

// WithWorkers bounds the goroutines used when Config.Parallel is set.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithRecorder(r dynamo.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// Engine is not safe for concurrent use. Callbacks (controllers, observers,
// recorders) run on the calling goroutine and must not call Step or
// Simulate.
type Engine struct {
	cfg     dynamo.Config
	log     *logrus.Entry
	workers int

	layout     *dynamo.Layout
	systems    []*system
	couplings  []coupling
	impulses   []impulse
	profiles   []profile
	observers  []dynamo.Observer
	recorder   dynamo.Recorder
	recClosed  bool
	uOffset    []int
	controlDim int

	stepper   *integrators.Stepper
	projector *constraint.Projector

	status      Status
	busy        bool
	stopPending bool
	stopHit     bool
	warnedDrop  bool

	x       dynamo.State
	t       float64
	step    int
	states  []dynamo.SystemState
	ctrlIdx int
	stats   Stats
	dropped int
}

func New(cfg dynamo.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		log:     logging.Component(nil, "engine"),
		workers: dynamo.DefaultWorkers,
		layout:  dynamo.NewLayout(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.projector = constraint.NewProjector(cfg.Constraints, e.log)
	return e, nil
}

func (e *Engine) Config() dynamo.Config { return e.cfg }

func (e *Engine) checkOpen() error {
	if e.layout.Closed() {
		return fmt.Errorf("%w: engine is %s", dynamo.ErrRegistrationClosed, e.status)
	}
	return nil
}

func (e *Engine) lookup(name string) (int, error) {
	i, ok := e.layout.Index(name)
	if !ok {
		return -1, fmt.Errorf("%w: %q", dynamo.ErrUnknownSystem, name)
	}
	return i, nil
}

// AddSystem registers a robot. A nil controller applies no forces.
func (e *Engine) AddSystem(name string, robot dynamo.Robot, controller dynamo.Controller, constraints ...constraint.Constraint) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if robot == nil {
		return fmt.Errorf("%w: system %q has no robot", dynamo.ErrInvalidConfig, name)
	}
	rate, _ := robot.(dynamo.ConfigurationRate)
	if robot.PositionDim() != robot.VelocityDim() && rate == nil {
		return fmt.Errorf("%w: system %q has nq != nv but no position rate", dynamo.ErrInvalidConfig, name)
	}
	if _, err := e.layout.Add(name, robot.PositionDim(), robot.VelocityDim()); err != nil {
		return err
	}
	if controller == nil {
		controller = control.NewNone(0)
	}
	e.systems = append(e.systems, &system{
		name:        name,
		robot:       robot,
		controller:  controller,
		constraints: append([]constraint.Constraint(nil), constraints...),
		rate:        rate,
	})
	return nil
}

func (e *Engine) AddConstraint(systemName string, c constraint.Constraint) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	i, err := e.lookup(systemName)
	if err != nil {
		return err
	}
	e.systems[i].constraints = append(e.systems[i].constraints, c)
	return nil
}

// AddCouplingForce registers f between systems a and b. Couplings are
// evaluated in registration order.
func (e *Engine) AddCouplingForce(name, a, b string, f dynamo.CouplingForce) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	ia, err := e.lookup(a)
	if err != nil {
		return err
	}
	ib, err := e.lookup(b)
	if err != nil {
		return err
	}
	if f == nil {
		return fmt.Errorf("%w: coupling %q has no force", dynamo.ErrInvalidConfig, name)
	}
	e.couplings = append(e.couplings, coupling{name: name, a: ia, b: ib, force: f})
	return nil
}

// RegisterForceImpulse applies a constant force on [t, t+duration). Steps
// never straddle either edge.
func (e *Engine) RegisterForceImpulse(systemName string, t, duration float64, force dynamo.State) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	i, err := e.lookup(systemName)
	if err != nil {
		return err
	}
	if !(duration > 0) || t < 0 {
		return fmt.Errorf("%w: impulse at t=%g with duration %g", dynamo.ErrInvalidConfig, t, duration)
	}
	if nv := e.layout.Block(i).NV; len(force) != nv {
		return fmt.Errorf("%w: impulse force has %d entries, want %d", dynamo.ErrDimensionMismatch, len(force), nv)
	}
	e.impulses = append(e.impulses, impulse{sys: i, t: t, duration: duration, force: force.Clone()})
	return nil
}

// RegisterForceProfile adds a force evaluated at every stage of every step.
func (e *Engine) RegisterForceProfile(systemName string, fn dynamo.ForceProfile) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	i, err := e.lookup(systemName)
	if err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: nil force profile", dynamo.ErrInvalidConfig)
	}
	e.profiles = append(e.profiles, profile{sys: i, fn: fn})
	return nil
}

func (e *Engine) AddObserver(o dynamo.Observer) {
	e.observers = append(e.observers, o)
}

// SetRecorder replaces the sample sink. It is closed by Stop.
func (e *Engine) SetRecorder(r dynamo.Recorder) error {
	if e.busy {
		return dynamo.ErrReentrantCall
	}
	e.recorder = r
	e.recClosed = false
	return nil
}

func (e *Engine) Status() Status { return e.status }

func (e *Engine) Time() float64 { return e.t }

func (e *Engine) Names() []string {
	names := make([]string, len(e.systems))
	for i, s := range e.systems {
		names[i] = s.name
	}
	return names
}

// State returns a copy of the named system's last committed snapshot.
func (e *Engine) State(name string) (dynamo.SystemState, error) {
	if e.status == StatusUninitialized {
		return dynamo.SystemState{}, dynamo.ErrEngineNotInitialized
	}
	i, err := e.lookup(name)
	if err != nil {
		return dynamo.SystemState{}, err
	}
	return e.states[i].Clone(), nil
}

func (e *Engine) States() []dynamo.SystemState {
	return dynamo.CloneStates(e.states)
}

func (e *Engine) StepperState() integrators.StepperState {
	if e.stepper == nil {
		return integrators.StepperState{}
	}
	return e.stepper.State()
}

func (e *Engine) Stats() Stats { return e.stats }

// TotalEnergy sums robot energies and coupling potentials over states, in
// registration order. A nil slice uses the last committed snapshot. Robots
// without an energy model contribute nothing.
func (e *Engine) TotalEnergy(states []dynamo.SystemState) float64 {
	if states == nil {
		states = e.states
	}
	total := 0.0
	for i, s := range e.systems {
		if h, ok := s.robot.(dynamo.Hamiltonian); ok && i < len(states) {
			total += h.Energy(states[i].Q, states[i].V)
		}
	}
	for _, c := range e.couplings {
		if p, ok := c.force.(dynamo.PotentialCoupling); ok && c.a < len(states) && c.b < len(states) {
			total += p.PotentialEnergy(states[c.a], states[c.b])
		}
	}
	return total
}
