package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/mrsim/internal/config"
	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/san-kum/mrsim/internal/engine"
	"github.com/san-kum/mrsim/internal/physics"
)

// groundUp is the vertical world axis of the planar models.
const groundUp = 1

// Build registers every system, coupling and impulse of s on a new engine.
// The engine is returned unstarted.
func (r *Registry) Build(s *config.Scenario, opts ...engine.Option) (*engine.Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	e, err := engine.New(s.Engine, opts...)
	if err != nil {
		return nil, err
	}

	robots := make(map[string]dynamo.Robot, len(s.Systems))
	for _, spec := range s.Systems {
		robot, err := r.buildRobot(spec, s.Engine)
		if err != nil {
			return nil, fmt.Errorf("system %q: %w", spec.Name, err)
		}
		ctrl, err := r.GetController(spec.Controller)
		if err != nil {
			return nil, fmt.Errorf("system %q: %w", spec.Name, err)
		}
		cs := make([]constraint.Constraint, 0, len(spec.Constraints))
		for _, cspec := range spec.Constraints {
			c, err := buildConstraint(cspec)
			if err != nil {
				return nil, fmt.Errorf("system %q: %w", spec.Name, err)
			}
			cs = append(cs, c)
		}
		if err := e.AddSystem(spec.Name, robot, ctrl, cs...); err != nil {
			return nil, err
		}
		robots[spec.Name] = robot
	}

	for _, spec := range s.Couplings {
		f, err := buildCoupling(spec, robots[spec.A], robots[spec.B])
		if err != nil {
			return nil, err
		}
		if err := e.AddCouplingForce(spec.Name, spec.A, spec.B, f); err != nil {
			return nil, err
		}
	}

	for _, imp := range s.Impulses {
		if err := e.RegisterForceImpulse(imp.System, imp.T, imp.Duration, imp.Force); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (r *Registry) buildRobot(spec config.SystemSpec, cfg dynamo.Config) (dynamo.Robot, error) {
	robot, err := r.GetModel(spec.Model, spec.Params, cfg.World)
	if err != nil {
		return nil, err
	}
	if f := spec.Friction; f != nil {
		robot = physics.NewJointFriction(robot, f.Viscous, f.Dry, f.VelEps)
	}
	if len(spec.GroundContact) > 0 {
		robot, err = physics.NewGroundContact(robot, cfg.Contacts, groundUp, spec.GroundContact...)
		if err != nil {
			return nil, err
		}
	}
	return robot, nil
}

// Result summarises one finished run.
type Result struct {
	Scenario string
	Log      *engine.Log
	Stats    engine.Stats
	Metrics  map[string]float64
	Elapsed  time.Duration
}

type Experiment struct {
	reg       *Registry
	scenario  *config.Scenario
	opts      []engine.Option
	observers []dynamo.Observer
	recorder  dynamo.Recorder
	engine    *engine.Engine
}

func New(reg *Registry, s *config.Scenario, opts ...engine.Option) *Experiment {
	return &Experiment{reg: reg, scenario: s, opts: opts}
}

func (x *Experiment) AddObserver(o dynamo.Observer) {
	x.observers = append(x.observers, o)
}

// SetRecorder attaches a recorder to the next Run. The engine closes it.
func (x *Experiment) SetRecorder(r dynamo.Recorder) {
	x.recorder = r
}

// Engine returns the engine of the last Run, or nil.
func (x *Experiment) Engine() *engine.Engine {
	return x.engine
}

// Run builds, starts and simulates the scenario to its duration, then stops
// the engine. On failure the partial result is returned with the error.
func (x *Experiment) Run(ctx context.Context) (*Result, error) {
	e, err := x.reg.Build(x.scenario, x.opts...)
	if err != nil {
		return nil, err
	}
	x.engine = e

	ms := x.reg.DefaultMetrics(e)
	for _, m := range ms {
		e.AddObserver(m)
	}
	for _, o := range x.observers {
		e.AddObserver(o)
	}
	if x.recorder != nil {
		if err := e.SetRecorder(x.recorder); err != nil {
			return nil, err
		}
	}

	if err := e.Start(x.scenario.Initial()); err != nil {
		return nil, err
	}
	for _, m := range ms {
		if d, ok := m.(interface{ Baseline([]dynamo.SystemState) }); ok {
			d.Baseline(e.States())
		}
	}

	start := time.Now()
	log, simErr := e.Simulate(ctx, x.scenario.Duration, x.scenario.DtMax)
	res := &Result{
		Scenario: x.scenario.Name,
		Log:      log,
		Stats:    e.Stats(),
		Metrics:  make(map[string]float64, len(ms)),
		Elapsed:  time.Since(start),
	}
	for _, m := range ms {
		res.Metrics[m.Name()] = m.Value()
	}
	if err := e.Stop(); err != nil && simErr == nil {
		simErr = err
	}
	return res, simErr
}

// Run is a one-shot helper over a fresh default registry.
func Run(ctx context.Context, s *config.Scenario, opts ...engine.Option) (*Result, error) {
	return New(NewRegistry(), s, opts...).Run(ctx)
}
