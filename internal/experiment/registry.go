package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/mrsim/internal/config"
	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/control"
	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/san-kum/mrsim/internal/engine"
	"github.com/san-kum/mrsim/internal/integrators"
	"github.com/san-kum/mrsim/internal/metrics"
	"github.com/san-kum/mrsim/internal/physics"
)

// StabilityThreshold bounds |q| and |v| for the default stability metric.
const StabilityThreshold = 1e6

type Registry struct {
	models      map[string]func() dynamo.Robot
	controllers map[string]func(map[string]float64) dynamo.Controller
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]func() dynamo.Robot),
		controllers: make(map[string]func(map[string]float64) dynamo.Controller),
	}

	r.models["point_mass"] = func() dynamo.Robot { return physics.NewPointMass() }
	r.models["planar_body"] = func() dynamo.Robot { return physics.NewPlanarBody() }
	r.models["pendulum"] = func() dynamo.Robot { return physics.NewPendulum() }
	r.models["spring_mass"] = func() dynamo.Robot { return physics.NewSpringMass() }
	r.models["spring_chain"] = func() dynamo.Robot { return physics.NewSpringMassChain(3) }
	r.models["free_mass"] = func() dynamo.Robot { return physics.NewFreeMass(physics.DefaultMass) }
	r.models["stiff_oscillator"] = func() dynamo.Robot { return physics.NewStiffOscillator(1e6) }
	r.models["rotor"] = func() dynamo.Robot { return physics.NewRotor() }

	r.controllers["none"] = func(map[string]float64) dynamo.Controller {
		return control.NewNone(0)
	}
	r.controllers["pid"] = func(params map[string]float64) dynamo.Controller {
		pid := control.NewPID(params["kp"], params["ki"], params["kd"], params["target"])
		pid.Index = int(params["index"])
		return pid
	}
	r.controllers["lqr"] = func(map[string]float64) dynamo.Controller {
		return control.NewSpringMassLQR()
	}
	r.controllers["pendulum_lqr"] = func(map[string]float64) dynamo.Controller {
		return control.NewPendulumLQR()
	}
	r.controllers["manual"] = func(map[string]float64) dynamo.Controller {
		return control.NewManual()
	}

	return r
}

// RegisterModel adds or replaces a model factory.
func (r *Registry) RegisterModel(name string, fn func() dynamo.Robot) {
	r.models[name] = fn
}

func (r *Registry) RegisterController(name string, fn func(map[string]float64) dynamo.Controller) {
	r.controllers[name] = fn
}

// GetModel builds a fresh robot. World gravity is applied to models that
// expose a gravity parameter, then params override it.
func (r *Registry) GetModel(name string, params map[string]float64, world dynamo.WorldConfig) (dynamo.Robot, error) {
	fn, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", dynamo.ErrInvalidConfig, name)
	}
	robot := fn()
	cfg, ok := robot.(dynamo.Configurable)
	if !ok {
		if len(params) > 0 {
			return nil, fmt.Errorf("%w: model %q takes no parameters", dynamo.ErrInvalidConfig, name)
		}
		return robot, nil
	}
	if _, has := cfg.GetParams()["gravity"]; has {
		if err := cfg.SetParam("gravity", world.Gravity); err != nil {
			return nil, err
		}
	}
	for _, k := range sortedKeys(params) {
		if err := cfg.SetParam(k, params[k]); err != nil {
			return nil, fmt.Errorf("%w: model %q: %w", dynamo.ErrInvalidConfig, name, err)
		}
	}
	return robot, nil
}

func (r *Registry) GetController(spec config.ControllerSpec) (dynamo.Controller, error) {
	name := spec.Type
	if name == "" {
		name = "none"
	}
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown controller %q", dynamo.ErrInvalidConfig, name)
	}
	return fn(spec.ControllerParams()), nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListControllers() []string {
	return sortedKeys(r.controllers)
}

func (r *Registry) ListSolvers() []string {
	return integrators.Names()
}

// DefaultMetrics returns fresh energy, stability and effort metrics for e.
func (r *Registry) DefaultMetrics(e *engine.Engine) []dynamo.Metric {
	return []dynamo.Metric{
		metrics.NewEnergyDrift(e.TotalEnergy),
		metrics.NewStability(StabilityThreshold),
		metrics.NewControlEffort(),
	}
}

func buildConstraint(spec config.ConstraintSpec) (constraint.Constraint, error) {
	var c constraint.Constraint
	switch spec.Type {
	case "fixed_frame":
		ff := constraint.NewFixedFrame(spec.Name, spec.Frame, spec.Reference)
		ff.SetDrift(spec.Drift)
		c = ff
	case "joint_limit":
		jl := constraint.NewJointLimit(spec.Name, spec.Index, spec.Lower, spec.Upper)
		jl.SetDrift(spec.Drift)
		c = jl
	case "contact":
		ct := constraint.NewContact(spec.Name, spec.Frame, spec.Axis, spec.Height)
		ct.SetDrift(spec.Drift)
		c = ct
	default:
		return nil, fmt.Errorf("%w: unknown constraint type %q", dynamo.ErrInvalidConfig, spec.Type)
	}
	return c, nil
}

func buildCoupling(spec config.CouplingSpec, a, b dynamo.Robot) (dynamo.CouplingForce, error) {
	switch spec.Type {
	case "spring":
		s := physics.NewLinearSpring(spec.Stiffness)
		s.Damping = spec.Damping
		s.RestLength = spec.RestLength
		s.IndexA, s.IndexB = spec.IndexA, spec.IndexB
		if err := checkIndex(spec, a, b); err != nil {
			return nil, err
		}
		return s, nil
	case "damper":
		if err := checkIndex(spec, a, b); err != nil {
			return nil, err
		}
		return physics.Damper(spec.Damping, spec.IndexA, spec.IndexB), nil
	case "frame_spring":
		s, err := physics.NewFrameSpring(a, spec.FrameA, b, spec.FrameB, spec.Stiffness)
		if err != nil {
			return nil, err
		}
		s.Damping = spec.Damping
		s.RestLength = spec.RestLength
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown coupling type %q", dynamo.ErrInvalidConfig, spec.Type)
	}
}

func checkIndex(spec config.CouplingSpec, a, b dynamo.Robot) error {
	if spec.IndexA < 0 || spec.IndexA >= a.VelocityDim() || spec.IndexA >= a.PositionDim() ||
		spec.IndexB < 0 || spec.IndexB >= b.VelocityDim() || spec.IndexB >= b.PositionDim() {
		return fmt.Errorf("%w: coupling %q indices %d/%d out of range",
			dynamo.ErrDimensionMismatch, spec.Name, spec.IndexA, spec.IndexB)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
