package dynamo

import (
	"fmt"
	"math"
)

const (
	SolverDOPRI5          = "runge_kutta_dopri5"
	SolverBogackiShampine = "bogacki_shampine"
	SolverHeunEuler       = "heun_euler"
	SolverRK4             = "runge_kutta_4"
	SolverEuler           = "explicit_euler"
)

// StepperConfig holds the integration options.
type StepperConfig struct {
	Solver         string  `yaml:"solver"`
	Atol           float64 `yaml:"atol"`
	Rtol           float64 `yaml:"rtol"`
	DtInitial      float64 `yaml:"dt_initial"`
	DtMin          float64 `yaml:"dt_min"`
	DtMax          float64 `yaml:"dt_max"`
	DtGrowMax      float64 `yaml:"dt_grow_max"`
	DtShrinkMax    float64 `yaml:"dt_shrink_max"`
	SafetyFactor   float64 `yaml:"safety_factor"`
	MaxStepRejects int     `yaml:"max_step_rejects"`
	// IterMax bounds the number of accepted steps of one Simulate call.
	// Zero means unbounded.
	IterMax int `yaml:"iter_max"`
	// ControllerUpdatePeriod switches controllers to a discrete clock.
	// Zero updates them after every accepted step.
	ControllerUpdatePeriod float64 `yaml:"controller_update_period"`
}

type ConstraintConfig struct {
	Tolerance     float64 `yaml:"tolerance"`
	DropRedundant bool    `yaml:"drop_redundant"`
	MaxIterations int     `yaml:"max_iterations"`
	// Drift is the fraction of the position residual removed per iteration.
	Drift float64 `yaml:"drift"`
}

// ContactConfig parametrises the penalty ground contact model.
type ContactConfig struct {
	Stiffness         float64 `yaml:"stiffness"`
	Damping           float64 `yaml:"damping"`
	FrictionDry       float64 `yaml:"friction_dry"`
	FrictionViscous   float64 `yaml:"friction_viscous"`
	DryFrictionVelEps float64 `yaml:"dry_friction_vel_eps"`
	TransitionEps     float64 `yaml:"transition_eps"`
}

type WorldConfig struct {
	Gravity float64 `yaml:"gravity"`
}

// TelemetryConfig selects the columns written by recorders.
type TelemetryConfig struct {
	EnableVelocity     bool `yaml:"enable_velocity"`
	EnableAcceleration bool `yaml:"enable_acceleration"`
	EnableForces       bool `yaml:"enable_forces"`
	EnableEnergy       bool `yaml:"enable_energy"`
}

type Config struct {
	Stepper     StepperConfig    `yaml:"stepper"`
	Constraints ConstraintConfig `yaml:"constraints"`
	Contacts    ContactConfig    `yaml:"contacts"`
	World       WorldConfig      `yaml:"world"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Parallel    bool             `yaml:"parallel"`
}

func DefaultStepperConfig() StepperConfig {
	return StepperConfig{
		Solver:         SolverDOPRI5,
		Atol:           1e-6,
		Rtol:           1e-6,
		DtInitial:      1e-3,
		DtMin:          1e-12,
		DtMax:          1e-2,
		DtGrowMax:      2.0,
		DtShrinkMax:    0.2,
		SafetyFactor:   0.9,
		MaxStepRejects: 50,
		IterMax:        1_000_000,
	}
}

func DefaultConfig() Config {
	return Config{
		Stepper: DefaultStepperConfig(),
		Constraints: ConstraintConfig{
			Tolerance:     1e-10,
			DropRedundant: true,
			MaxIterations: 20,
			Drift:         1.0,
		},
		Contacts: ContactConfig{
			Stiffness:         1e6,
			Damping:           2000,
			FrictionDry:       5,
			FrictionViscous:   5,
			DryFrictionVelEps: 1e-2,
			TransitionEps:     1e-3,
		},
		World: WorldConfig{Gravity: -9.81},
		Telemetry: TelemetryConfig{
			EnableVelocity:     true,
			EnableAcceleration: true,
			EnableForces:       true,
			EnableEnergy:       true,
		},
	}
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfig, name, v)
	}
	return nil
}

func (c StepperConfig) Validate() error {
	switch c.Solver {
	case SolverDOPRI5, SolverBogackiShampine, SolverHeunEuler, SolverRK4, SolverEuler:
	default:
		return fmt.Errorf("%w: unknown solver %q", ErrInvalidConfig, c.Solver)
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"atol", c.Atol},
		{"rtol", c.Rtol},
		{"dt_initial", c.DtInitial},
		{"dt_min", c.DtMin},
		{"dt_max", c.DtMax},
		{"safety_factor", c.SafetyFactor},
		{"dt_shrink_max", c.DtShrinkMax},
	}
	for _, ch := range checks {
		if err := positive(ch.name, ch.v); err != nil {
			return err
		}
	}
	// Remainders shorter than DtMin are split into two steps, which needs
	// room for two minimal steps under DtMax.
	if 2*c.DtMin > c.DtMax {
		return fmt.Errorf("%w: dt_min %g must be at most half of dt_max %g", ErrInvalidConfig, c.DtMin, c.DtMax)
	}
	if c.DtGrowMax < 1 {
		return fmt.Errorf("%w: dt_grow_max must be >= 1, got %g", ErrInvalidConfig, c.DtGrowMax)
	}
	if c.DtShrinkMax >= 1 {
		return fmt.Errorf("%w: dt_shrink_max must be < 1, got %g", ErrInvalidConfig, c.DtShrinkMax)
	}
	if c.SafetyFactor > 1 {
		return fmt.Errorf("%w: safety_factor must be <= 1, got %g", ErrInvalidConfig, c.SafetyFactor)
	}
	if c.MaxStepRejects < 1 {
		return fmt.Errorf("%w: max_step_rejects must be >= 1", ErrInvalidConfig)
	}
	if c.IterMax < 0 || c.ControllerUpdatePeriod < 0 {
		return fmt.Errorf("%w: iter_max and controller_update_period must be non-negative", ErrInvalidConfig)
	}
	return nil
}

func (c Config) Validate() error {
	if err := c.Stepper.Validate(); err != nil {
		return err
	}
	if err := positive("constraints.tolerance", c.Constraints.Tolerance); err != nil {
		return err
	}
	if c.Constraints.MaxIterations < 1 {
		return fmt.Errorf("%w: constraints.max_iterations must be >= 1", ErrInvalidConfig)
	}
	if !(c.Constraints.Drift > 0 && c.Constraints.Drift <= 1) {
		return fmt.Errorf("%w: constraints.drift must be in (0, 1], got %g", ErrInvalidConfig, c.Constraints.Drift)
	}
	if c.Contacts.Stiffness < 0 || c.Contacts.Damping < 0 || c.Contacts.FrictionDry < 0 || c.Contacts.FrictionViscous < 0 {
		return fmt.Errorf("%w: contact coefficients must be non-negative", ErrInvalidConfig)
	}
	if err := positive("contacts.dry_friction_vel_eps", c.Contacts.DryFrictionVelEps); err != nil {
		return err
	}
	return positive("contacts.transition_eps", c.Contacts.TransitionEps)
}
