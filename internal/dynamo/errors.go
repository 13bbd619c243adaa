package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrEngineNotInitialized indicates Step was called before Start.
	ErrEngineNotInitialized = errors.New("dynamo: engine not initialized")

	// ErrEngineStopped indicates Step was called after Stop.
	ErrEngineStopped = errors.New("dynamo: engine stopped")

	// ErrStepperDivergence indicates the adaptive step fell below the minimum
	// or exhausted its rejection budget.
	ErrStepperDivergence = errors.New("dynamo: stepper diverged")

	// ErrConstraintSingularity indicates a rank deficient constraint Jacobian.
	ErrConstraintSingularity = errors.New("dynamo: constraint jacobian is singular")

	// ErrReentrantCall indicates Step or Simulate was called from a callback
	// of the same engine.
	ErrReentrantCall = errors.New("dynamo: reentrant call")

	// ErrRegistrationClosed indicates topology changes after Start.
	ErrRegistrationClosed = errors.New("dynamo: registration closed")

	// ErrUnknownSystem indicates a name that was never registered.
	ErrUnknownSystem = errors.New("dynamo: unknown system")

	// ErrDuplicateSystem indicates a name registered twice.
	ErrDuplicateSystem = errors.New("dynamo: duplicate system")

	// ErrIterationLimit indicates Simulate exhausted its step budget.
	ErrIterationLimit = errors.New("dynamo: iteration limit reached")

	// ErrInvalidConfig indicates inconsistent engine options.
	ErrInvalidConfig = errors.New("dynamo: invalid config")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
