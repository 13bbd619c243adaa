package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// AddScaled accumulates factor*other into s in place.
func (s State) AddScaled(factor float64, other State) {
	for i := range s {
		if i < len(other) {
			s[i] += factor * other[i]
		}
	}
}

// Control is the vector held constant across one integration step.
// For the aggregate system it is the concatenation of every robot's
// applied forces.
type Control []float64

// System is a first-order ODE dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Robot is the external dynamics provider for one articulated system.
// Dynamics must be a pure function of its inputs for a fixed topology.
type Robot interface {
	PositionDim() int
	VelocityDim() int
	Dynamics(q, v State, t float64, forces State) State
}

// ConfigurationRate maps a velocity to the time derivative of the
// configuration. Robots whose PositionDim differs from VelocityDim
// (quaternion joints, free flyers) must implement it.
type ConfigurationRate interface {
	PositionRate(q, v State) State
}

// Hamiltonian reports the mechanical energy of a robot.
type Hamiltonian interface {
	Energy(q, v State) float64
}

type Controller interface {
	Compute(s SystemState, t float64) State
}

// StopCondition lets a controller request early termination of Simulate.
type StopCondition interface {
	Done(s SystemState, t float64) bool
}

// CouplingForce computes the forces one robot exerts on another. The two
// returned vectors are added to robot A and robot B respectively.
type CouplingForce interface {
	Compute(a, b SystemState, t float64) (State, State)
}

type CouplingFunc func(a, b SystemState, t float64) (State, State)

func (f CouplingFunc) Compute(a, b SystemState, t float64) (State, State) {
	return f(a, b, t)
}

// PotentialCoupling reports the potential energy stored in a coupling.
type PotentialCoupling interface {
	PotentialEnergy(a, b SystemState) float64
}

// ForceProfile is a time and state dependent external force on a robot.
type ForceProfile func(s SystemState, t float64) State

// Sample is one accepted point of a trajectory.
type Sample struct {
	T      float64
	States []SystemState
}

// StepEvent describes an accepted step to observers.
type StepEvent struct {
	Step          int
	T             float64
	Dt            float64
	ErrorEstimate float64
	Rejections    int
	Dropped       int
	States        []SystemState
}

type Observer interface {
	OnStep(ev StepEvent)
}

// Recorder is the I/O sink receiving accepted samples in order.
type Recorder interface {
	Record(s Sample) error
	Close() error
}

type Metric interface {
	Observer
	Name() string
	Value() float64
	Reset()
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}
