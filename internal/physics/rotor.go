package physics

import (
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// Rotor is a planar rotor whose orientation is stored as a unit complex
// number q = [cos(theta), sin(theta)] with angular velocity v = [omega].
type Rotor struct {
	Inertia float64
	Damping float64
}

func NewRotor() *Rotor {
	return &Rotor{Inertia: 1.0}
}

func (r *Rotor) PositionDim() int { return 2 }
func (r *Rotor) VelocityDim() int { return 1 }

func (r *Rotor) Dynamics(q, v dynamo.State, t float64, forces dynamo.State) dynamo.State {
	torque := 0.0
	if len(forces) > 0 {
		torque = forces[0]
	}
	return dynamo.State{(torque - r.Damping*v[0]) / r.Inertia}
}

// PositionRate is d/dt [cos, sin] = omega * [-sin, cos].
func (r *Rotor) PositionRate(q, v dynamo.State) dynamo.State {
	return dynamo.State{-q[1] * v[0], q[0] * v[0]}
}

func (r *Rotor) Energy(q, v dynamo.State) float64 {
	return 0.5 * r.Inertia * v[0] * v[0]
}

// Angle recovers theta from the stored orientation.
func (r *Rotor) Angle(q dynamo.State) float64 {
	return math.Atan2(q[1], q[0])
}

func (r *Rotor) GetParams() map[string]float64 {
	return map[string]float64{"inertia": r.Inertia, "damping": r.Damping}
}

func (r *Rotor) SetParam(name string, value float64) error {
	switch name {
	case "inertia":
		r.Inertia = value
	case "damping":
		r.Damping = value
	default:
		return unknownParam(name)
	}
	return nil
}
