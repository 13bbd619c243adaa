package physics

import (
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Pendulum pivots at the origin; theta = 0 hangs along -y.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: -9.81,
	}
}

func (p *Pendulum) PositionDim() int { return 1 }
func (p *Pendulum) VelocityDim() int { return 1 }

func (p *Pendulum) Dynamics(q, v dynamo.State, t float64, forces dynamo.State) dynamo.State {
	theta := q[0]
	omega := v[0]

	torque := 0.0
	if len(forces) > 0 {
		torque = forces[0]
	}
	alpha := (-p.Damping*omega + p.Mass*p.Gravity*p.Length*math.Sin(theta) + torque) / (p.Mass * p.Length * p.Length)

	return dynamo.State{alpha}
}

func (p *Pendulum) Energy(q, v dynamo.State) float64 {
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * |g| * L * (1 - cos(theta))
	s := p.Length * v[0]
	ke := 0.5 * p.Mass * s * s
	pe := -p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(q[0]))
	return ke + pe
}

func (p *Pendulum) FramePosition(frame string, q dynamo.State) (dynamo.State, error) {
	if frame != FrameTip {
		return nil, unknownFrame("pendulum", frame)
	}
	s, c := math.Sincos(q[0])
	return dynamo.State{p.Length * s, -p.Length * c}, nil
}

func (p *Pendulum) FrameJacobian(frame string, q dynamo.State) (*mat.Dense, error) {
	if frame != FrameTip {
		return nil, unknownFrame("pendulum", frame)
	}
	s, c := math.Sincos(q[0])
	return mat.NewDense(2, 1, []float64{p.Length * c, p.Length * s}), nil
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
