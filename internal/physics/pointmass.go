package physics

import (
	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

const DefaultMass = 1.0

// PointMass is a particle in the (x, y) plane under gravity along y.
type PointMass struct {
	Mass    float64
	Gravity float64
}

func NewPointMass() *PointMass {
	return &PointMass{Mass: DefaultMass, Gravity: -9.81}
}

func (p *PointMass) PositionDim() int { return 2 }
func (p *PointMass) VelocityDim() int { return 2 }

func (p *PointMass) Dynamics(q, v dynamo.State, t float64, forces dynamo.State) dynamo.State {
	return dynamo.State{
		forces[0] / p.Mass,
		forces[1]/p.Mass + p.Gravity,
	}
}

func (p *PointMass) Energy(q, v dynamo.State) float64 {
	ke := 0.5 * p.Mass * (v[0]*v[0] + v[1]*v[1])
	pe := -p.Mass * p.Gravity * q[1]
	return ke + pe
}

func (p *PointMass) FramePosition(frame string, q dynamo.State) (dynamo.State, error) {
	if frame != FrameBody {
		return nil, unknownFrame("point_mass", frame)
	}
	return dynamo.State{q[0], q[1]}, nil
}

func (p *PointMass) FrameJacobian(frame string, q dynamo.State) (*mat.Dense, error) {
	if frame != FrameBody {
		return nil, unknownFrame("point_mass", frame)
	}
	return mat.NewDense(2, 2, []float64{1, 0, 0, 1}), nil
}

func (p *PointMass) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"gravity": p.Gravity,
	}
}

func (p *PointMass) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "gravity":
		p.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
