package physics

import (
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// PlanarBody is a rigid body moving in the vertical (x, y) plane.
// q = [x, y, theta], v = [vx, vy, omega]. The "tip" frame sits at
// Offset along the body axis.
type PlanarBody struct {
	Mass    float64
	Inertia float64
	Offset  float64
	Gravity float64
}

func NewPlanarBody() *PlanarBody {
	return &PlanarBody{Mass: DefaultMass, Inertia: 0.1, Offset: 0.5, Gravity: -9.81}
}

func (b *PlanarBody) PositionDim() int { return 3 }
func (b *PlanarBody) VelocityDim() int { return 3 }

func (b *PlanarBody) Dynamics(q, v dynamo.State, t float64, forces dynamo.State) dynamo.State {
	return dynamo.State{
		forces[0] / b.Mass,
		forces[1]/b.Mass + b.Gravity,
		forces[2] / b.Inertia,
	}
}

func (b *PlanarBody) Energy(q, v dynamo.State) float64 {
	ke := 0.5*b.Mass*(v[0]*v[0]+v[1]*v[1]) + 0.5*b.Inertia*v[2]*v[2]
	return ke - b.Mass*b.Gravity*q[1]
}

func (b *PlanarBody) FramePosition(frame string, q dynamo.State) (dynamo.State, error) {
	switch frame {
	case FrameBody:
		return dynamo.State{q[0], q[1]}, nil
	case FrameTip:
		return dynamo.State{q[0] + b.Offset*math.Cos(q[2]), q[1] + b.Offset*math.Sin(q[2])}, nil
	}
	return nil, unknownFrame("planar_body", frame)
}

func (b *PlanarBody) FrameJacobian(frame string, q dynamo.State) (*mat.Dense, error) {
	switch frame {
	case FrameBody:
		return mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0}), nil
	case FrameTip:
		s, c := math.Sincos(q[2])
		return mat.NewDense(2, 3, []float64{
			1, 0, -b.Offset * s,
			0, 1, b.Offset * c,
		}), nil
	}
	return nil, unknownFrame("planar_body", frame)
}

func (b *PlanarBody) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    b.Mass,
		"inertia": b.Inertia,
		"offset":  b.Offset,
		"gravity": b.Gravity,
	}
}

func (b *PlanarBody) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		b.Mass = value
	case "inertia":
		b.Inertia = value
	case "offset":
		b.Offset = value
	case "gravity":
		b.Gravity = value
	default:
		return unknownParam(name)
	}
	return nil
}
