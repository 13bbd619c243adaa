package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// GroundContact adds penalty contact forces between named frames and the
// plane x[Up] = Height. The normal force is a one-sided spring-damper, the
// tangential force a regularised dry/viscous friction, and the whole wrench
// is blended in linearly over the first TransitionEps of penetration.
type GroundContact struct {
	Robot   dynamo.Robot
	Frames  []string
	Up      int
	Height  float64
	Options dynamo.ContactConfig

	kin constraint.Kinematics
}

func NewGroundContact(r dynamo.Robot, opts dynamo.ContactConfig, up int, frames ...string) (*GroundContact, error) {
	kin, ok := r.(constraint.Kinematics)
	if !ok {
		return nil, fmt.Errorf("%w: ground contact needs a robot exposing frames", dynamo.ErrInvalidConfig)
	}
	q := make(dynamo.State, r.PositionDim())
	for _, f := range frames {
		pos, err := kin.FramePosition(f, q)
		if err != nil {
			return nil, err
		}
		if up < 0 || up >= len(pos) {
			return nil, fmt.Errorf("%w: up axis %d out of range for frame %q", dynamo.ErrInvalidConfig, up, f)
		}
	}
	return &GroundContact{Robot: r, Frames: frames, Up: up, Options: opts, kin: kin}, nil
}

func (g *GroundContact) PositionDim() int { return g.Robot.PositionDim() }
func (g *GroundContact) VelocityDim() int { return g.Robot.VelocityDim() }

func (g *GroundContact) Dynamics(q, v dynamo.State, t float64, forces dynamo.State) dynamo.State {
	total := make(dynamo.State, g.Robot.VelocityDim())
	copy(total, forces)
	for _, f := range g.Frames {
		gen, err := g.frameForce(f, q, v)
		if err != nil {
			continue
		}
		total.AddScaled(1, gen)
	}
	return g.Robot.Dynamics(q, v, t, total)
}

// frameForce returns the generalized force of one frame's contact wrench.
func (g *GroundContact) frameForce(frame string, q, v dynamo.State) (dynamo.State, error) {
	pos, err := g.kin.FramePosition(frame, q)
	if err != nil {
		return nil, err
	}
	depth := pos[g.Up] - g.Height
	if depth >= 0 {
		return nil, nil
	}
	jac, err := g.kin.FrameJacobian(frame, q)
	if err != nil {
		return nil, err
	}
	var vf mat.VecDense
	vf.MulVec(jac, mat.NewVecDense(len(v), v.Clone()))

	opts := g.Options
	fw := make([]float64, len(pos))

	fn := -opts.Stiffness * depth
	if vUp := vf.AtVec(g.Up); vUp < 0 {
		fn -= opts.Damping * vUp
	}
	fw[g.Up] = fn

	vNorm := 0.0
	for i := range pos {
		if i != g.Up {
			vNorm += vf.AtVec(i) * vf.AtVec(i)
		}
	}
	vNorm = math.Sqrt(vNorm)
	if vNorm > 0 {
		mu := frictionCoefficient(vNorm, opts)
		for i := range pos {
			if i != g.Up {
				fw[i] = -vf.AtVec(i) / vNorm * mu * fn
			}
		}
	}

	blend := math.Min(1, -depth/opts.TransitionEps)
	var gen mat.VecDense
	gen.MulVec(jac.T(), mat.NewVecDense(len(fw), fw))
	gen.ScaleVec(blend, &gen)
	return dynamo.State(gen.RawVector().Data), nil
}

// frictionCoefficient ramps linearly to FrictionDry below DryFrictionVelEps,
// then blends down to FrictionViscous by 1.5*DryFrictionVelEps.
func frictionCoefficient(vNorm float64, opts dynamo.ContactConfig) float64 {
	eps := opts.DryFrictionVelEps
	switch {
	case vNorm <= eps:
		return vNorm * opts.FrictionDry / eps
	case vNorm < 1.5*eps:
		return -2*vNorm*(opts.FrictionDry-opts.FrictionViscous)/eps + 3*opts.FrictionDry - 2*opts.FrictionViscous
	default:
		return opts.FrictionViscous
	}
}

func (g *GroundContact) FramePosition(frame string, q dynamo.State) (dynamo.State, error) {
	return g.kin.FramePosition(frame, q)
}

func (g *GroundContact) FrameJacobian(frame string, q dynamo.State) (*mat.Dense, error) {
	return g.kin.FrameJacobian(frame, q)
}

func (g *GroundContact) PositionRate(q, v dynamo.State) dynamo.State {
	return positionRate(g.Robot, q, v)
}

func (g *GroundContact) Energy(q, v dynamo.State) float64 {
	return energyOf(g.Robot, q, v)
}

func positionRate(r dynamo.Robot, q, v dynamo.State) dynamo.State {
	if cr, ok := r.(dynamo.ConfigurationRate); ok {
		return cr.PositionRate(q, v)
	}
	return v.Clone()
}

func energyOf(r dynamo.Robot, q, v dynamo.State) float64 {
	if h, ok := r.(dynamo.Hamiltonian); ok {
		return h.Energy(q, v)
	}
	return 0
}
