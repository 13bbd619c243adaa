package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// JointFriction adds -Viscous*v - Dry*sat(v/VelEps) to every velocity
// coordinate, where sat is a smoothly bevelled saturation to [-1, 1].
// Single-element coefficient slices apply to every joint.
type JointFriction struct {
	Robot   dynamo.Robot
	Viscous []float64
	Dry     []float64
	VelEps  float64
}

func NewJointFriction(r dynamo.Robot, viscous, dry, velEps float64) *JointFriction {
	return &JointFriction{
		Robot:   r,
		Viscous: []float64{viscous},
		Dry:     []float64{dry},
		VelEps:  velEps,
	}
}

func coeff(c []float64, i int) float64 {
	switch {
	case len(c) == 0:
		return 0
	case i < len(c):
		return c[i]
	default:
		return c[len(c)-1]
	}
}

func (j *JointFriction) PositionDim() int { return j.Robot.PositionDim() }
func (j *JointFriction) VelocityDim() int { return j.Robot.VelocityDim() }

func (j *JointFriction) Dynamics(q, v dynamo.State, t float64, forces dynamo.State) dynamo.State {
	total := make(dynamo.State, len(v))
	copy(total, forces)
	for i, vi := range v {
		total[i] += -coeff(j.Viscous, i)*vi - coeff(j.Dry, i)*saturateSoft(vi/j.VelEps, -1, 1, 0.7)
	}
	return j.Robot.Dynamics(q, v, t, total)
}

func (j *JointFriction) PositionRate(q, v dynamo.State) dynamo.State {
	return positionRate(j.Robot, q, v)
}

func (j *JointFriction) Energy(q, v dynamo.State) float64 {
	return energyOf(j.Robot, q, v)
}

func (j *JointFriction) FramePosition(frame string, q dynamo.State) (dynamo.State, error) {
	kin, ok := j.Robot.(constraint.Kinematics)
	if !ok {
		return nil, fmt.Errorf("%w: wrapped robot has no frames", dynamo.ErrInvalidConfig)
	}
	return kin.FramePosition(frame, q)
}

func (j *JointFriction) FrameJacobian(frame string, q dynamo.State) (*mat.Dense, error) {
	kin, ok := j.Robot.(constraint.Kinematics)
	if !ok {
		return nil, fmt.Errorf("%w: wrapped robot has no frames", dynamo.ErrInvalidConfig)
	}
	return kin.FrameJacobian(frame, q)
}

// saturateSoft clamps in to [lo, hi], replacing the corners by circular
// arcs of relative radius r.
func saturateSoft(in, lo, hi, r float64) float64 {
	const (
		alpha = math.Pi / 8
		beta  = math.Pi / 4
	)
	span := hi - lo
	middle := (hi + lo) / 2
	uc := 2 * (in - middle) / span

	bevelL := r * math.Tan(alpha)
	bevelStart := 1 - math.Cos(beta)*bevelL
	bevelStop := 1 + bevelL
	bevelXc := bevelStop
	bevelYc := 1 - r

	switch {
	case uc >= bevelStop:
		return hi
	case uc <= -bevelStop:
		return lo
	case uc <= bevelStart && uc >= -bevelStart:
		return in
	case uc > bevelStart:
		out := math.Sqrt(r*r-(uc-bevelXc)*(uc-bevelXc)) + bevelYc
		return 0.5*out*span + middle
	default:
		out := -math.Sqrt(r*r-(uc+bevelXc)*(uc+bevelXc)) - bevelYc
		return 0.5*out*span + middle
	}
}
