// Package constraint holds kinematic constraints and the projector that
// keeps a robot's accepted state on the constraint manifold.
package constraint

import (
	"fmt"

	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

type Kind int

const (
	KindFixedFrame Kind = iota
	KindJointLimit
	KindContact
)

func (k Kind) String() string {
	switch k {
	case KindFixedFrame:
		return "fixed_frame"
	case KindJointLimit:
		return "joint_limit"
	case KindContact:
		return "contact"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Constraint is one block of rows g(q) = 0 (bilateral) or g(q) >= 0
// (unilateral). Dim is fixed once attached; only unilateral constraints
// toggle their active flag.
type Constraint interface {
	Name() string
	Kind() Kind
	Dim() int
	Unilateral() bool
	Attach(r dynamo.Robot, q dynamo.State) error
	Residual(q dynamo.State) (dynamo.State, error)
	// Jacobian is Dim x VelocityDim.
	Jacobian(q dynamo.State) (*mat.Dense, error)
	Active() bool
	SetActive(active bool)
	// Drift is the per-iteration correction gain; zero defers to the
	// projector default.
	Drift() float64
}

// Kinematics is implemented by robots that expose named frames.
type Kinematics interface {
	FramePosition(frame string, q dynamo.State) (dynamo.State, error)
	FrameJacobian(frame string, q dynamo.State) (*mat.Dense, error)
}

// Base carries the bookkeeping shared by every kind.
type Base struct {
	name   string
	active bool
	drift  float64
	nq, nv int
}

func (b *Base) Name() string          { return b.name }
func (b *Base) Active() bool          { return b.active }
func (b *Base) SetActive(active bool) { b.active = active }
func (b *Base) Drift() float64        { return b.drift }

// SetDrift overrides the correction gain for this constraint.
func (b *Base) SetDrift(d float64) { b.drift = d }

func (b *Base) attach(r dynamo.Robot, q dynamo.State) error {
	b.nq, b.nv = r.PositionDim(), r.VelocityDim()
	if len(q) != b.nq {
		return fmt.Errorf("%w: constraint %q got q of %d entries, want %d", dynamo.ErrDimensionMismatch, b.name, len(q), b.nq)
	}
	return nil
}

func kinematicsOf(name string, r dynamo.Robot) (Kinematics, error) {
	k, ok := r.(Kinematics)
	if !ok {
		return nil, fmt.Errorf("%w: constraint %q needs a robot exposing frames", dynamo.ErrInvalidConfig, name)
	}
	return k, nil
}

// Snapshot records the active flags so a failed step can roll them back.
func Snapshot(cs []Constraint) []bool {
	flags := make([]bool, len(cs))
	for i, c := range cs {
		flags[i] = c.Active()
	}
	return flags
}

func Restore(cs []Constraint, flags []bool) {
	for i, c := range cs {
		if i < len(flags) {
			c.SetActive(flags[i])
		}
	}
}

// MaxViolation is the largest residual magnitude over active bilateral rows
// and the largest penetration over active unilateral rows.
func MaxViolation(cs []Constraint, q dynamo.State) (float64, error) {
	worst := 0.0
	for _, c := range cs {
		if !c.Active() {
			continue
		}
		r, err := c.Residual(q)
		if err != nil {
			return 0, err
		}
		for _, v := range r {
			if c.Unilateral() {
				v = min(v, 0)
			}
			if v < 0 {
				v = -v
			}
			worst = max(worst, v)
		}
	}
	return worst, nil
}
