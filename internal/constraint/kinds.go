package constraint

import (
	"fmt"

	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// FixedFrame pins a robot frame to a world position.
type FixedFrame struct {
	Base
	Frame     string
	Reference dynamo.State

	kin  Kinematics
	dim  int
	auto bool
}

// NewFixedFrame pins frame to ref. A nil ref is captured from the
// configuration on every attach.
func NewFixedFrame(name, frame string, ref dynamo.State) *FixedFrame {
	return &FixedFrame{
		Base:      Base{name: name, active: true},
		Frame:     frame,
		Reference: ref.Clone(),
		auto:      len(ref) == 0,
	}
}

func (f *FixedFrame) Kind() Kind       { return KindFixedFrame }
func (f *FixedFrame) Dim() int         { return f.dim }
func (f *FixedFrame) Unilateral() bool { return false }

// SetActive is a no-op for bilateral constraints.
func (f *FixedFrame) SetActive(bool) {}

func (f *FixedFrame) Attach(r dynamo.Robot, q dynamo.State) error {
	if err := f.attach(r, q); err != nil {
		return err
	}
	kin, err := kinematicsOf(f.name, r)
	if err != nil {
		return err
	}
	pos, err := kin.FramePosition(f.Frame, q)
	if err != nil {
		return err
	}
	if f.auto {
		f.Reference = pos.Clone()
	} else if len(f.Reference) != len(pos) {
		return fmt.Errorf("%w: reference of %q has %d entries, frame has %d", dynamo.ErrDimensionMismatch, f.name, len(f.Reference), len(pos))
	}
	f.kin = kin
	f.dim = len(pos)
	return nil
}

func (f *FixedFrame) Residual(q dynamo.State) (dynamo.State, error) {
	pos, err := f.kin.FramePosition(f.Frame, q)
	if err != nil {
		return nil, err
	}
	return pos.Sub(f.Reference), nil
}

func (f *FixedFrame) Jacobian(q dynamo.State) (*mat.Dense, error) {
	return f.kin.FrameJacobian(f.Frame, q)
}

// JointLimit keeps one coordinate inside [Lower, Upper].
type JointLimit struct {
	Base
	Index int
	Lower float64
	Upper float64
}

func NewJointLimit(name string, index int, lower, upper float64) *JointLimit {
	return &JointLimit{Base: Base{name: name}, Index: index, Lower: lower, Upper: upper}
}

func (j *JointLimit) Kind() Kind       { return KindJointLimit }
func (j *JointLimit) Dim() int         { return 1 }
func (j *JointLimit) Unilateral() bool { return true }

func (j *JointLimit) Attach(r dynamo.Robot, q dynamo.State) error {
	if err := j.attach(r, q); err != nil {
		return err
	}
	if j.Index < 0 || j.Index >= j.nq || j.Index >= j.nv {
		return fmt.Errorf("%w: joint limit %q index %d out of range", dynamo.ErrInvalidConfig, j.name, j.Index)
	}
	if j.Lower >= j.Upper {
		return fmt.Errorf("%w: joint limit %q has empty range [%g, %g]", dynamo.ErrInvalidConfig, j.name, j.Lower, j.Upper)
	}
	return nil
}

// lowerSide reports whether the lower bound is the nearer one.
func (j *JointLimit) lowerSide(q dynamo.State) bool {
	return q[j.Index]-j.Lower <= j.Upper-q[j.Index]
}

func (j *JointLimit) Residual(q dynamo.State) (dynamo.State, error) {
	if j.lowerSide(q) {
		return dynamo.State{q[j.Index] - j.Lower}, nil
	}
	return dynamo.State{j.Upper - q[j.Index]}, nil
}

func (j *JointLimit) Jacobian(q dynamo.State) (*mat.Dense, error) {
	jac := mat.NewDense(1, j.nv, nil)
	if j.lowerSide(q) {
		jac.Set(0, j.Index, 1)
	} else {
		jac.Set(0, j.Index, -1)
	}
	return jac, nil
}

// Contact keeps a frame above a ground plane along one world axis.
type Contact struct {
	Base
	Frame  string
	Axis   int
	Height float64

	kin Kinematics
}

func NewContact(name, frame string, axis int, height float64) *Contact {
	return &Contact{Base: Base{name: name}, Frame: frame, Axis: axis, Height: height}
}

func (c *Contact) Kind() Kind       { return KindContact }
func (c *Contact) Dim() int         { return 1 }
func (c *Contact) Unilateral() bool { return true }

func (c *Contact) Attach(r dynamo.Robot, q dynamo.State) error {
	if err := c.attach(r, q); err != nil {
		return err
	}
	kin, err := kinematicsOf(c.name, r)
	if err != nil {
		return err
	}
	pos, err := kin.FramePosition(c.Frame, q)
	if err != nil {
		return err
	}
	if c.Axis < 0 || c.Axis >= len(pos) {
		return fmt.Errorf("%w: contact %q axis %d out of range", dynamo.ErrInvalidConfig, c.name, c.Axis)
	}
	c.kin = kin
	return nil
}

func (c *Contact) Residual(q dynamo.State) (dynamo.State, error) {
	pos, err := c.kin.FramePosition(c.Frame, q)
	if err != nil {
		return nil, err
	}
	return dynamo.State{pos[c.Axis] - c.Height}, nil
}

func (c *Contact) Jacobian(q dynamo.State) (*mat.Dense, error) {
	full, err := c.kin.FrameJacobian(c.Frame, q)
	if err != nil {
		return nil, err
	}
	_, cols := full.Dims()
	row := make([]float64, cols)
	copy(row, full.RawRowView(c.Axis))
	return mat.NewDense(1, cols, row), nil
}
