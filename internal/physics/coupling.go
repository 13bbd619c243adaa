package physics

import (
	"fmt"

	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// LinearSpring joins coordinate IndexA of robot A to coordinate IndexB of
// robot B with a spring-damper. The forces are equal and opposite.
type LinearSpring struct {
	Stiffness  float64
	Damping    float64
	RestLength float64
	IndexA     int
	IndexB     int
}

func NewLinearSpring(k float64) *LinearSpring {
	return &LinearSpring{Stiffness: k}
}

func (s *LinearSpring) stretch(a, b dynamo.SystemState) float64 {
	return a.Q[s.IndexA] - b.Q[s.IndexB] - s.RestLength
}

func (s *LinearSpring) Compute(a, b dynamo.SystemState, t float64) (dynamo.State, dynamo.State) {
	fa := make(dynamo.State, len(a.V))
	fb := make(dynamo.State, len(b.V))
	f := -s.Stiffness*s.stretch(a, b) - s.Damping*(a.V[s.IndexA]-b.V[s.IndexB])
	fa[s.IndexA] = f
	fb[s.IndexB] = -f
	return fa, fb
}

func (s *LinearSpring) PotentialEnergy(a, b dynamo.SystemState) float64 {
	d := s.stretch(a, b)
	return 0.5 * s.Stiffness * d * d
}

// FrameSpring joins a frame of robot A to a frame of robot B, e.g. the bobs
// of two pendulums.
type FrameSpring struct {
	A, B           constraint.Kinematics
	FrameA, FrameB string
	Stiffness      float64
	Damping        float64
	RestLength     float64
}

func NewFrameSpring(a dynamo.Robot, frameA string, b dynamo.Robot, frameB string, k float64) (*FrameSpring, error) {
	ka, okA := a.(constraint.Kinematics)
	kb, okB := b.(constraint.Kinematics)
	if !okA || !okB {
		return nil, fmt.Errorf("%w: frame spring needs robots exposing frames", dynamo.ErrInvalidConfig)
	}
	pa, err := probeFrame(ka, a.PositionDim(), frameA)
	if err != nil {
		return nil, err
	}
	pb, err := probeFrame(kb, b.PositionDim(), frameB)
	if err != nil {
		return nil, err
	}
	if len(pa) != len(pb) {
		return nil, fmt.Errorf("%w: frame %q has %d coordinates, frame %q has %d",
			dynamo.ErrDimensionMismatch, frameA, len(pa), frameB, len(pb))
	}
	return &FrameSpring{A: ka, B: kb, FrameA: frameA, FrameB: frameB, Stiffness: k}, nil
}

// probeFrame evaluates frame at the zero configuration.
func probeFrame(k constraint.Kinematics, nq int, frame string) (dynamo.State, error) {
	q := make(dynamo.State, nq)
	pos, err := k.FramePosition(frame, q)
	if err != nil {
		return nil, err
	}
	if _, err := k.FrameJacobian(frame, q); err != nil {
		return nil, err
	}
	return pos, nil
}

// separation returns pa - pb and its length.
func (s *FrameSpring) separation(a, b dynamo.SystemState) (dynamo.State, float64, error) {
	pa, err := s.A.FramePosition(s.FrameA, a.Q)
	if err != nil {
		return nil, 0, err
	}
	pb, err := s.B.FramePosition(s.FrameB, b.Q)
	if err != nil {
		return nil, 0, err
	}
	d := pa.Sub(pb)
	return d, d.Norm(), nil
}

func (s *FrameSpring) Compute(a, b dynamo.SystemState, t float64) (dynamo.State, dynamo.State) {
	fa := make(dynamo.State, len(a.V))
	fb := make(dynamo.State, len(b.V))

	d, dist, err := s.separation(a, b)
	if err != nil {
		return fa, fb
	}
	ja, err := s.A.FrameJacobian(s.FrameA, a.Q)
	if err != nil {
		return fa, fb
	}
	jb, err := s.B.FrameJacobian(s.FrameB, b.Q)
	if err != nil {
		return fa, fb
	}

	var va, vb mat.VecDense
	va.MulVec(ja, mat.NewVecDense(len(a.V), a.V.Clone()))
	vb.MulVec(jb, mat.NewVecDense(len(b.V), b.V.Clone()))

	// World force on A; B receives the opposite.
	f := make([]float64, len(d))
	if s.RestLength == 0 {
		for i := range d {
			f[i] = -s.Stiffness * d[i]
		}
	} else if dist > 0 {
		scale := -s.Stiffness * (dist - s.RestLength) / dist
		for i := range d {
			f[i] = scale * d[i]
		}
	}
	for i := range f {
		f[i] -= s.Damping * (va.AtVec(i) - vb.AtVec(i))
	}

	fw := mat.NewVecDense(len(f), f)
	var ga, gb mat.VecDense
	ga.MulVec(ja.T(), fw)
	gb.MulVec(jb.T(), fw)
	for i := range fa {
		fa[i] = ga.AtVec(i)
	}
	for i := range fb {
		fb[i] = -gb.AtVec(i)
	}
	return fa, fb
}

func (s *FrameSpring) PotentialEnergy(a, b dynamo.SystemState) float64 {
	_, dist, err := s.separation(a, b)
	if err != nil {
		return 0
	}
	e := dist - s.RestLength
	return 0.5 * s.Stiffness * e * e
}

// Damper is a pure velocity coupling between two coordinates.
func Damper(c float64, indexA, indexB int) dynamo.CouplingFunc {
	return func(a, b dynamo.SystemState, t float64) (dynamo.State, dynamo.State) {
		fa := make(dynamo.State, len(a.V))
		fb := make(dynamo.State, len(b.V))
		f := -c * (a.V[indexA] - b.V[indexB])
		fa[indexA] = f
		fb[indexB] = -f
		return fa, fb
	}
}
