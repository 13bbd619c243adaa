package control

import "github.com/san-kum/mrsim/internal/dynamo"

type None struct {
	dim int
}

// NewNone returns zero forces. A dim of 0 sizes the output from the
// robot's velocity.
func NewNone(dim int) *None {
	return &None{
		dim: dim,
	}
}

func (n *None) Compute(s dynamo.SystemState, t float64) dynamo.State {
	if n.dim > 0 {
		return make(dynamo.State, n.dim)
	}
	return make(dynamo.State, len(s.V))
}

// Func adapts a function to dynamo.Controller.
type Func func(s dynamo.SystemState, t float64) dynamo.State

func (f Func) Compute(s dynamo.SystemState, t float64) dynamo.State { return f(s, t) }
