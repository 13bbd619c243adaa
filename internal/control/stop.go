package control

import "github.com/san-kum/mrsim/internal/dynamo"

type stopping struct {
	dynamo.Controller
	done func(s dynamo.SystemState, t float64) bool
}

func (s *stopping) Done(st dynamo.SystemState, t float64) bool { return s.done(st, t) }

// StopWhen wraps c so that the engine ends Simulate once done reports true.
func StopWhen(c dynamo.Controller, done func(s dynamo.SystemState, t float64) bool) dynamo.Controller {
	if c == nil {
		c = NewNone(0)
	}
	return &stopping{Controller: c, done: done}
}

// Settled reports true once every velocity is below tol.
func Settled(tol float64) func(s dynamo.SystemState, t float64) bool {
	return func(s dynamo.SystemState, t float64) bool {
		return s.V.Norm() < tol
	}
}

// Below reports true once q[index] drops under level.
func Below(index int, level float64) func(s dynamo.SystemState, t float64) bool {
	return func(s dynamo.SystemState, t float64) bool {
		return index < len(s.Q) && s.Q[index] < level
	}
}
