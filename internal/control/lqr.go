package control

import "github.com/san-kum/mrsim/internal/dynamo"

// LQR applies u = -K (x - Target) with x = [q, v]. Row i of K produces the
// force on velocity coordinate i.
type LQR struct {
	K      [][]float64
	Target dynamo.State
}

func NewLQR(k [][]float64, target dynamo.State) *LQR {
	return &LQR{K: k, Target: target}
}

func (l *LQR) Compute(s dynamo.SystemState, t float64) dynamo.State {
	x := make(dynamo.State, 0, len(s.Q)+len(s.V))
	x = append(x, s.Q...)
	x = append(x, s.V...)

	u := make(dynamo.State, len(s.V))
	for i := range l.K {
		if i >= len(u) {
			break
		}
		for j := range x {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			if j < len(l.K[i]) {
				u[i] -= l.K[i][j] * (x[j] - target)
			}
		}
	}
	return u
}

var (
	pendulumGains = [][]float64{{31.62, 10.0}}
	springGains   = [][]float64{{10.0, 6.32}}
)

func NewPendulumLQR() *LQR {
	return NewLQR(pendulumGains, dynamo.State{0, 0})
}

func NewSpringMassLQR() *LQR {
	return NewLQR(springGains, dynamo.State{0, 0})
}
