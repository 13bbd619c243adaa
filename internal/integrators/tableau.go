package integrators

import (
	"fmt"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// Tableau is an explicit Runge-Kutta scheme. E holds the difference between
// the propagating weights and the embedded ones; it is nil for fixed-step
// schemes.
type Tableau struct {
	Name          string
	C             []float64
	A             [][]float64
	B             []float64
	E             []float64
	Order         int
	EmbeddedOrder int
}

func (tb *Tableau) Stages() int { return len(tb.B) }

func (tb *Tableau) Adaptive() bool { return tb.E != nil }

// ErrorExponent is the order of the local error estimate.
func (tb *Tableau) ErrorExponent() float64 { return float64(tb.EmbeddedOrder + 1) }

func DOPRI5() *Tableau {
	return &Tableau{
		Name: dynamo.SolverDOPRI5,
		C:    []float64{0, a2, a3, a4, a5, 1, 1},
		A: [][]float64{
			{},
			{b21},
			{b31, b32},
			{b41, b42, b43},
			{b51, b52, b53, b54},
			{b61, b62, b63, b64, b65},
			{c1, 0, c3, c4, c5, c6},
		},
		B:             []float64{c1, 0, c3, c4, c5, c6, 0},
		E:             []float64{dc1, 0, dc3, dc4, dc5, dc6, dc7},
		Order:         5,
		EmbeddedOrder: 4,
	}
}

func BogackiShampine() *Tableau {
	return &Tableau{
		Name: dynamo.SolverBogackiShampine,
		C:    []float64{0, 0.5, 0.75, 1},
		A: [][]float64{
			{},
			{0.5},
			{0, 0.75},
			{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0},
		},
		B:             []float64{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0, 0},
		E:             []float64{-5.0 / 72.0, 1.0 / 12.0, 1.0 / 9.0, -1.0 / 8.0},
		Order:         3,
		EmbeddedOrder: 2,
	}
}

func HeunEuler() *Tableau {
	return &Tableau{
		Name:          dynamo.SolverHeunEuler,
		C:             []float64{0, 1},
		A:             [][]float64{{}, {1}},
		B:             []float64{0.5, 0.5},
		E:             []float64{-0.5, 0.5},
		Order:         2,
		EmbeddedOrder: 1,
	}
}

func RK4() *Tableau {
	return &Tableau{
		Name: dynamo.SolverRK4,
		C:    []float64{0, 0.5, 0.5, 1},
		A: [][]float64{
			{},
			{0.5},
			{0, 0.5},
			{0, 0, 1},
		},
		B:     []float64{1.0 / 6.0, 1.0 / 3.0, 1.0 / 3.0, 1.0 / 6.0},
		Order: 4,
	}
}

func Euler() *Tableau {
	return &Tableau{
		Name:  dynamo.SolverEuler,
		C:     []float64{0},
		A:     [][]float64{{}},
		B:     []float64{1},
		Order: 1,
	}
}

// Lookup returns the tableau registered under a solver name.
func Lookup(name string) (*Tableau, error) {
	switch name {
	case dynamo.SolverDOPRI5, "":
		return DOPRI5(), nil
	case dynamo.SolverBogackiShampine:
		return BogackiShampine(), nil
	case dynamo.SolverHeunEuler:
		return HeunEuler(), nil
	case dynamo.SolverRK4:
		return RK4(), nil
	case dynamo.SolverEuler:
		return Euler(), nil
	}
	return nil, fmt.Errorf("%w: unknown solver %q", dynamo.ErrInvalidConfig, name)
}

// Names lists the supported solvers.
func Names() []string {
	return []string{
		dynamo.SolverDOPRI5,
		dynamo.SolverBogackiShampine,
		dynamo.SolverHeunEuler,
		dynamo.SolverRK4,
		dynamo.SolverEuler,
	}
}
