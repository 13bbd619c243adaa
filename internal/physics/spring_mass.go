package physics

import "github.com/san-kum/mrsim/internal/dynamo"

const (
	DefaultStiffness = 10.0
	DefaultDamping   = 0.5
)

// SpringMass is a line of masses joined by springs. Stiffness[0] ties the
// first mass to a wall at the origin, Stiffness[i] joins masses i-1 and i,
// and an optional Stiffness[n] ties the last mass to a wall.
// q holds displacements, v velocities.
type SpringMass struct {
	NumMasses int
	Masses    []float64
	Stiffness []float64
	Damping   []float64
}

func NewSpringMass() *SpringMass {
	return &SpringMass{
		NumMasses: 1,
		Masses:    []float64{DefaultMass},
		Stiffness: []float64{DefaultStiffness},
		Damping:   []float64{DefaultDamping},
	}
}

func NewSpringMassChain(n int) *SpringMass {
	masses := make([]float64, n)
	stiffness := make([]float64, n+1)
	damping := make([]float64, n)

	for i := 0; i < n; i++ {
		masses[i] = DefaultMass
		stiffness[i] = DefaultStiffness
		damping[i] = 0.2
	}
	stiffness[n] = DefaultStiffness

	return &SpringMass{
		NumMasses: n,
		Masses:    masses,
		Stiffness: stiffness,
		Damping:   damping,
	}
}

// NewFreeMass is a single undamped mass with no wall spring.
func NewFreeMass(m float64) *SpringMass {
	return &SpringMass{
		NumMasses: 1,
		Masses:    []float64{m},
		Stiffness: []float64{0},
		Damping:   []float64{0},
	}
}

// NewStiffOscillator is an undamped unit mass on a spring of stiffness k.
func NewStiffOscillator(k float64) *SpringMass {
	return &SpringMass{
		NumMasses: 1,
		Masses:    []float64{DefaultMass},
		Stiffness: []float64{k},
		Damping:   []float64{0},
	}
}

func (s *SpringMass) PositionDim() int { return s.NumMasses }
func (s *SpringMass) VelocityDim() int { return s.NumMasses }

func (s *SpringMass) Dynamics(q, v dynamo.State, t float64, forces dynamo.State) dynamo.State {
	n := s.NumMasses
	acc := make(dynamo.State, n)

	for i := 0; i < n; i++ {
		pos, vel := q[i], v[i]

		var forceLeft, forceRight float64
		if i == 0 {
			forceLeft = -s.Stiffness[0] * pos
		} else {
			forceLeft = -s.Stiffness[i] * (pos - q[i-1])
		}

		if i == n-1 {
			if len(s.Stiffness) > n {
				forceRight = -s.Stiffness[n] * pos
			}
		} else {
			forceRight = -s.Stiffness[i+1] * (pos - q[i+1])
		}

		totalForce := forceLeft + forceRight - s.Damping[i]*vel
		if i < len(forces) {
			totalForce += forces[i]
		}
		acc[i] = totalForce / s.Masses[i]
	}

	return acc
}

func (s *SpringMass) Energy(q, v dynamo.State) float64 {
	n := s.NumMasses
	energy := 0.0

	for i := 0; i < n; i++ {
		energy += 0.5 * s.Masses[i] * v[i] * v[i]
	}

	for i := 0; i < n; i++ {
		if i == 0 {
			energy += 0.5 * s.Stiffness[0] * q[0] * q[0]
		} else {
			stretch := q[i] - q[i-1]
			energy += 0.5 * s.Stiffness[i] * stretch * stretch
		}
	}

	if len(s.Stiffness) > n {
		energy += 0.5 * s.Stiffness[n] * q[n-1] * q[n-1]
	}

	return energy
}

// Momentum is the total linear momentum of the chain.
func (s *SpringMass) Momentum(v dynamo.State) float64 {
	p := 0.0
	for i := 0; i < s.NumMasses; i++ {
		p += s.Masses[i] * v[i]
	}
	return p
}

// GetParams reports uniform values taken from the first element.
func (s *SpringMass) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":      s.Masses[0],
		"stiffness": s.Stiffness[0],
		"damping":   s.Damping[0],
	}
}

// SetParam applies a value to every element of the named array.
func (s *SpringMass) SetParam(name string, value float64) error {
	var dst []float64
	switch name {
	case "mass":
		dst = s.Masses
	case "stiffness":
		dst = s.Stiffness
	case "damping":
		dst = s.Damping
	default:
		return unknownParam(name)
	}
	for i := range dst {
		dst[i] = value
	}
	return nil
}
