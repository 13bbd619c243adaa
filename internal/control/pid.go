package control

import (
	"fmt"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// PID drives q[Index] to Target with a force on the same coordinate.
// The derivative term uses the measured velocity.
type PID struct {
	Kp       float64
	Ki       float64
	Kd       float64
	Target   float64
	Index    int
	integral float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd, target float64) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		first:  true,
	}
}

func (p *PID) Compute(s dynamo.SystemState, t float64) dynamo.State {
	u := make(dynamo.State, len(s.V))
	if p.Index >= len(s.Q) || p.Index >= len(s.V) {
		return u
	}

	err := p.Target - s.Q[p.Index]
	derivative := -s.V[p.Index]

	if p.first {
		p.prevT = t
		p.first = false
	} else if dt := t - p.prevT; dt > 0 {
		p.integral += err * dt
		p.prevT = t
	}

	u[p.Index] = p.Kp*err + p.Ki*p.integral + p.Kd*derivative
	return u
}

// Reset clears integral state
func (p *PID) Reset() {
	p.integral = 0
	p.first = true
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp":     p.Kp,
		"Ki":     p.Ki,
		"Kd":     p.Kd,
		"Target": p.Target,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "Target":
		p.Target = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
