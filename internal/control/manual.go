package control

import (
	"sync"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// ManualController applies forces set from outside the simulation loop,
// for example from an interactive front end.
type ManualController struct {
	mu sync.Mutex
	U  dynamo.State
}

func NewManual() *ManualController {
	return &ManualController{}
}

// SetControl updates the applied forces.
func (c *ManualController) SetControl(u []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.U = append(c.U[:0], u...)
}

// Compute returns the stored forces padded or truncated to the robot.
func (c *ManualController) Compute(s dynamo.SystemState, t float64) dynamo.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(dynamo.State, len(s.V))
	copy(out, c.U)
	return out
}
