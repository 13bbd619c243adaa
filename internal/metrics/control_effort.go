package metrics

import (
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// ControlEffort is the mean over steps of the summed absolute applied
// forces, weighted by step size.
type ControlEffort struct {
	name     string
	integral float64
	elapsed  float64
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) OnStep(ev dynamo.StepEvent) {
	sum := 0.0
	for _, st := range ev.States {
		for _, f := range st.Forces {
			sum += math.Abs(f)
		}
	}
	c.integral += sum * ev.Dt
	c.elapsed += ev.Dt
}

func (c *ControlEffort) Value() float64 {
	if c.elapsed == 0 {
		return 0
	}
	return c.integral / c.elapsed
}

func (c *ControlEffort) Reset() {
	c.integral = 0
	c.elapsed = 0
}
