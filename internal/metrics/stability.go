package metrics

import (
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// Stability is the fraction of steps on which every coordinate and
// velocity stayed within threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) OnStep(ev dynamo.StepEvent) {
	s.samples++
	for _, st := range ev.States {
		if exceeds(st.Q, s.threshold) || exceeds(st.V, s.threshold) {
			s.violations++
			return
		}
	}
}

func exceeds(x dynamo.State, threshold float64) bool {
	for _, val := range x {
		if math.Abs(val) > threshold || math.IsNaN(val) {
			return true
		}
	}
	return false
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
