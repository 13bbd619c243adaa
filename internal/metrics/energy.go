package metrics

import (
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// EnergyFunc maps the per-system snapshots to a total energy.
type EnergyFunc func(states []dynamo.SystemState) float64

// EnergyDrift tracks the largest relative deviation of the total energy
// from its baseline. When the baseline is zero the absolute deviation is
// reported instead.
type EnergyDrift struct {
	name     string
	energy   EnergyFunc
	initial  float64
	current  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift(energy EnergyFunc) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		energy: energy,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

// Baseline fixes the reference energy. Without it the first observed step
// becomes the reference.
func (e *EnergyDrift) Baseline(states []dynamo.SystemState) {
	e.Reset()
	e.observe(states)
}

func (e *EnergyDrift) OnStep(ev dynamo.StepEvent) {
	e.observe(ev.States)
}

func (e *EnergyDrift) observe(states []dynamo.SystemState) {
	energy := e.energy(states)
	if e.samples == 0 {
		e.initial = energy
	}
	e.current = energy
	e.samples++

	drift := math.Abs(energy - e.initial)
	if e.initial != 0 {
		drift /= math.Abs(e.initial)
	}
	e.maxDrift = math.Max(e.maxDrift, drift)
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

// Current is the energy at the last observed step.
func (e *EnergyDrift) Current() float64 { return e.current }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.current = 0
	e.maxDrift = 0
	e.samples = 0
}
