package dynamo

import "fmt"

// SystemState is the snapshot of one robot.
type SystemState struct {
	Q      State
	V      State
	A      State
	Forces State
}

func NewSystemState(nq, nv int) SystemState {
	return SystemState{
		Q:      make(State, nq),
		V:      make(State, nv),
		A:      make(State, nv),
		Forces: make(State, nv),
	}
}

func (s SystemState) Clone() SystemState {
	return SystemState{
		Q:      s.Q.Clone(),
		V:      s.V.Clone(),
		A:      s.A.Clone(),
		Forces: s.Forces.Clone(),
	}
}

// Validate checks the dimensions against a robot topology. A and Forces may
// be left empty; they are filled by the engine.
func (s SystemState) Validate(nq, nv int) error {
	if len(s.Q) != nq {
		return fmt.Errorf("%w: q has %d entries, want %d", ErrDimensionMismatch, len(s.Q), nq)
	}
	if len(s.V) != nv {
		return fmt.Errorf("%w: v has %d entries, want %d", ErrDimensionMismatch, len(s.V), nv)
	}
	if len(s.A) != 0 && len(s.A) != nv {
		return fmt.Errorf("%w: a has %d entries, want %d", ErrDimensionMismatch, len(s.A), nv)
	}
	if len(s.Forces) != 0 && len(s.Forces) != nv {
		return fmt.Errorf("%w: forces has %d entries, want %d", ErrDimensionMismatch, len(s.Forces), nv)
	}
	return nil
}

func (s SystemState) IsValid() bool {
	return s.Q.IsValid() && s.V.IsValid() && s.A.IsValid() && s.Forces.IsValid()
}

// CloneStates deep copies a slice of snapshots.
func CloneStates(states []SystemState) []SystemState {
	out := make([]SystemState, len(states))
	for i, s := range states {
		out[i] = s.Clone()
	}
	return out
}
