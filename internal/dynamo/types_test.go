package dynamo

import (
	"errors"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_Arithmetic(t *testing.T) {
	a := State{1, 2, 3}
	b := State{4, 5, 6}

	sum := a.Add(b)
	if sum[0] != 5 || sum[1] != 7 || sum[2] != 9 {
		t.Errorf("Add failed: got %v", sum)
	}

	diff := b.Sub(a)
	if diff[0] != 3 || diff[1] != 3 || diff[2] != 3 {
		t.Errorf("Sub failed: got %v", diff)
	}

	scaled := a.Scale(2)
	if scaled[0] != 2 || scaled[2] != 6 {
		t.Errorf("Scale failed: got %v", scaled)
	}

	acc := a.Clone()
	acc.AddScaled(0.5, b)
	if acc[0] != 3 || acc[1] != 4.5 || acc[2] != 6 {
		t.Errorf("AddScaled failed: got %v", acc)
	}
	if a[0] != 1 {
		t.Error("Clone shares storage with original")
	}
}

func TestSystemState_Validate(t *testing.T) {
	s := NewSystemState(2, 2)
	if err := s.Validate(2, 2); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	short := SystemState{Q: State{0}, V: State{0, 0}}
	if err := short.Validate(2, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	bare := SystemState{Q: State{0, 0}, V: State{0, 0}}
	if err := bare.Validate(2, 2); err != nil {
		t.Errorf("empty A and Forces should be accepted, got %v", err)
	}

	bad := SystemState{Q: State{0, 0}, V: State{0, 0}, A: State{1}}
	if err := bad.Validate(2, 2); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for a, got %v", err)
	}
}

func TestSystemState_CloneIsDeep(t *testing.T) {
	s := NewSystemState(1, 1)
	c := s.Clone()
	c.Q[0] = 3
	c.Forces[0] = 4
	if s.Q[0] != 0 || s.Forces[0] != 0 {
		t.Errorf("Clone aliased original: %+v", s)
	}
}

func TestSimulationError_Unwrap(t *testing.T) {
	err := &SimulationError{Step: 3, Time: 0.5, Wrapped: ErrStepperDivergence}
	if !errors.Is(err, ErrStepperDivergence) {
		t.Error("SimulationError should unwrap to its cause")
	}
	var se *SimulationError
	if !errors.As(error(err), &se) || se.Step != 3 {
		t.Errorf("errors.As failed: %v", se)
	}
}
