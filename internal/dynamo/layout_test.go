package dynamo

import (
	"errors"
	"testing"
)

func TestLayout_Offsets(t *testing.T) {
	l := NewLayout()
	if _, err := l.Add("a", 2, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Add("b", 3, 2); err != nil {
		t.Fatal(err)
	}

	if l.Size() != 9 {
		t.Errorf("Size() = %d, want 9", l.Size())
	}
	if b := l.Block(1); b.Offset != 4 || b.Size() != 5 {
		t.Errorf("block b = %+v", b)
	}

	states := []SystemState{
		{Q: State{1, 2}, V: State{3, 4}},
		{Q: State{5, 6, 7}, V: State{8, 9}},
	}
	agg := l.NewAggregate()
	if err := l.Pack(states, agg.X); err != nil {
		t.Fatal(err)
	}
	for i, want := range []float64{1, 2, 3, 4, 5, 6, 7, 8, 9} {
		if agg.X[i] != want {
			t.Errorf("X[%d] = %v, want %v", i, agg.X[i], want)
		}
	}

	agg.V(1)[0] = 42
	if agg.X[7] != 42 {
		t.Error("V view does not alias the arena")
	}
	if q := agg.Q(1); len(q) != 3 || q[2] != 7 {
		t.Errorf("Q(1) = %v", q)
	}
}

func TestLayout_Registration(t *testing.T) {
	l := NewLayout()
	if _, err := l.Add("a", 1, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Add("a", 1, 1); !errors.Is(err, ErrDuplicateSystem) {
		t.Errorf("expected ErrDuplicateSystem, got %v", err)
	}
	if _, err := l.Add("z", 0, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	l.Close()
	if _, err := l.Add("b", 1, 1); !errors.Is(err, ErrRegistrationClosed) {
		t.Errorf("expected ErrRegistrationClosed, got %v", err)
	}
	l.Reopen()
	if _, err := l.Add("b", 1, 1); err != nil {
		t.Errorf("Add after Reopen: %v", err)
	}
}

func TestLayout_PackMismatch(t *testing.T) {
	l := NewLayout()
	l.Add("a", 2, 2)
	agg := l.NewAggregate()
	err := l.Pack([]SystemState{{Q: State{1}, V: State{1, 2}}}, agg.X)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
