package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// Log is the trajectory produced by Simulate: the starting sample followed
// by every accepted step.
type Log struct {
	Names  []string
	Times  []float64
	Dts    []float64
	States [][]dynamo.SystemState
	// Energy is filled only when energy telemetry is enabled.
	Energy []float64

	Accepted int
	Rejected int
	Dropped  int

	trackEnergy bool
}

func newLog(names []string, trackEnergy bool) *Log {
	return &Log{Names: names, trackEnergy: trackEnergy}
}

func (l *Log) append(t, dt float64, states []dynamo.SystemState, energy float64) {
	l.Times = append(l.Times, t)
	l.Dts = append(l.Dts, dt)
	l.States = append(l.States, dynamo.CloneStates(states))
	if l.trackEnergy {
		l.Energy = append(l.Energy, energy)
	}
}

func (l *Log) finish(s Stats) {
	l.Accepted = s.Accepted
	l.Rejected = s.Rejected
	l.Dropped = s.Dropped
}

func (l *Log) Len() int { return len(l.Times) }

// Final returns the last sample.
func (l *Log) Final() dynamo.Sample {
	if len(l.Times) == 0 {
		return dynamo.Sample{}
	}
	n := len(l.Times) - 1
	return dynamo.Sample{T: l.Times[n], States: l.States[n]}
}

// Series extracts one system's trajectory.
func (l *Log) Series(name string) ([]dynamo.SystemState, error) {
	idx := -1
	for i, n := range l.Names {
		if n == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", dynamo.ErrUnknownSystem, name)
	}
	out := make([]dynamo.SystemState, len(l.States))
	for k, states := range l.States {
		out[k] = states[idx]
	}
	return out, nil
}

// Samples converts the log back into recorder samples.
func (l *Log) Samples() []dynamo.Sample {
	out := make([]dynamo.Sample, len(l.Times))
	for i := range l.Times {
		out[i] = dynamo.Sample{T: l.Times[i], States: l.States[i]}
	}
	return out
}

var ErrRecorderClosed = errors.New("engine: recorder closed")

// MemoryRecorder keeps every sample in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	samples []dynamo.Sample
	closed  bool
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

func (m *MemoryRecorder) Record(s dynamo.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrRecorderClosed
	}
	m.samples = append(m.samples, dynamo.Sample{T: s.T, States: dynamo.CloneStates(s.States)})
	return nil
}

func (m *MemoryRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryRecorder) Samples() []dynamo.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]dynamo.Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

func (m *MemoryRecorder) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
