package dynamo

import "fmt"

// Block locates one robot inside the aggregate vector. The robot occupies
// X[Offset : Offset+NQ+NV], configuration first.
type Block struct {
	Name   string
	NQ     int
	NV     int
	Offset int
}

func (b Block) Size() int { return b.NQ + b.NV }

// Layout is the offset table of the aggregate state. Blocks keep their
// registration order for the lifetime of a run.
type Layout struct {
	blocks []Block
	index  map[string]int
	size   int
	closed bool
}

func NewLayout() *Layout {
	return &Layout{index: make(map[string]int)}
}

// Add appends a block and returns its index.
func (l *Layout) Add(name string, nq, nv int) (int, error) {
	if l.closed {
		return -1, ErrRegistrationClosed
	}
	if _, ok := l.index[name]; ok {
		return -1, fmt.Errorf("%w: %q", ErrDuplicateSystem, name)
	}
	if nq <= 0 || nv <= 0 {
		return -1, fmt.Errorf("%w: %q has nq=%d nv=%d", ErrDimensionMismatch, name, nq, nv)
	}
	idx := len(l.blocks)
	l.blocks = append(l.blocks, Block{Name: name, NQ: nq, NV: nv, Offset: l.size})
	l.index[name] = idx
	l.size += nq + nv
	return idx, nil
}

// Close freezes the layout.
func (l *Layout) Close() { l.closed = true }

// Reopen allows registration again after an engine reset.
func (l *Layout) Reopen() { l.closed = false }

func (l *Layout) Closed() bool { return l.closed }

func (l *Layout) Size() int { return l.size }

func (l *Layout) Len() int { return len(l.blocks) }

func (l *Layout) Block(i int) Block { return l.blocks[i] }

func (l *Layout) Blocks() []Block {
	out := make([]Block, len(l.blocks))
	copy(out, l.blocks)
	return out
}

func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// NewAggregate allocates a zeroed aggregate state for this layout.
func (l *Layout) NewAggregate() AggregateState {
	return AggregateState{Layout: l, X: make(State, l.size)}
}

// Pack copies per-robot configurations and velocities into dst.
func (l *Layout) Pack(states []SystemState, dst State) error {
	if len(states) != len(l.blocks) {
		return fmt.Errorf("%w: %d states for %d systems", ErrDimensionMismatch, len(states), len(l.blocks))
	}
	if len(dst) != l.size {
		return fmt.Errorf("%w: aggregate has %d entries, want %d", ErrDimensionMismatch, len(dst), l.size)
	}
	for i, b := range l.blocks {
		if len(states[i].Q) != b.NQ || len(states[i].V) != b.NV {
			return fmt.Errorf("%w: system %q", ErrDimensionMismatch, b.Name)
		}
		copy(dst[b.Offset:b.Offset+b.NQ], states[i].Q)
		copy(dst[b.Offset+b.NQ:b.Offset+b.Size()], states[i].V)
	}
	return nil
}

// AggregateState is the concatenation of all robots' (q, v) pairs.
type AggregateState struct {
	Layout *Layout
	X      State
}

// Q returns a view of robot i's configuration inside X.
func (a AggregateState) Q(i int) State {
	b := a.Layout.blocks[i]
	return a.X[b.Offset : b.Offset+b.NQ]
}

// V returns a view of robot i's velocity inside X.
func (a AggregateState) V(i int) State {
	b := a.Layout.blocks[i]
	return a.X[b.Offset+b.NQ : b.Offset+b.Size()]
}

func (a AggregateState) Clone() AggregateState {
	return AggregateState{Layout: a.Layout, X: a.X.Clone()}
}
