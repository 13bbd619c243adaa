package integrators

const historySize = 16

// Outcome is one attempted step.
type Outcome struct {
	T        float64
	Dt       float64
	Err      float64
	Accepted bool
}

// History is a fixed ring of the most recent attempts. It is a value type so
// copying a StepperState snapshots it.
type History struct {
	buf  [historySize]Outcome
	head int
	n    int
}

func (h *History) Push(o Outcome) {
	h.buf[h.head] = o
	h.head = (h.head + 1) % historySize
	if h.n < historySize {
		h.n++
	}
}

func (h *History) Len() int { return h.n }

// At returns the i-th retained outcome, oldest first.
func (h *History) At(i int) Outcome {
	start := (h.head - h.n + historySize) % historySize
	return h.buf[(start+i)%historySize]
}

func (h *History) Last() (Outcome, bool) {
	if h.n == 0 {
		return Outcome{}, false
	}
	return h.At(h.n - 1), true
}

func (h *History) Slice() []Outcome {
	out := make([]Outcome, h.n)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}
