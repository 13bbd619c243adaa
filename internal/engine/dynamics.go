package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/mrsim/internal/constraint"
	"github.com/san-kum/mrsim/internal/dynamo"
)

// dynamics is the aggregate first-order system handed to the stepper. The
// control vector carries every robot's held forces (controller output plus
// active impulses) back to back.
type dynamics struct {
	e *Engine
}

func (d dynamics) StateDim() int   { return d.e.layout.Size() }
func (d dynamics) ControlDim() int { return d.e.controlDim }

func (d dynamics) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	e := d.e
	agg := dynamo.AggregateState{Layout: e.layout, X: x}
	forces := e.appliedForces(agg, u, t)
	out := make(dynamo.State, len(x))

	eval := func(start, end int) {
		for i := start; i < end; i++ {
			e.derive(i, agg, t, forces[i], out)
		}
	}
	if n := len(e.systems); e.cfg.Parallel && n > 1 {
		dynamo.ParallelForWorkers(n, 1, e.workers, eval)
	} else {
		eval(0, n)
	}
	return out
}

// derive writes robot i's (qdot, vdot) into its block of out.
func (e *Engine) derive(i int, agg dynamo.AggregateState, t float64, forces dynamo.State, out dynamo.State) {
	s := e.systems[i]
	b := e.layout.Block(i)
	q, v := agg.Q(i), agg.V(i)

	qdot := out[b.Offset : b.Offset+b.NQ]
	if s.rate != nil {
		copy(qdot, s.rate.PositionRate(q, v))
	} else {
		copy(qdot, v)
	}
	vdot := out[b.Offset+b.NQ : b.Offset+b.Size()]
	acc := s.robot.Dynamics(q, v, t, forces)
	if len(acc) != b.NV {
		// Poison the block so the error estimate rejects the trial.
		for k := range vdot {
			vdot[k] = math.NaN()
		}
		return
	}
	copy(vdot, acc)
}

// appliedForces sums held forces, force profiles and coupling forces for
// every robot. Couplings run serially in registration order.
func (e *Engine) appliedForces(agg dynamo.AggregateState, u dynamo.Control, t float64) []dynamo.State {
	forces := make([]dynamo.State, len(e.systems))
	for i := range e.systems {
		nv := e.layout.Block(i).NV
		forces[i] = make(dynamo.State, nv)
		if len(u) >= e.uOffset[i]+nv {
			copy(forces[i], u[e.uOffset[i]:e.uOffset[i]+nv])
		}
	}
	for _, p := range e.profiles {
		s := dynamo.SystemState{Q: agg.Q(p.sys), V: agg.V(p.sys)}
		forces[p.sys].AddScaled(1, p.fn(s, t))
	}
	for _, c := range e.couplings {
		sa := dynamo.SystemState{Q: agg.Q(c.a), V: agg.V(c.a)}
		sb := dynamo.SystemState{Q: agg.Q(c.b), V: agg.V(c.b)}
		fa, fb := c.force.Compute(sa, sb, t)
		forces[c.a].AddScaled(1, fa)
		forces[c.b].AddScaled(1, fb)
	}
	return forces
}

// heldControl packs controller commands and the impulses active at t.
func (e *Engine) heldControl(t float64) dynamo.Control {
	u := make(dynamo.Control, e.controlDim)
	for i, s := range e.systems {
		copy(u[e.uOffset[i]:e.uOffset[i]+e.layout.Block(i).NV], s.command)
	}
	for _, imp := range e.impulses {
		if imp.activeAt(t) {
			off := e.uOffset[imp.sys]
			for k, f := range imp.force {
				u[off+k] += f
			}
		}
	}
	return u
}

func (imp impulse) activeAt(t float64) bool {
	tol := timeTolerance(t)
	return t >= imp.t-tol && t < imp.t+imp.duration-tol
}

// timeTolerance absorbs the rounding of t + (bp - t) when a step is cut at a
// breakpoint.
func timeTolerance(t float64) float64 {
	return 1e-12 * math.Max(1, math.Abs(t))
}

// project is installed on the stepper and runs on every accepted candidate.
func (e *Engine) project(x dynamo.State, t, dt float64) (dynamo.State, error) {
	out := x.Clone()
	agg := dynamo.AggregateState{Layout: e.layout, X: out}
	e.dropped = 0
	for i, s := range e.systems {
		if len(s.constraints) == 0 {
			continue
		}
		q, v, rep, err := e.projector.Project(agg.Q(i), agg.V(i), dt, s.constraints, s.rate)
		if err != nil {
			return nil, fmt.Errorf("system %q: %w", s.name, err)
		}
		copy(agg.Q(i), q)
		copy(agg.V(i), v)
		e.dropped += len(rep.Dropped)
		if len(rep.Dropped) > 0 && !e.warnedDrop {
			e.warnedDrop = true
			e.log.WithField("system", s.name).WithField("rows", rep.Dropped).Warn("redundant constraint rows dropped")
		}
	}
	return out, nil
}

func (e *Engine) snapshotFlags() [][]bool {
	flags := make([][]bool, len(e.systems))
	for i, s := range e.systems {
		flags[i] = constraint.Snapshot(s.constraints)
	}
	return flags
}

func (e *Engine) restoreFlags(flags [][]bool) {
	for i, s := range e.systems {
		constraint.Restore(s.constraints, flags[i])
	}
}

// refresh rebuilds the committed snapshots from the aggregate state: copies
// of q and v, total applied forces and the resulting accelerations.
func (e *Engine) refresh() {
	agg := dynamo.AggregateState{Layout: e.layout, X: e.x}
	forces := e.appliedForces(agg, e.heldControl(e.t), e.t)
	for i, s := range e.systems {
		q, v := agg.Q(i).Clone(), agg.V(i).Clone()
		acc := s.robot.Dynamics(q, v, e.t, forces[i])
		e.states[i] = dynamo.SystemState{
			Q:      q,
			V:      v,
			A:      acc.Clone(),
			Forces: forces[i],
		}
	}
}

// updateControllers evaluates every controller on the committed snapshot
// and holds the result until the next update.
func (e *Engine) updateControllers() {
	for i, s := range e.systems {
		nv := e.layout.Block(i).NV
		cmd := s.controller.Compute(e.states[i].Clone(), e.t)
		s.command = make(dynamo.State, nv)
		copy(s.command, cmd)
	}
}

func (e *Engine) stopConditionHit() bool {
	for i, s := range e.systems {
		if sc, ok := s.controller.(dynamo.StopCondition); ok && sc.Done(e.states[i], e.t) {
			return true
		}
	}
	return false
}

// controllerDue reports whether t is a controller update instant.
func (e *Engine) controllerDue() bool {
	period := e.cfg.Stepper.ControllerUpdatePeriod
	if period <= 0 {
		return true
	}
	due := false
	for float64(e.ctrlIdx)*period <= e.t+timeTolerance(e.t) {
		e.ctrlIdx++
		due = true
	}
	return due
}

// nextBreakpoint is the earliest impulse edge or controller instant after t,
// bounded by limit.
func (e *Engine) nextBreakpoint(t, limit float64) float64 {
	bp := limit
	after := t + timeTolerance(t)
	for _, imp := range e.impulses {
		for _, edge := range [2]float64{imp.t, imp.t + imp.duration} {
			if edge > after && edge < bp {
				bp = edge
			}
		}
	}
	if period := e.cfg.Stepper.ControllerUpdatePeriod; period > 0 {
		if next := float64(e.ctrlIdx) * period; next > after && next < bp {
			bp = next
		}
	}
	return bp
}

// checkBreakpoints requires impulse edges and controller update instants to
// be at least two minimal steps apart, so every gap can be covered by steps
// inside [DtMin, DtMax].
func (e *Engine) checkBreakpoints() error {
	minGap := 2 * e.cfg.Stepper.DtMin
	period := e.cfg.Stepper.ControllerUpdatePeriod
	if period > 0 && period < minGap {
		return fmt.Errorf("%w: controller_update_period %g below twice dt_min", dynamo.ErrInvalidConfig, period)
	}

	edges := []float64{0}
	for _, imp := range e.impulses {
		edges = append(edges, imp.t, imp.t+imp.duration)
	}
	sort.Float64s(edges)
	for i := 1; i < len(edges); i++ {
		if gap := edges[i] - edges[i-1]; gap > timeTolerance(edges[i]) && gap < minGap {
			return fmt.Errorf("%w: breakpoints %g and %g closer than twice dt_min", dynamo.ErrInvalidConfig, edges[i-1], edges[i])
		}
	}
	if period > 0 {
		for _, edge := range edges {
			r := math.Mod(edge, period)
			if d := math.Min(r, period-r); d > timeTolerance(edge) && d < minGap {
				return fmt.Errorf("%w: impulse edge %g within twice dt_min of a controller update", dynamo.ErrInvalidConfig, edge)
			}
		}
	}
	return nil
}

// lastBreakpoint is the latest breakpoint in (t, limit), or t.
func (e *Engine) lastBreakpoint(t, limit float64) float64 {
	last := t
	for _, imp := range e.impulses {
		for _, edge := range [2]float64{imp.t, imp.t + imp.duration} {
			if edge > last && edge < limit {
				last = edge
			}
		}
	}
	if period := e.cfg.Stepper.ControllerUpdatePeriod; period > 0 {
		next := math.Floor(limit/period) * period
		if next >= limit-timeTolerance(limit) {
			next -= period
		}
		if next > last {
			last = next
		}
	}
	return last
}
