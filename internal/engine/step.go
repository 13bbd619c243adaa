package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/sirupsen/logrus"
)

// Step advances all systems by one accepted step no longer than dtMax
// (zero means no extra bound) and returns the new time. On error nothing is
// committed, except for a recorder failure: the step is committed and
// observed before the recorder sees it, so its error is reported with the
// new state in place.
func (e *Engine) Step(dtMax float64) (float64, error) {
	if err := e.ready(); err != nil {
		return e.t, err
	}
	if err := e.checkDtMax(dtMax); err != nil {
		return e.t, err
	}
	e.busy = true
	err := e.advance(dtMax, math.Inf(1))
	e.busy = false
	e.finishStop()
	return e.t, err
}

// Simulate steps until tEnd, a controller stop condition, cancellation of
// ctx or an error. The returned log is valid in every case and holds the
// samples accepted so far.
func (e *Engine) Simulate(ctx context.Context, tEnd, dtMax float64) (*Log, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if math.IsNaN(tEnd) {
		return nil, fmt.Errorf("%w: tEnd %g", dynamo.ErrInvalidConfig, tEnd)
	}
	if err := e.checkDtMax(dtMax); err != nil {
		return nil, err
	}
	stopTol := 1e-12 * math.Max(1, math.Abs(tEnd))
	if tEnd-e.t > stopTol {
		// The last step ends on tEnd and cannot be split.
		if gap := tEnd - e.lastBreakpoint(e.t, tEnd); gap > stopTol && gap < e.cfg.Stepper.DtMin {
			return nil, fmt.Errorf("%w: tEnd %g is %g past the previous breakpoint, below dt_min %g",
				dynamo.ErrInvalidConfig, tEnd, gap, e.cfg.Stepper.DtMin)
		}
	}
	e.busy = true
	defer func() {
		e.busy = false
		e.finishStop()
	}()

	log := newLog(e.Names(), e.cfg.Telemetry.EnableEnergy)
	log.append(e.t, 0, e.states, e.TotalEnergy(nil))
	e.log.WithFields(logrus.Fields{"t0": e.t, "tEnd": tEnd}).Info("simulation started")

	iterMax := e.cfg.Stepper.IterMax
	e.stopHit = e.stopConditionHit()
	for iter := 0; !e.stopHit && !e.stopPending && tEnd-e.t > stopTol; iter++ {
		if err := ctx.Err(); err != nil {
			log.finish(e.stats)
			e.log.WithField("t", e.t).Info("simulation cancelled")
			return log, fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err)
		}
		if iterMax > 0 && iter >= iterMax {
			log.finish(e.stats)
			return log, e.fail(fmt.Errorf("%w: %d steps before t=%g", dynamo.ErrIterationLimit, iter, tEnd))
		}
		if err := e.advance(dtMax, tEnd); err != nil {
			log.finish(e.stats)
			return log, err
		}
		log.append(e.t, e.stats.LastDt, e.states, e.TotalEnergy(nil))
	}
	log.finish(e.stats)
	e.log.WithFields(logrus.Fields{
		"t":        e.t,
		"accepted": e.stats.Accepted,
		"rejected": e.stats.Rejected,
	}).Info("simulation finished")
	return log, nil
}

// advance performs one accepted step that does not cross limit or the next
// breakpoint.
func (e *Engine) advance(dtMax, limit float64) error {
	if e.status == StatusReady {
		e.status = StatusRunning
	}
	cfg := e.cfg.Stepper
	bound := cfg.DtMax
	if dtMax > 0 {
		bound = math.Min(bound, dtMax)
	}
	dt := math.Min(e.stepper.State().Dt, bound)
	planned := dt

	// Never leave less than DtMin before the breakpoint: a short remainder
	// is either taken whole or, when that would exceed the bound, split
	// into two halves.
	bp := e.nextBreakpoint(e.t, limit)
	remaining := bp - e.t
	truncated := true
	switch {
	case remaining <= dt:
		dt = remaining
	case remaining-dt < cfg.DtMin && remaining <= bound:
		dt = remaining
	case remaining-dt < cfg.DtMin:
		dt = remaining / 2
	default:
		truncated = false
	}

	u := e.heldControl(e.t)
	flags := e.snapshotFlags()
	res, err := e.stepper.StepWithin(dynamics{e: e}, e.x, u, e.t, dt, remaining)
	if err != nil {
		e.restoreFlags(flags)
		e.log.WithError(err).WithFields(logrus.Fields{
			"step": e.step,
			"t":    e.t,
			"dt":   dt,
		}).Error("step failed")
		return e.fail(err)
	}
	if truncated && res.Rejections == 0 {
		e.stepper.SetDt(math.Max(res.DtNext, planned))
	}
	if res.Rejections > 0 {
		e.log.WithFields(logrus.Fields{
			"t":          e.t,
			"rejections": res.Rejections,
			"dt":         res.Dt,
		}).Debug("step rejected")
	}

	e.x = res.X
	e.t = res.T
	e.step++
	e.stats.Accepted++
	e.stats.Rejected += res.Rejections
	e.stats.Dropped += e.dropped
	e.stats.LastDt = res.Dt
	e.stats.LastErr = res.Err

	e.refresh()
	if e.controllerDue() {
		e.updateControllers()
		e.refresh()
	}

	ev := dynamo.StepEvent{
		Step:          e.step,
		T:             e.t,
		Dt:            res.Dt,
		ErrorEstimate: res.Err,
		Rejections:    res.Rejections,
		Dropped:       e.dropped,
		States:        dynamo.CloneStates(e.states),
	}
	for _, o := range e.observers {
		o.OnStep(ev)
	}
	if err := e.record(); err != nil {
		return e.fail(err)
	}
	e.stopHit = e.stopConditionHit()
	return nil
}

// checkDtMax rejects a caller bound too small to hold two minimal steps.
func (e *Engine) checkDtMax(dtMax float64) error {
	if dtMax < 0 || math.IsNaN(dtMax) {
		return fmt.Errorf("%w: dtMax %g", dynamo.ErrInvalidConfig, dtMax)
	}
	if dtMax > 0 && dtMax < 2*e.cfg.Stepper.DtMin {
		return fmt.Errorf("%w: dtMax %g below twice dt_min %g", dynamo.ErrInvalidConfig, dtMax, e.cfg.Stepper.DtMin)
	}
	return nil
}

func (e *Engine) finishStop() {
	if !e.stopPending {
		return
	}
	e.stopPending = false
	if err := e.Stop(); err != nil {
		e.log.WithError(err).Warn("stop failed")
	}
}
