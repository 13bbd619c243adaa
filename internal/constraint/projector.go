package constraint

import (
	"fmt"
	"math"

	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Report summarises one projection.
type Report struct {
	Rows        int
	Activated   []string
	Deactivated []string
	Dropped     []string
	Iterations  int
	Residual    float64
}

type row struct {
	c    int
	i    int
	name string
}

// Projector corrects a robot's state so that active constraints hold at
// position and velocity level.
type Projector struct {
	cfg dynamo.ConstraintConfig
	log *logrus.Entry
}

func NewProjector(cfg dynamo.ConstraintConfig, log *logrus.Entry) *Projector {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Projector{cfg: cfg, log: log.WithField("component", "projector")}
}

// Project returns the corrected (q, v). Constraints are visited in the
// given order; their active flags may change. rate maps velocity-space
// corrections to configuration space and may be nil when nq == nv.
func (p *Projector) Project(q, v dynamo.State, dt float64, cs []Constraint, rate dynamo.ConfigurationRate) (dynamo.State, dynamo.State, Report, error) {
	var rep Report
	q, v = q.Clone(), v.Clone()
	if len(cs) == 0 {
		return q, v, rep, nil
	}

	if err := p.activate(q, v, dt, cs, &rep); err != nil {
		return nil, nil, rep, err
	}

	rows, err := p.selectRows(q, v, cs, &rep)
	if err != nil {
		return nil, nil, rep, err
	}
	rep.Rows = len(rows)
	if len(rows) == 0 {
		return q, v, rep, nil
	}

	q, err = p.correctPosition(q, len(v), cs, rows, rate, &rep)
	if err != nil {
		return nil, nil, rep, err
	}

	jac, err := stackJacobian(cs, rows, q, len(v))
	if err != nil {
		return nil, nil, rep, err
	}
	v, err = projectVelocity(jac, v)
	if err != nil {
		return nil, nil, rep, err
	}
	return q, v, rep, nil
}

// activate switches on unilateral constraints that are violated or about to
// be within dt.
func (p *Projector) activate(q, v dynamo.State, dt float64, cs []Constraint, rep *Report) error {
	vv := mat.NewVecDense(len(v), v.Clone())
	for _, c := range cs {
		if !c.Unilateral() || c.Active() {
			continue
		}
		g, err := c.Residual(q)
		if err != nil {
			return err
		}
		jac, err := c.Jacobian(q)
		if err != nil {
			return err
		}
		var jv mat.VecDense
		jv.MulVec(jac, vv)
		for i, gi := range g {
			if gi < 0 || gi+dt*jv.AtVec(i) < 0 {
				c.SetActive(true)
				rep.Activated = append(rep.Activated, c.Name())
				p.log.WithField("constraint", c.Name()).Debug("constraint activated")
				break
			}
		}
	}
	return nil
}

// selectRows returns the independent rows of the active stack after
// releasing unilateral constraints whose multiplier pulls instead of pushes.
func (p *Projector) selectRows(q, v dynamo.State, cs []Constraint, rep *Report) ([]row, error) {
	for {
		rows, err := p.independentRows(q, cs, len(v), rep)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return rows, nil
		}
		jac, err := stackJacobian(cs, rows, q, len(v))
		if err != nil {
			return nil, err
		}
		lambda, err := velocityMultipliers(jac, v)
		if err != nil {
			return nil, err
		}

		worst, worstVal := -1, -p.cfg.Tolerance
		for k, r := range rows {
			if !cs[r.c].Unilateral() {
				continue
			}
			if l := lambda.AtVec(k); l < worstVal {
				worst, worstVal = r.c, l
			}
		}
		if worst < 0 {
			return rows, nil
		}
		cs[worst].SetActive(false)
		rep.Deactivated = append(rep.Deactivated, cs[worst].Name())
		p.log.WithFields(logrus.Fields{
			"constraint": cs[worst].Name(),
			"lambda":     worstVal,
		}).Debug("constraint released")
	}
}

// independentRows stacks the active rows and drops the later member of any
// linearly dependent set.
func (p *Projector) independentRows(q dynamo.State, cs []Constraint, nv int, rep *Report) ([]row, error) {
	rep.Dropped = rep.Dropped[:0]
	var all []row
	for ci, c := range cs {
		if !c.Active() {
			continue
		}
		for i := 0; i < c.Dim(); i++ {
			all = append(all, row{c: ci, i: i, name: fmt.Sprintf("%s[%d]", c.Name(), i)})
		}
	}
	if len(all) == 0 {
		return nil, nil
	}

	jac, err := stackJacobian(cs, all, q, nv)
	if err != nil {
		return nil, err
	}
	if rank(jac, p.cfg.Tolerance) == len(all) {
		return all, nil
	}
	if !p.cfg.DropRedundant {
		return nil, fmt.Errorf("%w: %d active rows have rank %d", dynamo.ErrConstraintSingularity, len(all), rank(jac, p.cfg.Tolerance))
	}

	kept := make([]row, 0, len(all))
	data := make([]float64, 0, len(all)*nv)
	for k, r := range all {
		candidate := append(data[:len(data):len(data)], jac.RawRowView(k)...)
		m := mat.NewDense(len(kept)+1, nv, candidate)
		if rank(m, p.cfg.Tolerance) == len(kept)+1 {
			kept = append(kept, r)
			data = candidate
			continue
		}
		rep.Dropped = append(rep.Dropped, r.name)
		p.log.WithField("row", r.name).Debug("redundant constraint row dropped")
	}
	return kept, nil
}

func (p *Projector) correctPosition(q dynamo.State, nv int, cs []Constraint, rows []row, rate dynamo.ConfigurationRate, rep *Report) (dynamo.State, error) {
	for it := 0; ; it++ {
		r, err := stackResidual(cs, rows, q)
		if err != nil {
			return nil, err
		}
		rep.Residual = r.Norm()
		if rep.Residual < p.cfg.Tolerance {
			return q, nil
		}
		if it == p.cfg.MaxIterations {
			p.log.WithFields(logrus.Fields{
				"residual":   rep.Residual,
				"iterations": it,
			}).Warn("position correction did not converge")
			return q, nil
		}
		rep.Iterations = it + 1

		for k, rw := range rows {
			d := cs[rw.c].Drift()
			if d <= 0 {
				d = p.cfg.Drift
			}
			r[k] *= d
		}

		jac, err := stackJacobian(cs, rows, q, nv)
		if err != nil {
			return nil, err
		}
		y, err := solveGram(jac, mat.NewVecDense(len(r), r))
		if err != nil {
			return nil, err
		}
		var dv mat.VecDense
		dv.MulVec(jac.T(), y)
		step := dynamo.State(dv.RawVector().Data)
		if rate != nil {
			step = rate.PositionRate(q, step)
		}
		if len(step) != len(q) {
			return nil, fmt.Errorf("%w: position correction has %d entries, want %d", dynamo.ErrDimensionMismatch, len(step), len(q))
		}
		q = q.Sub(step)
		if !q.IsValid() {
			return nil, fmt.Errorf("%w: position correction diverged", dynamo.ErrConstraintSingularity)
		}
	}
}

func projectVelocity(jac *mat.Dense, v dynamo.State) (dynamo.State, error) {
	lambda, err := velocityMultipliers(jac, v)
	if err != nil {
		return nil, err
	}
	var dv mat.VecDense
	dv.MulVec(jac.T(), lambda)
	out := v.Clone()
	out.AddScaled(1, dynamo.State(dv.RawVector().Data))
	return out, nil
}

// velocityMultipliers solves (J J^T) lambda = -J v.
func velocityMultipliers(jac *mat.Dense, v dynamo.State) (*mat.VecDense, error) {
	var jv mat.VecDense
	jv.MulVec(jac, mat.NewVecDense(len(v), v.Clone()))
	jv.ScaleVec(-1, &jv)
	return solveGram(jac, &jv)
}

func solveGram(jac *mat.Dense, b *mat.VecDense) (*mat.VecDense, error) {
	var gram mat.SymDense
	gram.SymOuterK(1, jac)
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return nil, fmt.Errorf("%w: gram matrix not positive definite", dynamo.ErrConstraintSingularity)
	}
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, b); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConstraintSingularity, err)
	}
	return &x, nil
}

func stackJacobian(cs []Constraint, rows []row, q dynamo.State, nv int) (*mat.Dense, error) {
	cache := make(map[int]*mat.Dense)
	data := make([]float64, 0, len(rows)*nv)
	for _, r := range rows {
		jac, ok := cache[r.c]
		if !ok {
			var err error
			jac, err = cs[r.c].Jacobian(q)
			if err != nil {
				return nil, err
			}
			rr, cc := jac.Dims()
			if rr != cs[r.c].Dim() || cc != nv {
				return nil, fmt.Errorf("%w: jacobian of %q is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, cs[r.c].Name(), rr, cc, cs[r.c].Dim(), nv)
			}
			cache[r.c] = jac
		}
		data = append(data, jac.RawRowView(r.i)...)
	}
	return mat.NewDense(len(rows), nv, data), nil
}

func stackResidual(cs []Constraint, rows []row, q dynamo.State) (dynamo.State, error) {
	cache := make(map[int]dynamo.State)
	out := make(dynamo.State, len(rows))
	for k, r := range rows {
		res, ok := cache[r.c]
		if !ok {
			var err error
			res, err = cs[r.c].Residual(q)
			if err != nil {
				return nil, err
			}
			cache[r.c] = res
		}
		out[k] = res[r.i]
	}
	return out, nil
}

// rank counts singular values above tol relative to the largest.
func rank(m *mat.Dense, tol float64) int {
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDNone); !ok {
		return 0
	}
	vals := svd.Values(nil)
	if len(vals) == 0 || vals[0] == 0 || math.IsNaN(vals[0]) {
		return 0
	}
	n := 0
	for _, s := range vals {
		if s > tol*vals[0] {
			n++
		}
	}
	return n
}
