package experiment

import (
	"context"
	"fmt"
	"sync"

	"github.com/san-kum/mrsim/internal/config"
	"github.com/san-kum/mrsim/internal/engine"
)

// Variant is one point of a sweep: a label and an edit of the base
// scenario.
type Variant struct {
	Label  string
	Mutate func(s *config.Scenario)
}

func SolverVariants(solvers ...string) []Variant {
	out := make([]Variant, len(solvers))
	for i, name := range solvers {
		out[i] = Variant{
			Label:  name,
			Mutate: func(s *config.Scenario) { s.Engine.Stepper.Solver = name },
		}
	}
	return out
}

// ToleranceVariants sets atol and rtol together.
func ToleranceVariants(tols ...float64) []Variant {
	out := make([]Variant, len(tols))
	for i, tol := range tols {
		out[i] = Variant{
			Label: fmt.Sprintf("tol=%g", tol),
			Mutate: func(s *config.Scenario) {
				s.Engine.Stepper.Atol = tol
				s.Engine.Stepper.Rtol = tol
			},
		}
	}
	return out
}

type SweepResult struct {
	Label  string
	Result *Result
	Err    error
}

// Sweep runs every variant of base concurrently, each on its own engine
// built from a copy of the scenario. Results keep the order of variants.
func (r *Registry) Sweep(ctx context.Context, base *config.Scenario, variants []Variant, opts ...engine.Option) []SweepResult {
	results := make([]SweepResult, len(variants))

	var wg sync.WaitGroup
	for i, v := range variants {
		wg.Add(1)
		go func(idx int, v Variant) {
			defer wg.Done()

			s := base.Clone()
			if v.Mutate != nil {
				v.Mutate(s)
			}
			res, err := New(r, s, opts...).Run(ctx)
			results[idx] = SweepResult{Label: v.Label, Result: res, Err: err}
		}(i, v)
	}

	wg.Wait()
	return results
}
