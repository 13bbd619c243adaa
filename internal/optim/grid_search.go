// Package optim tunes scenario parameters by exhaustive search.
package optim

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/mrsim/internal/config"
	"github.com/san-kum/mrsim/internal/experiment"
)

// Param names one tunable value of a scenario. Apply writes the value into
// a scenario copy.
type Param struct {
	Name   string
	Values []float64
	Apply  func(s *config.Scenario, v float64) error
}

// ControllerParam tunes a controller gain of one system.
func ControllerParam(system, name string, values ...float64) Param {
	return Param{
		Name:   system + "." + name,
		Values: values,
		Apply: func(s *config.Scenario, v float64) error {
			sys, err := findSystem(s, system)
			if err != nil {
				return err
			}
			if sys.Controller.Params == nil {
				sys.Controller.Params = make(map[string]float64)
			}
			sys.Controller.Params[name] = v
			return nil
		},
	}
}

// ModelParam tunes a model parameter of one system.
func ModelParam(system, name string, values ...float64) Param {
	return Param{
		Name:   system + "." + name,
		Values: values,
		Apply: func(s *config.Scenario, v float64) error {
			sys, err := findSystem(s, system)
			if err != nil {
				return err
			}
			if sys.Params == nil {
				sys.Params = make(map[string]float64)
			}
			sys.Params[name] = v
			return nil
		},
	}
}

func findSystem(s *config.Scenario, name string) (*config.SystemSpec, error) {
	for i := range s.Systems {
		if s.Systems[i].Name == name {
			return &s.Systems[i], nil
		}
	}
	return nil, fmt.Errorf("optim: no system %q in scenario %q", name, s.Name)
}

type GridSearch struct {
	params []Param
}

func NewGridSearch(params ...Param) *GridSearch {
	return &GridSearch{params: params}
}

// Point is one evaluated grid point.
type Point struct {
	Values map[string]float64
	Score  float64
	Err    error
}

// Search evaluates every combination of parameter values concurrently and
// returns the one minimising metric. Failed runs score +Inf.
func (g *GridSearch) Search(ctx context.Context, reg *experiment.Registry, base *config.Scenario, metric string) (Point, []Point, error) {
	combos := g.combinations()
	variants := make([]experiment.Variant, len(combos))
	applyErrs := make([]error, len(combos))
	for i, combo := range combos {
		variants[i] = experiment.Variant{
			Label: label(g.params, combo),
			Mutate: func(s *config.Scenario) {
				for k, p := range g.params {
					if err := p.Apply(s, combo[k]); err != nil {
						applyErrs[i] = err
						return
					}
				}
			},
		}
	}

	results := reg.Sweep(ctx, base, variants)

	best := Point{Score: math.Inf(1)}
	points := make([]Point, len(results))
	for i, r := range results {
		pt := Point{Values: make(map[string]float64, len(g.params)), Score: math.Inf(1), Err: r.Err}
		for k, p := range g.params {
			pt.Values[p.Name] = combos[i][k]
		}
		if applyErrs[i] != nil {
			pt.Err = applyErrs[i]
		}
		if pt.Err == nil && r.Result != nil {
			if v, ok := r.Result.Metrics[metric]; ok {
				pt.Score = v
			} else {
				pt.Err = fmt.Errorf("optim: unknown metric %q", metric)
			}
		}
		points[i] = pt
		if pt.Err == nil && pt.Score < best.Score {
			best = pt
		}
	}
	if best.Values == nil {
		return best, points, fmt.Errorf("optim: no grid point of %d succeeded", len(points))
	}
	return best, points, nil
}

func (g *GridSearch) combinations() [][]float64 {
	combos := [][]float64{{}}
	for _, p := range g.params {
		next := make([][]float64, 0, len(combos)*len(p.Values))
		for _, c := range combos {
			for _, v := range p.Values {
				combo := append(append([]float64(nil), c...), v)
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}

func label(params []Param, combo []float64) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = fmt.Sprintf("%s=%g", p.Name, combo[i])
	}
	return strings.Join(parts, ",")
}
