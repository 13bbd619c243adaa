package config

import (
	"sort"

	"github.com/san-kum/mrsim/internal/dynamo"
)

func withStepper(mutate func(*dynamo.StepperConfig)) dynamo.Config {
	cfg := dynamo.DefaultConfig()
	mutate(&cfg.Stepper)
	return cfg
}

var Presets = map[string]*Scenario{
	"coupled_springs": DefaultScenario(),
	"stiff": {
		Name:        "stiff",
		Description: "unit mass on a 1e6 spring",
		Duration:    0.05,
		Engine:      dynamo.DefaultConfig(),
		Systems: []SystemSpec{
			{Name: "oscillator", Model: "stiff_oscillator", Params: map[string]float64{"stiffness": 1e6}, Q: []float64{1}, V: []float64{0}},
		},
	},
	"pendulum_fixed": {
		Name:        "pendulum_fixed",
		Description: "planar body hanging from a pinned tip",
		Duration:    5,
		Engine:      dynamo.DefaultConfig(),
		Systems: []SystemSpec{
			{
				Name:  "body",
				Model: "planar_body",
				Constraints: []ConstraintSpec{
					{Type: "fixed_frame", Name: "pin", Frame: "tip"},
				},
				Q: []float64{0, 0, 0},
				V: []float64{0, 0, 0},
			},
		},
	},
	"bouncing": {
		Name:        "bouncing",
		Description: "point mass on the penalty ground contact",
		Duration:    3,
		Engine: withStepper(func(s *dynamo.StepperConfig) {
			s.DtMax = 1e-3
		}),
		Systems: []SystemSpec{
			{Name: "ball", Model: "point_mass", GroundContact: []string{"body"}, Q: []float64{0, 1}, V: []float64{1, 0}},
		},
	},
	"landing": {
		Name:        "landing",
		Description: "point mass landing on a unilateral contact",
		Duration:    2,
		Engine:      dynamo.DefaultConfig(),
		Systems: []SystemSpec{
			{
				Name:  "ball",
				Model: "point_mass",
				Constraints: []ConstraintSpec{
					{Type: "contact", Name: "ground", Frame: "body", Axis: 1},
				},
				Q: []float64{0, 1},
				V: []float64{0.5, 0},
			},
		},
	},
	"pendulum_pid": {
		Name:        "pendulum_pid",
		Description: "damped pendulum held at zero by a discrete PID",
		Duration:    10,
		Engine: withStepper(func(s *dynamo.StepperConfig) {
			s.ControllerUpdatePeriod = 0.01
		}),
		Systems: []SystemSpec{
			{
				Name:       "pendulum",
				Model:      "pendulum",
				Controller: ControllerSpec{Type: "pid", Params: map[string]float64{"kp": 40, "ki": 1, "kd": 8}},
				Friction:   &FrictionSpec{Viscous: 0.05, Dry: 0.02, VelEps: 1e-2},
				Q:          []float64{0.5},
				V:          []float64{0},
			},
		},
	},
	"pendulum_pair": {
		Name:        "pendulum_pair",
		Description: "two pendulums whose bobs are joined by a spring",
		Duration:    20,
		Engine:      dynamo.DefaultConfig(),
		Systems: []SystemSpec{
			{Name: "p1", Model: "pendulum", Params: map[string]float64{"damping": 0}, Q: []float64{0.3}, V: []float64{0}},
			{Name: "p2", Model: "pendulum", Params: map[string]float64{"damping": 0}, Q: []float64{0}, V: []float64{0}},
		},
		Couplings: []CouplingSpec{
			{Name: "bobs", Type: "frame_spring", A: "p1", B: "p2", FrameA: "tip", FrameB: "tip", Stiffness: 2, RestLength: 0},
		},
		Impulses: []ImpulseSpec{
			{System: "p2", T: 5, Duration: 0.1, Force: []float64{1}},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Scenario {
	s, ok := Presets[name]
	if !ok {
		return nil
	}
	return s.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
