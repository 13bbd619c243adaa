// Package config describes simulation scenarios as YAML files.
package config

import (
	"fmt"
	"os"

	"github.com/san-kum/mrsim/internal/dynamo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDuration = 10.0
	DefaultKp       = 10.0
	DefaultKi       = 0.1
	DefaultKd       = 5.0
)

// Scenario is everything needed to build and run an engine.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Duration    float64        `yaml:"duration"`
	DtMax       float64        `yaml:"dt_max,omitempty"`
	Engine      dynamo.Config  `yaml:"engine"`
	Systems     []SystemSpec   `yaml:"systems"`
	Couplings   []CouplingSpec `yaml:"couplings,omitempty"`
	Impulses    []ImpulseSpec  `yaml:"impulses,omitempty"`
}

type SystemSpec struct {
	Name        string             `yaml:"name"`
	Model       string             `yaml:"model"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	Controller  ControllerSpec     `yaml:"controller,omitempty"`
	Constraints []ConstraintSpec   `yaml:"constraints,omitempty"`
	// GroundContact wraps the model in the penalty contact model on these
	// frames.
	GroundContact []string      `yaml:"ground_contact,omitempty"`
	Friction      *FrictionSpec `yaml:"friction,omitempty"`
	Q             []float64     `yaml:"q"`
	V             []float64     `yaml:"v"`
}

type ControllerSpec struct {
	Type   string             `yaml:"type,omitempty"`
	Params map[string]float64 `yaml:"params,omitempty"`
}

type ConstraintSpec struct {
	Type      string    `yaml:"type"`
	Name      string    `yaml:"name"`
	Frame     string    `yaml:"frame,omitempty"`
	Reference []float64 `yaml:"reference,omitempty"`
	Index     int       `yaml:"index,omitempty"`
	Lower     float64   `yaml:"lower,omitempty"`
	Upper     float64   `yaml:"upper,omitempty"`
	Axis      int       `yaml:"axis,omitempty"`
	Height    float64   `yaml:"height,omitempty"`
	Drift     float64   `yaml:"drift,omitempty"`
}

type CouplingSpec struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	A          string  `yaml:"a"`
	B          string  `yaml:"b"`
	Stiffness  float64 `yaml:"stiffness,omitempty"`
	Damping    float64 `yaml:"damping,omitempty"`
	RestLength float64 `yaml:"rest_length,omitempty"`
	IndexA     int     `yaml:"index_a,omitempty"`
	IndexB     int     `yaml:"index_b,omitempty"`
	FrameA     string  `yaml:"frame_a,omitempty"`
	FrameB     string  `yaml:"frame_b,omitempty"`
}

type ImpulseSpec struct {
	System   string    `yaml:"system"`
	T        float64   `yaml:"t"`
	Duration float64   `yaml:"duration"`
	Force    []float64 `yaml:"force"`
}

type FrictionSpec struct {
	Viscous float64 `yaml:"viscous"`
	Dry     float64 `yaml:"dry"`
	VelEps  float64 `yaml:"vel_eps"`
}

// DefaultScenario is two unequal masses joined by a spring.
func DefaultScenario() *Scenario {
	cfg := dynamo.DefaultConfig()
	return &Scenario{
		Name:     "coupled_springs",
		Duration: DefaultDuration,
		Engine:   cfg,
		Systems: []SystemSpec{
			{Name: "left", Model: "free_mass", Params: map[string]float64{"mass": 1}, Q: []float64{1}, V: []float64{0}},
			{Name: "right", Model: "free_mass", Params: map[string]float64{"mass": 2}, Q: []float64{0}, V: []float64{0}},
		},
		Couplings: []CouplingSpec{
			{Name: "spring", Type: "spring", A: "left", B: "right", Stiffness: 10},
		},
	}
}

// Load reads a scenario. Fields missing from the file keep the defaults of
// dynamo.DefaultConfig.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{Duration: DefaultDuration, Engine: dynamo.DefaultConfig()}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func Save(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone deep copies a scenario.
func (s *Scenario) Clone() *Scenario {
	data, err := yaml.Marshal(s)
	if err != nil {
		panic(err)
	}
	out := &Scenario{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func (s *Scenario) Validate() error {
	if !(s.Duration > 0) {
		return fmt.Errorf("%w: duration must be positive, got %g", dynamo.ErrInvalidConfig, s.Duration)
	}
	if s.DtMax < 0 {
		return fmt.Errorf("%w: dt_max must be non-negative", dynamo.ErrInvalidConfig)
	}
	if err := s.Engine.Validate(); err != nil {
		return err
	}
	if len(s.Systems) == 0 {
		return fmt.Errorf("%w: scenario %q has no systems", dynamo.ErrInvalidConfig, s.Name)
	}
	seen := make(map[string]bool, len(s.Systems))
	for _, sys := range s.Systems {
		if sys.Name == "" || sys.Model == "" {
			return fmt.Errorf("%w: every system needs a name and a model", dynamo.ErrInvalidConfig)
		}
		if seen[sys.Name] {
			return fmt.Errorf("%w: %q", dynamo.ErrDuplicateSystem, sys.Name)
		}
		seen[sys.Name] = true
	}
	for _, c := range s.Couplings {
		if !seen[c.A] || !seen[c.B] {
			return fmt.Errorf("%w: coupling %q joins %q and %q", dynamo.ErrUnknownSystem, c.Name, c.A, c.B)
		}
	}
	for _, imp := range s.Impulses {
		if !seen[imp.System] {
			return fmt.Errorf("%w: impulse on %q", dynamo.ErrUnknownSystem, imp.System)
		}
	}
	return nil
}

// Initial returns the initial state of every system by name.
func (s *Scenario) Initial() map[string]dynamo.SystemState {
	out := make(map[string]dynamo.SystemState, len(s.Systems))
	for _, sys := range s.Systems {
		out[sys.Name] = dynamo.SystemState{
			Q: dynamo.State(sys.Q).Clone(),
			V: dynamo.State(sys.V).Clone(),
		}
	}
	return out
}

// ControllerParams fills in PID gains left unset in the scenario.
func (c ControllerSpec) ControllerParams() map[string]float64 {
	params := map[string]float64{
		"kp": DefaultKp,
		"ki": DefaultKi,
		"kd": DefaultKd,
	}
	for k, v := range c.Params {
		params[k] = v
	}
	return params
}
