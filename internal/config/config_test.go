package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScenario(t *testing.T) {
	s := DefaultScenario()
	require.NoError(t, s.Validate())
	assert.Equal(t, "coupled_springs", s.Name)
	assert.Len(t, s.Systems, 2)
	assert.Equal(t, dynamo.SolverDOPRI5, s.Engine.Stepper.Solver)

	initial := s.Initial()
	assert.Equal(t, dynamo.State{1}, initial["left"].Q)
	assert.Equal(t, dynamo.State{0}, initial["right"].V)
}

func TestSaveLoadKeepsScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	want := GetPreset("pendulum_pair")
	require.NotNil(t, want)

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestParseFillsDefaults(t *testing.T) {
	s, err := Parse([]byte(`
name: partial
engine:
  stepper:
    atol: 1.0e-9
systems:
  - name: m
    model: free_mass
    q: [0]
    v: [1]
`))
	require.NoError(t, err)
	assert.Equal(t, 1e-9, s.Engine.Stepper.Atol)
	assert.Equal(t, 1e-6, s.Engine.Stepper.Rtol)
	assert.Equal(t, dynamo.SolverDOPRI5, s.Engine.Stepper.Solver)
	assert.Equal(t, DefaultDuration, s.Duration)
	assert.Equal(t, -9.81, s.Engine.World.Gravity)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Scenario)
		want   error
	}{
		{"duration", func(s *Scenario) { s.Duration = 0 }, dynamo.ErrInvalidConfig},
		{"solver", func(s *Scenario) { s.Engine.Stepper.Solver = "leapfrog" }, dynamo.ErrInvalidConfig},
		{"no systems", func(s *Scenario) { s.Systems = nil }, dynamo.ErrInvalidConfig},
		{"duplicate", func(s *Scenario) { s.Systems[1].Name = "left" }, dynamo.ErrDuplicateSystem},
		{"coupling", func(s *Scenario) { s.Couplings[0].B = "ghost" }, dynamo.ErrUnknownSystem},
		{"impulse", func(s *Scenario) {
			s.Impulses = []ImpulseSpec{{System: "ghost", T: 1, Duration: 1, Force: []float64{1}}}
		}, dynamo.ErrUnknownSystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultScenario()
			tt.mutate(s)
			assert.ErrorIs(t, s.Validate(), tt.want)
		})
	}
}

func TestPresets(t *testing.T) {
	names := ListPresets()
	require.NotEmpty(t, names)
	assert.IsNonDecreasing(t, names)
	for _, name := range names {
		s := GetPreset(name)
		require.NotNil(t, s, name)
		assert.NoError(t, s.Validate(), name)
		assert.Equal(t, name, s.Name)
	}
	assert.Nil(t, GetPreset("nonexistent"))
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("stiff")
	a.Systems[0].Q[0] = 42
	a.Engine.Stepper.Atol = 1
	b := GetPreset("stiff")
	assert.Equal(t, 1.0, b.Systems[0].Q[0])
	assert.Equal(t, 1e-6, b.Engine.Stepper.Atol)
}

func TestControllerParams(t *testing.T) {
	p := ControllerSpec{Type: "pid", Params: map[string]float64{"kp": 3}}.ControllerParams()
	assert.Equal(t, 3.0, p["kp"])
	assert.Equal(t, DefaultKi, p["ki"])
	assert.Equal(t, DefaultKd, p["kd"])
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MRSIM_RTOL=1e-8\nMRSIM_DT_MAX=0.005\n"), 0644))
	t.Setenv("MRSIM_SOLVER", dynamo.SolverBogackiShampine)
	t.Setenv("MRSIM_RTOL", "")
	t.Setenv("MRSIM_DT_MAX", "")
	os.Unsetenv("MRSIM_RTOL")
	os.Unsetenv("MRSIM_DT_MAX")

	env, err := LoadEnv(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, dynamo.SolverBogackiShampine, env.Solver)
	assert.Equal(t, 1e-8, env.Rtol)
	assert.Equal(t, 0.005, env.DtMax)

	s := DefaultScenario()
	require.NoError(t, env.Apply(s))
	assert.Equal(t, dynamo.SolverBogackiShampine, s.Engine.Stepper.Solver)
	assert.Equal(t, 1e-8, s.Engine.Stepper.Rtol)
	assert.Equal(t, 0.005, s.Engine.Stepper.DtMax)
	assert.Equal(t, 1e-6, s.Engine.Stepper.Atol)
}

func TestEnvApplyRejectsBadSolver(t *testing.T) {
	s := DefaultScenario()
	err := Env{Solver: "leapfrog"}.Apply(s)
	assert.ErrorIs(t, err, dynamo.ErrInvalidConfig)
}
