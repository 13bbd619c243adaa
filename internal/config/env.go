package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Env holds the MRSIM_* overrides. Zero values mean unset.
type Env struct {
	Solver   string  `env:"MRSIM_SOLVER"`
	Atol     float64 `env:"MRSIM_ATOL"`
	Rtol     float64 `env:"MRSIM_RTOL"`
	DtMin    float64 `env:"MRSIM_DT_MIN"`
	DtMax    float64 `env:"MRSIM_DT_MAX"`
	Duration float64 `env:"MRSIM_DURATION"`
	Parallel bool    `env:"MRSIM_PARALLEL"`
	LogLevel string  `env:"MRSIM_LOG_LEVEL"`
	DataDir  string  `env:"MRSIM_DATA_DIR"`
}

// LoadEnv loads the given dotenv files (missing ones are skipped) and
// decodes MRSIM_* variables. Variables already set in the environment win
// over the files.
func LoadEnv(files ...string) (Env, error) {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) > 0 {
		if err := godotenv.Load(present...); err != nil {
			return Env{}, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	var env Env
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Env{}, fmt.Errorf("failed to decode environment: %w", err)
	}
	return env, nil
}

// Apply overlays the set fields onto s and validates the result.
func (e Env) Apply(s *Scenario) error {
	st := &s.Engine.Stepper
	if e.Solver != "" {
		st.Solver = e.Solver
	}
	if e.Atol > 0 {
		st.Atol = e.Atol
	}
	if e.Rtol > 0 {
		st.Rtol = e.Rtol
	}
	if e.DtMin > 0 {
		st.DtMin = e.DtMin
	}
	if e.DtMax > 0 {
		st.DtMax = e.DtMax
		st.DtInitial = min(st.DtInitial, e.DtMax)
	}
	if e.Duration > 0 {
		s.Duration = e.Duration
	}
	if e.Parallel {
		s.Engine.Parallel = true
	}
	return s.Validate()
}
