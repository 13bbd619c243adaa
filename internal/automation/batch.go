// Package automation runs batches of scenarios described in a YAML file.
package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/san-kum/mrsim/internal/config"
	"github.com/san-kum/mrsim/internal/experiment"
	"github.com/san-kum/mrsim/internal/storage"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Batch is a list of runs executed in order.
type Batch struct {
	Name    string  `yaml:"name"`
	Entries []Entry `yaml:"runs"`
}

// Entry names one run: either a preset or a scenario file, with optional
// overrides applied on top.
type Entry struct {
	Preset   string  `yaml:"preset,omitempty"`
	Scenario string  `yaml:"scenario,omitempty"`
	Duration float64 `yaml:"duration,omitempty"`
	Solver   string  `yaml:"solver,omitempty"`
	Save     bool    `yaml:"save,omitempty"`
}

// LoadBatch reads a batch file. Relative scenario paths are resolved
// against the batch file's directory.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Batch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range b.Entries {
		if p := b.Entries[i].Scenario; p != "" && !filepath.IsAbs(p) {
			b.Entries[i].Scenario = filepath.Join(dir, p)
		}
	}
	return &b, nil
}

// Resolve loads the entry's scenario and applies its overrides.
func (e Entry) Resolve() (*config.Scenario, error) {
	var s *config.Scenario
	switch {
	case e.Preset != "" && e.Scenario != "":
		return nil, errors.New("entry sets both preset and scenario")
	case e.Preset != "":
		s = config.GetPreset(e.Preset)
		if s == nil {
			return nil, fmt.Errorf("unknown preset %q", e.Preset)
		}
	case e.Scenario != "":
		var err error
		if s, err = config.Load(e.Scenario); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("entry needs a preset or a scenario")
	}
	if e.Duration > 0 {
		s.Duration = e.Duration
	}
	if e.Solver != "" {
		s.Engine.Stepper.Solver = e.Solver
	}
	return s, s.Validate()
}

// Outcome is the result of one entry. RunID is empty unless the run was
// saved.
type Outcome struct {
	Entry  Entry
	Result *experiment.Result
	RunID  string
	Err    error
}

// RunBatch executes every entry in order. A failing entry does not stop the
// batch; the failures are joined into the returned error. Cancelling ctx
// stops before the next entry. store may be nil when no entry saves.
func RunBatch(ctx context.Context, b *Batch, reg *experiment.Registry, store *storage.Store, log *logrus.Entry) ([]Outcome, error) {
	var errs []error
	out := make([]Outcome, 0, len(b.Entries))
	for i, entry := range b.Entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		o := runEntry(ctx, entry, reg, store)
		fields := logrus.Fields{"run": i + 1, "of": len(b.Entries)}
		if o.Result != nil {
			fields["scenario"] = o.Result.Scenario
			fields["steps"] = o.Result.Stats.Accepted
		}
		if o.RunID != "" {
			fields["id"] = o.RunID
		}
		if o.Err != nil {
			log.WithFields(fields).WithError(o.Err).Warn("batch entry failed")
			errs = append(errs, fmt.Errorf("run %d: %w", i+1, o.Err))
		} else {
			log.WithFields(fields).Info("batch entry done")
		}
		out = append(out, o)
	}
	return out, errors.Join(errs...)
}

func runEntry(ctx context.Context, entry Entry, reg *experiment.Registry, store *storage.Store) Outcome {
	o := Outcome{Entry: entry}
	s, err := entry.Resolve()
	if err != nil {
		o.Err = err
		return o
	}
	res, runErr := experiment.New(reg, s).Run(ctx)
	o.Result = res
	o.Err = runErr
	if !entry.Save || res == nil || res.Log == nil {
		return o
	}
	if store == nil {
		o.Err = errors.Join(o.Err, errors.New("save requested without a store"))
		return o
	}
	id, err := store.Save(ctx, storage.NewRunMetadata(s, res.Log, res.Metrics, runErr), res.Log)
	if err != nil {
		o.Err = errors.Join(o.Err, err)
		return o
	}
	o.RunID = id
	return o
}
