// Package storage persists finished runs: one directory per run holding
// metadata.json and states.csv, catalogued in a SQLite index.
package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/mrsim/internal/config"
	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/san-kum/mrsim/internal/engine"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	indexFile    = "runs.db"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
	index   *Index
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Init creates the base directory and opens the index.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return err
	}
	idx, err := OpenIndex(filepath.Join(s.baseDir, indexFile))
	if err != nil {
		return err
	}
	s.index = idx
	return nil
}

func (s *Store) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

type RunMetadata struct {
	ID          string                 `json:"id"`
	Scenario    string                 `json:"scenario"`
	Description string                 `json:"description,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Solver      string                 `json:"solver"`
	Atol        float64                `json:"atol"`
	Rtol        float64                `json:"rtol"`
	Duration    float64                `json:"duration"`
	FinalTime   float64                `json:"final_time"`
	Systems     []string               `json:"systems,omitempty"`
	Accepted    int                    `json:"accepted"`
	Rejected    int                    `json:"rejected"`
	Dropped     int                    `json:"dropped"`
	Metrics     map[string]float64     `json:"metrics"`
	Telemetry   dynamo.TelemetryConfig `json:"telemetry"`
	Error       string                 `json:"error,omitempty"`
}

// NewRunMetadata describes a run of sc that produced log. runErr is stored
// as text; a failed run with a partial log is still worth keeping.
func NewRunMetadata(sc *config.Scenario, log *engine.Log, metrics map[string]float64, runErr error) RunMetadata {
	m := RunMetadata{
		Scenario:    sc.Name,
		Description: sc.Description,
		Solver:      sc.Engine.Stepper.Solver,
		Atol:        sc.Engine.Stepper.Atol,
		Rtol:        sc.Engine.Stepper.Rtol,
		Duration:    sc.Duration,
		Metrics:     metrics,
		Telemetry:   sc.Engine.Telemetry,
	}
	if log != nil {
		m.Systems = log.Names
		m.FinalTime = log.Final().T
		m.Accepted = log.Accepted
		m.Rejected = log.Rejected
		m.Dropped = log.Dropped
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}
	return m
}

// Save writes a run and returns its new ID.
func (s *Store) Save(ctx context.Context, meta RunMetadata, log *engine.Log) (string, error) {
	meta.ID = uuid.NewString()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeStates(filepath.Join(runDir, statesFile), meta, log); err != nil {
		return "", err
	}

	if s.index != nil {
		if err := s.index.Insert(ctx, meta); err != nil {
			return "", err
		}
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStates(path string, meta RunMetadata, log *engine.Log) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if log == nil || log.Len() == 0 {
		return f.Close()
	}

	tel := meta.Telemetry
	tel.EnableEnergy = tel.EnableEnergy && len(log.Energy) == log.Len()
	rec := &CSVRecorder{out: f, w: csv.NewWriter(f), names: log.Names, telemetry: tel}
	for i, sample := range log.Samples() {
		var energy float64
		if tel.EnableEnergy {
			energy = log.Energy[i]
		}
		if err := rec.write(sample, energy); err != nil {
			rec.Close()
			return err
		}
	}
	return rec.Close()
}

// List returns saved runs, newest first.
func (s *Store) List(ctx context.Context) ([]RunMetadata, error) {
	if s.index != nil {
		return s.index.List(ctx, "")
	}
	return s.scan()
}

// scan reads every metadata.json under the base directory.
func (s *Store) scan() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

// Reindex adds runs found on disk but missing from the index.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, fmt.Errorf("storage: index not open")
	}
	indexed, err := s.index.List(ctx, "")
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(indexed))
	for _, m := range indexed {
		known[m.ID] = true
	}
	onDisk, err := s.scan()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, m := range onDisk {
		if known[m.ID] {
			continue
		}
		if err := s.index.Insert(ctx, m); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Trajectory is the parsed states.csv of a run.
type Trajectory struct {
	Header []string
	Times  []float64
	Rows   [][]float64
}

// Column returns the named column, or nil when absent.
func (tr *Trajectory) Column(name string) []float64 {
	idx := -1
	for i, h := range tr.Header {
		if h == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if idx == 0 {
		return tr.Times
	}
	out := make([]float64, len(tr.Rows))
	for i, row := range tr.Rows {
		out[i] = row[idx-1]
	}
	return out
}

func (s *Store) LoadStates(runID string) (*Trajectory, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}

	tr := &Trajectory{}
	if len(records) == 0 {
		return tr, nil
	}
	tr.Header = records[0]
	tr.Times = make([]float64, 0, len(records)-1)
	tr.Rows = make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		row := make([]float64, len(record)-1)
		for j, field := range record[1:] {
			if row[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", i+1, tr.Header[j+1], err)
			}
		}
		tr.Times = append(tr.Times, t)
		tr.Rows = append(tr.Rows, row)
	}
	return tr, nil
}
