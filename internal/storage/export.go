package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/mrsim/internal/dynamo"
	"github.com/san-kum/mrsim/internal/engine"
)

type ExportData struct {
	Run     RunMetadata    `json:"run"`
	Steps   int            `json:"steps"`
	Samples []ExportSample `json:"samples"`
}

type ExportSample struct {
	T       float64                 `json:"t"`
	Dt      float64                 `json:"dt"`
	Energy  *float64                `json:"energy,omitempty"`
	Systems map[string]ExportSystem `json:"systems"`
}

type ExportSystem struct {
	Q      []float64 `json:"q"`
	V      []float64 `json:"v,omitempty"`
	A      []float64 `json:"a,omitempty"`
	Forces []float64 `json:"forces,omitempty"`
}

// NewExportData converts a log, honouring the run's telemetry switches.
func NewExportData(meta RunMetadata, log *engine.Log) ExportData {
	data := ExportData{Run: meta, Samples: make([]ExportSample, log.Len())}
	data.Steps = log.Accepted
	tel := meta.Telemetry
	for i := range log.Times {
		s := ExportSample{
			T:       log.Times[i],
			Dt:      log.Dts[i],
			Systems: make(map[string]ExportSystem, len(log.Names)),
		}
		if tel.EnableEnergy && i < len(log.Energy) {
			e := log.Energy[i]
			s.Energy = &e
		}
		for k, name := range log.Names {
			s.Systems[name] = exportSystem(log.States[i][k], tel)
		}
		data.Samples[i] = s
	}
	return data
}

func exportSystem(st dynamo.SystemState, tel dynamo.TelemetryConfig) ExportSystem {
	out := ExportSystem{Q: st.Q}
	if tel.EnableVelocity {
		out.V = st.V
	}
	if tel.EnableAcceleration {
		out.A = st.A
	}
	if tel.EnableForces {
		out.Forces = st.Forces
	}
	return out
}

func ExportJSON(w io.Writer, meta RunMetadata, log *engine.Log) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExportData(meta, log))
}

func ExportJSONFile(path string, meta RunMetadata, log *engine.Log) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, meta, log)
}

// ExportTrajectoryJSON writes a stored run without rebuilding a log.
func ExportTrajectoryJSON(w io.Writer, meta RunMetadata, tr *Trajectory) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(struct {
		Run    RunMetadata `json:"run"`
		Header []string    `json:"header"`
		Times  []float64   `json:"times"`
		Rows   [][]float64 `json:"rows"`
	}{meta, tr.Header, tr.Times, tr.Rows})
}
