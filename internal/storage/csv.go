package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/san-kum/mrsim/internal/dynamo"
)

// EnergyFunc returns the total energy of a sample's states.
type EnergyFunc func(states []dynamo.SystemState) float64

// CSVRecorder streams samples as CSV rows. Columns are "t" followed, for
// each system, by name.q<i>, then name.v<i>, name.a<i> and name.f<i> when
// the matching telemetry switch is on, and a trailing "energy" column when
// energy telemetry is on and an energy function is set. The header is
// written with the first sample.
type CSVRecorder struct {
	mu        sync.Mutex
	out       io.Writer
	w         *csv.Writer
	names     []string
	telemetry dynamo.TelemetryConfig
	energy    EnergyFunc
	columns   int
	closed    bool
}

func NewCSVRecorder(out io.Writer, names []string, telemetry dynamo.TelemetryConfig, energy EnergyFunc) *CSVRecorder {
	if energy == nil {
		telemetry.EnableEnergy = false
	}
	return &CSVRecorder{
		out:       out,
		w:         csv.NewWriter(out),
		names:     names,
		telemetry: telemetry,
		energy:    energy,
	}
}

func (r *CSVRecorder) Record(s dynamo.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("csv recorder closed")
	}
	var energy float64
	if r.telemetry.EnableEnergy {
		energy = r.energy(s.States)
	}
	return r.write(s, energy)
}

func (r *CSVRecorder) write(s dynamo.Sample, energy float64) error {
	if len(s.States) != len(r.names) {
		return fmt.Errorf("%w: sample has %d systems, recorder %d", dynamo.ErrDimensionMismatch, len(s.States), len(r.names))
	}
	if r.columns == 0 {
		header := Header(r.names, s.States, r.telemetry)
		if err := r.w.Write(header); err != nil {
			return err
		}
		r.columns = len(header)
	}

	row := make([]string, 0, r.columns)
	row = append(row, formatFloat(s.T))
	for _, st := range s.States {
		row = appendValues(row, st.Q)
		if r.telemetry.EnableVelocity {
			row = appendValues(row, st.V)
		}
		if r.telemetry.EnableAcceleration {
			row = appendValues(row, st.A)
		}
		if r.telemetry.EnableForces {
			row = appendValues(row, st.Forces)
		}
	}
	if r.telemetry.EnableEnergy {
		row = append(row, formatFloat(energy))
	}
	if len(row) != r.columns {
		return fmt.Errorf("%w: row has %d columns, header %d", dynamo.ErrDimensionMismatch, len(row), r.columns)
	}
	if err := r.w.Write(row); err != nil {
		return err
	}
	r.w.Flush()
	return r.w.Error()
}

// Close flushes and closes the underlying writer when it is an io.Closer.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	if c, ok := r.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Header builds the column names for the given systems. Dimensions are
// taken from states.
func Header(names []string, states []dynamo.SystemState, telemetry dynamo.TelemetryConfig) []string {
	header := []string{"t"}
	for i, name := range names {
		st := states[i]
		header = appendNames(header, name, "q", len(st.Q))
		if telemetry.EnableVelocity {
			header = appendNames(header, name, "v", len(st.V))
		}
		if telemetry.EnableAcceleration {
			header = appendNames(header, name, "a", len(st.V))
		}
		if telemetry.EnableForces {
			header = appendNames(header, name, "f", len(st.V))
		}
	}
	if telemetry.EnableEnergy {
		header = append(header, "energy")
	}
	return header
}

func appendNames(header []string, system, prefix string, n int) []string {
	for i := 0; i < n; i++ {
		header = append(header, fmt.Sprintf("%s.%s%d", system, prefix, i))
	}
	return header
}

func appendValues(row []string, values dynamo.State) []string {
	for _, v := range values {
		row = append(row, formatFloat(v))
	}
	return row
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
