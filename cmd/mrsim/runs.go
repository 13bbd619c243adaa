package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/mrsim/internal/analysis"
	"github.com/san-kum/mrsim/internal/export"
	"github.com/san-kum/mrsim/internal/storage"
	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.List(context.Background())
	if err != nil {
		return err
	}
	if scenarioFilter != "" {
		kept := runs[:0]
		for _, r := range runs {
			if r.Scenario == scenarioFilter {
				kept = append(kept, r)
			}
		}
		runs = kept
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tSOLVER\tT_FINAL\tSTEPS\tREJECTED\tERROR")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.4g\t%d\t%d\t%s\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Solver,
			run.FinalTime,
			run.Accepted,
			run.Rejected,
			run.Error,
		)
	}
	return w.Flush()
}

func reindexRuns(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	n, err := st.Reindex(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("indexed %d runs\n", n)
	return nil
}

func loadRun(id string) (*storage.RunMetadata, *storage.Trajectory, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	tr, err := st.LoadStates(id)
	if err != nil {
		return nil, nil, err
	}
	if len(tr.Times) == 0 {
		return nil, nil, fmt.Errorf("run %s has no samples", id)
	}
	return meta, tr, nil
}

// columnsWith returns the header columns whose name contains marker, such
// as ".q" for positions.
func columnsWith(tr *storage.Trajectory, marker string) []string {
	var out []string
	for _, h := range tr.Header[1:] {
		if strings.Contains(h, marker) {
			out = append(out, h)
		}
	}
	return out
}

func firstColumn(tr *storage.Trajectory, marker string) string {
	if cols := columnsWith(tr, marker); len(cols) > 0 {
		return cols[0]
	}
	return ""
}

func showRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s (%s, atol=%g rtol=%g)\n", meta.Scenario, meta.Solver, meta.Atol, meta.Rtol)
	fmt.Printf("samples: %d, accepted %d, rejected %d\n\n", len(tr.Times), meta.Accepted, meta.Rejected)

	cols := columns
	if len(cols) == 0 {
		cols = columnsWith(tr, ".q")
		const maxPlots = 6
		if len(cols) > maxPlots {
			cols = cols[:maxPlots]
		}
		if tr.Column("energy") != nil {
			cols = append(cols, "energy")
		}
	}
	for _, name := range cols {
		data := tr.Column(name)
		if data == nil {
			return fmt.Errorf("no column %q", name)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name),
		))
		fmt.Println()
	}

	if len(tr.Times) > 1 {
		dts := make([]float64, len(tr.Times)-1)
		for i := range dts {
			dts[i] = tr.Times[i+1] - tr.Times[i]
		}
		fmt.Println(asciigraph.Plot(dts,
			asciigraph.Height(6),
			asciigraph.Width(80),
			asciigraph.Caption("step size"),
		))
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportTrajectoryJSON(os.Stdout, *meta, tr)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write(tr.Header); err != nil {
		return err
	}
	for i, row := range tr.Rows {
		record := make([]string, 0, len(row)+1)
		record = append(record, strconv.FormatFloat(tr.Times[i], 'g', -1, 64))
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func exportSVG(cmd *cobra.Command, args []string) error {
	_, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	cols := columns
	if len(cols) == 0 {
		cols = columnsWith(tr, ".q")
	}

	var out io.Writer = os.Stdout
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return export.TrajectorySVG(out, tr, 800, 400, cols...)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	name := xColumn
	if name == "" {
		name = firstColumn(tr, ".q")
	}
	data := tr.Column(name)
	if data == nil {
		return fmt.Errorf("no column %q", name)
	}

	// Adaptive steps are uneven; resample onto a power-of-two grid.
	n := 1
	for n < len(data) {
		n *= 2
	}
	grid, dt, err := analysis.Resample(tr.Times, data, n)
	if err != nil {
		return err
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("scenario: %s, column %s\n\n", meta.Scenario, name)

	ps := analysis.PowerSpectrum(grid)
	plot := ps[:max(2, len(ps)/4)]
	fmt.Println(asciigraph.Plot(plot,
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+name+")"),
	))
	fmt.Println()

	freq := analysis.DominantFrequency(grid, dt)
	fmt.Printf("dominant frequency: %.4g hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.4g s\n", 1/freq)
	}
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	_, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	xName, yName := xColumn, yColumn
	if xName == "" {
		xName = firstColumn(tr, ".q")
	}
	if yName == "" {
		yName = firstColumn(tr, ".v")
	}
	xs, ys := tr.Column(xName), tr.Column(yName)
	if xs == nil || ys == nil {
		return fmt.Errorf("need columns %q and %q (velocities require telemetry.enable_velocity)", xName, yName)
	}

	if crossCol != "" {
		cross := tr.Column(crossCol)
		if cross == nil {
			return fmt.Errorf("no column %q", crossCol)
		}
		pts := analysis.PoincareSection(cross, crossLevel, xs, ys)
		fmt.Printf("poincare section: %s rising through %g, %d crossings\n\n", crossCol, crossLevel, len(pts))
		fmt.Println(analysis.PoincareASCII(pts, 60, 24))
		return nil
	}

	p, err := analysis.NewPhasePortrait(xName, xs, yName, ys)
	if err != nil {
		return err
	}
	fmt.Printf("phase portrait: %s vs %s\n\n", yName, xName)
	fmt.Println(p.ASCII(60, 24))
	return nil
}
