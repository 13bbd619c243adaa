package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/mrsim/internal/automation"
	"github.com/san-kum/mrsim/internal/config"
	"github.com/san-kum/mrsim/internal/engine"
	"github.com/san-kum/mrsim/internal/experiment"
	"github.com/san-kum/mrsim/internal/logging"
	"github.com/san-kum/mrsim/internal/metrics"
	"github.com/san-kum/mrsim/internal/optim"
	"github.com/san-kum/mrsim/internal/storage"
	"github.com/san-kum/mrsim/internal/tui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	dataDir  string
	logLevel string
	envFile  string

	preset     string
	configFile string
	duration   float64
	solver     string
	parallel   bool
	watch      bool
	save       bool
	showStats  bool

	tuneMetric string
	gains      []string
	modelGains []string

	scenarioFilter string

	columns    []string
	outFile    string
	xColumn    string
	yColumn    string
	crossCol   string
	crossLevel float64

	env config.Env
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mrsim",
		Short:         "multi-robot rigid body simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if env, err = config.LoadEnv(envFile); err != nil {
				return err
			}
			if !cmd.Flags().Changed("data") && env.DataDir != "" {
				dataDir = env.DataDir
			}
			if !cmd.Flags().Changed("log-level") && env.LogLevel != "" {
				logLevel = env.LogLevel
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".mrsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file with MRSIM_* overrides")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario",
		Args:  cobra.NoArgs,
		RunE:  runScenario,
	}
	scenarioFlags(runCmd)
	runCmd.Flags().BoolVar(&watch, "watch", false, "show a live monitor")
	runCmd.Flags().BoolVar(&save, "save", true, "save the run to the data directory")
	runCmd.Flags().BoolVar(&showStats, "stats", false, "print stepper counters")

	batchCmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "run every entry of a batch file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "compare solvers on a scenario",
		Args:  cobra.NoArgs,
		RunE:  benchSolvers,
	}
	scenarioFlags(benchCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search controller gains or model parameters",
		Args:  cobra.NoArgs,
		RunE:  tuneScenario,
	}
	scenarioFlags(tuneCmd)
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "control_effort", "metric to minimise")
	tuneCmd.Flags().StringArrayVar(&gains, "gain", nil, "controller gain grid, e.g. cart.kp=1,5,10")
	tuneCmd.Flags().StringArrayVar(&modelGains, "param", nil, "model parameter grid, e.g. cart.mass=1,2")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models, controllers and solvers",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
	listCmd.Flags().StringVar(&scenarioFilter, "scenario", "", "only runs of this scenario")

	reindexCmd := &cobra.Command{
		Use:   "reindex",
		Short: "rebuild the run index from the data directory",
		Args:  cobra.NoArgs,
		RunE:  reindexRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}
	showCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot (default: positions and energy)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a saved run as CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "plot columns of a saved run to SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringSliceVar(&columns, "columns", nil, "columns to plot (default: positions)")
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a column",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&xColumn, "column", "", "column to analyse (default: first position)")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "phase portrait or Poincare section",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().StringVar(&xColumn, "x", "", "x column (default: first position)")
	phaseCmd.Flags().StringVar(&yColumn, "y", "", "y column (default: first velocity)")
	phaseCmd.Flags().StringVar(&crossCol, "poincare", "", "sample where this column rises through --level")
	phaseCmd.Flags().Float64Var(&crossLevel, "level", 0, "Poincare threshold")

	rootCmd.AddCommand(runCmd, batchCmd, benchCmd, tuneCmd, presetsCmd, modelsCmd,
		listCmd, reindexCmd, showCmd, exportJSONCmd, exportCSVCmd, exportSVGCmd, analyzeCmd, phaseCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func scenarioFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "built-in scenario")
	cmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	cmd.Flags().Float64Var(&duration, "time", 0, "override the scenario duration")
	cmd.Flags().StringVar(&solver, "solver", "", "override the solver")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "evaluate systems in parallel")
}

// loadScenario resolves --preset or --config, then applies the environment
// and finally the flags.
func loadScenario() (*config.Scenario, error) {
	var s *config.Scenario
	switch {
	case preset != "" && configFile != "":
		return nil, errors.New("--preset and --config are exclusive")
	case preset != "":
		if s = config.GetPreset(preset); s == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	case configFile != "":
		var err error
		if s, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	default:
		s = config.DefaultScenario()
	}

	if err := env.Apply(s); err != nil {
		return nil, err
	}
	if duration > 0 {
		s.Duration = duration
	}
	if solver != "" {
		s.Engine.Stepper.Solver = solver
	}
	if parallel {
		s.Engine.Parallel = true
	}
	return s, s.Validate()
}

func newLogger() *logrus.Logger {
	return logging.New(logLevel)
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	s, err := loadScenario()
	if err != nil {
		return err
	}
	logger := newLogger()
	collector := metrics.NewCollector("mrsim")

	x := experiment.New(experiment.NewRegistry(), s, engine.WithLogger(logging.Component(logger, "engine")))
	x.AddObserver(collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var res *experiment.Result
	var runErr error
	if watch {
		res, runErr = runWatched(ctx, x, s)
	} else {
		fmt.Printf("running %s...\n", s.Name)
		res, runErr = x.Run(ctx)
	}
	if runErr != nil {
		collector.RecordFailure(runErr)
	}
	if res == nil {
		return runErr
	}

	printSummary(s, res, runErr)
	if showStats {
		snap, err := collector.Snapshot()
		if err != nil {
			return err
		}
		printMap("stepper", snap)
	}

	if save && res.Log != nil {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		id, err := st.Save(context.Background(), storage.NewRunMetadata(s, res.Log, res.Metrics, runErr), res.Log)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", labelStyle.Render("run id:"), id)
	}
	return runErr
}

func runWatched(ctx context.Context, x *experiment.Experiment, s *config.Scenario) (*experiment.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make([]string, len(s.Systems))
	for i, sys := range s.Systems {
		names[i] = sys.Name
	}
	p := tea.NewProgram(tui.NewMonitor(s.Name, names, s.Duration, cancel))
	x.AddObserver(tui.Observer(p, 50*time.Millisecond))

	type outcome struct {
		res *experiment.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := x.Run(ctx)
		p.Send(tui.DoneMsg{Err: err})
		done <- outcome{res, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	out := <-done
	return out.res, out.err
}

func printSummary(s *config.Scenario, res *experiment.Result, runErr error) {
	fmt.Println(titleStyle.Render(s.Name))
	if runErr != nil {
		fmt.Println(errStyle.Render("  stopped: " + runErr.Error()))
	} else {
		fmt.Println(okStyle.Render(fmt.Sprintf("  completed in %v", res.Elapsed.Round(time.Microsecond))))
	}
	if res.Log != nil {
		fmt.Printf("  %s %.6g\n", labelStyle.Render("t:       "), res.Log.Final().T)
	}
	fmt.Printf("  %s %d accepted, %d rejected, %d dropped\n", labelStyle.Render("steps:   "),
		res.Stats.Accepted, res.Stats.Rejected, res.Stats.Dropped)
	printMap("metrics", res.Metrics)
}

func printMap(title string, m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println(labelStyle.Render("\n" + title + ":"))
	for _, k := range keys {
		fmt.Printf("  %s: %.6g\n", k, m[k])
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	b, err := automation.LoadBatch(args[0])
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	logger := newLogger()
	if !cmd.Flags().Changed("log-level") && env.LogLevel == "" {
		logger.SetLevel(logrus.InfoLevel)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, runErr := automation.RunBatch(ctx, b, experiment.NewRegistry(), st, logging.Component(logger, "batch"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSCENARIO\tT\tSTEPS\tRUN\tERROR")
	for i, o := range out {
		name, t, steps := o.Entry.Preset, "-", "-"
		if name == "" {
			name = o.Entry.Scenario
		}
		if o.Result != nil {
			name = o.Result.Scenario
			steps = strconv.Itoa(o.Result.Stats.Accepted)
			if o.Result.Log != nil {
				t = fmt.Sprintf("%.4g", o.Result.Log.Final().T)
			}
		}
		msg := ""
		if o.Err != nil {
			msg = o.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, name, t, steps, o.RunID, msg)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func benchSolvers(cmd *cobra.Command, args []string) error {
	s, err := loadScenario()
	if err != nil {
		return err
	}
	reg := experiment.NewRegistry()
	results := reg.Sweep(context.Background(), s, experiment.SolverVariants(reg.ListSolvers()...))

	fmt.Printf("benchmarking %s over %gs\n\n", s.Name, s.Duration)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SOLVER\tACCEPTED\tREJECTED\tDROPPED\tTIME\tSTEPS/SEC\tENERGY_DRIFT\tERROR")
	for _, r := range results {
		if r.Result == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t%v\n", r.Label, r.Err)
			continue
		}
		st := r.Result.Stats
		rate := float64(st.Accepted) / r.Result.Elapsed.Seconds()
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%v\t%.0f\t%.3g\t%s\n",
			r.Label, st.Accepted, st.Rejected, st.Dropped,
			r.Result.Elapsed.Round(time.Microsecond), rate, r.Result.Metrics["energy_drift"], msg)
	}
	return w.Flush()
}

func tuneScenario(cmd *cobra.Command, args []string) error {
	s, err := loadScenario()
	if err != nil {
		return err
	}
	var params []optim.Param
	for _, g := range gains {
		system, name, values, err := parseGrid(g)
		if err != nil {
			return err
		}
		params = append(params, optim.ControllerParam(system, name, values...))
	}
	for _, g := range modelGains {
		system, name, values, err := parseGrid(g)
		if err != nil {
			return err
		}
		params = append(params, optim.ModelParam(system, name, values...))
	}
	if len(params) == 0 {
		return errors.New("nothing to tune: pass --gain or --param")
	}

	best, points, err := optim.NewGridSearch(params...).Search(context.Background(), experiment.NewRegistry(), s, tuneMetric)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "POINT\t%s\tERROR\n", strings.ToUpper(tuneMetric))
	for _, p := range points {
		msg := ""
		if p.Err != nil {
			msg = p.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%.6g\t%s\n", formatPoint(p.Values), p.Score, msg)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}
	fmt.Printf("\n%s %s (%s=%.6g)\n", okStyle.Render("best:"), formatPoint(best.Values), tuneMetric, best.Score)
	return nil
}

// parseGrid splits "system.name=v1,v2,..".
func parseGrid(spec string) (system, name string, values []float64, err error) {
	key, list, ok := strings.Cut(spec, "=")
	if !ok {
		return "", "", nil, fmt.Errorf("bad grid %q: want system.name=v1,v2", spec)
	}
	dot := strings.LastIndex(key, ".")
	if dot <= 0 || dot == len(key)-1 {
		return "", "", nil, fmt.Errorf("bad grid %q: want system.name=v1,v2", spec)
	}
	for _, f := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return "", "", nil, fmt.Errorf("bad grid %q: %w", spec, err)
		}
		values = append(values, v)
	}
	return key[:dot], key[dot+1:], values, nil
}

func formatPoint(values map[string]float64) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, values[k])
	}
	return strings.Join(parts, " ")
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRESET\tSYSTEMS\tDURATION\tDESCRIPTION")
	for _, name := range config.ListPresets() {
		s := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%gs\t%s\n", name, len(s.Systems), s.Duration, s.Description)
	}
	return w.Flush()
}

func listModels(cmd *cobra.Command, args []string) error {
	reg := experiment.NewRegistry()
	fmt.Println(titleStyle.Render("models"))
	for _, m := range reg.ListModels() {
		fmt.Println("  " + m)
	}
	fmt.Println(titleStyle.Render("controllers"))
	for _, c := range reg.ListControllers() {
		fmt.Println("  " + c)
	}
	fmt.Println(titleStyle.Render("solvers"))
	for _, s := range reg.ListSolvers() {
		fmt.Println("  " + s)
	}
	return nil
}
