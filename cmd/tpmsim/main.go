package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/tpmsim/internal/analysis"
	"github.com/san-kum/tpmsim/internal/config"
	"github.com/san-kum/tpmsim/internal/experiment"
	"github.com/san-kum/tpmsim/internal/export"
	"github.com/san-kum/tpmsim/internal/metrics"
	"github.com/san-kum/tpmsim/internal/storage"
	"github.com/san-kum/tpmsim/internal/tpm"
	"github.com/san-kum/tpmsim/internal/viz"
)

var (
	configFile  string
	preset      string
	useTUI      bool
	metricsAddr string
	noSave      bool
	saveState   bool
	bodyName    string
	plotFacets  []int
	facet       int
	csvFacets   []int
	svgFacets   []int
	outFile     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "tpmsim",
		Short:         "asteroid thermophysical model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("data", ".tpmsim", "data directory")
	rootCmd.PersistentFlags().Int("workers", 0, "worker goroutines per body (0 = GOMAXPROCS)")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	viper.SetEnvPrefix("TPMSIM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"data", "workers", "log-level"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml, gcfg or ini)")
	runCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	runCmd.Flags().BoolVar(&useTUI, "tui", false, "show a live progress view")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&saveState, "state", false, "store the full temperature field")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata and diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot surface temperature of selected facets",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "spectrum and summary of a facet's surface temperature",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export facet temperature histories to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render facet temperature histories as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	for _, c := range []*cobra.Command{plotCmd, analyzeCmd, exportCSVCmd, exportSVGCmd} {
		c.Flags().StringVar(&bodyName, "body", experiment.PrimaryName, "body name")
	}
	plotCmd.Flags().IntSliceVar(&plotFacets, "facets", []int{0}, "facet indices")
	exportSVGCmd.Flags().IntSliceVar(&svgFacets, "facets", []int{0}, "facet indices")
	analyzeCmd.Flags().IntVar(&facet, "facet", 0, "facet index")
	exportCSVCmd.Flags().IntSliceVar(&csvFacets, "facets", nil, "facet indices (default all)")

	presetsCmd := &cobra.Command{
		Use:   "presets [kind]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := config.Kinds()
			if len(args) == 1 {
				kinds = args
			}
			for _, kind := range kinds {
				presets := config.ListPresets(kind)
				if len(presets) == 0 {
					fmt.Printf("no presets for kind: %s\n", kind)
					continue
				}
				fmt.Printf("%s:\n", kind)
				for _, p := range presets {
					fmt.Printf("  %s\n", p)
				}
			}
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write a default or preset config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  writeConfig,
	}
	configCmd.Flags().StringVar(&preset, "preset", "", "start from this preset")

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, analyzeCmd, exportJSONCmd, exportCSVCmd, exportSVGCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	var opt level.Option
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}
	return level.NewFilter(logger, opt)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case preset != "" && configFile != "":
		return nil, fmt.Errorf("use either --preset or --config")
	case preset != "":
		cfg = config.FindPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s", preset)
		}
	case configFile != "":
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	default:
		cfg = config.DefaultConfig()
	}
	if w := viper.GetInt("workers"); w > 0 {
		cfg.Workers = w
	}
	return cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	e, err := experiment.Build(cfg, experiment.NewRegistry())
	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "experiment ready", "name", cfg.Name, "bodies", strings.Join(e.BodyNames(), ","),
		"steps", e.Ephemeris.Len(), "epoch_jd", e.Ephemeris.JulianDate(0))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := []tpm.Option{tpm.WithLogger(log.With(logger, "component", "tpm"))}
	if metricsAddr != "" {
		coll := metrics.New()
		opts = append(opts, tpm.WithObserver(coll))
		go func() {
			if err := coll.Serve(ctx, metricsAddr); err != nil {
				level.Error(logger).Log("msg", "metrics server", "err", err)
			}
		}()
		level.Info(logger).Log("msg", "serving metrics", "addr", metricsAddr)
	}

	start := time.Now()
	var results []*tpm.Result
	if useTUI {
		results, err = runWithTUI(ctx, cancel, e, opts)
	} else {
		opts = append(opts, tpm.WithObserver(viz.NewProgress(logger, 2*time.Second)))
		results, err = e.Run(ctx, opts...)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	for _, r := range results {
		d := r.Diagnostics
		f := r.MeanForce()
		fmt.Printf("%s: steps=%d saved=%d energy_ratio=%.6f non_converged=%d mean_force=(%.3e, %.3e, %.3e) N\n",
			r.Body, d.Steps, len(r.Steps), d.EnergyRatio, d.NonConverged, f.X, f.Y, f.Z)
	}

	if noSave {
		return nil
	}
	st := storage.New(viper.GetString("data"))
	if err := st.Init(); err != nil {
		return err
	}
	run := storage.Run{Config: cfg, Ephemeris: e.Ephemeris, Binary: e.Binary, Results: results, Elapsed: elapsed}
	if saveState {
		run.Bodies = e.Bodies
	}
	runID, err := st.Save(run)
	if err != nil {
		return err
	}
	fmt.Printf("saved: %s (%.2fs)\n", runID, elapsed.Seconds())
	return nil
}

func runWithTUI(ctx context.Context, cancel func(), e *experiment.Experiment, opts []tpm.Option) ([]*tpm.Result, error) {
	p := tea.NewProgram(viz.NewModel(e.Config.Name, cancel, e.BodyNames()...))
	opts = append(opts, tpm.WithObserver(viz.Forward(p, 50*time.Millisecond)))

	type outcome struct {
		results []*tpm.Result
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.Run(ctx, opts...)
		p.Send(viz.DoneMsg{Err: err})
		done <- outcome{res, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	out := <-done
	return out.results, out.err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(viper.GetString("data"))
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tKIND\tTIME\tFACETS\tSTEPS\tSAVED\tENERGY")
	for _, run := range runs {
		var nf []string
		for _, b := range run.Bodies {
			nf = append(nf, fmt.Sprint(b.Facets))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			run.ID,
			run.Name,
			run.Kind,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			strings.Join(nf, "+"),
			run.Steps,
			run.SavedSteps,
			energyRatio(run.Bodies),
		)
	}
	return w.Flush()
}

func energyRatio(bodies []storage.BodyMetadata) string {
	var parts []string
	for _, b := range bodies {
		if b.EnergyRatio == nil {
			parts = append(parts, "-")
			continue
		}
		parts = append(parts, fmt.Sprintf("%.4f", *b.EnergyRatio))
	}
	return strings.Join(parts, "/")
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(viper.GetString("data"))
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run:       %s\n", meta.ID)
	fmt.Printf("name:      %s (%s)\n", meta.Name, meta.Kind)
	fmt.Printf("created:   %s (%.2fs)\n", meta.Timestamp.Format(time.RFC3339), meta.Elapsed)
	fmt.Printf("epoch:     %s (JD %.5f)\n", meta.Epoch.Format(time.RFC3339), meta.EpochJD)
	fmt.Printf("period:    %.1f s\n", meta.Period)
	fmt.Printf("steps:     %d (saved %d)\n", meta.Steps, meta.SavedSteps)
	fmt.Printf("boundary:  %s / %s, %d nodes\n", meta.Upper, meta.Lower, meta.Nodes)
	for _, b := range meta.Bodies {
		fmt.Println()
		fmt.Printf("%s: %d facets\n", b.Name, b.Facets)
		fmt.Printf("  energy ratio:   %s\n", energyRatio([]storage.BodyMetadata{b}))
		fmt.Printf("  non-converged:  %d (max iterations %d)\n", b.NonConverged, b.MaxIterations)
		if meta.Kind == "binary" {
			fmt.Printf("  eclipsed:       %d facet-steps\n", b.Eclipsed)
		}
		fmt.Printf("  mean force:     (%.3e, %.3e, %.3e) N\n", b.MeanForce[0], b.MeanForce[1], b.MeanForce[2])
		fmt.Printf("  mean torque:    (%.3e, %.3e, %.3e) N m\n", b.MeanTorque[0], b.MeanTorque[1], b.MeanTorque[2])
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(viper.GetString("data"))
	surf, err := st.LoadSurface(runID, bodyName)
	if err != nil {
		return err
	}
	if len(surf.Temps) == 0 {
		return fmt.Errorf("no data to plot")
	}

	var (
		series [][]float64
		labels []string
	)
	for _, f := range plotFacets {
		if f < 0 || f >= len(surf.Temps[0]) {
			return fmt.Errorf("facet %d out of range [0, %d)", f, len(surf.Temps[0]))
		}
		series = append(series, surf.Facet(f))
		labels = append(labels, fmt.Sprintf("facet %d", f))
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("body: %s\n", bodyName)
	fmt.Printf("samples: %d (t = %.0f .. %.0f s)\n\n", len(surf.Times), surf.Times[0], surf.Times[len(surf.Times)-1])
	fmt.Println(viz.PlotTemperatures(series, labels, 80, 15))
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(viper.GetString("data"))
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	surf, err := st.LoadSurface(runID, bodyName)
	if err != nil {
		return err
	}
	if len(surf.Temps) == 0 {
		return fmt.Errorf("no data")
	}
	if facet < 0 || facet >= len(surf.Temps[0]) {
		return fmt.Errorf("facet %d out of range [0, %d)", facet, len(surf.Temps[0]))
	}
	series := surf.Facet(facet)

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("body: %s, facet %d\n\n", bodyName, facet)

	ps := analysis.PowerSpectrum(series)
	fmt.Println(viz.PlotSpectrum(ps, 80, 15, "power spectrum (surface temperature)"))
	fmt.Println()

	s := analysis.Summarize(surf.Times, series)
	fmt.Printf("min/mean/max: %.2f / %.2f / %.2f K\n", s.Min, s.Mean, s.Max)
	fmt.Printf("amplitude:    %.2f K, peak at t = %.0f s\n", s.Amplitude, s.PeakTime)

	period, err := analysis.DominantPeriod(surf.Times, series)
	if err != nil {
		return err
	}
	if math.IsInf(period, 1) {
		fmt.Println("dominant period: none (flat curve)")
		return nil
	}
	fmt.Printf("dominant period: %.1f s (rotation %.1f s)\n", period, meta.Period)
	return nil
}

func output() (io.WriteCloser, error) {
	if outFile == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(outFile)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func exportJSON(cmd *cobra.Command, args []string) error {
	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()
	return storage.New(viper.GetString("data")).ExportJSON(w, args[0])
}

func exportCSV(cmd *cobra.Command, args []string) error {
	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()
	return storage.New(viper.GetString("data")).ExportCSV(w, args[0], bodyName, csvFacets)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	surf, err := storage.New(viper.GetString("data")).LoadSurface(args[0], bodyName)
	if err != nil {
		return err
	}
	if len(surf.Temps) < 2 {
		return fmt.Errorf("need at least two saved steps")
	}
	var (
		series [][]float64
		labels []string
	)
	for _, f := range svgFacets {
		if f < 0 || f >= len(surf.Temps[0]) {
			return fmt.Errorf("facet %d out of range [0, %d)", f, len(surf.Temps[0]))
		}
		series = append(series, surf.Facet(f))
		labels = append(labels, fmt.Sprintf("%s facet %d", bodyName, f))
	}

	w, err := output()
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = io.WriteString(w, export.CurvesSVG(surf.Times, series, labels, 800, 400))
	return err
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if preset != "" {
		if cfg = config.FindPreset(preset); cfg == nil {
			return fmt.Errorf("unknown preset: %s", preset)
		}
	}
	if len(args) == 1 {
		if err := config.Save(args[0], cfg); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", args[0])
		return nil
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}
