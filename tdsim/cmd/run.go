package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/testdata/hooking"
	"github.com/sarchlab/testdata/simulation"
	"github.com/sarchlab/testdata/timing"
	"github.com/sarchlab/testdata/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Regenerate every node once per cycle.",
	Long: "`run --until 10s` regenerates every top-level node once per " +
		"cycle for 10 seconds of virtual time, and `run --cycles 5` for " +
		"five cycles. Without either it runs until interrupted. Virtual " +
		"time follows the wall clock unless --fast is set.",
	Args: cobra.NoArgs,
	RunE: runSimulation,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("until", "",
		"virtual time to stop at, as a duration or in seconds")
	runCmd.Flags().Int("cycles", 0, "number of cycles to run instead of --until")
	runCmd.Flags().Bool("fast", false, "run as fast as possible")
	runCmd.Flags().String("db", "", "record generations to this SQLite file")
	runCmd.Flags().Bool("no-record", false, "do not record generations")
	runCmd.Flags().Bool("monitor", false, "serve the web monitor")
	runCmd.Flags().Int("port", 0, "monitor port; random if not set")
	runCmd.Flags().Bool("open-browser", false, "open the monitor in a browser")
	runCmd.Flags().String("trace", "",
		"also write every generation to this .csv or .jsonl file")
}

// openTrace creates the trace file and the hook that fills it. The returned
// function flushes and closes the file.
func openTrace(path string) (hooking.Hook, func() error, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, nil, fmt.Errorf("trace file %s already exists", path)
	}

	var newHook func(f *os.File) (hooking.Hook, func() error)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		newHook = func(f *os.File) (hooking.Hook, func() error) {
			h := tracing.NewCSVHook(f)
			return h, h.Flush
		}
	case ".json", ".jsonl":
		newHook = func(f *os.File) (hooking.Hook, func() error) {
			h := tracing.NewJSONHook(f)
			return h, h.Err
		}
	default:
		return nil, nil, fmt.Errorf("unknown trace format %q", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}

	hook, flush := newHook(f)

	return hook, func() error { return errors.Join(flush(), f.Close()) }, nil
}

// parseUntil accepts durations such as "10s" or "1m30s" and plain numbers of
// seconds. An empty string means forever.
func parseUntil(s string) (timing.VTimeInSec, error) {
	if s == "" {
		return timing.Forever, nil
	}

	var seconds float64

	d, err := time.ParseDuration(s)
	if err == nil {
		seconds = d.Seconds()
	} else {
		seconds, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid --until %q", s)
		}
	}

	if seconds < 0 {
		return 0, fmt.Errorf("invalid --until %q: negative", s)
	}

	return timing.VTimeInSec(seconds), nil
}

func buildSimulation(cmd *cobra.Command) (simulation.Builder, error) {
	flags := cmd.Flags()

	b := simulation.MakeBuilder().
		WithFreq(cfg.Freq()).
		WithIncludeSubtree(cfg.IncludeSubtreeOrDefault()).
		WithSource(newSource(cfg)).
		WithLogger(slog.Default())

	if cfg.Parallel {
		b = b.WithParallelEngine()
	}

	if fast, _ := flags.GetBool("fast"); !fast {
		b = b.WithRealTime()
	}

	recording, dbPath := cfg.Recording.Enabled, cfg.Recording.Path
	if flags.Changed("db") {
		dbPath, _ = flags.GetString("db")
		recording = true
	}

	if noRecord, _ := flags.GetBool("no-record"); noRecord {
		recording = false
	}

	switch {
	case !recording:
		b = b.WithoutRecording()
	case dbPath != "":
		b = b.WithOutputFileName(strings.TrimSuffix(dbPath, ".sqlite3"))
	}

	monitor, port := cfg.Monitoring.Enabled, cfg.Monitoring.Port
	openBrowser := cfg.Monitoring.OpenBrowser

	if flags.Changed("monitor") {
		monitor, _ = flags.GetBool("monitor")
	}

	if flags.Changed("port") {
		port, _ = flags.GetInt("port")
		monitor = true
	}

	if flags.Changed("open-browser") {
		openBrowser, _ = flags.GetBool("open-browser")
	}

	if !monitor {
		if openBrowser {
			return b, errors.New("--open-browser requires the monitor")
		}

		return b.WithoutMonitoring(), nil
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	b = b.WithMetrics(reg)

	if port > 0 {
		b = b.WithMonitorPort(port)
	}

	if openBrowser {
		b = b.WithBrowser()
	}

	return b, nil
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	untilFlag, _ := cmd.Flags().GetString("until")
	cycles, _ := cmd.Flags().GetInt("cycles")

	if cmd.Flags().Changed("cycles") {
		if untilFlag != "" {
			return errors.New("--cycles and --until cannot be used together")
		}

		if cycles < 1 {
			return fmt.Errorf("invalid --cycles %d", cycles)
		}
	}

	until, err := parseUntil(untilFlag)
	if err != nil {
		return err
	}

	builder, err := buildSimulation(cmd)
	if err != nil {
		return err
	}

	closeTrace := func() error { return nil }
	if tracePath, _ := cmd.Flags().GetString("trace"); tracePath != "" {
		var hook hooking.Hook

		hook, closeTrace, err = openTrace(tracePath)
		if err != nil {
			return err
		}

		builder = builder.WithHook(hook)
	}

	space, err := cfg.BuildSpace()
	if err != nil {
		return err
	}

	s, err := builder.Build(space)
	if err != nil {
		return errors.Join(err, closeTrace())
	}

	atexit.Register(func() { _ = s.Terminate() })

	ctx, stop := signal.NotifyContext(cmd.Context(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	if cycles > 0 {
		runErr = s.RunCycles(ctx, cycles)
	} else {
		runErr = s.Run(ctx, until)
	}
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	printSummary(cmd.OutOrStdout(), s)

	if path := s.OutputPath(); path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "recorded to %s\n", path)
	}

	return errors.Join(runErr, s.Terminate(), closeTrace())
}

func printSummary(out io.Writer, s *simulation.Simulation) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tGENERATIONS\tLAST STATUS\tAVERAGE TIME")

	for _, t := range s.Tickers() {
		var avg time.Duration
		if stats, ok := s.Stats().Node(t.NodeID()); ok {
			avg = stats.AverageTime
		}

		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			t.NodeID(), t.Ticks(), t.LastStatus(), avg)
	}

	_ = w.Flush()
}
