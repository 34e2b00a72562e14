package simulation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/xid"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/datarecording"
	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/hooking"
	"github.com/sarchlab/testdata/monitoring"
	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/timing"
	"github.com/sarchlab/testdata/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	parallelEngine bool
	freq           timing.Freq
	source         source.SystemValueSource
	includeSubtree bool
	epoch          time.Time

	realTime bool

	recordingOn    bool
	recorder       datarecording.DataRecorder
	outputFileName string

	monitorOn   bool
	monitorPort int
	openBrowser bool

	registry *prometheus.Registry
	logger   *slog.Logger
	hooks    []hooking.Hook
}

// MakeBuilder creates a new builder. By default the simulation ticks at 1 Hz
// on a serial engine, records to SQLite and starts a monitor.
func MakeBuilder() Builder {
	return Builder{
		freq:           1 * timing.Hz,
		includeSubtree: true,
		recordingOn:    true,
		monitorOn:      true,
	}
}

// WithParallelEngine sets the simulation to use a parallel engine, so that
// the nodes due at the same tick are generated concurrently.
func (b Builder) WithParallelEngine() Builder {
	b.parallelEngine = true
	return b
}

// WithFreq sets how often every node is regenerated.
func (b Builder) WithFreq(freq timing.Freq) Builder {
	b.freq = freq
	return b
}

// WithSource sets the data source of the generations.
func (b Builder) WithSource(src source.SystemValueSource) Builder {
	b.source = src
	return b
}

// WithIncludeSubtree sets whether change notifications cover the children of
// composite nodes.
func (b Builder) WithIncludeSubtree(include bool) Builder {
	b.includeSubtree = include
	return b
}

// WithEpoch sets the wall-clock time that virtual time 0 maps to. Generated
// values are stamped with epoch plus the virtual time.
func (b Builder) WithEpoch(epoch time.Time) Builder {
	b.epoch = epoch
	return b
}

// WithRealTime paces the engine so that one virtual second lasts one wall
// second, starting from the epoch.
func (b Builder) WithRealTime() Builder {
	b.realTime = true
	return b
}

// WithRecorder records into the given recorder instead of a new SQLite file.
// The simulation closes it on termination.
func (b Builder) WithRecorder(recorder datarecording.DataRecorder) Builder {
	b.recorder = recorder
	return b
}

// WithoutRecording sets the simulation to not record generations.
func (b Builder) WithoutRecording() Builder {
	b.recordingOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitor in a browser once it is started.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

// WithMetrics registers the generation metrics into reg. The monitor serves
// them at /metrics.
func (b Builder) WithMetrics(reg *prometheus.Registry) Builder {
	b.registry = reg
	return b
}

// WithHook attaches an extra hook to the generation engine.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(append([]hooking.Hook(nil), b.hooks...), hook)
	return b
}

// WithLogger sets the logger of the simulation and logs every generation.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) parametersMustBeValid() {
	if err := b.freq.Validate(); err != nil {
		panic(fmt.Sprintf("invalid simulation frequency %v: %v", b.freq, err))
	}

	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if !b.monitorOn && b.openBrowser {
		panic("browser cannot be opened when monitoring is disabled")
	}

	if !b.recordingOn && (b.outputFileName != "" || b.recorder != nil) {
		panic("recorder cannot be set when recording is disabled")
	}

	if b.recorder != nil && b.outputFileName != "" {
		panic("output file cannot be set with a custom recorder")
	}
}

// Build builds the simulation serving space.
func (b Builder) Build(space *address.Space) (*Simulation, error) {
	b.parametersMustBeValid()

	s := &Simulation{
		id:     xid.New().String(),
		freq:   b.freq,
		logger: b.logger,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.engine = timing.NewSerialEngine()
	if b.parallelEngine {
		s.engine = timing.NewParallelEngine()
	}

	epoch := b.epoch
	if epoch.IsZero() {
		epoch = time.Now().UTC()
	}

	if b.realTime {
		s.pacer = newRealTimePacer(epoch)
		s.engine.AcceptHook(s.pacer)
	}

	s.generator = generation.NewEngine(space,
		generation.WithSource(b.source),
		generation.WithIncludeSubtree(b.includeSubtree),
		generation.WithClock(s.virtualClock(epoch)),
		generation.WithIDGenerator(newCycleIDs(s.id)),
	)

	s.stats = tracing.NewStatsTracer(nil)
	s.generator.AcceptHook(s.stats)
	s.generator.AcceptHook(tracing.NewLogHook(b.logger))

	if b.registry != nil {
		s.generator.AcceptHook(tracing.NewMetricsHook(b.registry))
	}

	for _, h := range b.hooks {
		s.generator.AcceptHook(h)
	}

	if err := b.buildRecorder(s); err != nil {
		return nil, err
	}

	if err := b.buildMonitor(s); err != nil {
		_ = s.closeRecorder()
		return nil, err
	}

	s.logger.Info("simulation built",
		"id", s.id,
		"nodes", len(space.Nodes()),
		"freq", float64(b.freq),
		"parallel", b.parallelEngine)

	return s, nil
}

func (b Builder) buildRecorder(s *Simulation) error {
	if !b.recordingOn {
		return nil
	}

	recorder := b.recorder
	if recorder == nil {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "tdsim_" + s.id
		}

		var err error
		recorder, err = datarecording.New(outputPath)
		if err != nil {
			return fmt.Errorf("build recorder: %w", err)
		}

		s.outputPath = datarecording.FileName(outputPath)
	}

	hook, err := datarecording.NewGenerationHook(recorder)
	if err != nil {
		_ = recorder.Close()
		return fmt.Errorf("build recorder: %w", err)
	}

	s.recorder = recorder
	s.generator.AcceptHook(hook)

	return nil
}

func (b Builder) buildMonitor(s *Simulation) error {
	if !b.monitorOn {
		return nil
	}

	s.monitor = monitoring.NewMonitor()
	if b.monitorPort > 0 {
		s.monitor.WithPortNumber(b.monitorPort)
	}

	s.monitor.RegisterEngine(s.engine)
	s.monitor.RegisterGenerator(s.generator)
	s.monitor.RegisterStats(s.stats)

	if b.registry != nil {
		s.monitor.RegisterGatherer(b.registry)
	}

	if _, err := s.monitor.StartServer(); err != nil {
		return fmt.Errorf("start monitor: %w", err)
	}

	if b.openBrowser {
		if err := s.monitor.OpenInBrowser(); err != nil {
			s.logger.Warn("cannot open browser", "err", err)
		}
	}

	return nil
}
