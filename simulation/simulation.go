// Package simulation drives periodic regeneration of an address space on a
// virtual-time engine, with optional recording and monitoring.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/datarecording"
	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/idgen"
	"github.com/sarchlab/testdata/monitoring"
	"github.com/sarchlab/testdata/timing"
	"github.com/sarchlab/testdata/tracing"
)

// A Simulation regenerates every top-level node of its address space once
// per cycle.
type Simulation struct {
	id         string
	freq       timing.Freq
	engine     timing.Engine
	generator  *generation.Engine
	recorder   datarecording.DataRecorder
	outputPath string
	monitor    *monitoring.Monitor
	logger     *slog.Logger
	pacer      *realTimePacer
	stats      *tracing.StatsTracer

	tickers    []*NodeTicker
	cycle      *cycleTicker
	terminated atomic.Bool
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Engine returns the timing engine.
func (s *Simulation) Engine() timing.Engine {
	return s.engine
}

// Generator returns the generation engine.
func (s *Simulation) Generator() *generation.Engine {
	return s.generator
}

// Space returns the address space.
func (s *Simulation) Space() *address.Space {
	return s.generator.Space()
}

// Recorder returns the data recorder, or nil when recording is off.
func (s *Simulation) Recorder() datarecording.DataRecorder {
	return s.recorder
}

// OutputPath returns the recording file, or "" when recording is off.
func (s *Simulation) OutputPath() string {
	return s.outputPath
}

// Monitor returns the monitor, or nil when monitoring is off.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Stats returns the per-node generation statistics.
func (s *Simulation) Stats() *tracing.StatsTracer {
	return s.stats
}

// Tickers returns the per-node tickers created by the first Run.
func (s *Simulation) Tickers() []*NodeTicker {
	return s.tickers
}

// Cycles returns how many cycles have finished.
func (s *Simulation) Cycles() uint64 {
	if s.cycle == nil {
		return 0
	}

	return s.cycle.finished()
}

func (s *Simulation) virtualClock(epoch time.Time) func() time.Time {
	return func() time.Time {
		offset := time.Duration(float64(s.engine.CurrentTime()) * float64(time.Second))
		return epoch.Add(offset)
	}
}

// Run regenerates the nodes every cycle until the virtual time until. It can
// be called again with a later time to continue. Cancelling ctx stops the
// tickers; the generations already due still finish.
func (s *Simulation) Run(ctx context.Context, until timing.VTimeInSec) error {
	if s.terminated.Load() {
		return errors.New("simulation terminated")
	}

	firstRun := len(s.tickers) == 0
	if firstRun {
		for _, node := range s.Space().Nodes() {
			s.tickers = append(s.tickers,
				NewNodeTicker(node.ID(), s.generator, s.engine, s.freq))
		}

		if len(s.tickers) > 0 {
			s.cycle = newCycleTicker(s.engine, s.freq, s.recorder, s.logger)
		}
	}

	if s.pacer != nil {
		s.pacer.setContext(ctx)
	}

	bar := s.createProgressBar(until, firstRun)

	for _, t := range s.tickers {
		t.start(ctx, bar)
	}

	if s.cycle != nil {
		s.cycle.start(ctx)
	}

	s.logger.Info("simulation running",
		"id", s.id, "from", float64(s.engine.CurrentTime()), "until", float64(until))

	err := s.engine.RunUntil(until)

	if bar != nil {
		s.monitor.CompleteProgressBar(bar)
	}

	if err != nil {
		return err
	}

	return ctx.Err()
}

// RunCycles runs n more cycles. The first run starts with the cycle at the
// current time.
func (s *Simulation) RunCycles(ctx context.Context, n int) error {
	if n < 1 {
		return fmt.Errorf("invalid cycle count %d", n)
	}

	now := s.engine.CurrentTime()

	first := s.freq.ThisTick(now)
	if len(s.tickers) > 0 {
		first = s.freq.NextTick(now)
	}

	return s.Run(ctx, s.freq.NCyclesLater(n-1, first))
}

func (s *Simulation) createProgressBar(
	until timing.VTimeInSec,
	firstRun bool,
) *monitoring.ProgressBar {
	if s.monitor == nil || until == timing.Forever {
		return nil
	}

	now := s.engine.CurrentTime()
	if until < now {
		return nil
	}

	// The tick at now already ran unless this is the first run.
	cycles := s.freq.Cycle(until) - s.freq.Cycle(now)
	if firstRun {
		cycles++
	}

	return s.monitor.CreateProgressBar("run "+s.id, cycles*uint64(len(s.tickers)))
}

// Terminate ends the simulation. It flushes and closes the recorder and
// stops the monitor.
func (s *Simulation) Terminate() error {
	if !s.terminated.CompareAndSwap(false, true) {
		return nil
	}

	s.engine.Finished()

	var errs []error
	errs = append(errs, s.closeRecorder())

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		errs = append(errs, s.monitor.Shutdown(ctx))
	}

	s.logger.Info("simulation terminated", "id", s.id)

	return errors.Join(errs...)
}

func (s *Simulation) closeRecorder() error {
	if s.recorder == nil {
		return nil
	}

	return s.recorder.Close()
}

// cycleIDs prefixes sequential IDs with the simulation ID so that records of
// different runs never collide.
type cycleIDs struct {
	prefix string
	seq    idgen.Generator
}

func newCycleIDs(simID string) *cycleIDs {
	return &cycleIDs{prefix: simID + "-", seq: idgen.NewSequential()}
}

func (c *cycleIDs) Generate() string {
	return c.prefix + c.seq.Generate()
}
