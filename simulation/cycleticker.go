package simulation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sarchlab/testdata/datarecording"
	"github.com/sarchlab/testdata/timing"
)

// A cycleTicker ticks on secondary events, after every node of the cycle has
// been regenerated. It counts finished cycles and flushes the recorder so
// that readers see whole cycles.
type cycleTicker struct {
	*timing.TickScheduler

	recorder datarecording.DataRecorder
	logger   *slog.Logger

	lock   sync.Mutex
	ctx    context.Context
	cycles uint64
}

func newCycleTicker(
	engine timing.Engine,
	freq timing.Freq,
	recorder datarecording.DataRecorder,
	logger *slog.Logger,
) *cycleTicker {
	t := &cycleTicker{
		recorder: recorder,
		logger:   logger,
		ctx:      context.Background(),
	}
	t.TickScheduler = timing.NewSecondaryTickScheduler(t, engine, freq)

	return t
}

func (t *cycleTicker) start(ctx context.Context) {
	t.lock.Lock()
	t.ctx = ctx
	t.lock.Unlock()

	t.TickNow()
}

func (t *cycleTicker) finished() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.cycles
}

// Handle closes the current cycle and schedules the next one.
func (t *cycleTicker) Handle(_ timing.Event) error {
	t.lock.Lock()
	ctx := t.ctx
	t.lock.Unlock()

	if ctx.Err() != nil {
		return nil
	}

	t.lock.Lock()
	t.cycles++
	t.lock.Unlock()

	if t.recorder != nil {
		if err := t.recorder.Flush(); err != nil {
			t.logger.Error("failed to flush recording", "error", err)
		}
	}

	t.TickLater()

	return nil
}
