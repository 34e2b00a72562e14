package simulation

import (
	"context"
	"sync"

	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/monitoring"
	"github.com/sarchlab/testdata/timing"
	"github.com/sarchlab/testdata/ua"
)

// A NodeTicker regenerates one node on every tick.
type NodeTicker struct {
	*timing.TickScheduler

	id        ua.NodeID
	generator *generation.Engine

	lock     sync.Mutex
	ctx      context.Context
	progress *monitoring.ProgressBar
	ticks    uint64
	last     ua.StatusCode
}

// NewNodeTicker creates a ticker for the node id.
func NewNodeTicker(
	id ua.NodeID,
	generator *generation.Engine,
	engine timing.Engine,
	freq timing.Freq,
) *NodeTicker {
	t := &NodeTicker{
		id:        id,
		generator: generator,
		ctx:       context.Background(),
	}
	t.TickScheduler = timing.NewTickScheduler(t, engine, freq)

	return t
}

// NodeID returns the node the ticker regenerates.
func (t *NodeTicker) NodeID() ua.NodeID {
	return t.id
}

// Ticks returns how many times the node was regenerated.
func (t *NodeTicker) Ticks() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.ticks
}

// LastStatus returns the status of the last regeneration.
func (t *NodeTicker) LastStatus() ua.StatusCode {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.last
}

func (t *NodeTicker) start(ctx context.Context, bar *monitoring.ProgressBar) {
	t.lock.Lock()
	t.ctx = ctx
	t.progress = bar
	t.lock.Unlock()

	t.TickNow()
}

// Handle regenerates the node and schedules the next tick.
func (t *NodeTicker) Handle(_ timing.Event) error {
	t.lock.Lock()
	ctx, bar := t.ctx, t.progress
	t.lock.Unlock()

	if ctx.Err() != nil {
		return nil
	}

	status := t.generator.Generate(ctx, t.id)

	t.lock.Lock()
	t.ticks++
	t.last = status
	t.lock.Unlock()

	if bar != nil {
		bar.IncrementFinished(1)
	}

	t.TickLater()

	return nil
}
