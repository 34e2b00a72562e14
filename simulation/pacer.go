package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/sarchlab/testdata/hooking"
	"github.com/sarchlab/testdata/timing"
)

// A realTimePacer holds every event back until the wall clock reaches the
// event time, so that virtual seconds take real seconds.
type realTimePacer struct {
	epoch time.Time

	lock sync.Mutex
	ctx  context.Context
}

func newRealTimePacer(epoch time.Time) *realTimePacer {
	return &realTimePacer{epoch: epoch, ctx: context.Background()}
}

func (p *realTimePacer) setContext(ctx context.Context) {
	p.lock.Lock()
	p.ctx = ctx
	p.lock.Unlock()
}

// Func sleeps before each event.
func (p *realTimePacer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != timing.HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(timing.Event)
	if !ok {
		return
	}

	at := p.epoch.Add(time.Duration(float64(evt.Time()) * float64(time.Second)))

	wait := time.Until(at)
	if wait <= 0 {
		return
	}

	p.lock.Lock()
	runCtx := p.ctx
	p.lock.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-runCtx.Done():
	}
}
