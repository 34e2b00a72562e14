package timing

import "sync"

// TickScheduler schedules the tick events of one handler, never more than
// one tick per cycle.
type TickScheduler struct {
	lock      sync.Mutex
	handler   Handler
	Freq      Freq
	Engine    Engine
	secondary bool

	nextTickTime VTimeInSec
}

// NewTickScheduler creates a scheduler for tick events.
func NewTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	return &TickScheduler{
		handler: handler,
		Engine:  engine,
		Freq:    freq,

		// Makes sure the first tick is scheduled.
		nextTickTime: -1,
	}
}

// NewSecondaryTickScheduler creates a scheduler that always schedule secondary
// tick events.
func NewSecondaryTickScheduler(
	handler Handler,
	engine Engine,
	freq Freq,
) *TickScheduler {
	t := NewTickScheduler(handler, engine, freq)
	t.secondary = true

	return t
}

// TickNow schedule a Tick event at the current time.
func (t *TickScheduler) TickNow() {
	t.lock.Lock()
	defer t.lock.Unlock()

	now := t.CurrentTime()
	if t.nextTickTime >= now {
		return
	}

	t.schedule(t.Freq.ThisTick(now))
}

// TickLater will schedule a tick event at the cycle after the now time.
func (t *TickScheduler) TickLater() {
	t.lock.Lock()
	defer t.lock.Unlock()

	next := t.Freq.NextTick(t.CurrentTime())
	if t.nextTickTime >= next {
		return
	}

	t.schedule(next)
}

func (t *TickScheduler) schedule(at VTimeInSec) {
	t.nextTickTime = at

	tick := MakeTickEvent(t.handler, at)
	tick.secondary = t.secondary

	t.Engine.Schedule(tick)
}

// CurrentTime returns the time of the engine.
func (t *TickScheduler) CurrentTime() VTimeInSec {
	return t.Engine.CurrentTime()
}
