package timing

import (
	"log"
	"reflect"
	"sync"

	"github.com/sarchlab/testdata/hooking"
)

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	*hooking.HookableBase
	endHandlers

	timeLock       sync.RWMutex
	time           VTimeInSec
	queue          EventQueue
	secondaryQueue EventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase:   hooking.NewHookableBase(),
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
	}
}

// Schedule register an event to be happen in the future
func (e *SerialEngine) Schedule(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"cannot schedule event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now)
	}

	if evt.IsSecondary() {
		e.secondaryQueue.Push(evt)
		return
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() VTimeInSec {
	e.timeLock.RLock()
	defer e.timeLock.RUnlock()

	return e.time
}

func (e *SerialEngine) writeNow(t VTimeInSec) {
	e.timeLock.Lock()
	e.time = t
	e.timeLock.Unlock()
}

// Run processes all the events scheduled in the SerialEngine
func (e *SerialEngine) Run() error {
	return e.RunUntil(Forever)
}

// RunUntil processes the events scheduled no later than until.
func (e *SerialEngine) RunUntil(until VTimeInSec) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		e.pauseLock.Lock()

		evt := e.nextEvent(until)
		if evt == nil {
			e.pauseLock.Unlock()
			e.advanceTo(until)

			return nil
		}

		e.runEvent(evt)

		e.pauseLock.Unlock()
	}
}

func (e *SerialEngine) runEvent(evt Event) {
	now := e.readNow()
	if evt.Time() < now {
		log.Panicf(
			"cannot run event in the past, evt %s @ %.10f, now %.10f",
			reflect.TypeOf(evt), evt.Time(), now,
		)
	}
	e.writeNow(evt.Time())

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	_ = evt.Handler().Handle(evt)

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)
}

// advanceTo moves the clock to until when events remain beyond it, so that
// the next run starts where this one stopped.
func (e *SerialEngine) advanceTo(until VTimeInSec) {
	if until == Forever {
		return
	}

	if e.queue.Len() == 0 && e.secondaryQueue.Len() == 0 {
		return
	}

	if until > e.readNow() {
		e.writeNow(until)
	}
}

// nextEvent pops the earliest event that is not later than until. Primary
// events win ties.
func (e *SerialEngine) nextEvent(until VTimeInSec) Event {
	primary := e.queue.Peek()
	secondary := e.secondaryQueue.Peek()

	var q EventQueue
	switch {
	case primary == nil && secondary == nil:
		return nil
	case secondary == nil:
		q = e.queue
	case primary == nil:
		q = e.secondaryQueue
	case primary.Time() <= secondary.Time():
		q = e.queue
	default:
		q = e.secondaryQueue
	}

	if q.Peek().Time() > until {
		return nil
	}

	return q.Pop()
}

// Pause prevents the SerialEngine to trigger more events.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the SerialEngine to trigger more events.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the time of the event being run, or of the last one.
func (e *SerialEngine) CurrentTime() VTimeInSec {
	return e.readNow()
}

// Finished calls all the registered SimulationEndHandlers.
func (e *SerialEngine) Finished() {
	e.finish(e.readNow())
}

var _ Engine = (*SerialEngine)(nil)
