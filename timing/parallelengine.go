package timing

import (
	"log"
	"reflect"
	"runtime"
	"sync"

	"github.com/sarchlab/testdata/hooking"
)

// A ParallelEngine runs all the events of the same time concurrently.
// Primary events of a time run in one round and the secondary events of the
// same time run in the round after.
type ParallelEngine struct {
	*hooking.HookableBase
	endHandlers

	nowLock sync.RWMutex
	now     VTimeInSec

	queue          EventQueue
	secondaryQueue EventQueue
	maxGoRoutine   int

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewParallelEngine creates a ParallelEngine that runs at most GOMAXPROCS
// events at a time.
func NewParallelEngine() *ParallelEngine {
	return &ParallelEngine{
		HookableBase:   hooking.NewHookableBase(),
		queue:          NewEventQueue(),
		secondaryQueue: NewEventQueue(),
		maxGoRoutine:   runtime.GOMAXPROCS(0),
	}
}

func (e *ParallelEngine) readNow() VTimeInSec {
	e.nowLock.RLock()
	defer e.nowLock.RUnlock()

	return e.now
}

func (e *ParallelEngine) writeNow(t VTimeInSec) {
	e.nowLock.Lock()
	e.now = t
	e.nowLock.Unlock()
}

// Schedule register an event to be happen in the future
func (e *ParallelEngine) Schedule(evt Event) {
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

// Run processes all the scheduled events.
func (e *ParallelEngine) Run() error {
	return e.RunUntil(Forever)
}

// RunUntil processes the events scheduled no later than until.
func (e *ParallelEngine) RunUntil(until VTimeInSec) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		e.pauseLock.Lock()

		queue, ok := e.determineWhatToRun(until)
		if !ok {
			e.pauseLock.Unlock()
			e.advanceTo(until)

			return nil
		}

		e.runRound(queue)

		e.pauseLock.Unlock()
	}
}

func (e *ParallelEngine) determineWhatToRun(
	until VTimeInSec,
) (EventQueue, bool) {
	primary := e.queue.Peek()
	secondary := e.secondaryQueue.Peek()

	var (
		queue EventQueue
		t     VTimeInSec
	)

	switch {
	case primary == nil && secondary == nil:
		return nil, false
	case secondary == nil,
		primary != nil && primary.Time() <= secondary.Time():
		queue, t = e.queue, primary.Time()
	default:
		queue, t = e.secondaryQueue, secondary.Time()
	}

	if t > until {
		return nil, false
	}

	if t < e.readNow() {
		log.Panicf("cannot run event in the past, @ %.10f, now %.10f",
			t, e.readNow())
	}

	e.writeNow(t)

	return queue, true
}

// runRound runs every event of the current time that is in the queue when
// the round starts.
func (e *ParallelEngine) runRound(queue EventQueue) {
	now := e.readNow()

	var batch []Event
	for {
		evt := queue.Peek()
		if evt == nil || evt.Time() != now {
			break
		}

		batch = append(batch, queue.Pop())
	}

	var wg sync.WaitGroup
	tokens := make(chan struct{}, e.maxGoRoutine)

	for _, evt := range batch {
		wg.Add(1)
		tokens <- struct{}{}

		go func(evt Event) {
			defer func() {
				<-tokens
				wg.Done()
			}()

			e.runEvent(evt)
		}(evt)
	}

	wg.Wait()
}

func (e *ParallelEngine) runEvent(evt Event) {
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

func (e *ParallelEngine) advanceTo(until VTimeInSec) {
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

// Pause will prevent the engine to move forward. Events of the round that is
// already running still finish.
func (e *ParallelEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue allows the engine to continue to make progress.
func (e *ParallelEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the time of the round being run, or of the last one.
func (e *ParallelEngine) CurrentTime() VTimeInSec {
	return e.readNow()
}

// Finished calls all the registered SimulationEndHandlers.
func (e *ParallelEngine) Finished() {
	e.finish(e.readNow())
}

var _ Engine = (*ParallelEngine)(nil)
