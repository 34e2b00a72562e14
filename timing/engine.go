// Package timing provides the virtual-time event engines that drive periodic
// regeneration outside of any real server scheduler.
package timing

import (
	"math"

	"github.com/sarchlab/testdata/hooking"
)

// Hook positions raised by the engines. Item is the event.
var (
	HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}
	HookPosAfterEvent  = &hooking.HookPos{Name: "AfterEvent"}
)

// Forever makes RunUntil behave as Run.
const Forever = VTimeInSec(math.MaxFloat64)

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	CurrentTime() VTimeInSec
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	Schedule(e Event)
}

// A SimulationEndHandler is called after the engine finishes.
type SimulationEndHandler interface {
	Handle(now VTimeInSec)
}

// An Engine keeps the events flowing in time order.
type Engine interface {
	hooking.Hookable
	TimeTeller
	EventScheduler

	// Run processes all the events until the queue is empty.
	Run() error

	// RunUntil processes the events that happen no later than t. Later
	// events stay queued for the next run.
	RunUntil(t VTimeInSec) error

	// Pause stops the engine from triggering more events until Continue.
	Pause()

	// Continue resumes a paused engine.
	Continue()

	// RegisterSimulationEndHandler registers a handler to run by Finished.
	RegisterSimulationEndHandler(handler SimulationEndHandler)

	// Finished invokes all the registered SimulationEndHandlers.
	Finished()
}

type endHandlers struct {
	handlers []SimulationEndHandler
}

func (h *endHandlers) RegisterSimulationEndHandler(
	handler SimulationEndHandler,
) {
	h.handlers = append(h.handlers, handler)
}

func (h *endHandlers) finish(now VTimeInSec) {
	for _, handler := range h.handlers {
		handler.Handle(now)
	}
}
