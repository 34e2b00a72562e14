// Package generation drives the regeneration of address-space nodes from a
// data source.
//
// Generate is the only entry point a scheduler needs. Calls for different
// nodes run in parallel; calls for the same node are serialized by the
// node's own lock, so the engine holds no global lock.
package generation

import (
	"context"
	"sync"
	"time"

	"github.com/sarchlab/testdata/address"
	"github.com/sarchlab/testdata/hooking"
	"github.com/sarchlab/testdata/idgen"
	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/ua"
)

// Hook positions raised by the Engine.
var (
	// HookPosBeforeGenerate fires before a node is regenerated. Item is the
	// node ID, Detail the cycle ID.
	HookPosBeforeGenerate = &hooking.HookPos{Name: "BeforeGenerate"}

	// HookPosAfterGenerate fires after a node is regenerated. Item is the
	// node ID, Detail a Result.
	HookPosAfterGenerate = &hooking.HookPos{Name: "AfterGenerate"}

	// HookPosNodeChanged fires once per regeneration that touched the node.
	// Item is the node ID, Detail a Change.
	HookPosNodeChanged = &hooking.HookPos{Name: "NodeChanged"}
)

// Result describes one finished generation.
type Result struct {
	CycleID  string
	NodeID   ua.NodeID
	Status   ua.StatusCode
	Value    ua.DataValue
	Start    time.Time
	Duration time.Duration
}

// Change is the detail of a HookPosNodeChanged hook.
type Change struct {
	CycleID        string
	IncludeSubtree bool
}

// Engine regenerates the nodes of an address space.
type Engine struct {
	*hooking.HookableBase

	space          *address.Space
	clock          func() time.Time
	includeSubtree bool
	ids            idgen.Generator

	sourceLock sync.RWMutex
	source     source.SystemValueSource
}

// Option configures an Engine.
type Option func(*Engine)

// WithSource sets the data source. Without one every generation reports
// StatusServiceUnavailable.
func WithSource(src source.SystemValueSource) Option {
	return func(e *Engine) {
		e.source = src
	}
}

// WithClock replaces the clock that stamps generated values.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithIncludeSubtree makes change notifications cover the children of
// composite nodes.
func WithIncludeSubtree(include bool) Option {
	return func(e *Engine) {
		e.includeSubtree = include
	}
}

// WithIDGenerator replaces the generator of cycle IDs.
func WithIDGenerator(g idgen.Generator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// NewEngine creates an Engine serving the nodes of space.
func NewEngine(space *address.Space, opts ...Option) *Engine {
	if space == nil {
		panic("generation engine requires an address space")
	}

	e := &Engine{
		HookableBase:   hooking.NewHookableBase(),
		space:          space,
		clock:          func() time.Time { return time.Now().UTC() },
		includeSubtree: true,
		ids:            idgen.NewSequential(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Space returns the address space the engine serves.
func (e *Engine) Space() *address.Space {
	return e.space
}

// Source returns the current data source, or nil.
func (e *Engine) Source() source.SystemValueSource {
	e.sourceLock.RLock()
	defer e.sourceLock.RUnlock()

	return e.source
}

// SetSource plugs a data source in, or takes it out of service with nil.
// Generations already running keep the source they started with.
func (e *Engine) SetSource(src source.SystemValueSource) {
	e.sourceLock.Lock()
	defer e.sourceLock.Unlock()

	e.source = src
}

// Generate regenerates one node and returns the status of the write.
func (e *Engine) Generate(ctx context.Context, id ua.NodeID) ua.StatusCode {
	return e.generate(ctx, id).Status
}

// GenerateResult is Generate that returns the full Result.
func (e *Engine) GenerateResult(ctx context.Context, id ua.NodeID) Result {
	return e.generate(ctx, id)
}

func (e *Engine) generate(ctx context.Context, id ua.NodeID) Result {
	cycleID := e.ids.Generate()
	result := Result{
		CycleID: cycleID,
		NodeID:  id,
		Start:   time.Now(),
	}

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeGenerate,
		Item:   id,
		Detail: cycleID,
	})

	node, ok := e.space.Get(id)
	if ok {
		sc := &address.SystemContext{
			Source:         e.Source(),
			Now:            e.clock,
			Notifier:       &changeNotifier{engine: e, cycleID: cycleID},
			IncludeSubtree: e.includeSubtree,
		}

		result.Status = node.GenerateValues(ctx, sc)
		result.Value = node.Read()
	} else {
		result.Status = ua.StatusBadNodeIDUnknown
	}

	result.Duration = time.Since(result.Start)

	e.InvokeHook(hooking.HookCtx{
		Domain: e,
		Pos:    HookPosAfterGenerate,
		Item:   id,
		Detail: result,
	})

	return result
}

// GenerateAll regenerates the given nodes, or every top-level node when ids
// is empty, with one goroutine per node.
func (e *Engine) GenerateAll(
	ctx context.Context,
	ids ...ua.NodeID,
) map[ua.NodeID]ua.StatusCode {
	if len(ids) == 0 {
		for _, n := range e.space.Nodes() {
			ids = append(ids, n.ID())
		}
	}

	var (
		wg      sync.WaitGroup
		lock    sync.Mutex
		results = make(map[ua.NodeID]ua.StatusCode, len(ids))
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id ua.NodeID) {
			defer wg.Done()

			status := e.Generate(ctx, id)

			lock.Lock()
			results[id] = status
			lock.Unlock()
		}(id)
	}

	wg.Wait()

	return results
}

type changeNotifier struct {
	engine  *Engine
	cycleID string
}

func (n *changeNotifier) NodeChanged(id ua.NodeID, includeSubtree bool) {
	n.engine.InvokeHook(hooking.HookCtx{
		Domain: n.engine,
		Pos:    HookPosNodeChanged,
		Item:   id,
		Detail: Change{CycleID: n.cycleID, IncludeSubtree: includeSubtree},
	})
}
