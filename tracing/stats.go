package tracing

import (
	"sort"
	"sync"
	"time"

	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/hooking"
	"github.com/sarchlab/testdata/ua"
)

// NodeFilter selects the nodes a tracer collects.
type NodeFilter func(id ua.NodeID) bool

// AllNodes is a NodeFilter that accepts every node.
func AllNodes(ua.NodeID) bool { return true }

// NodeStats summarizes the generations of one node.
type NodeStats struct {
	NodeID       ua.NodeID         `json:"node_id"`
	Count        uint64            `json:"count"`
	TotalTime    time.Duration     `json:"total_time"`
	AverageTime  time.Duration     `json:"average_time"`
	LastStatus   string            `json:"last_status"`
	StatusCounts map[string]uint64 `json:"status_counts"`
}

type nodeStats struct {
	count      uint64
	totalTime  time.Duration
	lastStatus ua.StatusCode
	statuses   map[ua.StatusCode]uint64
}

// StatsTracer collects how many generations each node had, how long they
// took and which statuses they ended with. If two generations overlap, their
// times are simply added together.
type StatsTracer struct {
	filter NodeFilter

	lock  sync.Mutex
	nodes map[ua.NodeID]*nodeStats
}

// NewStatsTracer creates a tracer that collects the nodes accepted by filter.
// A nil filter accepts every node.
func NewStatsTracer(filter NodeFilter) *StatsTracer {
	if filter == nil {
		filter = AllNodes
	}

	return &StatsTracer{
		filter: filter,
		nodes:  make(map[ua.NodeID]*nodeStats),
	}
}

// Func records a finished generation.
func (t *StatsTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != generation.HookPosAfterGenerate {
		return
	}

	result, ok := ctx.Detail.(generation.Result)
	if !ok || !t.filter(result.NodeID) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.nodes[result.NodeID]
	if !ok {
		s = &nodeStats{statuses: make(map[ua.StatusCode]uint64)}
		t.nodes[result.NodeID] = s
	}

	s.count++
	s.totalTime += result.Duration
	s.lastStatus = result.Status
	s.statuses[result.Status]++
}

// TotalCount returns the number of generations of all nodes.
func (t *StatsTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	var n uint64
	for _, s := range t.nodes {
		n += s.count
	}

	return n
}

// TotalTime returns the time spent generating all nodes.
func (t *StatsTracer) TotalTime() time.Duration {
	t.lock.Lock()
	defer t.lock.Unlock()

	var d time.Duration
	for _, s := range t.nodes {
		d += s.totalTime
	}

	return d
}

// AverageTime returns the average generation time over all nodes.
func (t *StatsTracer) AverageTime() time.Duration {
	count := t.TotalCount()
	if count == 0 {
		return 0
	}

	return t.TotalTime() / time.Duration(count)
}

// StatusCount returns how many generations ended with the status.
func (t *StatsTracer) StatusCount(status ua.StatusCode) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	var n uint64
	for _, s := range t.nodes {
		n += s.statuses[status]
	}

	return n
}

// Node returns the stats of one node.
func (t *StatsTracer) Node(id ua.NodeID) (NodeStats, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	s, ok := t.nodes[id]
	if !ok {
		return NodeStats{}, false
	}

	return s.export(id), true
}

// Snapshot returns the stats of every node, sorted by node ID.
func (t *StatsTracer) Snapshot() []NodeStats {
	t.lock.Lock()
	defer t.lock.Unlock()

	stats := make([]NodeStats, 0, len(t.nodes))
	for id, s := range t.nodes {
		stats = append(stats, s.export(id))
	}

	sort.Slice(stats, func(i, j int) bool {
		return stats[i].NodeID < stats[j].NodeID
	})

	return stats
}

func (s *nodeStats) export(id ua.NodeID) NodeStats {
	out := NodeStats{
		NodeID:       id,
		Count:        s.count,
		TotalTime:    s.totalTime,
		LastStatus:   s.lastStatus.String(),
		StatusCounts: make(map[string]uint64, len(s.statuses)),
	}

	if s.count > 0 {
		out.AverageTime = s.totalTime / time.Duration(s.count)
	}

	for status, n := range s.statuses {
		out.StatusCounts[status.String()] = n
	}

	return out
}
