package timing

import (
	"container/heap"
	"sync"
)

// EventQueue is a queue of events ordered by time. Events of the same time
// come out in the order they were pushed.
type EventQueue interface {
	Push(evt Event)
	Pop() Event
	Len() int
	Peek() Event
}

type queuedEvent struct {
	evt Event
	seq uint64
}

// heapEventQueue provides a thread safe event queue
type heapEventQueue struct {
	sync.Mutex
	events  eventHeap
	nextSeq uint64
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() EventQueue {
	q := &heapEventQueue{}
	heap.Init(&q.events)

	return q
}

func (q *heapEventQueue) Push(evt Event) {
	q.Lock()
	defer q.Unlock()

	heap.Push(&q.events, queuedEvent{evt: evt, seq: q.nextSeq})
	q.nextSeq++
}

// Pop removes the earliest event. It returns nil on an empty queue.
func (q *heapEventQueue) Pop() Event {
	q.Lock()
	defer q.Unlock()

	if len(q.events) == 0 {
		return nil
	}

	return heap.Pop(&q.events).(queuedEvent).evt
}

func (q *heapEventQueue) Len() int {
	q.Lock()
	defer q.Unlock()

	return len(q.events)
}

// Peek returns the earliest event without removing it, or nil.
func (q *heapEventQueue) Peek() Event {
	q.Lock()
	defer q.Unlock()

	if len(q.events) == 0 {
		return nil
	}

	return q.events[0].evt
}

type eventHeap []queuedEvent

func (h eventHeap) Len() int {
	return len(h)
}

func (h eventHeap) Less(i, j int) bool {
	ti, tj := h[i].evt.Time(), h[j].evt.Time()
	if ti != tj {
		return ti < tj
	}

	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queuedEvent))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	*h = old[:n-1]

	return evt
}
