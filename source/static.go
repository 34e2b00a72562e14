package source

import (
	"context"
	"sync"

	"github.com/sarchlab/testdata/ua"
)

// Static returns fixed readings per node.
type Static struct {
	lock     sync.RWMutex
	readings map[ua.NodeID]any
}

// NewStatic creates a Static source with no readings.
func NewStatic() *Static {
	return &Static{readings: make(map[ua.NodeID]any)}
}

// Set fixes the reading returned for the node.
func (s *Static) Set(id ua.NodeID, value any) *Static {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.readings[id] = value

	return s
}

// Delete removes the reading of the node.
func (s *Static) Delete(id ua.NodeID) {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.readings, id)
}

// ReadValue returns the reading stored for the node.
func (s *Static) ReadValue(
	_ context.Context,
	node ua.NodeDescriptor,
) (any, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.readings[node.ID]
	if !ok {
		return nil, ErrNoReading
	}

	if err, isErr := v.(error); isErr {
		return nil, err
	}

	return v, nil
}
