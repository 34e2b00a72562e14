package address

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sarchlab/testdata/ua"
)

// ErrDuplicateNode is returned when a node ID is registered twice.
var ErrDuplicateNode = errors.New("address: duplicate node")

// A Space is the in-memory store of the variables served by the test-data
// server. Top-level variables are kept in registration order; the children
// of composites can be resolved by ID as well.
type Space struct {
	lock  sync.RWMutex
	roots []Variable
	index map[ua.NodeID]Variable
}

// NewSpace creates an empty Space.
func NewSpace() *Space {
	return &Space{index: make(map[ua.NodeID]Variable)}
}

// Add registers a top-level variable and, for composites, its children.
func (s *Space) Add(v Variable) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	ids := []ua.NodeID{v.ID()}

	composite, isComposite := v.(*CompositeVariable)
	if isComposite {
		for _, child := range composite.children {
			ids = append(ids, child.id)
		}
	}

	for _, id := range ids {
		if _, exists := s.index[id]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
		}
	}

	s.roots = append(s.roots, v)
	s.index[v.ID()] = v

	if isComposite {
		for _, child := range composite.children {
			s.index[child.id] = child
		}
	}

	return nil
}

// MustAdd is Add that panics on error. It is meant for building fixed
// address spaces.
func (s *Space) MustAdd(v Variable) *Space {
	if err := s.Add(v); err != nil {
		panic(err)
	}

	return s
}

// Get resolves any registered node, including composite children.
func (s *Space) Get(id ua.NodeID) (Variable, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.index[id]

	return v, ok
}

// MustGet is Get that panics on unknown nodes.
func (s *Space) MustGet(id ua.NodeID) Variable {
	v, ok := s.Get(id)
	if !ok {
		panic(fmt.Sprintf("node %s not found", id))
	}

	return v
}

// Nodes returns the top-level variables in registration order.
func (s *Space) Nodes() []Variable {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]Variable(nil), s.roots...)
}

// IDs returns the IDs of every resolvable node, sorted.
func (s *Space) IDs() []ua.NodeID {
	s.lock.RLock()
	defer s.lock.RUnlock()

	ids := make([]ua.NodeID, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// Len returns the number of top-level variables.
func (s *Space) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.roots)
}
