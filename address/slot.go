package address

import (
	"context"
	"sync"
	"time"

	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/ua"
)

// A ValueSlot is a single typed value with its own access levels.
//
// A slot owned by a CompositeVariable shares the composite's state lock, so
// the composite and its children always change together.
type ValueSlot struct {
	id         ua.NodeID
	browseName string
	dataType   ua.DataType
	valueRank  int
	parent     *CompositeVariable

	state *sync.RWMutex
	accessLevels
	value      any
	status     ua.StatusCode
	timestamp  time.Time
	changeMask ChangeMask
}

// NewValueSlot creates a read-only scalar slot holding the zero value of the
// data type.
func NewValueSlot(
	id ua.NodeID,
	browseName string,
	dataType ua.DataType,
) *ValueSlot {
	return &ValueSlot{
		id:         id,
		browseName: browseName,
		dataType:   dataType,
		valueRank:  ua.ValueRankScalar,
		state:      new(sync.RWMutex),
		accessLevels: accessLevels{
			accessLevel:     ua.AccessLevelCurrentRead,
			userAccessLevel: ua.AccessLevelCurrentRead,
		},
		value:  dataType.Zero(),
		status: ua.StatusGood,
	}
}

// WithValueRank turns the slot into an array slot when rank is not scalar.
// It must be called before the slot is shared.
func (s *ValueSlot) WithValueRank(rank int) *ValueSlot {
	s.valueRank = rank
	if rank != ua.ValueRankScalar {
		s.value = []any{}
	}

	return s
}

// ID returns the node ID of the slot.
func (s *ValueSlot) ID() ua.NodeID {
	return s.id
}

// BrowseName returns the name of the slot within its parent.
func (s *ValueSlot) BrowseName() string {
	return s.browseName
}

// DataType returns the declared data type.
func (s *ValueSlot) DataType() ua.DataType {
	return s.dataType
}

// ValueRank returns the declared value rank.
func (s *ValueSlot) ValueRank() int {
	return s.valueRank
}

// Parent returns the composite that owns the slot, or nil.
func (s *ValueSlot) Parent() *CompositeVariable {
	return s.parent
}

// Descriptor describes the slot to a data source.
func (s *ValueSlot) Descriptor() ua.NodeDescriptor {
	return ua.NodeDescriptor{
		ID:        s.id,
		DataType:  s.dataType,
		ValueRank: s.valueRank,
	}
}

func (s *ValueSlot) fieldDescriptor() ua.FieldDescriptor {
	return ua.FieldDescriptor{
		Name:      s.browseName,
		DataType:  s.dataType,
		ValueRank: s.valueRank,
	}
}

// AccessLevel returns the access level of the slot.
func (s *ValueSlot) AccessLevel() ua.AccessLevel {
	s.state.RLock()
	defer s.state.RUnlock()

	return s.accessLevel
}

// UserAccessLevel returns the access level granted to the current caller
// class.
func (s *ValueSlot) UserAccessLevel() ua.AccessLevel {
	s.state.RLock()
	defer s.state.RUnlock()

	return s.userAccessLevel
}

// SetAccessLevels replaces both access levels.
func (s *ValueSlot) SetAccessLevels(accessLevel, userAccessLevel ua.AccessLevel) {
	s.state.Lock()
	defer s.state.Unlock()

	s.setAccessLevelsLocked(accessLevel, userAccessLevel)
}

func (s *ValueSlot) setAccessLevelsLocked(
	accessLevel, userAccessLevel ua.AccessLevel,
) {
	if s.accessLevel == accessLevel && s.userAccessLevel == userAccessLevel {
		return
	}

	s.accessLevel = accessLevel
	s.userAccessLevel = userAccessLevel
	s.changeMask |= ChangeMaskNonValue
}

// Read returns the value, the status and the timestamp of the last write.
func (s *ValueSlot) Read() ua.DataValue {
	s.state.RLock()
	defer s.state.RUnlock()

	return s.readLocked()
}

func (s *ValueSlot) readLocked() ua.DataValue {
	return ua.DataValue{
		Value:           copyValue(s.value),
		Status:          s.status,
		SourceTimestamp: s.timestamp,
	}
}

// Write stores the value if the slot is currently writable and the value
// matches the declared type. It returns the status of the write.
func (s *ValueSlot) Write(
	value any,
	status ua.StatusCode,
	timestamp time.Time,
) ua.StatusCode {
	s.state.Lock()
	defer s.state.Unlock()

	return s.writeLocked(value, status, timestamp)
}

func (s *ValueSlot) writeLocked(
	value any,
	status ua.StatusCode,
	timestamp time.Time,
) ua.StatusCode {
	if !s.canWrite() {
		return ua.StatusAccessDenied
	}

	if !s.accepts(value) {
		return ua.StatusBadTypeMismatch
	}

	s.storeLocked(value, status, timestamp)

	return ua.StatusGood
}

func (s *ValueSlot) accepts(value any) bool {
	return s.dataType.AcceptsRank(value, s.valueRank)
}

// storeLocked sets the value without any check. The caller has validated
// the value and holds write permission.
func (s *ValueSlot) storeLocked(
	value any,
	status ua.StatusCode,
	timestamp time.Time,
) {
	s.value = copyValue(value)
	s.status = status
	s.timestamp = timestamp
	s.changeMask |= ChangeMaskValue
}

// ChangeMask returns what changed since the last change notification.
func (s *ValueSlot) ChangeMask() ChangeMask {
	s.state.RLock()
	defer s.state.RUnlock()

	return s.changeMask
}

// GenerateValues reads a new value for the slot from the data source and
// writes it with status Good, then notifies the change.
func (s *ValueSlot) GenerateValues(
	ctx context.Context,
	sc *SystemContext,
) ua.StatusCode {
	src, ok := sc.source()
	if !ok {
		return ua.StatusServiceUnavailable
	}

	status := s.regenerate(ctx, sc, src)
	s.clearChangeMasks(sc)

	return status
}

func (s *ValueSlot) regenerate(
	ctx context.Context,
	sc *SystemContext,
	src source.SystemValueSource,
) ua.StatusCode {
	s.state.Lock()
	defer s.state.Unlock()

	restore := s.elevate()
	defer restore()

	value, status := readSource(ctx, src, s.Descriptor())
	if status != ua.StatusGood {
		return status
	}

	return s.writeLocked(value, ua.StatusGood, sc.timestampAfter(s.timestamp))
}

func (s *ValueSlot) clearChangeMasks(sc *SystemContext) {
	s.state.Lock()
	s.changeMask = ChangeMaskNone
	s.state.Unlock()

	sc.notify(s.id)
}

var _ Variable = (*ValueSlot)(nil)
