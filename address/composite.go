package address

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/ua"
)

// A CompositeVariable is a variable whose value is a structure of named child
// slots. It owns its children: they are created with it and are only ever
// written together, under the composite's lock.
type CompositeVariable struct {
	id         ua.NodeID
	browseName string

	state sync.RWMutex
	accessLevels
	children   []*ValueSlot
	status     ua.StatusCode
	timestamp  time.Time
	changeMask ChangeMask
}

// NewCompositeVariable creates a read-only composite with one child per field.
// Child IDs are the composite ID followed by "." and the field name.
func NewCompositeVariable(
	id ua.NodeID,
	browseName string,
	fields ...ua.FieldDescriptor,
) *CompositeVariable {
	if len(fields) == 0 {
		panic("composite variable must have at least one field")
	}

	c := &CompositeVariable{
		id:         id,
		browseName: browseName,
		accessLevels: accessLevels{
			accessLevel:     ua.AccessLevelCurrentRead,
			userAccessLevel: ua.AccessLevelCurrentRead,
		},
		status: ua.StatusGood,
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			panic(fmt.Sprintf("duplicated field %q in %s", f.Name, id))
		}
		seen[f.Name] = true

		child := NewValueSlot(ChildID(id, f.Name), f.Name, f.DataType).
			WithValueRank(f.ValueRank)
		child.parent = c
		child.state = &c.state
		c.children = append(c.children, child)
	}

	c.InitializeChildren(c.accessLevel, c.userAccessLevel)

	return c
}

// NewVector creates the three-component vector of doubles X, Y and Z.
func NewVector(id ua.NodeID, browseName string) *CompositeVariable {
	return NewCompositeVariable(id, browseName,
		ua.FieldDescriptor{Name: "X", DataType: ua.DataTypeDouble, ValueRank: ua.ValueRankScalar},
		ua.FieldDescriptor{Name: "Y", DataType: ua.DataTypeDouble, ValueRank: ua.ValueRankScalar},
		ua.FieldDescriptor{Name: "Z", DataType: ua.DataTypeDouble, ValueRank: ua.ValueRankScalar},
	)
}

// ChildID derives the node ID of a composite's child.
func ChildID(parent ua.NodeID, name string) ua.NodeID {
	return ua.NodeID(string(parent) + "." + name)
}

// ID returns the node ID of the composite.
func (c *CompositeVariable) ID() ua.NodeID {
	return c.id
}

// BrowseName returns the name of the composite.
func (c *CompositeVariable) BrowseName() string {
	return c.browseName
}

// Children returns the child slots in field order.
func (c *CompositeVariable) Children() []*ValueSlot {
	return append([]*ValueSlot(nil), c.children...)
}

// Child returns the child slot with the given browse name.
func (c *CompositeVariable) Child(name string) (*ValueSlot, bool) {
	for _, child := range c.children {
		if child.browseName == name {
			return child, true
		}
	}

	return nil, false
}

// Descriptor describes the composite to a data source.
func (c *CompositeVariable) Descriptor() ua.NodeDescriptor {
	fields := make([]ua.FieldDescriptor, len(c.children))
	for i, child := range c.children {
		fields[i] = child.fieldDescriptor()
	}

	return ua.NodeDescriptor{
		ID:        c.id,
		DataType:  ua.DataTypeStructure,
		ValueRank: ua.ValueRankScalar,
		Fields:    fields,
	}
}

// AccessLevel returns the access level of the composite.
func (c *CompositeVariable) AccessLevel() ua.AccessLevel {
	c.state.RLock()
	defer c.state.RUnlock()

	return c.accessLevel
}

// UserAccessLevel returns the access level granted to the current caller
// class.
func (c *CompositeVariable) UserAccessLevel() ua.AccessLevel {
	c.state.RLock()
	defer c.state.RUnlock()

	return c.userAccessLevel
}

// SetAccessLevels replaces the composite's levels and copies them into every
// child.
func (c *CompositeVariable) SetAccessLevels(
	accessLevel, userAccessLevel ua.AccessLevel,
) {
	c.state.Lock()
	defer c.state.Unlock()

	if c.accessLevel != accessLevel || c.userAccessLevel != userAccessLevel {
		c.accessLevel = accessLevel
		c.userAccessLevel = userAccessLevel
		c.changeMask |= ChangeMaskNonValue
	}

	c.initializeChildrenLocked(accessLevel, userAccessLevel)
}

// InitializeChildren copies the given levels into every child. Calling it
// again with the same levels changes nothing.
func (c *CompositeVariable) InitializeChildren(
	accessLevel, userAccessLevel ua.AccessLevel,
) {
	c.state.Lock()
	defer c.state.Unlock()

	c.initializeChildrenLocked(accessLevel, userAccessLevel)
}

func (c *CompositeVariable) initializeChildrenLocked(
	accessLevel, userAccessLevel ua.AccessLevel,
) {
	for _, child := range c.children {
		child.setAccessLevelsLocked(accessLevel, userAccessLevel)
	}
}

// Read returns the structure assembled from the children, together with the
// status and timestamp of the last composite write.
func (c *CompositeVariable) Read() ua.DataValue {
	c.state.RLock()
	defer c.state.RUnlock()

	st := make(ua.Structure, len(c.children))
	for i, child := range c.children {
		st[i] = ua.Field{Name: child.browseName, Value: copyValue(child.value)}
	}

	return ua.DataValue{
		Value:           st,
		Status:          c.status,
		SourceTimestamp: c.timestamp,
	}
}

// Write stores every field of the structure into the matching child in one
// step. The structure must name each child exactly once.
func (c *CompositeVariable) Write(
	value ua.Structure,
	status ua.StatusCode,
	timestamp time.Time,
) ua.StatusCode {
	c.state.Lock()
	defer c.state.Unlock()

	return c.writeLocked(value, status, timestamp)
}

func (c *CompositeVariable) writeLocked(
	value ua.Structure,
	status ua.StatusCode,
	timestamp time.Time,
) ua.StatusCode {
	if !c.canWrite() {
		return ua.StatusAccessDenied
	}

	if !c.accepts(value) {
		return ua.StatusBadTypeMismatch
	}

	for _, child := range c.children {
		v, _ := value.Get(child.browseName)
		child.storeLocked(v, status, timestamp)
	}

	c.status = status
	c.timestamp = timestamp
	c.changeMask |= ChangeMaskValue

	return ua.StatusGood
}

func (c *CompositeVariable) accepts(value ua.Structure) bool {
	if len(value) != len(c.children) {
		return false
	}

	for _, child := range c.children {
		v, ok := value.Get(child.browseName)
		if !ok || !child.accepts(v) {
			return false
		}
	}

	return true
}

// ChangeMask returns what changed on the composite itself since the last
// change notification.
func (c *CompositeVariable) ChangeMask() ChangeMask {
	c.state.RLock()
	defer c.state.RUnlock()

	return c.changeMask
}

// GenerateValues regenerates the whole composite. The access levels of the
// composite and its children are opened for the duration of the write and
// restored on every path; the change is then notified once.
func (c *CompositeVariable) GenerateValues(
	ctx context.Context,
	sc *SystemContext,
) ua.StatusCode {
	src, ok := sc.source()
	if !ok {
		return ua.StatusServiceUnavailable
	}

	status := c.regenerate(ctx, sc, src)
	c.clearChangeMasks(sc)

	return status
}

func (c *CompositeVariable) regenerate(
	ctx context.Context,
	sc *SystemContext,
	src source.SystemValueSource,
) ua.StatusCode {
	c.state.Lock()
	defer c.state.Unlock()

	restore := c.elevateAll()
	defer restore()

	value, status := readSource(ctx, src, c.Descriptor())
	if status != ua.StatusGood {
		return status
	}

	st, ok := value.(ua.Structure)
	if !ok {
		return ua.StatusBadTypeMismatch
	}

	return c.writeLocked(st, ua.StatusGood, sc.timestampAfter(c.latestLocked()))
}

// latestLocked returns the newest timestamp of the composite and its
// children. Children can be regenerated on their own.
func (c *CompositeVariable) latestLocked() time.Time {
	latest := c.timestamp
	for _, child := range c.children {
		if child.timestamp.After(latest) {
			latest = child.timestamp
		}
	}

	return latest
}

// elevateAll opens the composite and its children. The returned function
// restores them in reverse order.
func (c *CompositeVariable) elevateAll() (restore func()) {
	restores := make([]func(), 0, len(c.children)+1)
	restores = append(restores, c.elevate())
	for _, child := range c.children {
		restores = append(restores, child.elevate())
	}

	return func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
}

func (c *CompositeVariable) clearChangeMasks(sc *SystemContext) {
	c.state.Lock()
	c.changeMask = ChangeMaskNone
	if sc.IncludeSubtree {
		for _, child := range c.children {
			child.changeMask = ChangeMaskNone
		}
	}
	c.state.Unlock()

	sc.notify(c.id)
}

var _ Variable = (*CompositeVariable)(nil)
