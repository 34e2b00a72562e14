package ua

import (
	"fmt"
	"strings"
	"time"
)

// NodeID identifies a node in the address space, e.g. "ns=2;s=Vector".
type NodeID string

// DataValue is a value together with its quality and timestamps.
type DataValue struct {
	Value           any
	Status          StatusCode
	SourceTimestamp time.Time
	ServerTimestamp time.Time
}

func (v DataValue) String() string {
	return fmt.Sprintf("%v [%s @ %s]",
		v.Value, v.Status, v.SourceTimestamp.Format(time.RFC3339Nano))
}

// Field is one named component of a Structure.
type Field struct {
	Name  string
	Value any
}

// Structure is an ordered set of named fields, the value of a composite
// variable.
type Structure []Field

// Get returns the value of the named field.
func (s Structure) Get(name string) (any, bool) {
	for _, f := range s {
		if f.Name == name {
			return f.Value, true
		}
	}

	return nil, false
}

// Names returns the field names in order.
func (s Structure) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}

	return names
}

func (s Structure) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = fmt.Sprintf("%s=%v", f.Name, f.Value)
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

// FieldDescriptor describes one component of a composite variable.
type FieldDescriptor struct {
	Name      string
	DataType  DataType
	ValueRank int
}

// NodeDescriptor tells a data source what shape of value a node expects.
type NodeDescriptor struct {
	ID        NodeID
	DataType  DataType
	ValueRank int
	Fields    []FieldDescriptor
}

// IsComposite returns true if the node's value is a Structure.
func (d NodeDescriptor) IsComposite() bool {
	return len(d.Fields) > 0
}
