package ua

import (
	"fmt"
	"strings"
	"time"
)

// DataType identifies the built-in type of a variable's value.
type DataType int

// Built-in data types supported by the test-data server.
const (
	DataTypeUnknown DataType = iota
	DataTypeBoolean
	DataTypeInt32
	DataTypeInt64
	DataTypeUInt32
	DataTypeFloat
	DataTypeDouble
	DataTypeString
	DataTypeDateTime
	DataTypeByteString
	DataTypeStructure
)

// ValueRank of a scalar.
const ValueRankScalar = -1

// ValueRank of a one-dimensional array.
const ValueRankOneDimension = 1

var dataTypeNames = map[DataType]string{
	DataTypeUnknown:    "Unknown",
	DataTypeBoolean:    "Boolean",
	DataTypeInt32:      "Int32",
	DataTypeInt64:      "Int64",
	DataTypeUInt32:     "UInt32",
	DataTypeFloat:      "Float",
	DataTypeDouble:     "Double",
	DataTypeString:     "String",
	DataTypeDateTime:   "DateTime",
	DataTypeByteString: "ByteString",
	DataTypeStructure:  "Structure",
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType converts a data type name, case-insensitively.
func ParseDataType(s string) (DataType, error) {
	for t, name := range dataTypeNames {
		if t != DataTypeUnknown && strings.EqualFold(name, s) {
			return t, nil
		}
	}

	return DataTypeUnknown, fmt.Errorf("unknown data type %q", s)
}

// Accepts returns true if v can be stored in a scalar of this data type.
func (t DataType) Accepts(v any) bool {
	switch t {
	case DataTypeBoolean:
		_, ok := v.(bool)
		return ok
	case DataTypeInt32:
		_, ok := v.(int32)
		return ok
	case DataTypeInt64:
		_, ok := v.(int64)
		return ok
	case DataTypeUInt32:
		_, ok := v.(uint32)
		return ok
	case DataTypeFloat:
		_, ok := v.(float32)
		return ok
	case DataTypeDouble:
		_, ok := v.(float64)
		return ok
	case DataTypeString:
		_, ok := v.(string)
		return ok
	case DataTypeDateTime:
		_, ok := v.(time.Time)
		return ok
	case DataTypeByteString:
		_, ok := v.([]byte)
		return ok
	case DataTypeStructure:
		_, ok := v.(Structure)
		return ok
	default:
		return false
	}
}

// AcceptsRank checks v against the data type and the value rank. A nil value
// is always accepted and clears the slot.
func (t DataType) AcceptsRank(v any, valueRank int) bool {
	if v == nil {
		return true
	}

	if valueRank == ValueRankScalar {
		return t.Accepts(v)
	}

	elems, ok := v.([]any)
	if !ok {
		return false
	}

	for _, e := range elems {
		if !t.Accepts(e) {
			return false
		}
	}

	return true
}

// Zero returns the default value of a scalar of the data type.
func (t DataType) Zero() any {
	switch t {
	case DataTypeBoolean:
		return false
	case DataTypeInt32:
		return int32(0)
	case DataTypeInt64:
		return int64(0)
	case DataTypeUInt32:
		return uint32(0)
	case DataTypeFloat:
		return float32(0)
	case DataTypeDouble:
		return float64(0)
	case DataTypeString:
		return ""
	case DataTypeDateTime:
		return time.Time{}
	case DataTypeByteString:
		return []byte{}
	default:
		return nil
	}
}
