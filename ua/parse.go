package ua

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseValue converts the textual form of a value into a value of the data
// type. DateTime accepts RFC 3339 and ByteString accepts base64.
func (t DataType) ParseValue(s string) (any, error) {
	s = strings.TrimSpace(s)

	var (
		v   any
		err error
	)

	switch t {
	case DataTypeBoolean:
		v, err = strconv.ParseBool(s)
	case DataTypeInt32:
		var n int64
		n, err = strconv.ParseInt(s, 10, 32)
		v = int32(n)
	case DataTypeInt64:
		v, err = strconv.ParseInt(s, 10, 64)
	case DataTypeUInt32:
		var n uint64
		n, err = strconv.ParseUint(s, 10, 32)
		v = uint32(n)
	case DataTypeFloat:
		var f float64
		f, err = strconv.ParseFloat(s, 32)
		v = float32(f)
	case DataTypeDouble:
		v, err = strconv.ParseFloat(s, 64)
	case DataTypeString:
		v = s
	case DataTypeDateTime:
		v, err = time.Parse(time.RFC3339Nano, s)
	case DataTypeByteString:
		v, err = base64.StdEncoding.DecodeString(s)
	default:
		return nil, fmt.Errorf("cannot parse a %s value", t)
	}

	if err != nil {
		return nil, fmt.Errorf("parse %s %q: %w", t, s, err)
	}

	return v, nil
}

// ParseValueRank parses a scalar, or a comma-separated array when valueRank
// is not scalar.
func (t DataType) ParseValueRank(s string, valueRank int) (any, error) {
	if valueRank == ValueRankScalar {
		return t.ParseValue(s)
	}

	if strings.TrimSpace(s) == "" {
		return []any{}, nil
	}

	parts := strings.Split(s, ",")
	elems := make([]any, 0, len(parts))

	for _, p := range parts {
		e, err := t.ParseValue(p)
		if err != nil {
			return nil, err
		}

		elems = append(elems, e)
	}

	return elems, nil
}

// ParseValue parses the value of the described node. Composite values are
// written as "X=1, Y=2, Z=3" with every field present; array fields are not
// supported in that form.
func (d NodeDescriptor) ParseValue(s string) (any, error) {
	if !d.IsComposite() {
		return d.DataType.ParseValueRank(s, d.ValueRank)
	}

	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")

	given := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("field %q is not name=value", strings.TrimSpace(part))
		}

		given[strings.TrimSpace(name)] = value
	}

	st := make(Structure, 0, len(d.Fields))

	for _, f := range d.Fields {
		raw, ok := given[f.Name]
		if !ok {
			return nil, fmt.Errorf("missing field %s", f.Name)
		}

		if f.ValueRank != ValueRankScalar {
			return nil, fmt.Errorf("field %s: arrays are not supported", f.Name)
		}

		v, err := f.DataType.ParseValue(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}

		st = append(st, Field{Name: f.Name, Value: v})
		delete(given, f.Name)
	}

	for name := range given {
		return nil, fmt.Errorf("unknown field %s", name)
	}

	return st, nil
}
