package source

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sarchlab/testdata/ua"
)

// DefaultArrayLength is the number of elements generated for array nodes.
const DefaultArrayLength = 10

var words = []string{
	"Red", "Green", "Blue", "Cyan", "Magenta", "Yellow", "Black", "White",
	"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf",
}

// TestDataSystem produces pseudo-random readings of the requested shape.
// With a fixed seed and a fixed request order the readings are reproducible.
type TestDataSystem struct {
	lock        sync.Mutex
	rng         *rand.Rand
	arrayLength int
	epoch       time.Time

	frozen   bool
	last     map[ua.NodeID]any
	statuses map[ua.NodeID]ua.StatusCode
}

// NewTestDataSystem creates a generator seeded with seed.
func NewTestDataSystem(seed uint64) *TestDataSystem {
	return &TestDataSystem{
		rng:         rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		arrayLength: DefaultArrayLength,
		epoch:       time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		last:        make(map[ua.NodeID]any),
		statuses:    make(map[ua.NodeID]ua.StatusCode),
	}
}

// WithArrayLength sets the length of generated arrays.
func (s *TestDataSystem) WithArrayLength(n int) *TestDataSystem {
	if n < 0 {
		panic("array length must not be negative")
	}

	s.arrayLength = n

	return s
}

// Freeze makes the system repeat the last reading of every node that has one.
// Nodes never read before still get a fresh reading once.
func (s *TestDataSystem) Freeze() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.frozen = true
}

// Unfreeze resumes generating fresh readings.
func (s *TestDataSystem) Unfreeze() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.frozen = false
}

// SetStatus makes the node report the given status instead of a value.
// Setting ua.StatusGood clears it.
func (s *TestDataSystem) SetStatus(id ua.NodeID, code ua.StatusCode) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if code == ua.StatusGood {
		delete(s.statuses, id)
		return
	}

	s.statuses[id] = code
}

// ReadValue generates a reading for the node.
func (s *TestDataSystem) ReadValue(
	ctx context.Context,
	node ua.NodeDescriptor,
) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if code, ok := s.statuses[node.ID]; ok {
		return nil, &StatusError{Code: code}
	}

	if s.frozen {
		if v, ok := s.last[node.ID]; ok {
			return copyReading(v), nil
		}
	}

	var v any
	if node.IsComposite() {
		v = s.structure(node.Fields)
	} else {
		v = s.valueOfRank(node.DataType, node.ValueRank)
	}

	if v == nil {
		return nil, ErrNoReading
	}

	s.last[node.ID] = v

	return copyReading(v), nil
}

func (s *TestDataSystem) structure(fields []ua.FieldDescriptor) ua.Structure {
	st := make(ua.Structure, len(fields))
	for i, f := range fields {
		st[i] = ua.Field{
			Name:  f.Name,
			Value: s.valueOfRank(f.DataType, f.ValueRank),
		}
	}

	return st
}

func (s *TestDataSystem) valueOfRank(dt ua.DataType, valueRank int) any {
	if valueRank == ua.ValueRankScalar {
		return s.scalar(dt)
	}

	arr := make([]any, s.arrayLength)
	for i := range arr {
		arr[i] = s.scalar(dt)
	}

	return arr
}

func (s *TestDataSystem) scalar(dt ua.DataType) any {
	switch dt {
	case ua.DataTypeBoolean:
		return s.rng.IntN(2) == 1
	case ua.DataTypeInt32:
		return int32(s.rng.Uint32())
	case ua.DataTypeInt64:
		return int64(s.rng.Uint64())
	case ua.DataTypeUInt32:
		return s.rng.Uint32()
	case ua.DataTypeFloat:
		return float32(s.boundedDouble(math.MaxInt16))
	case ua.DataTypeDouble:
		return s.boundedDouble(math.MaxInt32)
	case ua.DataTypeString:
		return words[s.rng.IntN(len(words))]
	case ua.DataTypeDateTime:
		return s.epoch.Add(time.Duration(s.rng.Int64N(int64(100 * 365 * 24 * time.Hour))))
	case ua.DataTypeByteString:
		b := make([]byte, s.rng.IntN(16))
		for i := range b {
			b[i] = byte(s.rng.UintN(256))
		}
		return b
	default:
		return nil
	}
}

// boundedDouble returns a value in (-limit, limit) with a fractional part.
func (s *TestDataSystem) boundedDouble(limit float64) float64 {
	return (s.rng.Float64()*2 - 1) * limit
}

func copyReading(v any) any {
	switch t := v.(type) {
	case []any:
		return append([]any(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	case ua.Structure:
		st := make(ua.Structure, len(t))
		for i, f := range t {
			st[i] = ua.Field{Name: f.Name, Value: copyReading(f.Value)}
		}
		return st
	default:
		return v
	}
}
