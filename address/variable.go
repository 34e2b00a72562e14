package address

import (
	"context"

	"github.com/sarchlab/testdata/ua"
)

// A Variable is a node whose value can be read and regenerated.
type Variable interface {
	ID() ua.NodeID
	BrowseName() string
	Descriptor() ua.NodeDescriptor
	AccessLevel() ua.AccessLevel
	UserAccessLevel() ua.AccessLevel
	Read() ua.DataValue

	// GenerateValues regenerates the node from the context's data source and
	// returns the status of the write.
	GenerateValues(ctx context.Context, sc *SystemContext) ua.StatusCode
}

// ChangeMask records what changed on a node since the last notification.
type ChangeMask uint8

// Change mask bits.
const (
	ChangeMaskNone     ChangeMask = 0
	ChangeMaskValue    ChangeMask = 1 << 0
	ChangeMaskNonValue ChangeMask = 1 << 1
)

// accessLevels is the pair of levels every variable carries. It is always
// guarded by the owning node's state lock.
type accessLevels struct {
	accessLevel     ua.AccessLevel
	userAccessLevel ua.AccessLevel
}

func (a *accessLevels) canWrite() bool {
	return a.accessLevel.CanWrite() && a.userAccessLevel.CanWrite()
}

// elevate forces both levels to read-or-write and returns the function that
// puts the saved levels back.
func (a *accessLevels) elevate() (restore func()) {
	saved := *a

	a.accessLevel = ua.AccessLevelCurrentReadOrWrite
	a.userAccessLevel = ua.AccessLevelCurrentReadOrWrite

	return func() { *a = saved }
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}

		return out
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}
