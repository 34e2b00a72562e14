// Package source provides the data sources that supply raw readings for
// regenerated nodes.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarchlab/testdata/ua"
)

// A SystemValueSource supplies the raw value of a node. The descriptor tells
// the source which node is asked for and which shape the value must take:
// a scalar, a []any array or a ua.Structure for composite nodes.
//
// ReadValue must not mutate the caller's nodes. It may block; the context
// bounds how long. An error or a nil value means no reading is available.
type SystemValueSource interface {
	ReadValue(ctx context.Context, node ua.NodeDescriptor) (any, error)
}

// ErrNoReading is returned when a source has nothing for the node.
var ErrNoReading = errors.New("source: no reading")

// StatusError is returned by a source that wants to report a specific status
// for a node instead of a value. The status is passed through to the caller
// of the generation unchanged.
type StatusError struct {
	Code ua.StatusCode
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source: node reports %s", e.Code)
}

// Func adapts an ordinary function to a SystemValueSource.
type Func func(ctx context.Context, node ua.NodeDescriptor) (any, error)

// ReadValue calls f(ctx, node).
func (f Func) ReadValue(
	ctx context.Context,
	node ua.NodeDescriptor,
) (any, error) {
	return f(ctx, node)
}
