// Package address holds the variable nodes of the test-data address space
// and the logic that regenerates their values.
package address

import (
	"context"
	"errors"
	"time"

	"github.com/sarchlab/testdata/source"
	"github.com/sarchlab/testdata/ua"
)

// ChangeNotifier receives one notification per regeneration of a node.
type ChangeNotifier interface {
	NodeChanged(id ua.NodeID, includeSubtree bool)
}

// SystemContext carries what a node needs to regenerate itself. A nil Source
// means the data source is out of service.
type SystemContext struct {
	Source         source.SystemValueSource
	Now            func() time.Time
	Notifier       ChangeNotifier
	IncludeSubtree bool
}

func (sc *SystemContext) source() (source.SystemValueSource, bool) {
	if sc == nil || sc.Source == nil {
		return nil, false
	}

	return sc.Source, true
}

func (sc *SystemContext) now() time.Time {
	if sc.Now == nil {
		return time.Now().UTC()
	}

	return sc.Now()
}

// timestampAfter never lets a regenerated value travel back in time.
func (sc *SystemContext) timestampAfter(prev time.Time) time.Time {
	now := sc.now()
	if now.Before(prev) {
		return prev
	}

	return now
}

func (sc *SystemContext) notify(id ua.NodeID) {
	if sc.Notifier == nil {
		return
	}

	sc.Notifier.NodeChanged(id, sc.IncludeSubtree)
}

// readSource turns a source failure into the status of the generation.
func readSource(
	ctx context.Context,
	src source.SystemValueSource,
	node ua.NodeDescriptor,
) (any, ua.StatusCode) {
	v, err := src.ReadValue(ctx, node)

	var statusErr *source.StatusError
	switch {
	case errors.As(err, &statusErr):
		return nil, statusErr.Code
	case err != nil, v == nil:
		return nil, ua.StatusServiceUnavailable
	}

	return v, ua.StatusGood
}
