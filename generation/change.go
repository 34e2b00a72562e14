package generation

import (
	"github.com/sarchlab/testdata/hooking"
	"github.com/sarchlab/testdata/ua"
)

// A ChangeListener is told about every node change, typically the
// subscription layer that delivers data change notifications.
type ChangeListener interface {
	OnNodeChanged(id ua.NodeID, includeSubtree bool)
}

// ChangeHook forwards HookPosNodeChanged to a ChangeListener.
type ChangeHook struct {
	listener ChangeListener
}

// NewChangeHook creates a hook that forwards node changes to the listener.
func NewChangeHook(listener ChangeListener) *ChangeHook {
	return &ChangeHook{listener: listener}
}

// Func forwards the change.
func (h *ChangeHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosNodeChanged {
		return
	}

	id, ok := ctx.Item.(ua.NodeID)
	if !ok {
		return
	}

	change, _ := ctx.Detail.(Change)
	h.listener.OnNodeChanged(id, change.IncludeSubtree)
}
