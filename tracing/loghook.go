// Package tracing provides hooks that observe generations without taking
// part in them.
package tracing

import (
	"context"
	"log/slog"

	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/hooking"
)

// LogHook writes one structured record per finished generation. Good
// results are logged at Debug, uncertain ones at Info and bad ones at Warn.
type LogHook struct {
	logger *slog.Logger
}

// NewLogHook creates a LogHook. A nil logger uses slog.Default().
func NewLogHook(logger *slog.Logger) *LogHook {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogHook{logger: logger}
}

// Func logs HookPosAfterGenerate results.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != generation.HookPosAfterGenerate {
		return
	}

	result, ok := ctx.Detail.(generation.Result)
	if !ok {
		return
	}

	level := slog.LevelDebug
	switch {
	case result.Status.IsBad():
		level = slog.LevelWarn
	case result.Status.IsUncertain():
		level = slog.LevelInfo
	}

	h.logger.LogAttrs(context.Background(), level, "generated",
		slog.String("node", string(result.NodeID)),
		slog.String("cycle", result.CycleID),
		slog.String("status", result.Status.String()),
		slog.Duration("duration", result.Duration),
	)
}
