package datarecording

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/hooking"
	"github.com/sarchlab/testdata/ua"
)

// GenerationTable is the table generation records are written to.
const GenerationTable = "generation"

// GenerationRecord is one row of the generation table.
type GenerationRecord struct {
	CycleID         string
	NodeID          string
	Status          string
	StatusCode      uint32
	Value           string
	SourceTimestamp string
	StartUnixNano   int64
	DurationNano    int64
}

// MakeGenerationRecord flattens a generation result into a row.
func MakeGenerationRecord(r generation.Result) GenerationRecord {
	ts := ""
	if !r.Value.SourceTimestamp.IsZero() {
		ts = r.Value.SourceTimestamp.UTC().Format(time.RFC3339Nano)
	}

	return GenerationRecord{
		CycleID:         r.CycleID,
		NodeID:          string(r.NodeID),
		Status:          r.Status.String(),
		StatusCode:      uint32(r.Status),
		Value:           fmt.Sprint(r.Value.Value),
		SourceTimestamp: ts,
		StartUnixNano:   r.Start.UnixNano(),
		DurationNano:    int64(r.Duration),
	}
}

// GenerationHook records every finished generation.
type GenerationHook struct {
	recorder DataRecorder
}

// NewGenerationHook creates the generation table and returns a hook that
// fills it.
func NewGenerationHook(recorder DataRecorder) (*GenerationHook, error) {
	if err := recorder.CreateTable(GenerationTable, GenerationRecord{}); err != nil {
		return nil, err
	}

	return &GenerationHook{recorder: recorder}, nil
}

// Func records HookPosAfterGenerate results and ignores everything else.
func (h *GenerationHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != generation.HookPosAfterGenerate {
		return
	}

	result, ok := ctx.Detail.(generation.Result)
	if !ok {
		return
	}

	err := h.recorder.InsertData(GenerationTable, MakeGenerationRecord(result))
	if err != nil {
		slog.Error("failed to record generation",
			"node", result.NodeID, "cycle", result.CycleID, "err", err)
	}
}

// QueryGenerations reads the recorded generations of a node, or of every
// node when id is empty, oldest first.
func QueryGenerations(
	ctx context.Context,
	reader DataReader,
	id ua.NodeID,
	limit int,
) ([]GenerationRecord, int, error) {
	reader.MapTable(GenerationTable, GenerationRecord{})

	params := QueryParams{
		OrderBy: "StartUnixNano, CycleID",
		Limit:   limit,
	}
	if id != "" {
		params.Where = "NodeID = ?"
		params.Args = []any{string(id)}
	}

	rows, total, err := reader.Query(ctx, GenerationTable, params)
	if err != nil {
		return nil, 0, err
	}

	records := make([]GenerationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, *row.(*GenerationRecord))
	}

	return records, total, nil
}
