package tracing

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/hooking"
)

// generationLine is how a finished generation is written by the writer
// hooks.
type generationLine struct {
	CycleID         string `json:"cycle_id"`
	NodeID          string `json:"node_id"`
	Status          string `json:"status"`
	Value           string `json:"value"`
	SourceTimestamp string `json:"source_timestamp"`
	DurationNano    int64  `json:"duration_ns"`
}

func makeGenerationLine(r generation.Result) generationLine {
	ts := ""
	if !r.Value.SourceTimestamp.IsZero() {
		ts = r.Value.SourceTimestamp.UTC().Format(time.RFC3339Nano)
	}

	return generationLine{
		CycleID:         r.CycleID,
		NodeID:          string(r.NodeID),
		Status:          r.Status.String(),
		Value:           fmt.Sprint(r.Value.Value),
		SourceTimestamp: ts,
		DurationNano:    int64(r.Duration),
	}
}

func resultOf(ctx hooking.HookCtx) (generation.Result, bool) {
	if ctx.Pos != generation.HookPosAfterGenerate {
		return generation.Result{}, false
	}

	r, ok := ctx.Detail.(generation.Result)

	return r, ok
}

// JSONHook writes one JSON object per line for every finished generation.
type JSONHook struct {
	lock sync.Mutex
	enc  *json.Encoder
	err  error
}

// NewJSONHook creates a hook that writes to w.
func NewJSONHook(w io.Writer) *JSONHook {
	return &JSONHook{enc: json.NewEncoder(w)}
}

// Func writes the generation.
func (h *JSONHook) Func(ctx hooking.HookCtx) {
	r, ok := resultOf(ctx)
	if !ok {
		return
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	if h.err != nil {
		return
	}

	h.err = h.enc.Encode(makeGenerationLine(r))
}

// Err returns the first write error. Nothing is written after it.
func (h *JSONHook) Err() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	return h.err
}

// CSVHook writes a CSV row for every finished generation. Rows are buffered
// until Flush.
type CSVHook struct {
	lock        sync.Mutex
	w           *csv.Writer
	wroteHeader bool
}

// NewCSVHook creates a hook that writes to w.
func NewCSVHook(w io.Writer) *CSVHook {
	return &CSVHook{w: csv.NewWriter(w)}
}

// Func writes the generation.
func (h *CSVHook) Func(ctx hooking.HookCtx) {
	r, ok := resultOf(ctx)
	if !ok {
		return
	}

	line := makeGenerationLine(r)

	h.lock.Lock()
	defer h.lock.Unlock()

	if !h.wroteHeader {
		_ = h.w.Write([]string{
			"CycleID", "NodeID", "Status", "Value", "SourceTimestamp", "DurationNano",
		})
		h.wroteHeader = true
	}

	_ = h.w.Write([]string{
		line.CycleID,
		line.NodeID,
		line.Status,
		line.Value,
		line.SourceTimestamp,
		strconv.FormatInt(line.DurationNano, 10),
	})
}

// Flush writes the buffered rows and returns the first write error.
func (h *CSVHook) Flush() error {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.w.Flush()

	return h.w.Error()
}
