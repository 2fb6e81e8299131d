package callgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// ExecutionTrace is the recorded output of an external runtime tracer.
// Events locate caller and callee by (file, line); the registry's line
// index maps them back to function nodes.
type ExecutionTrace struct {
	Events []TraceEvent `json:"events"`
}

// TraceEvent is one observed call, aggregated by the tracer.
type TraceEvent struct {
	CallerFile string `json:"caller_file"`
	CallerLine uint32 `json:"caller_line"`
	CalleeFile string `json:"callee_file"`
	CalleeLine uint32 `json:"callee_line"`
	Count      uint64 `json:"count"`
}

// LoadTrace reads an execution trace from a JSON file.
func LoadTrace(path string) (*ExecutionTrace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	var trace ExecutionTrace
	if err := json.Unmarshal(data, &trace); err != nil {
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}
	return &trace, nil
}

// traceStage confirms statically predicted edges against observed runtime
// behavior. Observed edges rise to full confidence with the runtime flag
// set. The stage only upgrades edges the static stages produced; an
// observed pair with no static edge is ignored rather than inserted. A
// trace is a witness, not a refutation: static edges absent from the trace
// keep their static confidence.
type traceStage struct {
	trace *ExecutionTrace
}

func (s *traceStage) Name() string { return "runtime_trace" }

func (s *traceStage) Run(ctx context.Context, st *PipelineState) error {
	for _, ev := range s.trace.Events {
		if err := ctx.Err(); err != nil {
			return err
		}

		caller, ok := st.Registry.ByLine(ev.CallerFile, ev.CallerLine)
		if !ok {
			continue // event outside the analyzed set
		}
		callee, ok := st.Registry.ByLine(ev.CalleeFile, ev.CalleeLine)
		if !ok {
			continue
		}
		if _, ok := st.Edges.Get(NewEdgeID(caller.ID, callee.ID)); !ok {
			continue // no static prediction to upgrade
		}

		st.Edges.Upsert(CallEdge{
			Caller:           caller.ID,
			Callee:           callee.ID,
			Confidence:       1.0,
			Level:            LevelRuntimeConfirmed,
			RuntimeConfirmed: true,
			ExecutionCount:   ev.Count,
		})
	}
	return nil
}
