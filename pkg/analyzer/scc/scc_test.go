package scc

import (
	"testing"

	"github.com/auspexhq/auspex/pkg/callgraph"
)

func buildRegistry(names ...string) (*callgraph.Registry, map[string]callgraph.PositionID) {
	r := callgraph.NewRegistry()
	ids := make(map[string]callgraph.PositionID)
	for i, name := range names {
		id := r.Add(callgraph.FunctionNode{
			Name:          name,
			QualifiedName: name,
			File:          "app.ts",
			StartByte:     uint32(i * 100),
			EndByte:       uint32(i*100 + 50),
		})
		ids[name] = id
	}
	return r, ids
}

func edge(from, to callgraph.PositionID) callgraph.CallEdge {
	return callgraph.CallEdge{Caller: from, Callee: to, Confidence: 1.0, Level: callgraph.LevelLocalExact}
}

func TestAnalyzeFindsMutualRecursion(t *testing.T) {
	r, ids := buildRegistry("a", "b", "c")
	edges := []callgraph.CallEdge{
		edge(ids["a"], ids["b"]),
		edge(ids["b"], ids["a"]),
		edge(ids["b"], ids["c"]),
	}

	result := Analyze(r, edges)

	if len(result.Components) != 1 {
		t.Fatalf("components = %d, want 1", len(result.Components))
	}
	comp := result.Components[0]
	if len(comp.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(comp.Members))
	}
	if !result.IsRecursive(ids["a"]) || !result.IsRecursive(ids["b"]) {
		t.Error("a and b should be recursive")
	}
	if result.IsRecursive(ids["c"]) {
		t.Error("c is not part of any cycle")
	}
}

func TestAnalyzeKeepsSelfRecursion(t *testing.T) {
	r, ids := buildRegistry("loop", "plain")
	edges := []callgraph.CallEdge{
		edge(ids["loop"], ids["loop"]),
		edge(ids["plain"], ids["loop"]),
	}

	result := Analyze(r, edges)

	if len(result.Components) != 1 {
		t.Fatalf("components = %d, want 1", len(result.Components))
	}
	if got := result.Components[0].Members; len(got) != 1 || got[0].Name != "loop" {
		t.Errorf("component = %+v, want singleton loop", got)
	}
	if !result.IsRecursive(ids["loop"]) {
		t.Error("self-recursive function must be marked recursive")
	}
	if result.IsRecursive(ids["plain"]) {
		t.Error("plain caller is not recursive")
	}
}

func TestAnalyzeSingletonWithoutSelfLoopIsNotACycle(t *testing.T) {
	r, ids := buildRegistry("a", "b")
	edges := []callgraph.CallEdge{edge(ids["a"], ids["b"])}

	result := Analyze(r, edges)

	if len(result.Components) != 0 {
		t.Errorf("components = %+v, want none for an acyclic graph", result.Components)
	}
}

func TestAnalyzeSelfLoopInsideLargerCycle(t *testing.T) {
	r, ids := buildRegistry("a", "b")
	edges := []callgraph.CallEdge{
		edge(ids["a"], ids["b"]),
		edge(ids["b"], ids["a"]),
		edge(ids["a"], ids["a"]),
	}

	result := Analyze(r, edges)

	// The self-loop on a member of a bigger component must not create a
	// second singleton component.
	if len(result.Components) != 1 {
		t.Fatalf("components = %d, want 1", len(result.Components))
	}
	if len(result.Components[0].Members) != 2 {
		t.Errorf("members = %d, want 2", len(result.Components[0].Members))
	}
}

func TestAnalyzeLongCycle(t *testing.T) {
	r, ids := buildRegistry("a", "b", "c", "d")
	edges := []callgraph.CallEdge{
		edge(ids["a"], ids["b"]),
		edge(ids["b"], ids["c"]),
		edge(ids["c"], ids["a"]),
		edge(ids["c"], ids["d"]),
	}

	result := Analyze(r, edges)

	if len(result.Components) != 1 {
		t.Fatalf("components = %d, want 1", len(result.Components))
	}
	if len(result.Components[0].Members) != 3 {
		t.Errorf("members = %d, want the 3-cycle", len(result.Components[0].Members))
	}
	// Members come back ordered by position for stable output.
	names := []string{}
	for _, m := range result.Components[0].Members {
		names = append(names, m.Name)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("members order = %v, want %v", names, want)
			break
		}
	}
}
