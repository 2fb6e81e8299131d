package callgraph

import "testing"

func regNode(file, name string, startByte, endByte, startLine, endLine uint32) FunctionNode {
	return FunctionNode{
		Name:          name,
		QualifiedName: name,
		File:          file,
		StartByte:     startByte,
		EndByte:       endByte,
		StartLine:     startLine,
		EndLine:       endLine,
		Kind:          KindFunction,
	}
}

func TestRegistryAddDerivesID(t *testing.T) {
	r := NewRegistry()
	id := r.Add(regNode("a.ts", "f", 0, 10, 1, 3))

	if id != NewPositionID("a.ts", 0, 10) {
		t.Errorf("id = %v, want derived from span", id)
	}
	if _, ok := r.ByID(id); !ok {
		t.Error("added node not found by id")
	}
	if _, ok := r.ByPosition("a.ts", 0, 10); !ok {
		t.Error("added node not found by position")
	}
}

func TestRegistryAddIsIdempotent(t *testing.T) {
	r := NewRegistry()
	n := regNode("a.ts", "f", 0, 10, 1, 3)

	first := r.Add(n)
	second := r.Add(n)

	if first != second {
		t.Errorf("ids differ across re-add: %v vs %v", first, second)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
	if got := r.InFile("a.ts"); len(got) != 1 {
		t.Errorf("InFile returned %d nodes, want 1", len(got))
	}
	if got := r.ByName("f"); len(got) != 1 {
		t.Errorf("ByName returned %d nodes, want 1", len(got))
	}
}

func TestRegistryReAddWithNewNameFixesIndex(t *testing.T) {
	r := NewRegistry()
	r.Add(regNode("a.ts", "old", 0, 10, 1, 3))
	r.Add(regNode("a.ts", "new", 0, 10, 1, 3))

	if got := r.ByName("old"); len(got) != 0 {
		t.Errorf("ByName(old) = %d nodes, want 0", len(got))
	}
	if got := r.ByName("new"); len(got) != 1 {
		t.Errorf("ByName(new) = %d nodes, want 1", len(got))
	}
}

func TestRegistryByLinePicksInnermost(t *testing.T) {
	r := NewRegistry()
	outer := r.Add(regNode("a.ts", "outer", 0, 100, 1, 20))
	inner := r.Add(regNode("a.ts", "inner", 10, 50, 5, 10))

	got, ok := r.ByLine("a.ts", 7)
	if !ok || got.ID != inner {
		t.Errorf("ByLine(7) = %v, want inner %v", got.ID, inner)
	}

	got, ok = r.ByLine("a.ts", 15)
	if !ok || got.ID != outer {
		t.Errorf("ByLine(15) = %v, want outer %v", got.ID, outer)
	}

	if _, ok := r.ByLine("a.ts", 99); ok {
		t.Error("ByLine outside any span should miss")
	}
	if _, ok := r.ByLine("b.ts", 7); ok {
		t.Error("ByLine in unknown file should miss")
	}
}

func TestRegistryAllIsDeterministic(t *testing.T) {
	r := NewRegistry()
	r.Add(regNode("b.ts", "b1", 0, 10, 1, 2))
	r.Add(regNode("a.ts", "a2", 20, 30, 5, 6))
	r.Add(regNode("a.ts", "a1", 0, 10, 1, 2))

	all := r.All()
	want := []string{"a1", "a2", "b1"}
	if len(all) != len(want) {
		t.Fatalf("All returned %d nodes, want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("All[%d] = %s, want %s", i, all[i].Name, name)
		}
	}
}
