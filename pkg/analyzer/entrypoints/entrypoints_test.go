package entrypoints

import (
	"testing"

	"github.com/auspexhq/auspex/pkg/callgraph"
)

func addFn(r *callgraph.Registry, file, name, class string, exported bool, offset uint32) callgraph.PositionID {
	return r.Add(callgraph.FunctionNode{
		Name:          name,
		QualifiedName: name,
		File:          file,
		StartByte:     offset,
		EndByte:       offset + 50,
		Class:         class,
		Exported:      exported,
	})
}

func TestDetectMainAndExported(t *testing.T) {
	r := callgraph.NewRegistry()
	main := addFn(r, "src/index.ts", "main", "", false, 0)
	api := addFn(r, "src/api.ts", "handleRequest", "", true, 100)
	internal := addFn(r, "src/api.ts", "parseBody", "", false, 200)

	got := Detect(r, DefaultOptions())

	want := map[callgraph.PositionID]bool{main: true, api: true}
	if len(got) != len(want) {
		t.Fatalf("detected %d entry points, want %d", len(got), len(want))
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("unexpected entry point %v", id)
		}
		if id == internal {
			t.Error("unexported function should not be an entry point")
		}
	}
}

func TestDetectExportedDisabled(t *testing.T) {
	r := callgraph.NewRegistry()
	addFn(r, "src/api.ts", "handleRequest", "", true, 0)

	opts := DefaultOptions()
	opts.IncludeExported = false
	if got := Detect(r, opts); len(got) != 0 {
		t.Errorf("detected %d entry points, want 0", len(got))
	}
}

func TestDetectTestFiles(t *testing.T) {
	r := callgraph.NewRegistry()
	spec := addFn(r, "src/api.spec.ts", "checkParse", "", false, 0)
	suite := addFn(r, "src/__tests__/api.ts", "setup", "", false, 100)
	addFn(r, "src/api.ts", "parseBody", "", false, 200)

	opts := Options{IncludeTests: true}
	got := Detect(r, opts)

	want := map[callgraph.PositionID]bool{spec: true, suite: true}
	if len(got) != 2 {
		t.Fatalf("detected %d entry points, want 2", len(got))
	}
	for _, id := range got {
		if !want[id] {
			t.Errorf("unexpected entry point %v", id)
		}
	}
}

func TestDetectLifecycleMethods(t *testing.T) {
	r := callgraph.NewRegistry()
	mount := addFn(r, "src/view.tsx", "componentDidMount", "View", false, 0)
	// A free function named like a hook is not one.
	free := addFn(r, "src/view.tsx", "render", "", false, 100)

	got := Detect(r, Options{})

	if len(got) != 1 || got[0] != mount {
		t.Errorf("detected %v, want only the class hook %v (not %v)", got, mount, free)
	}
}

func TestDetectExtraNames(t *testing.T) {
	r := callgraph.NewRegistry()
	boot := addFn(r, "src/boot.ts", "bootstrap", "", false, 0)
	addFn(r, "src/boot.ts", "helper", "", false, 100)

	got := Detect(r, Options{Names: []string{"bootstrap"}})

	if len(got) != 1 || got[0] != boot {
		t.Errorf("detected %v, want [bootstrap]", got)
	}
}
