package semantic

import (
	"testing"

	"github.com/auspexhq/auspex/pkg/callgraph"
	"github.com/auspexhq/auspex/pkg/parser"
)

// extract runs the frontend over an in-memory module set and returns the
// analyzer plus the per-file tables keyed by path.
func extract(t *testing.T, files map[string]string) (*Analyzer, map[string]*callgraph.FileTable) {
	t.Helper()

	p := parser.New()
	defer p.Close()

	a := NewAnalyzer()
	tables := make(map[string]*callgraph.FileTable, len(files))
	for path, src := range files {
		table, err := a.ExtractFile(p, []byte(src), path)
		if err != nil {
			t.Fatalf("ExtractFile(%s) error: %v", path, err)
		}
		tables[path] = table
	}
	return a, tables
}

func findFunction(t *testing.T, table *callgraph.FileTable, qualified string) callgraph.FunctionNode {
	t.Helper()
	for _, fn := range table.Functions {
		if fn.QualifiedName == qualified {
			return fn
		}
	}
	t.Fatalf("function %s not found in %s", qualified, table.File)
	return callgraph.FunctionNode{}
}

func TestExtractFunctionsAndClasses(t *testing.T) {
	_, tables := extract(t, map[string]string{
		"app.ts": `
export function greet(name: string) { return name; }
const fmt = (s: string) => s.trim();
export abstract class Shape {
  abstract area(): number;
  describe() { return "shape"; }
}
export class Circle extends Shape {
  constructor(private r: number) { super(); }
  area() { return 3.14 * this.r * this.r; }
  static unit() { return new Circle(1); }
}
`,
	})

	table := tables["app.ts"]

	greet := findFunction(t, table, "greet")
	if greet.Kind != callgraph.KindFunction || !greet.Exported {
		t.Errorf("greet kind/exported = %v/%v, want function/true", greet.Kind, greet.Exported)
	}
	if greet.ParamCount != 1 {
		t.Errorf("greet params = %d, want 1", greet.ParamCount)
	}

	fmtFn := findFunction(t, table, "fmt")
	if fmtFn.Kind != callgraph.KindArrow {
		t.Errorf("fmt kind = %v, want arrow", fmtFn.Kind)
	}
	if fmtFn.Exported {
		t.Error("fmt should not be exported")
	}

	area := findFunction(t, table, "Circle.area")
	if area.Kind != callgraph.KindMethod || area.Class != "Circle" {
		t.Errorf("Circle.area kind/class = %v/%q", area.Kind, area.Class)
	}

	ctor := findFunction(t, table, "Circle.constructor")
	if ctor.Kind != callgraph.KindConstructor {
		t.Errorf("constructor kind = %v, want constructor", ctor.Kind)
	}
}

func TestExtractPositionIDsAreStable(t *testing.T) {
	src := map[string]string{"a.ts": "function f() {}\nfunction g() { f(); }\n"}

	_, first := extract(t, src)
	_, second := extract(t, src)

	f1 := findFunction(t, first["a.ts"], "f")
	f2 := findFunction(t, second["a.ts"], "f")
	if f1.ID != f2.ID {
		t.Errorf("position id changed across runs: %v vs %v", f1.ID, f2.ID)
	}
}

func TestCallSiteClassification(t *testing.T) {
	_, tables := extract(t, map[string]string{
		"sites.ts": `
class Util {
  static log(s: string) {}
  run() {
    this.step();
  }
  step() {}
}
class Sub extends Util {
  run() {
    super.run();
  }
}
function main(repo: any) {
  helper();
  repo.save();
  Util.log("x");
  const u = new Util();
}
function helper() {}
`,
	})

	kinds := make(map[callgraph.CallSiteKind]int)
	for _, site := range tables["sites.ts"].Sites {
		kinds[site.Kind]++
	}

	want := map[callgraph.CallSiteKind]int{
		callgraph.SiteIdentifier:     1,
		callgraph.SitePropertyAccess: 1,
		callgraph.SiteThisCall:       1,
		callgraph.SiteSuperCall:      1,
		callgraph.SiteStaticMember:   1,
		callgraph.SiteNew:            1,
	}
	for kind, n := range want {
		if kinds[kind] != n {
			t.Errorf("sites of kind %s = %d, want %d", kind, kinds[kind], n)
		}
	}
}

func TestOptionalChainedCallsAreMarked(t *testing.T) {
	_, tables := extract(t, map[string]string{
		"opt.ts": `
function plain() {}
function main(hook: any, obj: any) {
  plain();
  hook?.();
  obj?.run();
}
`,
	})

	optional := make(map[string]bool)
	for _, site := range tables["opt.ts"].Sites {
		optional[site.Callee] = site.Optional
	}

	if optional["plain"] {
		t.Error("ordinary call marked optional")
	}
	if !optional["hook"] {
		t.Error("hook?.() not marked optional")
	}
	if !optional["run"] {
		t.Error("obj?.run() not marked optional")
	}
}

func TestTopLevelInstantiationRecorded(t *testing.T) {
	_, tables := extract(t, map[string]string{
		"boot.ts": `
class Server {}
const s = new Server();
`,
	})

	table := tables["boot.ts"]
	if len(table.Instantiated) != 1 || table.Instantiated[0] != "Server" {
		t.Errorf("instantiated = %v, want [Server]", table.Instantiated)
	}
	// Top-level code is not a registered function, so no call site.
	for _, site := range table.Sites {
		if site.Kind == callgraph.SiteNew {
			t.Errorf("unexpected new site outside a function: %+v", site)
		}
	}
}

func TestResolveImportDirect(t *testing.T) {
	a, tables := extract(t, map[string]string{
		"lib.ts": "export function helper() {}\n",
		"app.ts": "import { helper } from './lib';\nfunction main() { helper(); }\n",
	})

	provider := a.Provider()
	sym, ok := provider.ResolveImport("app.ts", "helper")
	if !ok {
		t.Fatal("helper did not resolve")
	}
	want := findFunction(t, tables["lib.ts"], "helper")
	if sym.Target != want.ID {
		t.Errorf("target = %v, want %v", sym.Target, want.ID)
	}
	if sym.ViaReExport {
		t.Error("direct import should not be marked via re-export")
	}
}

func TestResolveImportAliasAndDefault(t *testing.T) {
	a, tables := extract(t, map[string]string{
		"lib.ts": "export function helper() {}\nexport default function boot() {}\n",
		"app.ts": "import boot, { helper as util } from './lib';\nfunction main() { util(); boot(); }\n",
	})

	provider := a.Provider()

	sym, ok := provider.ResolveImport("app.ts", "util")
	if !ok || sym.Target != findFunction(t, tables["lib.ts"], "helper").ID {
		t.Errorf("aliased import resolved to %+v, ok=%v", sym, ok)
	}

	sym, ok = provider.ResolveImport("app.ts", "boot")
	if !ok || sym.Target != findFunction(t, tables["lib.ts"], "boot").ID {
		t.Errorf("default import resolved to %+v, ok=%v", sym, ok)
	}
}

func TestResolveImportThroughBarrel(t *testing.T) {
	a, tables := extract(t, map[string]string{
		"core/impl.ts":  "export function work() {}\n",
		"core/index.ts": "export * from './impl';\n",
		"app.ts":        "import { work } from './core';\nfunction main() { work(); }\n",
	})

	provider := a.Provider()
	sym, ok := provider.ResolveImport("app.ts", "work")
	if !ok {
		t.Fatal("work did not resolve through barrel")
	}
	if sym.Target != findFunction(t, tables["core/impl.ts"], "work").ID {
		t.Errorf("target = %v", sym.Target)
	}
	if !sym.ViaReExport {
		t.Error("barrel import should be marked via re-export")
	}
}

func TestResolveImportAliasCycle(t *testing.T) {
	a, _ := extract(t, map[string]string{
		"x.ts":   "export { thing } from './y';\n",
		"y.ts":   "export { thing } from './x';\n",
		"app.ts": "import { thing } from './x';\nfunction main() { thing(); }\n",
	})

	if sym, ok := a.Provider().ResolveImport("app.ts", "thing"); ok {
		t.Errorf("cyclic alias resolved to %+v, want unresolved", sym)
	}
}

func TestTypeOnlyImport(t *testing.T) {
	a, _ := extract(t, map[string]string{
		"types.ts": "export class Config {}\n",
		"app.ts":   "import type { Config } from './types';\nfunction main(c: Config) {}\n",
	})

	sym, ok := a.Provider().ResolveImport("app.ts", "Config")
	if !ok || !sym.TypeOnly {
		t.Errorf("type-only import = %+v, ok=%v, want TypeOnly", sym, ok)
	}
}

func TestNamespaceImport(t *testing.T) {
	a, tables := extract(t, map[string]string{
		"utils.ts": "export function fmt() {}\n",
		"app.ts":   "import * as utils from './utils';\nfunction main() { utils.fmt(); }\n",
	})

	provider := a.Provider()
	if !provider.IsNamespaceImport("app.ts", "utils") {
		t.Fatal("utils should be a namespace import")
	}
	sym, ok := provider.ResolveNamespaceMember("app.ts", "utils", "fmt")
	if !ok || sym.Target != findFunction(t, tables["utils.ts"], "fmt").ID {
		t.Errorf("namespace member = %+v, ok=%v", sym, ok)
	}
}

func TestClassHierarchyAcrossFiles(t *testing.T) {
	a, _ := extract(t, map[string]string{
		"base.ts": "export abstract class Repo { abstract save(): void; }\n",
		"pg.ts":   "import { Repo } from './base';\nexport class PgRepo extends Repo { save() {} }\n",
	})

	provider := a.Provider()

	base, ok := provider.ClassByName("pg.ts", "Repo")
	if !ok || base.File != "base.ts" || !base.Abstract {
		t.Fatalf("ClassByName(Repo) = %+v, ok=%v", base, ok)
	}
	if m, ok := base.Methods["save"]; !ok || !m.Abstract {
		t.Errorf("Repo.save = %+v, want abstract", m)
	}

	subs := provider.Subclasses("Repo")
	if len(subs) != 1 || subs[0].Name != "PgRepo" {
		t.Errorf("Subclasses(Repo) = %+v, want [PgRepo]", subs)
	}
}
