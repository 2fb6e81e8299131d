package semantic

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/auspexhq/auspex/pkg/callgraph"
)

// Provider resolves symbols across module boundaries using the tables
// collected during extraction. It is an immutable snapshot: build it after
// extraction has joined, then share it freely across goroutines.
type Provider struct {
	modules map[string]*moduleTable

	// children maps a class name to its direct subclasses, with extends
	// names already resolved through imports to canonical classes.
	children map[string][]callgraph.ClassInfo
}

var _ callgraph.SymbolProvider = (*Provider)(nil)

func newProvider(modules map[string]*moduleTable) *Provider {
	p := &Provider{
		modules:  modules,
		children: make(map[string][]callgraph.ClassInfo),
	}
	p.buildHierarchy()
	return p
}

func (p *Provider) buildHierarchy() {
	for file, mt := range p.modules {
		for _, info := range mt.classes {
			if info.Extends == "" {
				continue
			}
			parent, ok := p.ClassByName(file, info.Extends)
			if !ok {
				continue // superclass outside the analyzed set
			}
			p.children[parent.Name] = append(p.children[parent.Name], info)
		}
	}
	for name := range p.children {
		sort.Slice(p.children[name], func(i, j int) bool {
			a, b := p.children[name][i], p.children[name][j]
			if a.File != b.File {
				return a.File < b.File
			}
			return a.Name < b.Name
		})
	}
}

// ResolveImport resolves a local binding in file to the symbol it names,
// following alias chains and re-exports across modules. Type-only imports
// resolve to a symbol with TypeOnly set so callers can skip them without
// treating the site as unresolved. Bindings to external packages or
// unresolvable aliases return false.
func (p *Provider) ResolveImport(file, local string) (callgraph.Symbol, bool) {
	mt, ok := p.modules[filepath.Clean(file)]
	if !ok {
		return callgraph.Symbol{}, false
	}
	return p.resolveImportRecord(mt, local, make(map[string]bool))
}

func (p *Provider) resolveImportRecord(mt *moduleTable, local string, visited map[string]bool) (callgraph.Symbol, bool) {
	rec, ok := mt.imports[local]
	if !ok {
		return callgraph.Symbol{}, false
	}
	if rec.TypeOnly {
		return callgraph.Symbol{Name: local, TypeOnly: true}, true
	}
	if rec.Namespace {
		// A namespace binding is not itself callable.
		return callgraph.Symbol{}, false
	}
	target, ok := p.resolveModule(mt.file, rec.Module)
	if !ok {
		return callgraph.Symbol{}, false // external package
	}
	return p.resolveExport(target, rec.Imported, visited)
}

// resolveExport resolves the name exported by file, chasing re-exports.
// The visited set breaks alias cycles; a cycle resolves to nothing.
func (p *Provider) resolveExport(file, name string, visited map[string]bool) (callgraph.Symbol, bool) {
	key := file + "\x00" + name
	if visited[key] {
		return callgraph.Symbol{}, false
	}
	visited[key] = true

	mt, ok := p.modules[file]
	if !ok {
		return callgraph.Symbol{}, false
	}

	if name == "default" && mt.defaultLocal != "" {
		sym, ok := p.resolveLocal(mt, mt.defaultLocal, visited)
		return sym, ok
	}

	if rec, ok := mt.exports[name]; ok {
		if rec.From != "" {
			target, ok := p.resolveModule(file, rec.From)
			if !ok {
				return callgraph.Symbol{}, false
			}
			sym, ok := p.resolveExport(target, rec.Imported, visited)
			if !ok {
				return callgraph.Symbol{}, false
			}
			sym.ViaReExport = true
			return sym, true
		}
		return p.resolveLocal(mt, rec.Local, visited)
	}

	// export * from "m": first module that exports the name wins.
	for _, from := range mt.starFrom {
		target, ok := p.resolveModule(file, from)
		if !ok {
			continue
		}
		if sym, ok := p.resolveExport(target, name, visited); ok {
			sym.ViaReExport = true
			return sym, true
		}
	}
	return callgraph.Symbol{}, false
}

// resolveLocal resolves a name defined (or imported) in mt itself.
func (p *Provider) resolveLocal(mt *moduleTable, name string, visited map[string]bool) (callgraph.Symbol, bool) {
	if id, ok := mt.functions[name]; ok {
		return callgraph.Symbol{Name: name, File: mt.file, Target: id}, true
	}
	if _, ok := mt.classes[name]; ok {
		return callgraph.Symbol{Name: name, File: mt.file, IsClass: true, Class: name}, true
	}
	// Re-exported import: export { a } where a came from another module.
	return p.resolveImportRecord(mt, name, visited)
}

// resolveModule resolves a relative import specifier against the known
// module set, trying the extensions and index files the TypeScript
// resolver tries. Bare specifiers (external packages) resolve to nothing.
func (p *Provider) resolveModule(fromFile, spec string) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		return "", false
	}
	base := filepath.Clean(filepath.Join(filepath.Dir(fromFile), spec))

	candidates := []string{
		base,
		base + ".ts",
		base + ".tsx",
		base + ".js",
		base + ".jsx",
		base + ".mjs",
		filepath.Join(base, "index.ts"),
		filepath.Join(base, "index.tsx"),
		filepath.Join(base, "index.js"),
	}
	for _, c := range candidates {
		if _, ok := p.modules[c]; ok {
			return c, true
		}
	}
	return "", false
}

// ResolveNamespaceMember resolves ns.member where ns is a namespace import
// in file.
func (p *Provider) ResolveNamespaceMember(file, ns, member string) (callgraph.Symbol, bool) {
	mt, ok := p.modules[filepath.Clean(file)]
	if !ok {
		return callgraph.Symbol{}, false
	}
	rec, ok := mt.imports[ns]
	if !ok || !rec.Namespace {
		return callgraph.Symbol{}, false
	}
	target, ok := p.resolveModule(mt.file, rec.Module)
	if !ok {
		return callgraph.Symbol{}, false
	}
	return p.resolveExport(target, member, make(map[string]bool))
}

// IsNamespaceImport reports whether name is bound by a namespace import
// (import * as name) in file.
func (p *Provider) IsNamespaceImport(file, name string) bool {
	mt, ok := p.modules[filepath.Clean(file)]
	if !ok {
		return false
	}
	rec, ok := mt.imports[name]
	return ok && rec.Namespace
}

// ClassByName resolves a class name visible in file: declared locally, or
// imported under that name.
func (p *Provider) ClassByName(file, name string) (callgraph.ClassInfo, bool) {
	mt, ok := p.modules[filepath.Clean(file)]
	if !ok {
		return callgraph.ClassInfo{}, false
	}
	if info, ok := mt.classes[name]; ok {
		return info, true
	}
	sym, ok := p.resolveImportRecord(mt, name, make(map[string]bool))
	if !ok || !sym.IsClass {
		return callgraph.ClassInfo{}, false
	}
	target, ok := p.modules[sym.File]
	if !ok {
		return callgraph.ClassInfo{}, false
	}
	info, ok := target.classes[sym.Class]
	return info, ok
}

// AllClasses returns every class in the analyzed set, ordered by
// (file, name) for deterministic hierarchy analysis.
func (p *Provider) AllClasses() []callgraph.ClassInfo {
	var out []callgraph.ClassInfo
	for _, mt := range p.modules {
		for _, info := range mt.classes {
			out = append(out, info)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Subclasses returns the direct subclasses of the named class.
func (p *Provider) Subclasses(class string) []callgraph.ClassInfo {
	return p.children[class]
}
