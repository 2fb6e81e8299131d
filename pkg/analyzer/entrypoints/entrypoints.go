// Package entrypoints selects the functions reachability analysis starts
// from: program entries, exported API surface, test code and framework
// hooks that runtimes invoke without a visible call site.
package entrypoints

import (
	"path/filepath"
	"strings"

	"github.com/auspexhq/auspex/pkg/callgraph"
)

// Options controls which heuristics contribute entry points.
type Options struct {
	// IncludeExported treats every exported function as an entry point.
	// Without it only mains, tests and framework hooks count, which is
	// the right setting for applications but too aggressive for libraries.
	IncludeExported bool

	// IncludeTests treats functions in test files as entry points.
	IncludeTests bool

	// Names lists additional function names to treat as entry points.
	Names []string
}

// DefaultOptions matches the common application layout.
func DefaultOptions() Options {
	return Options{
		IncludeExported: true,
		IncludeTests:    true,
	}
}

// lifecycleMethods are invoked by frameworks and runtimes, never through a
// call site the analyzer can see.
var lifecycleMethods = map[string]bool{
	"componentDidMount":      true,
	"componentWillUnmount":   true,
	"componentDidUpdate":     true,
	"render":                 true,
	"connectedCallback":      true,
	"disconnectedCallback":   true,
	"ngOnInit":               true,
	"ngOnDestroy":            true,
	"onModuleInit":           true,
	"onApplicationBootstrap": true,
}

// Detect returns the entry-point ids for the registered functions.
func Detect(registry *callgraph.Registry, opts Options) []callgraph.PositionID {
	extra := make(map[string]bool, len(opts.Names))
	for _, n := range opts.Names {
		extra[n] = true
	}

	var out []callgraph.PositionID
	for _, fn := range registry.All() {
		if isEntryPoint(fn, opts, extra) {
			out = append(out, fn.ID)
		}
	}
	return out
}

func isEntryPoint(fn callgraph.FunctionNode, opts Options, extra map[string]bool) bool {
	if fn.Name == "main" {
		return true
	}
	if extra[fn.Name] || extra[fn.QualifiedName] {
		return true
	}
	if lifecycleMethods[fn.Name] && fn.Class != "" {
		return true
	}
	if opts.IncludeTests && isTestFile(fn.File) {
		return true
	}
	if opts.IncludeExported && fn.Exported {
		return true
	}
	return false
}

func isTestFile(path string) bool {
	base := filepath.Base(path)
	for _, marker := range []string{".test.", ".spec."} {
		if strings.Contains(base, marker) {
			return true
		}
	}
	dir := filepath.ToSlash(filepath.Dir(path))
	return strings.Contains(dir, "/__tests__") || strings.HasPrefix(dir, "__tests__")
}
