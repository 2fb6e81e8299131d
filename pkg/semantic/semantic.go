// Package semantic implements the TypeScript/JavaScript language frontend:
// per-file extraction of function definitions, class hierarchies, call
// sites and module bindings, plus a SymbolProvider that resolves names
// across module boundaries.
package semantic

import (
	"fmt"
	"path/filepath"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/auspexhq/auspex/pkg/callgraph"
	"github.com/auspexhq/auspex/pkg/parser"
)

type importRecord struct {
	Module    string // specifier as written
	Imported  string // name in the source module; "default" for default imports
	Namespace bool
	TypeOnly  bool
}

type exportRecord struct {
	Local    string // local binding, "" for re-exports
	From     string // source module for re-exports
	Imported string // name in the source module for re-exports
}

// moduleTable is everything extraction learned about one file.
type moduleTable struct {
	file         string
	imports      map[string]importRecord
	exports      map[string]exportRecord
	starFrom     []string // modules re-exported wholesale
	defaultLocal string   // local name bound to the default export
	classes      map[string]callgraph.ClassInfo
	functions    map[string]callgraph.PositionID // module-scope functions
}

func newModuleTable(file string) *moduleTable {
	return &moduleTable{
		file:      file,
		imports:   make(map[string]importRecord),
		exports:   make(map[string]exportRecord),
		classes:   make(map[string]callgraph.ClassInfo),
		functions: make(map[string]callgraph.PositionID),
	}
}

// Analyzer is the frontend handed to the resolution pipeline. ExtractFile
// is called concurrently from the extraction fan-out; the collected module
// tables feed the provider once extraction has joined.
type Analyzer struct {
	mu      sync.Mutex
	modules map[string]*moduleTable
}

// NewAnalyzer creates an empty frontend.
func NewAnalyzer() *Analyzer {
	return &Analyzer{modules: make(map[string]*moduleTable)}
}

var _ callgraph.Frontend = (*Analyzer)(nil)

// ExtractFile parses one file and returns its function and call-site table.
// Module bindings (imports, exports, classes) are retained internally for
// the provider. Safe for concurrent use.
func (a *Analyzer) ExtractFile(p *parser.Parser, src []byte, path string) (*callgraph.FileTable, error) {
	lang := parser.DetectLanguage(path)
	if !parser.IsScriptLanguage(lang) {
		return nil, fmt.Errorf("semantic: unsupported language %s for %s", lang, path)
	}

	result, err := p.Parse(src, lang, path)
	if err != nil {
		return nil, err
	}

	file := filepath.Clean(path)
	ext := newExtractor(file, src)
	ext.walkProgram(result.Tree.RootNode())
	ext.collectSites(result.Tree.RootNode())

	a.mu.Lock()
	a.modules[file] = ext.table
	a.mu.Unlock()

	return &callgraph.FileTable{
		File:         file,
		Functions:    ext.functions,
		Sites:        ext.sites,
		Instantiated: ext.instantiated,
	}, nil
}

// Provider returns a symbol provider over every file extracted so far.
func (a *Analyzer) Provider() callgraph.SymbolProvider {
	a.mu.Lock()
	defer a.mu.Unlock()

	modules := make(map[string]*moduleTable, len(a.modules))
	for k, v := range a.modules {
		modules[k] = v
	}
	return newProvider(modules)
}

// extractor walks one file's AST.
type extractor struct {
	file         string
	src          []byte
	table        *moduleTable
	functions    []callgraph.FunctionNode
	sites        []callgraph.CallSite
	instantiated []string
}

func newExtractor(file string, src []byte) *extractor {
	return &extractor{file: file, src: src, table: newModuleTable(file)}
}

func (e *extractor) text(n *sitter.Node) string {
	return parser.GetNodeText(n, e.src)
}

// walkProgram handles top-level declarations: imports, exports, functions,
// classes. Call sites are collected in a separate pass once all function
// spans are known.
func (e *extractor) walkProgram(root *sitter.Node) {
	for i := range int(root.ChildCount()) {
		node := root.Child(i)
		switch node.Type() {
		case "import_statement":
			e.handleImport(node)
		case "export_statement":
			e.handleExport(node)
		case "function_declaration", "generator_function_declaration":
			e.handleFunction(node, false)
		case "class_declaration", "abstract_class_declaration":
			e.handleClass(node, false)
		case "lexical_declaration", "variable_declaration":
			e.handleLexical(node, false)
		}
	}
}

func (e *extractor) handleImport(node *sitter.Node) {
	srcNode := node.ChildByFieldName("source")
	if srcNode == nil {
		return
	}
	module := unquote(e.text(srcNode))

	typeOnly := false
	for i := range int(node.ChildCount()) {
		if node.Child(i).Type() == "type" {
			typeOnly = true
		}
	}

	for i := range int(node.ChildCount()) {
		clause := node.Child(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := range int(clause.ChildCount()) {
			c := clause.Child(j)
			switch c.Type() {
			case "identifier": // default import
				e.table.imports[e.text(c)] = importRecord{Module: module, Imported: "default", TypeOnly: typeOnly}
			case "namespace_import": // * as ns
				for k := range int(c.ChildCount()) {
					if id := c.Child(k); id.Type() == "identifier" {
						e.table.imports[e.text(id)] = importRecord{Module: module, Namespace: true, TypeOnly: typeOnly}
					}
				}
			case "named_imports":
				e.handleNamedImports(c, module, typeOnly)
			}
		}
	}
}

func (e *extractor) handleNamedImports(node *sitter.Node, module string, typeOnly bool) {
	for i := range int(node.ChildCount()) {
		spec := node.Child(i)
		if spec.Type() != "import_specifier" {
			continue
		}
		specTypeOnly := typeOnly
		for j := range int(spec.ChildCount()) {
			if spec.Child(j).Type() == "type" {
				specTypeOnly = true
			}
		}
		name := spec.ChildByFieldName("name")
		alias := spec.ChildByFieldName("alias")
		local := e.text(name)
		if alias != nil {
			local = e.text(alias)
		}
		e.table.imports[local] = importRecord{Module: module, Imported: e.text(name), TypeOnly: specTypeOnly}
	}
}

func (e *extractor) handleExport(node *sitter.Node) {
	srcNode := node.ChildByFieldName("source")
	isDefault := false
	for i := range int(node.ChildCount()) {
		if node.Child(i).Type() == "default" {
			isDefault = true
		}
	}

	// export * from "m"
	if srcNode != nil {
		star := false
		for i := range int(node.ChildCount()) {
			if node.Child(i).Type() == "*" {
				star = true
			}
		}
		if star {
			e.table.starFrom = append(e.table.starFrom, unquote(e.text(srcNode)))
			return
		}
	}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		switch decl.Type() {
		case "function_declaration", "generator_function_declaration":
			fn := e.handleFunction(decl, true)
			if isDefault && fn != "" {
				e.table.defaultLocal = fn
			}
		case "class_declaration", "abstract_class_declaration":
			name := e.handleClass(decl, true)
			if isDefault && name != "" {
				e.table.defaultLocal = name
			}
		case "lexical_declaration", "variable_declaration":
			e.handleLexical(decl, true)
		}
		return
	}

	// export default <identifier>
	if isDefault {
		if value := node.ChildByFieldName("value"); value != nil && value.Type() == "identifier" {
			e.table.defaultLocal = e.text(value)
			e.table.exports["default"] = exportRecord{Local: e.text(value)}
		}
		return
	}

	// export { a, b as c } [from "m"]
	for i := range int(node.ChildCount()) {
		clause := node.Child(i)
		if clause.Type() != "export_clause" {
			continue
		}
		for j := range int(clause.ChildCount()) {
			spec := clause.Child(j)
			if spec.Type() != "export_specifier" {
				continue
			}
			name := e.text(spec.ChildByFieldName("name"))
			exported := name
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = e.text(alias)
			}
			if srcNode != nil {
				e.table.exports[exported] = exportRecord{From: unquote(e.text(srcNode)), Imported: name}
			} else {
				e.table.exports[exported] = exportRecord{Local: name}
			}
		}
	}
}

// handleFunction registers a module-scope function and returns its name.
func (e *extractor) handleFunction(node *sitter.Node, exported bool) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := e.text(nameNode)
	fn := e.functionNode(node, name, "", callgraph.KindFunction, exported)
	e.functions = append(e.functions, fn)
	e.table.functions[name] = fn.ID
	if exported {
		e.table.exports[name] = exportRecord{Local: name}
	}
	return name
}

// handleLexical registers arrow functions and function expressions bound by
// const/let/var declarators.
func (e *extractor) handleLexical(node *sitter.Node, exported bool) {
	for i := range int(node.ChildCount()) {
		decl := node.Child(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		value := decl.ChildByFieldName("value")
		if value == nil {
			continue
		}
		switch value.Type() {
		case "arrow_function", "function", "function_expression", "generator_function":
		default:
			continue
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		name := e.text(nameNode)
		fn := e.functionNode(value, name, "", callgraph.KindArrow, exported)
		e.functions = append(e.functions, fn)
		e.table.functions[name] = fn.ID
		if exported {
			e.table.exports[name] = exportRecord{Local: name}
		}
	}
}

// handleClass registers a class, its methods and constructor, and returns
// the class name.
func (e *extractor) handleClass(node *sitter.Node, exported bool) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return ""
	}
	name := e.text(nameNode)

	info := callgraph.ClassInfo{
		Name:     name,
		File:     e.file,
		Abstract: node.Type() == "abstract_class_declaration",
		Methods:  make(map[string]callgraph.MethodInfo),
	}

	// class_heritage > extends_clause > expression
	for i := range int(node.ChildCount()) {
		h := node.Child(i)
		if h.Type() != "class_heritage" {
			continue
		}
		for j := range int(h.ChildCount()) {
			ec := h.Child(j)
			if ec.Type() != "extends_clause" {
				continue
			}
			for k := range int(ec.ChildCount()) {
				v := ec.Child(k)
				if v.Type() == "identifier" {
					info.Extends = e.text(v)
				}
			}
		}
		// JavaScript grammar puts the superclass directly in the heritage
		for j := range int(h.ChildCount()) {
			if v := h.Child(j); v.Type() == "identifier" && info.Extends == "" {
				info.Extends = e.text(v)
			}
		}
	}

	body := node.ChildByFieldName("body")
	if body != nil {
		for i := range int(body.ChildCount()) {
			member := body.Child(i)
			switch member.Type() {
			case "method_definition":
				e.handleMethod(member, name, &info, exported)
			case "abstract_method_signature":
				if mn := member.ChildByFieldName("name"); mn != nil {
					info.Methods[e.text(mn)] = callgraph.MethodInfo{Abstract: true}
				}
			}
		}
	}

	e.table.classes[name] = info
	if exported {
		e.table.exports[name] = exportRecord{Local: name}
	}
	return name
}

func (e *extractor) handleMethod(node *sitter.Node, class string, info *callgraph.ClassInfo, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := e.text(nameNode)

	static := false
	for i := range int(node.ChildCount()) {
		if node.Child(i).Type() == "static" {
			static = true
		}
	}

	kind := callgraph.KindMethod
	if name == "constructor" {
		kind = callgraph.KindConstructor
	}

	fn := e.functionNode(node, name, class, kind, exported)
	e.functions = append(e.functions, fn)

	if kind == callgraph.KindConstructor {
		info.Constructor = fn.ID
	} else {
		info.Methods[name] = callgraph.MethodInfo{ID: fn.ID, Static: static}
	}
}

func (e *extractor) functionNode(node *sitter.Node, name, class string, kind callgraph.FunctionKind, exported bool) callgraph.FunctionNode {
	qualified := name
	if class != "" {
		qualified = class + "." + name
	}

	params := 0
	if p := node.ChildByFieldName("parameters"); p != nil {
		for i := range int(p.NamedChildCount()) {
			if p.NamedChild(i).Type() != "comment" {
				params++
			}
		}
	}

	return callgraph.FunctionNode{
		ID:            callgraph.NewPositionID(e.file, node.StartByte(), node.EndByte()),
		Name:          name,
		QualifiedName: qualified,
		File:          e.file,
		StartByte:     node.StartByte(),
		EndByte:       node.EndByte(),
		StartLine:     node.StartPoint().Row + 1,
		EndLine:       node.EndPoint().Row + 1,
		Kind:          kind,
		Class:         class,
		Exported:      exported,
		ParamCount:    params,
	}
}

// collectSites walks the whole tree once and records every call-shaped
// expression, attributed to the innermost enclosing registered function.
// Sites outside any function (module top level) still contribute
// instantiations but produce no edges.
func (e *extractor) collectSites(root *sitter.Node) {
	parser.WalkTyped(root, e.src, func(node *sitter.Node, nodeType string, _ []byte) bool {
		switch nodeType {
		case "call_expression":
			e.handleCall(node)
		case "new_expression":
			e.handleNew(node)
		}
		return true
	})
}

func (e *extractor) enclosing(node *sitter.Node) (callgraph.PositionID, bool) {
	start, end := node.StartByte(), node.EndByte()
	var best *callgraph.FunctionNode
	for i := range e.functions {
		fn := &e.functions[i]
		if fn.StartByte <= start && end <= fn.EndByte {
			if best == nil || fn.EndByte-fn.StartByte < best.EndByte-best.StartByte {
				best = fn
			}
		}
	}
	if best == nil {
		return 0, false
	}
	return best.ID, true
}

func (e *extractor) handleCall(node *sitter.Node) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		return
	}

	caller, ok := e.enclosing(node)
	if !ok {
		return
	}

	site := callgraph.CallSite{
		Caller:    caller,
		Optional:  hasOptionalChain(node),
		File:      e.file,
		StartByte: node.StartByte(),
		EndByte:   node.EndByte(),
		Line:      node.StartPoint().Row + 1,
	}

	switch fnNode.Type() {
	case "identifier":
		site.Kind = callgraph.SiteIdentifier
		site.Callee = e.text(fnNode)

	case "super":
		site.Kind = callgraph.SiteSuperCall
		site.Callee = "constructor"

	case "member_expression":
		object := fnNode.ChildByFieldName("object")
		property := fnNode.ChildByFieldName("property")
		if object == nil || property == nil {
			return
		}
		site.Callee = e.text(property)
		site.Optional = site.Optional || hasOptionalChain(fnNode)
		switch object.Type() {
		case "this":
			site.Kind = callgraph.SiteThisCall
		case "super":
			site.Kind = callgraph.SiteSuperCall
		case "identifier":
			site.Receiver = e.text(object)
			if _, isClass := e.table.classes[site.Receiver]; isClass {
				site.Kind = callgraph.SiteStaticMember
			} else {
				site.Kind = callgraph.SitePropertyAccess
			}
		default:
			// Chained or computed receivers are outside the closed set of
			// resolvable call shapes; skip, never error.
			return
		}

	default:
		return
	}

	e.sites = append(e.sites, site)
}

func (e *extractor) handleNew(node *sitter.Node) {
	ctor := node.ChildByFieldName("constructor")
	if ctor == nil || ctor.Type() != "identifier" {
		return
	}
	name := e.text(ctor)

	// Instantiations count toward type liveness wherever they occur,
	// including module top level.
	e.instantiated = append(e.instantiated, name)

	caller, ok := e.enclosing(node)
	if !ok {
		return
	}
	e.sites = append(e.sites, callgraph.CallSite{
		Caller:    caller,
		Callee:    name,
		Kind:      callgraph.SiteNew,
		File:      e.file,
		StartByte: node.StartByte(),
		EndByte:   node.EndByte(),
		Line:      node.StartPoint().Row + 1,
	})
}

// hasOptionalChain reports whether node carries a ?. link as a direct
// child. The grammar puts it under the call_expression for fn?.() and
// under the member_expression for obj?.method().
func hasOptionalChain(node *sitter.Node) bool {
	for i := range int(node.ChildCount()) {
		switch node.Child(i).Type() {
		case "optional_chain", "?.":
			return true
		}
	}
	return false
}

func unquote(s string) string {
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			return s[1 : len(s)-1]
		}
	}
	return s
}
