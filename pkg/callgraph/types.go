// Package callgraph builds whole-program, confidence-scored call graphs
// through a staged resolution pipeline. Each stage only adds edges it can
// justify at a given confidence; later stages never lower what earlier
// stages established.
package callgraph

import (
	"encoding/binary"
	"fmt"

	"github.com/auspexhq/auspex/pkg/parser"
	"github.com/cespare/xxhash/v2"
)

// PositionID identifies a source span (file, start byte, end byte).
// It is stable across runs as long as the content at that span is unchanged
// in position, which makes node and edge ids content-addressable.
type PositionID uint64

// NewPositionID computes the id for a span.
func NewPositionID(file string, startByte, endByte uint32) PositionID {
	h := xxhash.New()
	_, _ = h.WriteString(file)
	var buf [9]byte
	buf[0] = 0 // separator so "a.ts"+1 and "a.ts1"+... cannot collide
	binary.LittleEndian.PutUint32(buf[1:5], startByte)
	binary.LittleEndian.PutUint32(buf[5:9], endByte)
	_, _ = h.Write(buf[:])
	return PositionID(h.Sum64())
}

func (p PositionID) String() string {
	return fmt.Sprintf("%016x", uint64(p))
}

// FunctionKind classifies a registered function.
type FunctionKind string

const (
	KindFunction    FunctionKind = "function"
	KindMethod      FunctionKind = "method"
	KindArrow       FunctionKind = "arrow"
	KindConstructor FunctionKind = "constructor"
)

// FunctionNode is a function definition known to the registry.
type FunctionNode struct {
	ID            PositionID   `json:"id"`
	Name          string       `json:"name"`
	QualifiedName string       `json:"qualified_name"`
	File          string       `json:"file"`
	StartByte     uint32       `json:"start_byte"`
	EndByte       uint32       `json:"end_byte"`
	StartLine     uint32       `json:"start_line"`
	EndLine       uint32       `json:"end_line"`
	Kind          FunctionKind `json:"kind"`
	Class         string       `json:"class,omitempty"`
	Exported      bool         `json:"exported"`
	ParamCount    int          `json:"param_count"`
}

// CallSiteKind is the closed set of call shapes the engine resolves.
// Anything outside this set is not a call site and is skipped during
// extraction, never reported as an error.
type CallSiteKind string

const (
	SiteIdentifier     CallSiteKind = "identifier"
	SitePropertyAccess CallSiteKind = "property_access"
	SiteThisCall       CallSiteKind = "this_call"
	SiteSuperCall      CallSiteKind = "super_call"
	SiteStaticMember   CallSiteKind = "static_member_call"
	SiteNew            CallSiteKind = "new_expression"
)

// CallSite is one syntactic call occurrence inside a registered function.
// Optional marks optional-chained calls (fn?.(), obj?.method()), which may
// short-circuit at runtime and therefore never bind at full confidence.
type CallSite struct {
	Caller    PositionID   `json:"caller"`
	Callee    string       `json:"callee"`
	Receiver  string       `json:"receiver,omitempty"`
	Kind      CallSiteKind `json:"kind"`
	Optional  bool         `json:"optional,omitempty"`
	File      string       `json:"file"`
	StartByte uint32       `json:"start_byte"`
	EndByte   uint32       `json:"end_byte"`
	Line      uint32       `json:"line"`
}

// ResolutionLevel records which stage produced an edge.
type ResolutionLevel string

const (
	LevelLocalExact       ResolutionLevel = "local_exact"
	LevelImportExact      ResolutionLevel = "import_exact"
	LevelRuntimeConfirmed ResolutionLevel = "runtime_confirmed"
	LevelRTAResolved      ResolutionLevel = "rta_resolved"
	LevelCHAResolved      ResolutionLevel = "cha_resolved"
)

// Precedence orders levels for merging. Higher wins; runtime confirmation
// is additionally carried as a flag so a runtime-confirmed local_exact edge
// keeps the local_exact level.
func (l ResolutionLevel) Precedence() int {
	switch l {
	case LevelLocalExact:
		return 5
	case LevelImportExact:
		return 4
	case LevelRuntimeConfirmed:
		return 3
	case LevelRTAResolved:
		return 2
	case LevelCHAResolved:
		return 1
	}
	return 0
}

// EdgeID identifies a (caller, callee) pair. Stable across runs for
// unchanged spans.
type EdgeID uint64

// NewEdgeID derives the edge id from the endpoint position ids.
func NewEdgeID(caller, callee PositionID) EdgeID {
	return EdgeID(xxhash.Sum64String(caller.String() + "->" + callee.String()))
}

// CallEdge is one resolved caller -> callee relation.
type CallEdge struct {
	ID               EdgeID            `json:"id"`
	Caller           PositionID        `json:"caller"`
	Callee           PositionID        `json:"callee"`
	Confidence       float64           `json:"confidence"`
	Level            ResolutionLevel   `json:"level"`
	RuntimeConfirmed bool              `json:"runtime_confirmed,omitempty"`
	ExecutionCount   uint64            `json:"execution_count,omitempty"`
	SiteKind         CallSiteKind      `json:"site_kind,omitempty"`
	Candidates       []PositionID      `json:"candidates,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// UnresolvedMethodCall is a method-shaped site the exact stages could not
// bind, queued for hierarchy analysis. ReceiverHint names the static
// receiver type when one is known.
type UnresolvedMethodCall struct {
	Site         CallSite `json:"site"`
	ReceiverHint string   `json:"receiver_hint,omitempty"`
}

// MethodInfo describes one method declared on a class.
type MethodInfo struct {
	ID       PositionID `json:"id"`
	Abstract bool       `json:"abstract,omitempty"`
	Static   bool       `json:"static,omitempty"`
}

// ClassInfo describes a class and its declared members.
type ClassInfo struct {
	Name        string                `json:"name"`
	File        string                `json:"file"`
	Extends     string                `json:"extends,omitempty"`
	Abstract    bool                  `json:"abstract,omitempty"`
	Methods     map[string]MethodInfo `json:"methods,omitempty"`
	Constructor PositionID            `json:"constructor,omitempty"`
}

// Symbol is the result of resolving a name through module boundaries.
type Symbol struct {
	Name    string     `json:"name"`
	File    string     `json:"file"`
	Target  PositionID `json:"target,omitempty"` // zero when not a function
	IsClass bool       `json:"is_class,omitempty"`
	Class   string     `json:"class,omitempty"`
	// ViaReExport marks symbols reached through a re-export barrel or a
	// namespace import; such bindings resolve at slightly lower confidence.
	ViaReExport bool `json:"via_reexport,omitempty"`
	// TypeOnly marks type-only imports. They never produce call edges.
	TypeOnly bool `json:"type_only,omitempty"`
}

// SymbolProvider resolves names across module boundaries. Implementations
// must be safe for concurrent use; the pipeline queries them from multiple
// workers.
type SymbolProvider interface {
	// ResolveImport resolves a name imported into file to its defining
	// symbol, following alias chains and re-exports. Unresolvable names
	// (externals, cycles) return ok=false.
	ResolveImport(file, localName string) (Symbol, bool)

	// ResolveNamespaceMember resolves ns.member where ns is a namespace
	// import in file.
	ResolveNamespaceMember(file, ns, member string) (Symbol, bool)

	// IsNamespaceImport reports whether name is bound by a namespace
	// import in file.
	IsNamespaceImport(file, name string) bool

	// ClassByName returns the class visible from file under name, whether
	// declared locally or imported.
	ClassByName(file, name string) (ClassInfo, bool)

	// AllClasses returns every class in the analyzed set.
	AllClasses() []ClassInfo

	// Subclasses returns the direct subclasses of the named class.
	Subclasses(class string) []ClassInfo
}

// FileTable is the per-file extraction output consumed by the pipeline.
type FileTable struct {
	File         string         `json:"file"`
	Functions    []FunctionNode `json:"functions"`
	Sites        []CallSite     `json:"sites"`
	Instantiated []string       `json:"instantiated,omitempty"`
}

// Frontend parses files into tables and, once extraction is complete,
// provides symbol resolution over everything it has seen.
type Frontend interface {
	ExtractFile(p *parser.Parser, source []byte, path string) (*FileTable, error)
	Provider() SymbolProvider
}
