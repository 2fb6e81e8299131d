package callgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/auspexhq/auspex/internal/fileproc"
	"github.com/auspexhq/auspex/pkg/analyzer"
	"github.com/auspexhq/auspex/pkg/parser"
	"github.com/auspexhq/auspex/pkg/source"
)

// ErrNoParseableFiles is returned when none of the input files could be
// parsed. This is the only fatal input condition; individual file failures
// are collected and skipped.
var ErrNoParseableFiles = errors.New("no parseable source files")

// Weights holds the per-stage confidence values. They are tuning knobs,
// not correctness constraints, so callers may override them from config.
type Weights struct {
	LocalExact       float64 // same-scope identifier call
	LocalMethod      float64 // same-file this/method/constructor binding
	ImportExact      float64 // direct, aliased or default import
	ImportReExport   float64 // re-export barrel or namespace member
	OptionalLocal    float64 // cap for optional-chained same-file calls
	OptionalImport   float64 // cap for optional-chained imported calls
	CHABase          float64 // hierarchy candidate base
	CHAAbstractBonus float64 // receiver statically abstract
	CHAConcreteBonus float64 // receiver resolved to a concrete class
	RTA              float64 // candidate narrowed by live types
	SymbolCacheSize  int
}

// DefaultWeights returns the standard confidence model.
func DefaultWeights() Weights {
	return Weights{
		LocalExact:       1.0,
		LocalMethod:      0.95,
		ImportExact:      0.95,
		ImportReExport:   0.90,
		OptionalLocal:    0.95,
		OptionalImport:   0.90,
		CHABase:          0.8,
		CHAAbstractBonus: 0.1,
		CHAConcreteBonus: 0.05,
		RTA:              0.9,
		SymbolCacheSize:  DefaultSymbolCacheSize,
	}
}

// StageStats records what one stage contributed.
type StageStats struct {
	Stage      string        `json:"stage"`
	Resolved   int           `json:"resolved"`
	Unresolved int           `json:"unresolved"`
	Duration   time.Duration `json:"duration"`
	Err        string        `json:"error,omitempty"`
}

// PipelineState is the explicit hand-off between stages. Each stage reads
// what earlier stages produced and appends its own results; nothing is
// carried through package-level state.
type PipelineState struct {
	Files      []string
	Registry   *Registry
	Edges      *EdgeStore
	Pending    []CallSite             // exact-shape sites awaiting import resolution
	Unresolved []UnresolvedMethodCall // method-shape sites for hierarchy analysis
	Live       map[string]bool        // class names proven instantiable

	instantiated map[string][]string // file -> class names from new expressions
	chaBindings  []chaBinding        // recorded by CHA, narrowed by RTA
	Stats        []StageStats
}

type stage interface {
	Name() string
	Run(ctx context.Context, st *PipelineState) error
}

// Pipeline runs the staged resolution process over a set of files.
type Pipeline struct {
	frontend   Frontend
	provider   SymbolProvider
	weights    Weights
	trace      *ExecutionTrace
	src        source.ContentSource
	maxWorkers int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFrontend sets the language frontend used for extraction and symbol
// resolution.
func WithFrontend(f Frontend) Option {
	return func(p *Pipeline) { p.frontend = f }
}

// WithProvider overrides the symbol provider. When unset, the frontend's
// provider is used, wrapped in a memo cache.
func WithProvider(sp SymbolProvider) Option {
	return func(p *Pipeline) { p.provider = sp }
}

// WithWeights overrides the confidence model.
func WithWeights(w Weights) Option {
	return func(p *Pipeline) { p.weights = w }
}

// WithTrace supplies an execution trace for the runtime confirmation stage.
func WithTrace(t *ExecutionTrace) Option {
	return func(p *Pipeline) { p.trace = t }
}

// WithSource sets where file content is read from (filesystem by default;
// a git tree when analyzing a revision).
func WithSource(src source.ContentSource) Option {
	return func(p *Pipeline) { p.src = src }
}

// WithMaxWorkers bounds per-file parallelism inside stages.
func WithMaxWorkers(n int) Option {
	return func(p *Pipeline) { p.maxWorkers = n }
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		weights: DefaultWeights(),
		src:     source.NewFilesystem(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the output of a pipeline run.
type Result struct {
	Registry   *Registry      `json:"-"`
	Functions  []FunctionNode `json:"functions"`
	Edges      []CallEdge     `json:"edges"`
	Stats      []StageStats   `json:"stats"`
	Unresolved int            `json:"unresolved"`
	Skipped    int            `json:"skipped_files"`
}

// Resolve extracts definitions and call sites from files and runs the
// resolution stages in order. Stages run sequentially; work within a stage
// fans out per file and joins before the next stage starts. A stage error
// is recorded in its stats and the pipeline continues with the edges
// accumulated so far.
func (p *Pipeline) Resolve(ctx context.Context, files []string) (*Result, error) {
	if p.frontend == nil {
		return nil, errors.New("callgraph: pipeline needs a frontend")
	}

	scriptFiles := make([]string, 0, len(files))
	skipped := 0
	for _, f := range files {
		if parser.IsScriptLanguage(parser.DetectLanguage(f)) {
			scriptFiles = append(scriptFiles, f)
		} else {
			skipped++
		}
	}

	st, err := p.extract(ctx, scriptFiles)
	if err != nil {
		return nil, err
	}

	provider := p.provider
	if provider == nil {
		provider = NewCachedProvider(p.frontend.Provider(), p.weights.SymbolCacheSize)
	}

	stages := []stage{
		&localStage{weights: p.weights, maxWorkers: p.maxWorkers},
		&importStage{weights: p.weights, provider: provider},
		&chaStage{weights: p.weights, provider: provider},
		&rtaStage{weights: p.weights, provider: provider},
	}
	if p.trace != nil {
		stages = append(stages, &traceStage{trace: p.trace})
	}

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		before := st.Edges.Len()
		stats := StageStats{Stage: s.Name()}
		if err := s.Run(ctx, st); err != nil {
			// Stage failures are not fatal: the stage contributes nothing
			// and the pipeline carries on with what it has.
			stats.Err = err.Error()
		}
		stats.Resolved = st.Edges.Len() - before
		stats.Unresolved = len(st.Pending) + len(st.Unresolved)
		stats.Duration = time.Since(start)
		st.Stats = append(st.Stats, stats)
	}

	return &Result{
		Registry:   st.Registry,
		Functions:  st.Registry.All(),
		Edges:      st.Edges.Edges(),
		Stats:      st.Stats,
		Unresolved: len(st.Pending) + len(st.Unresolved),
		Skipped:    skipped,
	}, nil
}

// extract parses every file and populates the registry and site worklists.
func (p *Pipeline) extract(ctx context.Context, files []string) (*PipelineState, error) {
	st := &PipelineState{
		Files:        files,
		Registry:     NewRegistry(),
		Edges:        NewEdgeStore(),
		Live:         make(map[string]bool),
		instantiated: make(map[string][]string),
	}
	if len(files) == 0 {
		return st, nil
	}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	tables := fileproc.MapFilesN(files, p.maxWorkers, func(psr *parser.Parser, path string) (*FileTable, error) {
		defer func() {
			if tracker != nil {
				tracker.Tick(path)
			}
		}()
		data, err := p.src.Read(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return p.frontend.ExtractFile(psr, data, path)
	})

	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %d input files", ErrNoParseableFiles, len(files))
	}

	for _, tbl := range tables {
		for _, fn := range tbl.Functions {
			st.Registry.Add(fn)
		}
		if len(tbl.Instantiated) > 0 {
			st.instantiated[tbl.File] = append(st.instantiated[tbl.File], tbl.Instantiated...)
		}
		st.Pending = append(st.Pending, tbl.Sites...)
	}
	return st, nil
}
