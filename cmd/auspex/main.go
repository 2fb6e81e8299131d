package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/auspexhq/auspex/internal/cache"
	"github.com/auspexhq/auspex/internal/output"
	"github.com/auspexhq/auspex/internal/progress"
	"github.com/auspexhq/auspex/internal/scanner"
	"github.com/auspexhq/auspex/internal/vcs"
	"github.com/auspexhq/auspex/pkg/analyzer"
	"github.com/auspexhq/auspex/pkg/analyzer/entrypoints"
	"github.com/auspexhq/auspex/pkg/analyzer/reachability"
	"github.com/auspexhq/auspex/pkg/analyzer/scc"
	"github.com/auspexhq/auspex/pkg/callgraph"
	"github.com/auspexhq/auspex/pkg/config"
	"github.com/auspexhq/auspex/pkg/semantic"
	"github.com/auspexhq/auspex/pkg/source"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func main() {
	app := &cli.App{
		Name:    "auspex",
		Usage:   "Whole-program call graph analysis for TypeScript and JavaScript",
		Version: version,
		Description: `Auspex builds confidence-scored call graphs through staged resolution
(local scope, imports, class hierarchy, rapid type analysis, runtime
traces) and answers questions about recursion cycles and dead code.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"AUSPEX_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format: text, json, markdown",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable result caching",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Print per-stage resolution statistics",
			},
		},
		Commands: []*cli.Command{
			callgraphCmd(),
			cyclesCmd(),
			deadcodeCmd(),
			cacheCmd(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		cfg = loaded
	} else {
		cfg = config.LoadOrDefault()
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

func weightsFromConfig(rc config.ResolutionConfig) callgraph.Weights {
	w := callgraph.Weights{
		LocalExact:       rc.LocalExact,
		LocalMethod:      rc.LocalMethod,
		ImportExact:      rc.ImportExact,
		ImportReExport:   rc.ImportReExport,
		OptionalLocal:    rc.OptionalLocal,
		OptionalImport:   rc.OptionalImport,
		CHABase:          rc.CHABase,
		CHAAbstractBonus: rc.CHAAbstractBonus,
		CHAConcreteBonus: rc.CHAConcreteBonus,
		RTA:              rc.RTA,
		SymbolCacheSize:  rc.SymbolCacheSize,
	}
	if w.SymbolCacheSize <= 0 {
		w.SymbolCacheSize = callgraph.DefaultSymbolCacheSize
	}
	return w
}

// analysisFlags are shared by every command that builds a call graph.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "rev",
			Usage: "Analyze the git tree at a revision instead of the worktree",
		},
		&cli.StringFlag{
			Name:  "trace",
			Usage: "Path to a recorded execution trace (JSON)",
		},
	}
}

// resolveGraph runs the shared scan -> cache -> pipeline flow. It returns
// nil without error when no source files were found.
func resolveGraph(c *cli.Context, cfg *config.Config) (*callgraph.Result, error) {
	paths := getPaths(c)
	rev := c.String("rev")
	traceFile := c.String("trace")
	if traceFile == "" {
		traceFile = cfg.Trace.File
	}

	scan := scanner.NewScanner(cfg)

	var files []string
	var src source.ContentSource
	if rev != "" {
		repoPath, err := filepath.Abs(paths[0])
		if err != nil {
			return nil, fmt.Errorf("invalid path %s: %w", paths[0], err)
		}
		repo, err := vcs.Open(repoPath)
		if err != nil {
			return nil, err
		}
		tree, err := repo.TreeAt(rev)
		if err != nil {
			return nil, err
		}
		treeFiles, err := tree.Files()
		if err != nil {
			return nil, fmt.Errorf("failed to list tree at %s: %w", rev, err)
		}
		files = scan.FilterTree(treeFiles)
		src = source.NewTree(tree)
	} else {
		for _, path := range paths {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("invalid path %s: %w", path, err)
			}
			found, err := scan.ScanDir(absPath)
			if err != nil {
				return nil, fmt.Errorf("failed to scan directory %s: %w", path, err)
			}
			files = append(files, found...)
		}
	}

	if len(files) == 0 {
		return nil, nil
	}

	// The content hash is computed from the worktree, so cached results only
	// apply when analyzing the worktree.
	store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled && rev == "")
	if err != nil {
		store, _ = cache.New("", 0, false)
	}
	key := "callgraph:" + strings.Join(paths, ",") + ":" + traceFile
	hashInputs := files
	if traceFile != "" {
		hashInputs = append(append([]string(nil), files...), traceFile)
	}
	hash := cache.HashFileSet(hashInputs)

	if data, ok := store.GetWithHash(key, hash); ok {
		var result callgraph.Result
		if err := json.Unmarshal(data, &result); err == nil {
			result.Registry = registryFrom(result.Functions)
			return &result, nil
		}
	}

	opts := []callgraph.Option{
		callgraph.WithFrontend(semantic.NewAnalyzer()),
		callgraph.WithWeights(weightsFromConfig(cfg.Resolution)),
	}
	if traceFile != "" {
		trace, err := callgraph.LoadTrace(traceFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, callgraph.WithTrace(trace))
	}
	if src != nil {
		opts = append(opts, callgraph.WithSource(src))
	}
	pipe := callgraph.New(opts...)

	bar := progress.New("Resolving calls...", len(files), nil)
	tracker := analyzer.NewTracker(func(current, total int, path string) {
		bar.Tick()
	})
	ctx := analyzer.WithTracker(c.Context, tracker)

	result, err := pipe.Resolve(ctx, files)
	if err != nil {
		bar.FinishError(err)
		return nil, err
	}
	bar.Finish()

	if data, err := json.Marshal(result); err == nil {
		_ = store.SetWithHash(key, hash, data)
	}
	return result, nil
}

// registryFrom rebuilds the position index from cached function nodes.
func registryFrom(functions []callgraph.FunctionNode) *callgraph.Registry {
	r := callgraph.NewRegistry()
	for _, fn := range functions {
		r.Add(fn)
	}
	return r
}

func nodeLabel(registry *callgraph.Registry, id callgraph.PositionID) string {
	if fn, ok := registry.ByID(id); ok {
		return fmt.Sprintf("%s:%d %s", fn.File, fn.StartLine, fn.QualifiedName)
	}
	return id.String()
}

func printStageStats(stats []callgraph.StageStats) {
	fmt.Println()
	color.Cyan("Resolution stages:")
	for _, s := range stats {
		fmt.Printf("  %-18s resolved: %-5d pending after: %-5d %s\n",
			s.Stage, s.Resolved, s.Unresolved, s.Duration.Round(time.Microsecond))
		if s.Err != "" {
			color.Yellow("    stage failed: %s", s.Err)
		}
	}
}

func callgraphCmd() *cli.Command {
	return &cli.Command{
		Name:      "callgraph",
		Aliases:   []string{"cg"},
		Usage:     "Build the call graph and list resolved edges",
		ArgsUsage: "[path...]",
		Flags: append(analysisFlags(),
			&cli.Float64Flag{
				Name:  "min-confidence",
				Value: 0.0,
				Usage: "Hide edges below this confidence (0.0-1.0)",
			},
		),
		Action: runCallGraphCmd,
	}
}

func runCallGraphCmd(c *cli.Context) error {
	minConfidence := c.Float64("min-confidence")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	result, err := resolveGraph(c, cfg)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if result == nil {
		color.Yellow("No source files found")
		return nil
	}

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	edges := make([]callgraph.CallEdge, 0, len(result.Edges))
	for _, e := range result.Edges {
		if e.Confidence >= minConfidence {
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		a, _ := result.Registry.ByID(edges[i].Caller)
		b, _ := result.Registry.ByID(edges[j].Caller)
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartByte != b.StartByte {
			return a.StartByte < b.StartByte
		}
		return edges[i].Callee < edges[j].Callee
	})

	var rows [][]string
	for _, e := range edges {
		runtime := ""
		if e.RuntimeConfirmed {
			runtime = fmt.Sprintf("x%d", e.ExecutionCount)
		}
		rows = append(rows, []string{
			nodeLabel(result.Registry, e.Caller),
			nodeLabel(result.Registry, e.Callee),
			string(e.Level),
			output.ConfidenceColor(e.Confidence, fmt.Sprintf("%.2f", e.Confidence)),
			runtime,
		})
	}

	table := output.NewTable(
		"Call Graph",
		[]string{"Caller", "Callee", "Level", "Confidence", "Runtime"},
		rows,
		[]string{
			fmt.Sprintf("Functions: %d", len(result.Functions)),
			fmt.Sprintf("Edges: %d", len(edges)),
			fmt.Sprintf("Unresolved: %d", result.Unresolved),
			fmt.Sprintf("Skipped files: %d", result.Skipped),
			"",
		},
		result,
	)

	if err := formatter.Output(table); err != nil {
		return err
	}

	if c.Bool("verbose") && formatter.Format() == output.FormatText {
		printStageStats(result.Stats)
	}
	return nil
}

func cyclesCmd() *cli.Command {
	return &cli.Command{
		Name:      "cycles",
		Usage:     "Find recursion cycles in the call graph",
		ArgsUsage: "[path...]",
		Flags:     analysisFlags(),
		Action:    runCyclesCmd,
	}
}

func runCyclesCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	result, err := resolveGraph(c, cfg)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if result == nil {
		color.Yellow("No source files found")
		return nil
	}

	cycles := scc.Analyze(result.Registry, result.Edges)

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(cycles.Components) == 0 {
		if formatter.Format() == output.FormatText {
			formatter.Success("No recursion cycles found across %d functions", len(result.Functions))
			return nil
		}
		return formatter.Output(cycles)
	}

	var rows [][]string
	for i, comp := range cycles.Components {
		names := make([]string, 0, len(comp.Members))
		for _, m := range comp.Members {
			names = append(names, m.QualifiedName)
		}
		first := comp.Members[0]
		sizeStr := fmt.Sprintf("%d", len(comp.Members))
		if len(comp.Members) >= 3 {
			sizeStr = color.RedString(sizeStr)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%s:%d", first.File, first.StartLine),
			sizeStr,
			truncate(strings.Join(names, " -> "), 80),
		})
	}

	table := output.NewTable(
		"Recursion Cycles",
		[]string{"#", "Location", "Size", "Members"},
		rows,
		[]string{
			fmt.Sprintf("Cycles: %d", len(cycles.Components)),
			"",
			fmt.Sprintf("Recursive functions: %d", len(cycles.Recursive)),
			"",
		},
		cycles,
	)

	return formatter.Output(table)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func deadcodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "deadcode",
		Aliases:   []string{"dc"},
		Usage:     "Find functions unreachable from any entry point",
		ArgsUsage: "[path...]",
		Flags: append(analysisFlags(),
			&cli.BoolFlag{
				Name:  "include-exported",
				Value: true,
				Usage: "Treat exported functions as entry points",
			},
			&cli.BoolFlag{
				Name:  "include-tests",
				Value: true,
				Usage: "Treat functions in test files as entry points",
			},
			&cli.StringSliceFlag{
				Name:  "entry",
				Usage: "Additional function names to treat as entry points",
			},
		),
		Action: runDeadCodeCmd,
	}
}

func runDeadCodeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	result, err := resolveGraph(c, cfg)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	if result == nil {
		color.Yellow("No source files found")
		return nil
	}

	opts := entrypoints.Options{
		IncludeExported: c.Bool("include-exported"),
		IncludeTests:    c.Bool("include-tests"),
		Names:           c.StringSlice("entry"),
	}
	entries := entrypoints.Detect(result.Registry, opts)
	reach := reachability.Analyze(result.Registry, result.Edges, entries)

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), true)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(reach.Unreachable) == 0 {
		if formatter.Format() == output.FormatText {
			formatter.Success("No dead functions found (%d reachable from %d entry points)",
				len(reach.Reachable), len(entries))
			return nil
		}
		return formatter.Output(reach)
	}

	var rows [][]string
	for _, fn := range reach.Unreachable {
		exported := ""
		if fn.Exported {
			exported = color.YellowString("exported")
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", fn.File, fn.StartLine),
			fn.QualifiedName,
			string(fn.Kind),
			exported,
		})
	}

	table := output.NewTable(
		"Unreachable Functions",
		[]string{"Location", "Function", "Kind", "Visibility"},
		rows,
		nil,
		reach,
	)

	if err := formatter.Output(table); err != nil {
		return err
	}

	if formatter.Format() == output.FormatText {
		total := len(reach.Reachable) + len(reach.Unreachable)
		pct := 0.0
		if total > 0 {
			pct = float64(len(reach.Unreachable)) / float64(total) * 100
		}
		fmt.Printf("\nSummary: %d of %d functions unreachable from %d entry points (%.1f%%)\n",
			len(reach.Unreachable), total, len(entries), pct)
	}
	return nil
}

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage cached analysis results",
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Remove all cached results",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
					if err != nil {
						return err
					}
					if err := store.Clear(); err != nil {
						return err
					}
					color.Green("Cache cleared: %s", cfg.Cache.Dir)
					return nil
				},
			},
		},
	}
}
