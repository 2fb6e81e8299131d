package callgraph

import (
	"context"

	"github.com/auspexhq/auspex/internal/fileproc"
)

// localStage binds call sites whose target is declared in the same file.
// Identifier calls to module-scope functions resolve at full confidence;
// this-calls, static member calls and constructor calls within one file
// resolve slightly lower because the binding crosses a class scope.
// Everything method-shaped that cannot be bound here is queued for the
// hierarchy stages.
type localStage struct {
	weights    Weights
	maxWorkers int
}

func (s *localStage) Name() string { return "local_exact" }

type localOutcome struct {
	edges      []CallEdge
	pending    []CallSite
	unresolved []UnresolvedMethodCall
}

func (s *localStage) Run(ctx context.Context, st *PipelineState) error {
	byFile := make(map[string][]CallSite)
	for _, site := range st.Pending {
		byFile[site.File] = append(byFile[site.File], site)
	}
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}

	outcomes := fileproc.ForEachFileN(files, s.maxWorkers, func(file string) (localOutcome, error) {
		return s.resolveFile(st.Registry, file, byFile[file]), nil
	}, nil)

	st.Pending = st.Pending[:0]
	for _, out := range outcomes {
		for _, e := range out.edges {
			st.Edges.Upsert(e)
		}
		st.Pending = append(st.Pending, out.pending...)
		st.Unresolved = append(st.Unresolved, out.unresolved...)
	}
	return ctx.Err()
}

func (s *localStage) resolveFile(reg *Registry, file string, sites []CallSite) localOutcome {
	var out localOutcome
	local := reg.InFile(file)

	moduleScope := make(map[string][]FunctionNode)
	methods := make(map[string]map[string]PositionID) // class -> name -> id
	constructors := make(map[string]PositionID)
	for _, fn := range local {
		switch {
		case fn.Kind == KindConstructor:
			constructors[fn.Class] = fn.ID
		case fn.Class != "":
			if methods[fn.Class] == nil {
				methods[fn.Class] = make(map[string]PositionID)
			}
			methods[fn.Class][fn.Name] = fn.ID
		default:
			moduleScope[fn.Name] = append(moduleScope[fn.Name], fn)
		}
	}

	for _, site := range sites {
		switch site.Kind {
		case SiteIdentifier:
			if cands := moduleScope[site.Callee]; len(cands) > 0 {
				target := bestMatch(cands, site)
				out.edges = append(out.edges, s.edge(site, target.ID, s.weights.LocalExact))
				continue
			}
			out.pending = append(out.pending, site)

		case SiteThisCall:
			caller, ok := reg.ByID(site.Caller)
			if ok && caller.Class != "" {
				if target, found := methods[caller.Class][site.Callee]; found {
					out.edges = append(out.edges, s.edge(site, target, s.weights.LocalMethod))
					continue
				}
				out.unresolved = append(out.unresolved, UnresolvedMethodCall{Site: site, ReceiverHint: caller.Class})
				continue
			}
			out.unresolved = append(out.unresolved, UnresolvedMethodCall{Site: site})

		case SiteSuperCall:
			// Super dispatch needs the hierarchy; carry the caller's class
			// as the receiver hint so the hierarchy stage can walk up.
			hint := ""
			if caller, ok := reg.ByID(site.Caller); ok {
				hint = caller.Class
			}
			out.unresolved = append(out.unresolved, UnresolvedMethodCall{Site: site, ReceiverHint: hint})

		case SiteStaticMember:
			if target, ok := methods[site.Receiver][site.Callee]; ok {
				out.edges = append(out.edges, s.edge(site, target, s.weights.LocalMethod))
				continue
			}
			out.unresolved = append(out.unresolved, UnresolvedMethodCall{Site: site, ReceiverHint: site.Receiver})

		case SitePropertyAccess:
			out.unresolved = append(out.unresolved, UnresolvedMethodCall{Site: site, ReceiverHint: site.Receiver})

		case SiteNew:
			if target, ok := constructors[site.Callee]; ok {
				out.edges = append(out.edges, s.edge(site, target, s.weights.LocalMethod))
				continue
			}
			out.pending = append(out.pending, site)
		}
	}
	return out
}

// bestMatch picks among same-named declarations. A declaration whose span
// contains the call site wins (the call binds in its own scope); otherwise
// the smallest line distance wins, with ties going to the later
// declaration, which is the binding hoisting leaves in effect at runtime.
func bestMatch(cands []FunctionNode, site CallSite) FunctionNode {
	best := cands[0]
	bestScore := matchScore(best, site)
	for _, cand := range cands[1:] {
		score := matchScore(cand, site)
		if score < bestScore || (score == bestScore && cand.StartByte > best.StartByte) {
			best, bestScore = cand, score
		}
	}
	return best
}

func matchScore(fn FunctionNode, site CallSite) uint32 {
	if fn.StartByte <= site.StartByte && site.EndByte <= fn.EndByte {
		return 0
	}
	if fn.StartLine > site.Line {
		return fn.StartLine - site.Line
	}
	return site.Line - fn.StartLine
}

func (s *localStage) edge(site CallSite, target PositionID, confidence float64) CallEdge {
	if site.Optional && s.weights.OptionalLocal < confidence {
		confidence = s.weights.OptionalLocal
	}
	return CallEdge{
		Caller:     site.Caller,
		Callee:     target,
		Confidence: confidence,
		Level:      LevelLocalExact,
		SiteKind:   site.Kind,
	}
}
