package callgraph

import (
	"context"
)

// importStage binds call sites across module boundaries through the symbol
// provider. Alias chains and default exports resolve at the same confidence
// as direct imports; re-export barrels and namespace members resolve one
// notch lower. Type-only imports never produce edges. A cycle in an alias
// chain surfaces as an unresolvable symbol, which leaves the site
// unresolved rather than failing the stage.
type importStage struct {
	weights  Weights
	provider SymbolProvider
}

func (s *importStage) Name() string { return "import_exact" }

func (s *importStage) Run(ctx context.Context, st *PipelineState) error {
	var remaining []CallSite
	for _, site := range st.Pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.resolveSite(st, site) {
			continue
		}
		remaining = append(remaining, site)
	}
	st.Pending = remaining

	// Method-shaped sites whose receiver is a namespace import or an
	// imported class bind exactly here; the rest stay for hierarchy
	// analysis.
	var unresolved []UnresolvedMethodCall
	for _, u := range st.Unresolved {
		if s.resolveMethodSite(st, u) {
			continue
		}
		unresolved = append(unresolved, u)
	}
	st.Unresolved = unresolved
	return nil
}

// resolveSite reports whether the site was consumed (resolved or ruled out).
func (s *importStage) resolveSite(st *PipelineState, site CallSite) bool {
	switch site.Kind {
	case SiteIdentifier:
		sym, ok := s.provider.ResolveImport(site.File, site.Callee)
		if !ok {
			return false
		}
		if sym.TypeOnly {
			return true // type-only imports are not calls
		}
		if sym.Target != 0 {
			st.Edges.Upsert(s.edge(site, sym.Target, s.confidence(sym)))
			return true
		}
		return false

	case SiteNew:
		info, ok := s.classFor(site.File, site.Callee)
		if !ok {
			return false
		}
		if info.Constructor != 0 {
			st.Edges.Upsert(s.edge(site, info.Constructor, s.weights.ImportExact))
		}
		// A class without an explicit constructor still counts as an
		// instantiation; liveness was recorded during extraction.
		return true
	}
	return false
}

func (s *importStage) resolveMethodSite(st *PipelineState, u UnresolvedMethodCall) bool {
	site := u.Site
	if site.Receiver == "" {
		return false
	}

	if s.provider.IsNamespaceImport(site.File, site.Receiver) {
		sym, ok := s.provider.ResolveNamespaceMember(site.File, site.Receiver, site.Callee)
		if !ok || sym.TypeOnly {
			return ok && sym.TypeOnly
		}
		if sym.Target != 0 {
			st.Edges.Upsert(s.edge(site, sym.Target, s.weights.ImportReExport))
			return true
		}
		return false
	}

	// Static member access on an imported class is exact: no dynamic
	// dispatch is involved.
	if site.Kind == SiteStaticMember || site.Kind == SitePropertyAccess {
		sym, ok := s.provider.ResolveImport(site.File, site.Receiver)
		if ok && sym.IsClass {
			info, found := s.provider.ClassByName(site.File, site.Receiver)
			if found {
				if m, has := info.Methods[site.Callee]; has && m.Static {
					st.Edges.Upsert(s.edge(site, m.ID, s.confidence(sym)))
					return true
				}
			}
		}
	}
	return false
}

func (s *importStage) classFor(file, name string) (ClassInfo, bool) {
	if info, ok := s.provider.ClassByName(file, name); ok {
		return info, true
	}
	return ClassInfo{}, false
}

func (s *importStage) confidence(sym Symbol) float64 {
	if sym.ViaReExport {
		return s.weights.ImportReExport
	}
	return s.weights.ImportExact
}

func (s *importStage) edge(site CallSite, target PositionID, confidence float64) CallEdge {
	if site.Optional && s.weights.OptionalImport < confidence {
		confidence = s.weights.OptionalImport
	}
	return CallEdge{
		Caller:     site.Caller,
		Callee:     target,
		Confidence: confidence,
		Level:      LevelImportExact,
		SiteKind:   site.Kind,
	}
}
