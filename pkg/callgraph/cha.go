package callgraph

import (
	"context"
	"sort"
)

// chaStage applies class-hierarchy analysis to the method-shaped sites the
// exact stages left behind. Every class compatible with the receiver hint
// that declares the called method becomes a candidate edge. The base
// confidence reflects that CHA over-approximates; a hint that is statically
// abstract raises it (dispatch must land on an override), and a hint
// resolved to a concrete class raises it slightly less.
type chaStage struct {
	weights  Weights
	provider SymbolProvider
}

func (s *chaStage) Name() string { return "cha_resolved" }

// chaBinding remembers which candidate edges came from one call site so the
// RTA stage can narrow them against the live-type set.
type chaBinding struct {
	site       CallSite
	method     string
	candidates []chaCandidate
}

type chaCandidate struct {
	class  string
	target PositionID
	edge   EdgeID
}

func (s *chaStage) Run(ctx context.Context, st *PipelineState) error {
	classes := s.provider.AllClasses()
	byName := make(map[string]ClassInfo, len(classes))
	declarers := make(map[string][]ClassInfo) // method name -> declaring classes
	for _, c := range classes {
		byName[c.Name] = c
		for m := range c.Methods {
			declarers[m] = append(declarers[m], c)
		}
	}
	for m := range declarers {
		sort.Slice(declarers[m], func(i, j int) bool { return declarers[m][i].Name < declarers[m][j].Name })
	}

	var remaining []UnresolvedMethodCall
	for _, u := range st.Unresolved {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.resolve(st, u, byName, declarers) {
			continue
		}
		remaining = append(remaining, u)
	}
	st.Unresolved = remaining
	return nil
}

func (s *chaStage) resolve(st *PipelineState, u UnresolvedMethodCall, byName map[string]ClassInfo, declarers map[string][]ClassInfo) bool {
	site := u.Site
	method := site.Callee

	if site.Kind == SiteSuperCall {
		return s.resolveSuper(st, u, byName)
	}

	hint, hintKnown := s.hintClass(u, byName)

	var cands []ClassInfo
	switch {
	case hintKnown:
		cands = s.subtreeDeclarers(hint, method, byName)
		if len(cands) == 0 {
			// Nothing in the subtree declares it; the call binds to the
			// inherited implementation from the nearest ancestor.
			if anc, ok := s.nearestAncestorDeclaring(hint, method, byName); ok {
				cands = []ClassInfo{anc}
			}
		}
	default:
		cands = declarers[method]
	}
	if len(cands) == 0 {
		return false
	}

	confidence := s.weights.CHABase
	if hintKnown {
		if hint.Abstract {
			confidence += s.weights.CHAAbstractBonus
		} else {
			confidence += s.weights.CHAConcreteBonus
		}
	}

	s.emit(st, site, method, cands, confidence)
	return true
}

// resolveSuper binds super.m() to the nearest ancestor implementation.
// Once the hierarchy is known this dispatch is static, but the binding
// still rests on extracted hierarchy data, so it stays at this stage's
// level with the method-binding confidence.
func (s *chaStage) resolveSuper(st *PipelineState, u UnresolvedMethodCall, byName map[string]ClassInfo) bool {
	cls, ok := byName[u.ReceiverHint]
	if !ok {
		return false
	}
	anc, ok := s.nearestAncestorDeclaring(cls, u.Site.Callee, byName)
	if !ok {
		return false
	}
	s.emit(st, u.Site, u.Site.Callee, []ClassInfo{anc}, s.weights.LocalMethod)
	return true
}

func (s *chaStage) hintClass(u UnresolvedMethodCall, byName map[string]ClassInfo) (ClassInfo, bool) {
	if u.ReceiverHint == "" {
		return ClassInfo{}, false
	}
	if cls, ok := byName[u.ReceiverHint]; ok {
		return cls, true
	}
	// The hint may be an imported alias of a class defined elsewhere.
	if cls, ok := s.provider.ClassByName(u.Site.File, u.ReceiverHint); ok {
		return cls, true
	}
	return ClassInfo{}, false
}

// declaredMethod looks up method on cls, treating the constructor as a
// member so super() calls resolve through the same walks as super.m().
func declaredMethod(cls ClassInfo, method string) (MethodInfo, bool) {
	if method == "constructor" {
		if cls.Constructor == 0 {
			return MethodInfo{}, false
		}
		return MethodInfo{ID: cls.Constructor}, true
	}
	m, ok := cls.Methods[method]
	return m, ok
}

// subtreeDeclarers returns the classes at or below root that declare method.
func (s *chaStage) subtreeDeclarers(root ClassInfo, method string, byName map[string]ClassInfo) []ClassInfo {
	var out []ClassInfo
	seen := map[string]bool{}
	queue := []ClassInfo{root}
	for len(queue) > 0 {
		cls := queue[0]
		queue = queue[1:]
		if seen[cls.Name] {
			continue // defensive against malformed extends loops
		}
		seen[cls.Name] = true
		if m, ok := declaredMethod(cls, method); ok && !m.Abstract {
			out = append(out, cls)
		}
		queue = append(queue, s.provider.Subclasses(cls.Name)...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *chaStage) nearestAncestorDeclaring(cls ClassInfo, method string, byName map[string]ClassInfo) (ClassInfo, bool) {
	seen := map[string]bool{cls.Name: true}
	for cls.Extends != "" {
		parent, ok := byName[cls.Extends]
		if !ok || seen[parent.Name] {
			return ClassInfo{}, false
		}
		seen[parent.Name] = true
		if m, found := declaredMethod(parent, method); found && !m.Abstract {
			return parent, true
		}
		cls = parent
	}
	return ClassInfo{}, false
}

func (s *chaStage) emit(st *PipelineState, site CallSite, method string, cands []ClassInfo, confidence float64) {
	binding := chaBinding{site: site, method: method}
	targets := make([]PositionID, 0, len(cands))
	for _, c := range cands {
		m, _ := declaredMethod(c, method)
		targets = append(targets, m.ID)
	}

	for _, c := range cands {
		m, _ := declaredMethod(c, method)
		target := m.ID
		edge := CallEdge{
			Caller:     site.Caller,
			Callee:     target,
			Confidence: confidence,
			Level:      LevelCHAResolved,
			SiteKind:   site.Kind,
			Candidates: targets,
		}
		edge.ID = NewEdgeID(edge.Caller, edge.Callee)
		st.Edges.Upsert(edge)
		binding.candidates = append(binding.candidates, chaCandidate{class: c.Name, target: target, edge: edge.ID})
	}
	st.chaBindings = append(st.chaBindings, binding)
}
