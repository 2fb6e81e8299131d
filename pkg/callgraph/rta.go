package callgraph

import (
	"context"
)

// rtaStage narrows CHA candidate sets with rapid type analysis: a candidate
// survives only when its declaring class can actually exist at runtime.
// The live-type set is seeded from every new-expression seen during
// extraction; an abstract declarer stays reachable while a live descendant
// inherits the implementation without overriding it. Surviving candidates
// rise to the RTA confidence; candidates whose class is provably never
// instantiated are removed. When no instantiation evidence exists for a
// site, the conservative CHA result is kept untouched.
type rtaStage struct {
	weights  Weights
	provider SymbolProvider
}

func (s *rtaStage) Name() string { return "rta_resolved" }

func (s *rtaStage) Run(ctx context.Context, st *PipelineState) error {
	s.markLive(st)
	if len(st.Live) == 0 {
		return nil
	}

	for _, binding := range st.chaBindings {
		if err := ctx.Err(); err != nil {
			return err
		}

		var survivors []chaCandidate
		for _, cand := range binding.candidates {
			if st.Live[cand.class] || s.inheritsLive(cand.class, binding.method, st.Live) {
				survivors = append(survivors, cand)
			}
		}

		// No survivors means no instantiation evidence for this hierarchy
		// at all; keep the CHA result rather than narrow to nothing.
		if len(survivors) == 0 {
			continue
		}

		s.upgrade(st, binding, survivors)

		if len(survivors) == len(binding.candidates) {
			continue
		}
		alive := make(map[EdgeID]bool, len(survivors))
		for _, cand := range survivors {
			alive[cand.edge] = true
		}
		for _, cand := range binding.candidates {
			if alive[cand.edge] {
				continue
			}
			if e, ok := st.Edges.Get(cand.edge); ok && e.Level == LevelCHAResolved {
				st.Edges.Delete(cand.edge)
			}
		}
	}
	return nil
}

// markLive resolves the instantiated class names recorded during extraction
// against the provider and seeds the live set.
func (s *rtaStage) markLive(st *PipelineState) {
	for file, names := range st.instantiated {
		for _, name := range names {
			if info, ok := s.provider.ClassByName(file, name); ok {
				st.Live[info.Name] = true
			} else {
				// Keep the raw name; a same-project class may still match
				// even when the receiver file's import table does not.
				st.Live[name] = true
			}
		}
	}
}

// inheritsLive reports whether some live descendant of class resolves
// method to the implementation declared on class, i.e. reaches it with no
// override in between.
func (s *rtaStage) inheritsLive(class, method string, live map[string]bool) bool {
	var walk func(name string, seen map[string]bool) bool
	walk = func(name string, seen map[string]bool) bool {
		if seen[name] {
			return false // defensive against malformed extends loops
		}
		seen[name] = true
		for _, sub := range s.provider.Subclasses(name) {
			if _, overridden := sub.Methods[method]; overridden {
				continue
			}
			if live[sub.Name] || walk(sub.Name, seen) {
				return true
			}
		}
		return false
	}
	return walk(class, map[string]bool{})
}

func (s *rtaStage) upgrade(st *PipelineState, binding chaBinding, survivors []chaCandidate) {
	targets := make([]PositionID, 0, len(survivors))
	for _, cand := range survivors {
		targets = append(targets, cand.target)
	}
	for _, cand := range survivors {
		st.Edges.Upsert(CallEdge{
			Caller:     binding.site.Caller,
			Callee:     cand.target,
			Confidence: s.weights.RTA,
			Level:      LevelRTAResolved,
			SiteKind:   binding.site.Kind,
		})
		st.Edges.Narrow(NewEdgeID(binding.site.Caller, cand.target), targets)
	}
}
