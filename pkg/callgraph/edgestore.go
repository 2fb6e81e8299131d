package callgraph

import (
	"sort"
	"sync"
)

// EdgeStore deduplicates call edges by (caller, callee) pair and merges
// evidence from multiple stages. Safe for concurrent use.
type EdgeStore struct {
	mu       sync.Mutex
	edges    map[EdgeID]*CallEdge
	outgoing map[PositionID][]EdgeID
}

// NewEdgeStore creates an empty edge store.
func NewEdgeStore() *EdgeStore {
	return &EdgeStore{
		edges:    make(map[EdgeID]*CallEdge),
		outgoing: make(map[PositionID][]EdgeID),
	}
}

// Upsert inserts an edge or merges it into the existing (caller, callee)
// entry. The merge never loses evidence:
//
//	confidence       max
//	level            higher precedence wins
//	runtime flag     OR
//	execution count  max
//	candidates       set union
//	metadata         shallow merge, incoming wins per key
//
// Upserting the same edge twice is a no-op, which makes whole-pipeline
// reruns idempotent.
func (s *EdgeStore) Upsert(edge CallEdge) {
	if edge.ID == 0 {
		edge.ID = NewEdgeID(edge.Caller, edge.Callee)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.edges[edge.ID]
	if !ok {
		e := edge
		e.Candidates = append([]PositionID(nil), edge.Candidates...)
		if edge.Metadata != nil {
			e.Metadata = make(map[string]string, len(edge.Metadata))
			for k, v := range edge.Metadata {
				e.Metadata[k] = v
			}
		}
		s.edges[e.ID] = &e
		s.outgoing[e.Caller] = append(s.outgoing[e.Caller], e.ID)
		return
	}

	if edge.Confidence > existing.Confidence {
		existing.Confidence = edge.Confidence
	}
	if edge.Level.Precedence() > existing.Level.Precedence() {
		existing.Level = edge.Level
		existing.SiteKind = edge.SiteKind
	}
	existing.RuntimeConfirmed = existing.RuntimeConfirmed || edge.RuntimeConfirmed
	if edge.ExecutionCount > existing.ExecutionCount {
		existing.ExecutionCount = edge.ExecutionCount
	}
	existing.Candidates = unionIDs(existing.Candidates, edge.Candidates)
	if len(edge.Metadata) > 0 {
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]string, len(edge.Metadata))
		}
		for k, v := range edge.Metadata {
			existing.Metadata[k] = v
		}
	}
}

func unionIDs(a, b []PositionID) []PositionID {
	if len(b) == 0 {
		return a
	}
	seen := make(map[PositionID]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			a = append(a, id)
		}
	}
	return a
}

// Get returns the edge with the given id.
func (s *EdgeStore) Get(id EdgeID) (CallEdge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.edges[id]; ok {
		return cloneEdge(e), true
	}
	return CallEdge{}, false
}

// Narrow replaces an edge's candidate set. Upsert only ever widens
// candidate sets; the RTA narrowing step uses this to shrink them once
// dead candidates are known.
func (s *EdgeStore) Narrow(id EdgeID, candidates []PositionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.edges[id]; ok {
		e.Candidates = append([]PositionID(nil), candidates...)
	}
}

// Delete removes an edge. Only the RTA narrowing step uses this, and only
// for cha_resolved edges whose candidate class turned out not to be live.
func (s *EdgeStore) Delete(id EdgeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.edges[id]
	if !ok {
		return
	}
	delete(s.edges, id)
	s.outgoing[e.Caller] = removeEdgeID(s.outgoing[e.Caller], id)
}

func removeEdgeID(ids []EdgeID, id EdgeID) []EdgeID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Edges returns a snapshot of all edges, ordered by (caller, callee) for
// deterministic output.
func (s *EdgeStore) Edges() []CallEdge {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := make([]CallEdge, 0, len(s.edges))
	for _, e := range s.edges {
		edges = append(edges, cloneEdge(e))
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Caller != edges[j].Caller {
			return edges[i].Caller < edges[j].Caller
		}
		return edges[i].Callee < edges[j].Callee
	})
	return edges
}

// OutgoingFrom returns the edges whose caller is the given node.
func (s *EdgeStore) OutgoingFrom(caller PositionID) []CallEdge {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.outgoing[caller]
	edges := make([]CallEdge, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.edges[id]; ok {
			edges = append(edges, cloneEdge(e))
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Callee < edges[j].Callee })
	return edges
}

// Len returns the number of distinct (caller, callee) pairs.
func (s *EdgeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

func cloneEdge(e *CallEdge) CallEdge {
	out := *e
	out.Candidates = append([]PositionID(nil), e.Candidates...)
	if e.Metadata != nil {
		out.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
