package callgraph

import (
	"reflect"
	"testing"
)

func TestUpsertIsIdempotent(t *testing.T) {
	s := NewEdgeStore()
	edge := CallEdge{Caller: 1, Callee: 2, Confidence: 0.8, Level: LevelCHAResolved}

	s.Upsert(edge)
	before, _ := s.Get(NewEdgeID(1, 2))
	s.Upsert(edge)
	after, _ := s.Get(NewEdgeID(1, 2))

	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("re-upsert changed edge: %+v vs %+v", before, after)
	}
}

func TestUpsertNeverLosesEvidence(t *testing.T) {
	s := NewEdgeStore()
	s.Upsert(CallEdge{
		Caller:     1,
		Callee:     2,
		Confidence: 0.8,
		Level:      LevelCHAResolved,
		SiteKind:   SitePropertyAccess,
		Candidates: []PositionID{2, 3},
		Metadata:   map[string]string{"stage": "cha", "keep": "yes"},
	})
	s.Upsert(CallEdge{
		Caller:           1,
		Callee:           2,
		Confidence:       1.0,
		Level:            LevelRuntimeConfirmed,
		SiteKind:         SiteIdentifier,
		RuntimeConfirmed: true,
		ExecutionCount:   42,
		Candidates:       []PositionID{4},
		Metadata:         map[string]string{"stage": "trace"},
	})

	e, ok := s.Get(NewEdgeID(1, 2))
	if !ok {
		t.Fatal("edge missing")
	}
	if e.Confidence != 1.0 {
		t.Errorf("confidence = %v, want max 1.0", e.Confidence)
	}
	if e.Level != LevelRuntimeConfirmed || e.SiteKind != SiteIdentifier {
		t.Errorf("level/site = %v/%v, want higher precedence to win", e.Level, e.SiteKind)
	}
	if !e.RuntimeConfirmed || e.ExecutionCount != 42 {
		t.Errorf("runtime = %v/%d, want true/42", e.RuntimeConfirmed, e.ExecutionCount)
	}
	if len(e.Candidates) != 3 {
		t.Errorf("candidates = %v, want union of 3", e.Candidates)
	}
	if e.Metadata["stage"] != "trace" || e.Metadata["keep"] != "yes" {
		t.Errorf("metadata = %v, want incoming to win per key", e.Metadata)
	}
}

func TestUpsertLowerEvidenceDoesNotDowngrade(t *testing.T) {
	s := NewEdgeStore()
	s.Upsert(CallEdge{Caller: 1, Callee: 2, Confidence: 1.0, Level: LevelLocalExact, SiteKind: SiteIdentifier})
	s.Upsert(CallEdge{Caller: 1, Callee: 2, Confidence: 0.8, Level: LevelCHAResolved, SiteKind: SitePropertyAccess})

	e, _ := s.Get(NewEdgeID(1, 2))
	if e.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 retained", e.Confidence)
	}
	if e.Level != LevelLocalExact || e.SiteKind != SiteIdentifier {
		t.Errorf("level/site = %v/%v, want local_exact retained", e.Level, e.SiteKind)
	}
}

func TestUpsertDeduplicatesPairs(t *testing.T) {
	s := NewEdgeStore()
	s.Upsert(CallEdge{Caller: 1, Callee: 2, Confidence: 0.8, Level: LevelCHAResolved})
	s.Upsert(CallEdge{Caller: 1, Callee: 2, Confidence: 0.9, Level: LevelRTAResolved})
	s.Upsert(CallEdge{Caller: 1, Callee: 3, Confidence: 0.8, Level: LevelCHAResolved})

	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2 distinct pairs", s.Len())
	}

	seen := make(map[EdgeID]bool)
	for _, e := range s.Edges() {
		if seen[e.ID] {
			t.Errorf("duplicate edge id %v in snapshot", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestNarrowAndDelete(t *testing.T) {
	s := NewEdgeStore()
	s.Upsert(CallEdge{Caller: 1, Callee: 2, Confidence: 0.8, Level: LevelCHAResolved, Candidates: []PositionID{2, 3}})
	s.Upsert(CallEdge{Caller: 1, Callee: 3, Confidence: 0.8, Level: LevelCHAResolved, Candidates: []PositionID{2, 3}})

	s.Narrow(NewEdgeID(1, 2), []PositionID{2})
	s.Delete(NewEdgeID(1, 3))

	e, ok := s.Get(NewEdgeID(1, 2))
	if !ok || len(e.Candidates) != 1 || e.Candidates[0] != 2 {
		t.Errorf("narrowed candidates = %v, want [2]", e.Candidates)
	}
	if _, ok := s.Get(NewEdgeID(1, 3)); ok {
		t.Error("deleted edge still present")
	}
	out := s.OutgoingFrom(1)
	if len(out) != 1 || out[0].Callee != 2 {
		t.Errorf("OutgoingFrom = %+v, want the surviving edge only", out)
	}
}

func TestEdgesSnapshotIsIsolated(t *testing.T) {
	s := NewEdgeStore()
	s.Upsert(CallEdge{Caller: 1, Callee: 2, Confidence: 0.8, Level: LevelCHAResolved, Candidates: []PositionID{2}})

	snap := s.Edges()
	snap[0].Candidates[0] = 99
	snap[0].Confidence = 0

	e, _ := s.Get(NewEdgeID(1, 2))
	if e.Candidates[0] != 2 || e.Confidence != 0.8 {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestEdgesOrderedByCallerCallee(t *testing.T) {
	s := NewEdgeStore()
	s.Upsert(CallEdge{Caller: 2, Callee: 1, Confidence: 0.8, Level: LevelCHAResolved})
	s.Upsert(CallEdge{Caller: 1, Callee: 3, Confidence: 0.8, Level: LevelCHAResolved})
	s.Upsert(CallEdge{Caller: 1, Callee: 2, Confidence: 0.8, Level: LevelCHAResolved})

	edges := s.Edges()
	for i := 1; i < len(edges); i++ {
		prev, cur := edges[i-1], edges[i]
		if prev.Caller > cur.Caller || (prev.Caller == cur.Caller && prev.Callee > cur.Callee) {
			t.Fatalf("edges out of order at %d: %+v before %+v", i, prev, cur)
		}
	}
}
