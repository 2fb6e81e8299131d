// Package scc finds recursion cycles in a call graph: strongly connected
// components of size two or more, plus directly self-recursive functions.
package scc

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/auspexhq/auspex/pkg/callgraph"
)

// Component is one recursion cycle. Members are ordered by
// (file, start byte) for deterministic output.
type Component struct {
	Members []callgraph.FunctionNode `json:"members"`
}

// Result holds the cycles found in a call graph.
type Result struct {
	Components []Component `json:"components"`

	// Recursive marks every function that participates in a cycle,
	// including direct self-recursion.
	Recursive map[callgraph.PositionID]bool `json:"-"`
}

// IsRecursive reports whether the function takes part in any cycle.
func (r *Result) IsRecursive(id callgraph.PositionID) bool {
	return r.Recursive[id]
}

// Analyze finds every recursion cycle among the given edges. A single
// function forms a component only when it has a self-edge.
func Analyze(registry *callgraph.Registry, edges []callgraph.CallEdge) *Result {
	// gonum's simple graphs reject self-loops; track them separately and
	// fold them back in afterwards.
	g := simple.NewDirectedGraph()
	ids := make(map[callgraph.PositionID]int64)
	nodes := make(map[int64]callgraph.PositionID)
	selfLoops := make(map[callgraph.PositionID]bool)

	intern := func(id callgraph.PositionID) int64 {
		if gid, ok := ids[id]; ok {
			return gid
		}
		gid := int64(len(ids))
		ids[id] = gid
		nodes[gid] = id
		g.AddNode(simple.Node(gid))
		return gid
	}

	for _, e := range edges {
		if e.Caller == e.Callee {
			intern(e.Caller)
			selfLoops[e.Caller] = true
			continue
		}
		from := intern(e.Caller)
		to := intern(e.Callee)
		g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}

	result := &Result{Recursive: make(map[callgraph.PositionID]bool)}

	for _, comp := range topo.TarjanSCC(g) {
		if len(comp) < 2 {
			continue
		}
		members := make([]callgraph.PositionID, 0, len(comp))
		for _, n := range comp {
			members = append(members, nodes[n.ID()])
		}
		result.addComponent(registry, members)
	}

	// Self-recursive functions outside larger cycles form singleton
	// components.
	for id := range selfLoops {
		if result.Recursive[id] {
			continue
		}
		result.addComponent(registry, []callgraph.PositionID{id})
	}

	sort.Slice(result.Components, func(i, j int) bool {
		a, b := result.Components[i].Members[0], result.Components[j].Members[0]
		if a.File != b.File {
			return a.File < b.File
		}
		return a.StartByte < b.StartByte
	})
	return result
}

func (r *Result) addComponent(registry *callgraph.Registry, members []callgraph.PositionID) {
	comp := Component{Members: make([]callgraph.FunctionNode, 0, len(members))}
	for _, id := range members {
		r.Recursive[id] = true
		if fn, ok := registry.ByID(id); ok {
			comp.Members = append(comp.Members, fn)
		} else {
			comp.Members = append(comp.Members, callgraph.FunctionNode{ID: id})
		}
	}
	sort.Slice(comp.Members, func(i, j int) bool {
		if comp.Members[i].File != comp.Members[j].File {
			return comp.Members[i].File < comp.Members[j].File
		}
		return comp.Members[i].StartByte < comp.Members[j].StartByte
	})
	r.Components = append(r.Components, comp)
}
