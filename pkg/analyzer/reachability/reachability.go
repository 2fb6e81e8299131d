// Package reachability partitions a call graph into functions reachable
// from a set of entry points and functions that are not.
package reachability

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/auspexhq/auspex/pkg/callgraph"
)

// Result is the reachable/unreachable partition of the registry.
type Result struct {
	Reachable   []callgraph.FunctionNode `json:"reachable"`
	Unreachable []callgraph.FunctionNode `json:"unreachable"`

	reachable map[callgraph.PositionID]bool
}

// IsReachable reports whether the function is reachable from any entry
// point.
func (r *Result) IsReachable(id callgraph.PositionID) bool {
	return r.reachable[id]
}

// Analyze runs a multi-source traversal from the entry points over the
// given edges. Functions are indexed densely so the visited set can live
// in a Roaring bitmap; on large graphs the reachable set is sparse
// relative to the index space, which is the bitmap's sweet spot. Entry
// points missing from the registry are ignored.
func Analyze(registry *callgraph.Registry, edges []callgraph.CallEdge, entryPoints []callgraph.PositionID) *Result {
	all := registry.All()

	// Dense index over the deterministic registry order.
	index := make(map[callgraph.PositionID]uint32, len(all))
	for i, fn := range all {
		index[fn.ID] = uint32(i)
	}

	adjacency := make([][]uint32, len(all))
	for _, e := range edges {
		from, okFrom := index[e.Caller]
		to, okTo := index[e.Callee]
		if !okFrom || !okTo {
			continue // edge endpoint outside the registry
		}
		adjacency[from] = append(adjacency[from], to)
	}

	visited := roaring.New()
	queue := make([]uint32, 0, len(entryPoints))
	for _, ep := range entryPoints {
		if i, ok := index[ep]; ok && !visited.Contains(i) {
			visited.Add(i)
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[cur] {
			if visited.Contains(next) {
				continue
			}
			visited.Add(next)
			queue = append(queue, next)
		}
	}

	result := &Result{reachable: make(map[callgraph.PositionID]bool, visited.GetCardinality())}
	for i, fn := range all {
		if visited.Contains(uint32(i)) {
			result.reachable[fn.ID] = true
			result.Reachable = append(result.Reachable, fn)
		} else {
			result.Unreachable = append(result.Unreachable, fn)
		}
	}
	return result
}
