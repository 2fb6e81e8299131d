package callgraph

import (
	"sort"
	"sync"
)

// Registry holds every function definition discovered during extraction.
// Nodes are keyed by PositionID, with secondary indexes for position, line
// and name lookups. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[PositionID]*FunctionNode
	byFile map[string][]PositionID
	byName map[string][]PositionID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		nodes:  make(map[PositionID]*FunctionNode),
		byFile: make(map[string][]PositionID),
		byName: make(map[string][]PositionID),
	}
}

// Add registers a function. The id is derived from (file, span) when unset.
// Adding the same span twice is an idempotent upsert: the latest definition
// wins, indexes gain no duplicates.
func (r *Registry) Add(node FunctionNode) PositionID {
	if node.ID == 0 {
		node.ID = NewPositionID(node.File, node.StartByte, node.EndByte)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.nodes[node.ID]; ok {
		if prev.Name != node.Name {
			r.byName[prev.Name] = removeID(r.byName[prev.Name], node.ID)
			r.byName[node.Name] = append(r.byName[node.Name], node.ID)
		}
		r.nodes[node.ID] = &node
		return node.ID
	}

	r.nodes[node.ID] = &node
	r.byFile[node.File] = append(r.byFile[node.File], node.ID)
	r.byName[node.Name] = append(r.byName[node.Name], node.ID)
	return node.ID
}

func removeID(ids []PositionID, id PositionID) []PositionID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ByID returns the node with the given id.
func (r *Registry) ByID(id PositionID) (FunctionNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n, ok := r.nodes[id]; ok {
		return *n, true
	}
	return FunctionNode{}, false
}

// ByPosition returns the node with the exact (file, span) key.
func (r *Registry) ByPosition(file string, startByte, endByte uint32) (FunctionNode, bool) {
	return r.ByID(NewPositionID(file, startByte, endByte))
}

// ByLine returns the innermost function whose line span covers line in file.
func (r *Registry) ByLine(file string, line uint32) (FunctionNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *FunctionNode
	for _, id := range r.byFile[file] {
		n := r.nodes[id]
		if n.StartLine > line || n.EndLine < line {
			continue
		}
		if best == nil || n.EndLine-n.StartLine < best.EndLine-best.StartLine {
			best = n
		}
	}
	if best == nil {
		return FunctionNode{}, false
	}
	return *best, true
}

// ByName returns all functions with the given (unqualified) name.
func (r *Registry) ByName(name string) []FunctionNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byName[name])
}

// InFile returns all functions defined in file, ordered by start byte.
func (r *Registry) InFile(file string) []FunctionNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nodes := r.collect(r.byFile[file])
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].StartByte < nodes[j].StartByte })
	return nodes
}

// All returns every registered function, ordered by (file, start byte) for
// deterministic iteration.
func (r *Registry) All() []FunctionNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]FunctionNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		nodes = append(nodes, *n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].File != nodes[j].File {
			return nodes[i].File < nodes[j].File
		}
		return nodes[i].StartByte < nodes[j].StartByte
	})
	return nodes
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func (r *Registry) collect(ids []PositionID) []FunctionNode {
	nodes := make([]FunctionNode, 0, len(ids))
	for _, id := range ids {
		if n, ok := r.nodes[id]; ok {
			nodes = append(nodes, *n)
		}
	}
	return nodes
}
