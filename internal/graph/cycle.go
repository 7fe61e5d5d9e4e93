package graph

import (
	"slices"

	"github.com/terrane-dev/terrane/internal/model"
)

// findCycle detects a cycle in the reference relation via depth-first
// traversal with a recursion-stack set. Returns the involved node path
// (first node repeated at the end), or nil for an acyclic graph.
//
// Unlike the engine's runtime guards, a cycle here is a hard configuration
// error: a topology that cannot be ordered cannot be converged at all.
func (g *Graph) findCycle() []model.NodeID {
	const (
		unvisited = iota
		inStack
		done
	)

	state := make(map[model.NodeID]int, g.topo.Len())
	var stack []model.NodeID
	var cycle []model.NodeID

	var visit func(model.NodeID) bool
	visit = func(id model.NodeID) bool {
		state[id] = inStack
		stack = append(stack, id)

		for _, dep := range g.deps[id] {
			switch state[dep] {
			case inStack:
				// Found the back edge; slice the recursion stack from the
				// first occurrence of dep to get the cycle path.
				start := slices.Index(stack, dep)
				cycle = append(slices.Clone(stack[start:]), dep)
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	// Nodes() is ID-sorted, so the reported cycle is deterministic.
	for _, n := range g.topo.Nodes() {
		if state[n.ID] == unvisited && visit(n.ID) {
			return cycle
		}
	}
	return nil
}
