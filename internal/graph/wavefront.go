package graph

import (
	"slices"

	"github.com/terrane-dev/terrane/internal/model"
)

// layer computes the wavefront ordering: wavefront 0 holds every node with
// no dependencies; wavefront k holds nodes whose dependencies all sit in
// earlier wavefronts. Within a wavefront nodes are sorted by ID, so the
// schedule is reproducible run to run.
//
// Precondition: the graph is acyclic (findCycle returned nil), so every node
// is assigned to exactly one wavefront.
func (g *Graph) layer() [][]model.NodeID {
	remaining := make(map[model.NodeID]int, g.topo.Len())
	for _, n := range g.topo.Nodes() {
		remaining[n.ID] = len(g.deps[n.ID])
	}

	var fronts [][]model.NodeID
	assigned := 0
	for assigned < g.topo.Len() {
		var front []model.NodeID
		for _, n := range g.topo.Nodes() {
			if remaining[n.ID] == 0 {
				front = append(front, n.ID)
			}
		}
		if len(front) == 0 {
			// Unreachable for an acyclic graph; guards against looping
			// forever if the precondition is ever violated.
			break
		}
		// Nodes() is ID-sorted already; keep the explicit sort as the
		// ordering contract rather than an iteration accident.
		slices.Sort(front)

		for _, id := range front {
			remaining[id] = -1 // assigned
			for _, dep := range g.dependents[id] {
				remaining[dep]--
			}
		}
		fronts = append(fronts, front)
		assigned += len(front)
	}
	return fronts
}

// Wavefronts returns the precomputed wavefront ordering.
// The slices are shared; callers must not mutate them.
func (g *Graph) Wavefronts() [][]model.NodeID {
	return g.wavefronts
}
