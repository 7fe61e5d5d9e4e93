package graph

import (
	"fmt"
	"slices"

	"github.com/terrane-dev/terrane/internal/model"
)

// Graph is the validated dependency DAG plus its precomputed wavefront
// ordering. Construction happens once per convergence run via Build; the
// graph is read-only afterwards.
type Graph struct {
	topo       *model.Topology
	deps       map[model.NodeID][]model.NodeID // node -> nodes it depends on
	dependents map[model.NodeID][]model.NodeID // node -> nodes depending on it
	wavefronts [][]model.NodeID
}

// anchorAttr names, per kind, the attribute that carries an implicit
// reference to the resource the node cannot exist without.
var anchorAttr = map[model.Kind]struct {
	attr string
	kind model.Kind
}{
	model.KindSecretVersion: {attr: "secret", kind: model.KindSecret},
	model.KindSQLUser:       {attr: "instance", kind: model.KindSQLInstance},
	model.KindSQLDatabase:   {attr: "instance", kind: model.KindSQLInstance},
}

// roleScopeKind constrains, per resource-scoped role, the kind of node the
// grant may be scoped to.
var roleScopeKind = map[model.Role]model.Kind{
	model.RoleRegistryReader: model.KindRegistry,
	model.RoleRegistryWriter: model.KindRegistry,
	model.RoleSecretAccessor: model.KindSecret,
	model.RoleRunInvoker:     model.KindComputeService,
}

// Build derives the dependency DAG from the topology and validates it.
// All configuration errors are collected; the graph is only usable when the
// returned slice is empty.
func Build(topo *model.Topology) (*Graph, []*ConfigError) {
	g := &Graph{
		topo:       topo,
		deps:       make(map[model.NodeID][]model.NodeID, topo.Len()),
		dependents: make(map[model.NodeID][]model.NodeID, topo.Len()),
	}

	var errs []*ConfigError
	for _, n := range topo.Nodes() {
		errs = append(errs, g.collectEdges(&n)...)
	}

	// Edge-level defects make cycle analysis meaningless; stop here.
	if len(errs) > 0 {
		return nil, errs
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, []*ConfigError{{
			Code:    ErrCyclicDependency,
			Message: "reference relation contains a cycle",
			Nodes:   cycle,
		}}
	}

	g.wavefronts = g.layer()
	return g, nil
}

// collectEdges gathers explicit references and implicit anchor/scope edges
// for one node, validating each edge target as it goes.
func (g *Graph) collectEdges(n *model.ResourceNode) []*ConfigError {
	var errs []*ConfigError
	seen := make(map[model.NodeID]bool)

	addEdge := func(to model.NodeID) {
		if seen[to] {
			return
		}
		seen[to] = true
		g.deps[n.ID] = append(g.deps[n.ID], to)
		g.dependents[to] = append(g.dependents[to], n.ID)
	}

	// Explicit references.
	for _, ref := range n.References {
		if ref == n.ID {
			errs = append(errs, &ConfigError{
				Code: ErrSelfReference, NodeID: n.ID,
				Message: "node references itself",
			})
			continue
		}
		if g.topo.Node(ref) == nil {
			errs = append(errs, &ConfigError{
				Code: ErrUnresolvedReference, NodeID: n.ID,
				Message: fmt.Sprintf("reference to undeclared node %q", ref),
			})
			continue
		}
		addEdge(ref)
	}

	// Implicit edges from "${ref:...}" attribute templates: a node that
	// interpolates another node's realized output depends on it.
	for _, ref := range model.CollectRefs(n.Attributes) {
		if ref == n.ID {
			errs = append(errs, &ConfigError{
				Code: ErrSelfReference, NodeID: n.ID,
				Message: "attribute template references the node itself",
			})
			continue
		}
		if g.topo.Node(ref) == nil {
			errs = append(errs, &ConfigError{
				Code: ErrUnresolvedReference, NodeID: n.ID,
				Message: fmt.Sprintf("attribute template references undeclared node %q", ref),
			})
			continue
		}
		addEdge(ref)
	}

	// Implicit anchor edge (secret version -> secret, sql user -> instance).
	if anchor, ok := anchorAttr[n.Kind]; ok {
		target := model.NodeID(model.GoString(n.Attributes[anchor.attr]))
		switch {
		case target == "":
			errs = append(errs, &ConfigError{
				Code: ErrMissingAnchor, NodeID: n.ID,
				Message: fmt.Sprintf("%s requires attribute %q naming a %s node", n.Kind, anchor.attr, anchor.kind),
			})
		case g.topo.Node(target) == nil:
			errs = append(errs, &ConfigError{
				Code: ErrUnresolvedReference, NodeID: n.ID,
				Message: fmt.Sprintf("attribute %q names undeclared node %q", anchor.attr, target),
			})
		case g.topo.Node(target).Kind != anchor.kind:
			errs = append(errs, &ConfigError{
				Code: ErrAnchorKind, NodeID: n.ID,
				Message: fmt.Sprintf("attribute %q must name a %s node, %q is a %s", anchor.attr, anchor.kind, target, g.topo.Node(target).Kind),
			})
		default:
			addEdge(target)
		}
	}

	if n.Kind == model.KindIAMBinding {
		errs = append(errs, g.collectBindingEdges(n, addEdge)...)
	}

	// Deterministic adjacency regardless of declaration order.
	slices.Sort(g.deps[n.ID])
	return errs
}

// collectBindingEdges validates a binding triple and wires its scope and
// principal dependencies. The scope edge is what guarantees a grant is only
// issued after the resource it covers has converged.
func (g *Graph) collectBindingEdges(n *model.ResourceNode, addEdge func(model.NodeID)) []*ConfigError {
	var errs []*ConfigError
	b := n.Binding

	if !model.KnownRole(b.Role) {
		errs = append(errs, &ConfigError{
			Code: ErrUnknownRole, NodeID: n.ID,
			Message: fmt.Sprintf("role %q is not grantable by this engine", b.Role),
		})
		return errs
	}

	if b.ProjectScoped() {
		// Least privilege: a role with a resource-level scope must use it.
		if model.RoleHasResourceScope(b.Role) {
			errs = append(errs, &ConfigError{
				Code: ErrOverBroadScope, NodeID: n.ID,
				Message: fmt.Sprintf("role %q has a resource-level scope; project-wide grant is over-broad", b.Role),
			})
		}
	} else {
		scoped := g.topo.Node(b.Scope)
		switch {
		case scoped == nil:
			errs = append(errs, &ConfigError{
				Code: ErrUnresolvedReference, NodeID: n.ID,
				Message: fmt.Sprintf("binding scope names undeclared node %q", b.Scope),
			})
		case roleScopeKind[b.Role] != scoped.Kind:
			errs = append(errs, &ConfigError{
				Code: ErrAnchorKind, NodeID: n.ID,
				Message: fmt.Sprintf("role %q cannot be scoped to a %s node", b.Role, scoped.Kind),
			})
		default:
			addEdge(b.Scope)
		}
	}

	// A principal written as a node ID refers to a declared ServiceAccount;
	// its realized email is read from that node's output at reconcile time.
	if principal := model.NodeID(b.Principal); g.topo.Node(principal) != nil {
		if g.topo.Node(principal).Kind != model.KindServiceAccount {
			errs = append(errs, &ConfigError{
				Code: ErrAnchorKind, NodeID: n.ID,
				Message: fmt.Sprintf("binding principal %q is a %s node, not a ServiceAccount", principal, g.topo.Node(principal).Kind),
			})
		} else {
			addEdge(principal)
		}
	}

	return errs
}

// Topology returns the underlying resource set.
func (g *Graph) Topology() *model.Topology {
	return g.topo
}

// Dependencies returns the nodes id depends on, in stable order.
func (g *Graph) Dependencies(id model.NodeID) []model.NodeID {
	return g.deps[id]
}

// Dependents returns the nodes that depend on id directly.
func (g *Graph) Dependents(id model.NodeID) []model.NodeID {
	deps := slices.Clone(g.dependents[id])
	slices.Sort(deps)
	return deps
}

// TransitiveDependents returns every node downstream of id, in stable order.
// The scheduler uses this to propagate Blocked status past a failed node.
func (g *Graph) TransitiveDependents(id model.NodeID) []model.NodeID {
	visited := make(map[model.NodeID]bool)
	queue := []model.NodeID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependents[current] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	out := make([]model.NodeID, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
