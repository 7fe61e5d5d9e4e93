package model

import (
	"cmp"
	"fmt"
	"slices"
)

// NodeID uniquely identifies a resource node within one topology.
type NodeID string

func (id NodeID) String() string { return string(id) }

// Kind enumerates the resource kinds this engine converges.
// The vocabulary is fixed: the engine is not a general-purpose provisioner.
type Kind string

const (
	KindAPIEnablement  Kind = "ApiEnablement"
	KindRegistry       Kind = "Registry"
	KindServiceAccount Kind = "ServiceAccount"
	KindSecret         Kind = "Secret"
	KindSecretVersion  Kind = "SecretVersion"
	KindSQLInstance    Kind = "SqlInstance"
	KindSQLUser        Kind = "SqlUser"
	KindSQLDatabase    Kind = "SqlDatabase"
	KindComputeService Kind = "ComputeService"
	KindIAMBinding     Kind = "IamBinding"
)

// Kinds lists every valid kind in declaration order.
var Kinds = []Kind{
	KindAPIEnablement,
	KindRegistry,
	KindServiceAccount,
	KindSecret,
	KindSecretVersion,
	KindSQLInstance,
	KindSQLUser,
	KindSQLDatabase,
	KindComputeService,
	KindIAMBinding,
}

// ValidKind reports whether k is part of the fixed vocabulary.
func ValidKind(k Kind) bool {
	return slices.Contains(Kinds, k)
}

// ResourceNode is one declared resource: what it is, how it should look, and
// which other nodes must be live before it can be converged.
//
// References list node IDs whose realized output this node's attributes
// depend on (a ComputeService references the SqlInstance whose connection
// name it mounts). The reference relation must induce a DAG; the graph
// builder rejects cycles before any remote call happens.
type ResourceNode struct {
	ID         NodeID
	Kind       Kind
	Attributes Attributes
	References []NodeID

	// Binding is set only for KindIAMBinding nodes.
	Binding *Binding
}

// RefersTo reports whether the node references id.
func (n *ResourceNode) RefersTo(id NodeID) bool {
	return slices.Contains(n.References, id)
}

// Topology is the full immutable resource set for one convergence run.
// It is constructed once from validated input, consumed read-only by the
// scheduler and executor, and discarded after the run. There is no long-lived
// cross-run cache: every invocation re-derives it fresh.
type Topology struct {
	// Project is the target project/namespace identifier used when a binding
	// has no finer-grained scope.
	Project string

	nodes []ResourceNode
	byID  map[NodeID]*ResourceNode
}

// NewTopology builds a Topology from a node set. Node IDs must be unique and
// kinds must be part of the fixed vocabulary; structural validation beyond
// that (references, cycles, IAM narrowness) belongs to the graph builder.
func NewTopology(project string, nodes []ResourceNode) (*Topology, error) {
	t := &Topology{
		Project: project,
		nodes:   slices.Clone(nodes),
		byID:    make(map[NodeID]*ResourceNode, len(nodes)),
	}
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("node %d: empty id", i)
		}
		if !ValidKind(n.Kind) {
			return nil, fmt.Errorf("node %s: unknown kind %q", n.ID, n.Kind)
		}
		if _, dup := t.byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %s", n.ID)
		}
		if n.Kind == KindIAMBinding && n.Binding == nil {
			return nil, fmt.Errorf("node %s: IamBinding node without binding triple", n.ID)
		}
		if n.Kind != KindIAMBinding && n.Binding != nil {
			return nil, fmt.Errorf("node %s: binding triple on non-binding kind %s", n.ID, n.Kind)
		}
		t.byID[n.ID] = n
	}
	// Stable order for deterministic iteration regardless of input order.
	// Plain byte order, the same comparator every other node-ID ordering
	// (wavefronts, adjacency, rendered output) uses; UTF-16 ordering is
	// reserved for canonical JSON keys.
	slices.SortFunc(t.nodes, func(a, b ResourceNode) int {
		return cmp.Compare(a.ID, b.ID)
	})
	// Re-index after sorting moved the elements.
	for i := range t.nodes {
		t.byID[t.nodes[i].ID] = &t.nodes[i]
	}
	return t, nil
}

// Node returns the node with the given ID, or nil.
func (t *Topology) Node(id NodeID) *ResourceNode {
	return t.byID[id]
}

// Nodes returns all nodes in stable (ID) order.
// The slice is shared; callers must not mutate it.
func (t *Topology) Nodes() []ResourceNode {
	return t.nodes
}

// Len returns the number of nodes.
func (t *Topology) Len() int {
	return len(t.nodes)
}
