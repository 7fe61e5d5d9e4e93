package engine

import (
	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/model"
)

// NodeStatus is the per-node convergence status within one run.
//
// Transitions are monotonic within a run:
//
//	Pending -> Converged
//	Pending -> Failed
//	Pending -> Blocked  (an upstream dependency failed)
//	Pending -> Skipped  (run cancelled or aborted before release)
type NodeStatus string

const (
	StatusPending   NodeStatus = "Pending"
	StatusConverged NodeStatus = "Converged"
	StatusFailed    NodeStatus = "Failed"
	StatusBlocked   NodeStatus = "Blocked"
	StatusSkipped   NodeStatus = "Skipped"
)

// Terminal reports whether the status is final for the run.
func (s NodeStatus) Terminal() bool {
	return s != StatusPending
}

// Action is the mutation decision the executor took for a node.
type Action string

const (
	// ActionNone means observed state already matched the desired
	// attributes; no mutating call was issued.
	ActionNone Action = "none"
	// ActionCreate means the resource did not exist and was created.
	ActionCreate Action = "create"
	// ActionUpdate means the resource existed but diverged on at least
	// one desired attribute.
	ActionUpdate Action = "update"
)

// RunStatus is the overall outcome of one Converge call.
type RunStatus string

const (
	// StatusAllConverged: every node reached Converged.
	StatusAllConverged RunStatus = "AllConverged"
	// StatusPartiallyConverged: at least one node Failed, Blocked or
	// Skipped, but the run itself completed normally.
	StatusPartiallyConverged RunStatus = "PartiallyConverged"
	// StatusAborted: an auth failure or other global-fatal condition
	// stopped the run before remaining wavefronts were released.
	StatusAborted RunStatus = "Aborted"
)

// NodeResult is the terminal record of one node in a run.
type NodeResult struct {
	Status NodeStatus
	Action Action
	// Output holds the node's realized attributes when Status is
	// Converged. Pending otherwise.
	Output model.Output
	// Err is the causal error for a Failed node, nil otherwise.
	// Blocked nodes carry no error; their cause is BlockedBy.
	Err error
	// Class is the remote error class of Err, when it has one.
	Class cloud.ErrorClass
	// BlockedBy names the failed upstream node for a Blocked node.
	BlockedBy model.NodeID
}

// Result is the outcome of one Converge call.
type Result struct {
	RunID  string
	Status RunStatus
	Nodes  map[model.NodeID]NodeResult
	// Outputs holds the externally consumed values, resolved only when
	// every node converged. Nil otherwise.
	Outputs map[string]string
	// Errs aggregates the causal errors of Failed nodes in node-ID order.
	Errs []error
}

// Counts returns the number of nodes per status.
func (r *Result) Counts() map[NodeStatus]int {
	counts := make(map[NodeStatus]int)
	for _, nr := range r.Nodes {
		counts[nr.Status]++
	}
	return counts
}

// Transition is one recorded status change, stamped by the logical clock.
type Transition struct {
	Seq    int64
	RunID  string
	NodeID model.NodeID
	From   NodeStatus
	To     NodeStatus
	Action Action
	Class  cloud.ErrorClass
	Detail string
}

// TransitionRecorder receives every status transition as it happens.
// Implemented by the journal; must be safe for concurrent use.
type TransitionRecorder interface {
	Record(t Transition) error
}

type nopRecorder struct{}

func (nopRecorder) Record(Transition) error { return nil }
