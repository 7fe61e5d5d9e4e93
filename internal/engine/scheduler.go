package engine

import (
	"context"
	"sync"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/graph"
	"github.com/terrane-dev/terrane/internal/model"
)

// run holds the mutable state of one Converge call.
//
// Workers from the same wavefront mutate status, results and outputs
// concurrently; every access goes through mu. Wavefront boundaries are
// synchronization points: once runWavefront returns, all of its nodes are
// terminal and their outputs are visible to the next wavefront without
// further coordination.
type run struct {
	e     *Engine
	graph *graph.Graph
	topo  *model.Topology
	id    string
	clock *Clock

	mu      sync.Mutex
	status  map[model.NodeID]NodeStatus
	results map[model.NodeID]NodeResult
	outputs map[model.NodeID]model.Output
	blocked map[model.NodeID]model.NodeID // blocked node -> failed upstream
	authErr error
}

// execute walks the wavefronts in order. Cancellation and auth aborts are
// checked only between wavefronts, so a released wavefront always runs to
// completion.
func (r *run) execute(ctx context.Context) {
	fronts := r.graph.Wavefronts()
	for i, front := range fronts {
		if err := ctx.Err(); err != nil {
			r.skipRemaining(fronts[i:], "run cancelled")
			return
		}
		if r.aborted() {
			r.skipRemaining(fronts[i:], "run aborted")
			return
		}
		r.runWavefront(ctx, front)
	}
}

// runWavefront converges every runnable node of one wavefront through a
// bounded worker pool and waits for all of them.
func (r *run) runWavefront(ctx context.Context, front []model.NodeID) {
	sem := make(chan struct{}, r.e.parallelism)
	var wg sync.WaitGroup
	for _, id := range front {
		if upstream, isBlocked := r.blockedBy(id); isBlocked {
			r.markBlocked(id, upstream)
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id model.NodeID) {
			defer wg.Done()
			defer func() { <-sem }()
			r.convergeNode(ctx, r.topo.Node(id))
		}(id)
	}
	wg.Wait()
}

// finish records a node's terminal state and, on failure, blocks its
// transitive dependents and latches auth failures as run-fatal.
func (r *run) finish(id model.NodeID, nr NodeResult) {
	r.mu.Lock()
	from := r.status[id]
	r.status[id] = nr.Status
	r.results[id] = nr
	if nr.Status == StatusConverged {
		r.outputs[id] = nr.Output
	}
	if nr.Status == StatusFailed {
		for _, dep := range r.graph.TransitiveDependents(id) {
			if _, already := r.blocked[dep]; !already {
				r.blocked[dep] = id
			}
		}
		if cloud.IsAuthFailure(nr.Err) && r.authErr == nil {
			r.authErr = nr.Err
		}
	}
	r.mu.Unlock()

	r.record(id, from, nr.Status, nr.Action, nr.Class, detailOf(nr))
}

func detailOf(nr NodeResult) string {
	switch {
	case nr.Err != nil:
		return nr.Err.Error()
	case nr.BlockedBy != "":
		return "upstream failed: " + string(nr.BlockedBy)
	default:
		return ""
	}
}

func (r *run) markBlocked(id, upstream model.NodeID) {
	r.finish(id, NodeResult{
		Status:    StatusBlocked,
		Output:    model.PendingOutput(),
		BlockedBy: upstream,
	})
}

// skipRemaining marks every still-pending node of the remaining
// wavefronts as Skipped. Nodes already blocked by an earlier failure keep
// the more specific Blocked status.
func (r *run) skipRemaining(fronts [][]model.NodeID, reason string) {
	for _, front := range fronts {
		for _, id := range front {
			if upstream, isBlocked := r.blockedBy(id); isBlocked {
				r.markBlocked(id, upstream)
				continue
			}
			r.finish(id, NodeResult{
				Status: StatusSkipped,
				Output: model.PendingOutput(),
			})
			r.e.log.Debug("node skipped", "run_id", r.id, "node", string(id), "reason", reason)
		}
	}
}

func (r *run) blockedBy(id model.NodeID) (model.NodeID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	upstream, ok := r.blocked[id]
	return upstream, ok
}

func (r *run) aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authErr != nil
}

// lookupOutput satisfies the model.ResolveAttributes lookup contract.
func (r *run) lookupOutput(id model.NodeID) (model.Output, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out, ok := r.outputs[id]
	return out, ok
}

// record stamps and emits one status transition.
func (r *run) record(id model.NodeID, from, to NodeStatus, action Action, class cloud.ErrorClass, detail string) {
	t := Transition{
		Seq:    r.clock.Next(),
		RunID:  r.id,
		NodeID: id,
		From:   from,
		To:     to,
		Action: action,
		Class:  class,
		Detail: detail,
	}
	if err := r.e.recorder.Record(t); err != nil {
		r.e.log.Warn("transition record failed", "run_id", r.id, "node", string(id), "error", err)
	}
	r.e.log.Info("node transition",
		"run_id", r.id,
		"seq", t.Seq,
		"node", string(id),
		"from", string(from),
		"to", string(to),
		"action", string(action))
}
