package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/graph"
	"github.com/terrane-dev/terrane/internal/model"
	"github.com/terrane-dev/terrane/internal/resolve"
)

// RunIDGenerator generates unique run IDs for journal correlation.
// Implemented by UUIDGenerator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDGenerator generates UUIDv7 run IDs: time-sortable, so journal
// listings order naturally.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// FixedGenerator always returns the same run ID. Test use only.
type FixedGenerator struct {
	ID string
}

func (g FixedGenerator) Generate() string { return g.ID }

// DefaultParallelism bounds the worker pool when no WithParallelism
// option is given.
const DefaultParallelism = 4

// Engine drives topologies to convergence against one control plane.
//
// An Engine is safe to reuse across Converge calls; each call gets its
// own run state, logical clock and run ID.
type Engine struct {
	cp          cloud.ControlPlane
	parallelism int
	retry       RetryPolicy
	recorder    TransitionRecorder
	runIDs      RunIDGenerator
	log         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelism bounds the number of nodes converged concurrently
// within one wavefront. Values below 1 are treated as 1.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.parallelism = n
	}
}

// WithRetryPolicy replaces the transient-failure backoff policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithRecorder attaches a transition recorder (typically the journal).
func WithRecorder(r TransitionRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRunIDGenerator replaces the run ID source. Test use only.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithLogger replaces the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine bound to the given control plane.
func New(cp cloud.ControlPlane, opts ...Option) *Engine {
	e := &Engine{
		cp:          cp,
		parallelism: DefaultParallelism,
		retry:       DefaultRetryPolicy,
		recorder:    nopRecorder{},
		runIDs:      UUIDGenerator{},
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Converge drives every node of the graph to its desired remote state.
//
// The returned Result is non-nil whenever the run started, including
// partial and aborted runs; the error return is reserved for conditions
// that prevented the run from starting at all.
//
// Cancellation via ctx is honored at wavefront boundaries: nodes of the
// wavefront in flight finish normally, later nodes are marked Skipped and
// the result status is PartiallyConverged.
func (e *Engine) Converge(ctx context.Context, g *graph.Graph) (*Result, error) {
	r := &run{
		e:       e,
		graph:   g,
		topo:    g.Topology(),
		id:      e.runIDs.Generate(),
		clock:   NewClock(),
		status:  make(map[model.NodeID]NodeStatus, g.Topology().Len()),
		results: make(map[model.NodeID]NodeResult, g.Topology().Len()),
		outputs: make(map[model.NodeID]model.Output, g.Topology().Len()),
		blocked: make(map[model.NodeID]model.NodeID),
	}
	for _, n := range r.topo.Nodes() {
		r.status[n.ID] = StatusPending
		r.outputs[n.ID] = model.PendingOutput()
	}

	e.log.Info("convergence run starting",
		"run_id", r.id,
		"project", r.topo.Project,
		"nodes", r.topo.Len(),
		"wavefronts", len(g.Wavefronts()))

	r.execute(ctx)
	res := r.result()

	e.log.Info("convergence run finished",
		"run_id", r.id,
		"status", string(res.Status),
		"converged", res.Counts()[StatusConverged],
		"failed", res.Counts()[StatusFailed],
		"blocked", res.Counts()[StatusBlocked],
		"skipped", res.Counts()[StatusSkipped])

	return res, nil
}

// result assembles the terminal Result from run state. Called after
// execute returned, so no locking is needed.
func (r *run) result() *Result {
	res := &Result{
		RunID: r.id,
		Nodes: make(map[model.NodeID]NodeResult, len(r.results)),
	}
	allConverged := true
	for _, n := range r.topo.Nodes() {
		nr := r.results[n.ID]
		res.Nodes[n.ID] = nr
		if nr.Status != StatusConverged {
			allConverged = false
		}
		if nr.Status == StatusFailed && nr.Err != nil {
			res.Errs = append(res.Errs, nr.Err)
		}
	}
	switch {
	case r.authErr != nil:
		res.Status = StatusAborted
	case allConverged:
		res.Status = StatusAllConverged
	default:
		res.Status = StatusPartiallyConverged
	}
	if res.Status == StatusAllConverged {
		outs, err := resolve.Outputs(r.topo, r.lookupOutput)
		if err != nil {
			// Every node converged, so resolution cannot miss a slot;
			// treat a failure here as a defect rather than masking it.
			res.Errs = append(res.Errs, err)
			res.Status = StatusPartiallyConverged
			return res
		}
		res.Outputs = outs
	}
	return res
}

// Err returns the aggregate error of a non-converged result, nil for
// AllConverged.
func (r *Result) Err() error {
	if r.Status == StatusAllConverged {
		return nil
	}
	if len(r.Errs) == 0 {
		return errors.New("run " + r.RunID + ": " + string(r.Status))
	}
	return errors.Join(r.Errs...)
}
