package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/engine"
	"github.com/terrane-dev/terrane/internal/model"
)

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID         string
	Project    string
	Status     string
	StartedAt  string
	FinishedAt string
}

// Runs lists recorded runs, most recent first.
func (j *Journal) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, project, status, started_at, COALESCE(finished_at, '')
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Project, &r.Status, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	if runs == nil {
		runs = []RunSummary{}
	}
	return runs, nil
}

// Run returns the summary of one run.
func (j *Journal) Run(ctx context.Context, runID string) (RunSummary, error) {
	var r RunSummary
	err := j.db.QueryRowContext(ctx, `
		SELECT id, project, status, started_at, COALESCE(finished_at, '')
		FROM runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.Project, &r.Status, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return RunSummary{}, fmt.Errorf("run %s: not recorded", runID)
	}
	if err != nil {
		return RunSummary{}, fmt.Errorf("query run: %w", err)
	}
	return r, nil
}

// Transitions returns every transition of a run in logical-clock order.
func (j *Journal) Transitions(ctx context.Context, runID string) ([]engine.Transition, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, seq, node_id, from_status, to_status, action, error_class, detail
		FROM transitions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var transitions []engine.Transition
	for rows.Next() {
		var (
			t                             engine.Transition
			nodeID, from, to, action, cls string
		)
		if err := rows.Scan(&t.RunID, &t.Seq, &nodeID, &from, &to, &action, &cls, &t.Detail); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.NodeID = model.NodeID(nodeID)
		t.From = engine.NodeStatus(from)
		t.To = engine.NodeStatus(to)
		t.Action = engine.Action(action)
		t.Class = cloud.ErrorClass(cls)
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	if transitions == nil {
		transitions = []engine.Transition{}
	}
	return transitions, nil
}
