// Package journal persists convergence runs and their status transitions.
//
// The journal is strictly an audit surface: the engine never reads it
// back to decide anything (remote state is the only source of truth for
// convergence decisions). It stores node IDs, statuses, actions and error
// details - never resource attributes and never secret material.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/terrane-dev/terrane/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Journal is a SQLite-backed run log.
// It implements engine.TransitionRecorder; Record is safe for concurrent
// use because the pool is capped at one connection (single writer).
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
//
// The database is configured with WAL mode for concurrent reads during
// writes, NORMAL synchronous mode, a 5-second busy timeout, and foreign
// key enforcement. Idempotent: safe to call against an existing journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under the engine's worker pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// StartRun registers a run before the engine releases the first
// wavefront. Re-registering an existing run ID is a silent no-op.
func (j *Journal) StartRun(ctx context.Context, runID, project string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, project, status, started_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, runID, project, "Running", time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun records the terminal run status.
func (j *Journal) FinishRun(ctx context.Context, runID string, status engine.RunStatus) error {
	_, err := j.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, finished_at = ? WHERE id = ?
	`, string(status), time.Now().UTC().Format(time.RFC3339Nano), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Record implements engine.TransitionRecorder.
// Duplicate (run_id, seq) pairs are silently ignored for idempotency.
func (j *Journal) Record(t engine.Transition) error {
	_, err := j.db.Exec(`
		INSERT INTO transitions
		(run_id, seq, node_id, from_status, to_status, action, error_class, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		t.RunID,
		t.Seq,
		string(t.NodeID),
		string(t.From),
		string(t.To),
		string(t.Action),
		string(t.Class),
		t.Detail,
	)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}
