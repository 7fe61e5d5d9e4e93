package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/engine"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RunLifecycle(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	require.NoError(t, j.StartRun(ctx, "run-1", "demo"))
	// Re-registering is a no-op, not an error.
	require.NoError(t, j.StartRun(ctx, "run-1", "demo"))

	r, err := j.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Running", r.Status)
	assert.Empty(t, r.FinishedAt)

	require.NoError(t, j.FinishRun(ctx, "run-1", engine.StatusAllConverged))
	r, err = j.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "AllConverged", r.Status)
	assert.NotEmpty(t, r.FinishedAt)
}

func TestJournal_TransitionsOrderedBySeq(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	require.NoError(t, j.StartRun(ctx, "run-1", "demo"))

	// Recorded out of order, as concurrent workers would.
	for _, tr := range []engine.Transition{
		{Seq: 3, RunID: "run-1", NodeID: "app-svc", From: engine.StatusPending, To: engine.StatusConverged, Action: engine.ActionCreate},
		{Seq: 1, RunID: "run-1", NodeID: "app-repo", From: engine.StatusPending, To: engine.StatusConverged, Action: engine.ActionCreate},
		{Seq: 2, RunID: "run-1", NodeID: "app-db", From: engine.StatusPending, To: engine.StatusFailed, Action: engine.ActionCreate, Class: cloud.ClassInvalidArgument, Detail: "create demo/SqlInstance/app-db: INVALID_ARGUMENT"},
	} {
		require.NoError(t, j.Record(tr))
	}

	got, err := j.Transitions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Equal(t, int64(3), got[2].Seq)
	assert.Equal(t, cloud.ClassInvalidArgument, got[1].Class)
	assert.Equal(t, engine.StatusFailed, got[1].To)
}

func TestJournal_DuplicateSeqIgnored(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	require.NoError(t, j.StartRun(ctx, "run-1", "demo"))

	tr := engine.Transition{Seq: 1, RunID: "run-1", NodeID: "n", From: engine.StatusPending, To: engine.StatusConverged}
	require.NoError(t, j.Record(tr))
	require.NoError(t, j.Record(tr))

	got, err := j.Transitions(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestJournal_RunsListing(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()

	runs, err := j.Runs(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, j.StartRun(ctx, "run-a", "demo"))
	require.NoError(t, j.StartRun(ctx, "run-b", "demo"))
	require.NoError(t, j.FinishRun(ctx, "run-a", engine.StatusPartiallyConverged))

	runs, err = j.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	_, err = j.Run(ctx, "run-missing")
	assert.Error(t, err)
}

func TestJournal_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, j.StartRun(ctx, "run-1", "demo"))
	require.NoError(t, j.Record(engine.Transition{Seq: 1, RunID: "run-1", NodeID: "n", From: engine.StatusPending, To: engine.StatusConverged}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Transitions(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
