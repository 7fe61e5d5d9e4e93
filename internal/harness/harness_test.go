package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-dev/terrane/internal/engine"
	"github.com/terrane-dev/terrane/internal/model"
)

func TestFreshConvergeMatchesGoldenTimeline(t *testing.T) {
	outcome := RunWithGolden(t, "testdata/scenarios/fresh_converge.yaml")

	require.Equal(t, engine.StatusAllConverged, outcome.Result.Status)
	require.NotNil(t, outcome.Result.Outputs)
	assert.Equal(t, "https://app-svc-demo.us-central1.example.app", outcome.Result.Outputs["app-svc.endpoint"])

	for key, value := range outcome.Result.Outputs {
		assert.NotContains(t, value, "s3cr3t-material", "output %s leaks secret material", key)
	}
}

func TestDatabaseFailureIsolatesBranchTimeline(t *testing.T) {
	outcome := RunWithGolden(t, "testdata/scenarios/db_failure_isolates_branch.yaml")

	require.Equal(t, engine.StatusPartiallyConverged, outcome.Result.Status)
	assert.Nil(t, outcome.Result.Outputs)

	// The independent secret/IAM branch converged despite the failure.
	counts := outcome.Result.Counts()
	assert.Equal(t, 6, counts[engine.StatusConverged])
	assert.Equal(t, 1, counts[engine.StatusFailed])
	assert.Equal(t, 4, counts[engine.StatusBlocked])
}

func TestSecretVersionSkipScenario(t *testing.T) {
	s, err := Load("testdata/scenarios/secret_version_skip.yaml")
	require.NoError(t, err)

	outcome, err := Run(context.Background(), s)
	require.NoError(t, err)

	for _, violation := range outcome.Check() {
		t.Error(violation)
	}

	// Matching material skips AddVersion and reports a no-op action.
	nr := outcome.Result.Nodes[model.NodeID("db-password-v")]
	assert.Equal(t, engine.ActionNone, nr.Action)
	assert.Equal(t, "v1", nr.Output.GetString("version"))
}

func TestCheckReportsViolations(t *testing.T) {
	s, err := Load("testdata/scenarios/fresh_converge.yaml")
	require.NoError(t, err)
	s.Expect.Status = "PartiallyConverged"
	wantMutations := 3
	s.Expect.Mutations = &wantMutations

	outcome, err := Run(context.Background(), s)
	require.NoError(t, err)

	errs := outcome.Check()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "run status")
	assert.Contains(t, errs[1].Error(), "mutations")
}

func TestLoadRejectsInvalidScenarios(t *testing.T) {
	_, err := Load("testdata/scenarios/does-not-exist.yaml")
	require.Error(t, err)

	dir := t.TempDir()
	writeScenario := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	_, err = Load(writeScenario("unnamed.yaml", "topology: ../topology.yaml\n"))
	require.ErrorContains(t, err, "no name")

	_, err = Load(writeScenario("no-topology.yaml", "name: no-topology\n"))
	require.ErrorContains(t, err, "no topology")
}
