package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-dev/terrane/internal/graph"
	"github.com/terrane-dev/terrane/internal/model"
)

func TestLoad_YAML(t *testing.T) {
	topo, err := Load(filepath.Join("testdata", "topology.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "demo", topo.Project)
	assert.Equal(t, 11, topo.Len())

	svc := topo.Node("app-svc")
	require.NotNil(t, svc)
	assert.Equal(t, model.KindComputeService, svc.Kind)
	assert.Equal(t, model.Ref("app-repo", "host"), svc.Attributes["image"])
	assert.Equal(t, []model.NodeID{"db-password-v"}, svc.References)

	db := topo.Node("app-db")
	require.NotNil(t, db)
	assert.Equal(t, model.Bool(true), db.Attributes["deletion_protection"])
	assert.Equal(t, model.Bool(false), db.Attributes["public_ip"])

	bind := topo.Node("bind-sql")
	require.NotNil(t, bind)
	require.NotNil(t, bind.Binding)
	assert.Equal(t, model.RoleSQLClient, bind.Binding.Role)
	assert.True(t, bind.Binding.ProjectScoped())

	// The loaded topology passes graph validation end to end.
	_, errs := graph.Build(topo)
	assert.Empty(t, errs)
}

func TestLoad_CUE(t *testing.T) {
	topo, err := Load(filepath.Join("testdata", "topology.cue"))
	require.NoError(t, err)

	assert.Equal(t, "demo", topo.Project)
	assert.Equal(t, 4, topo.Len())
	assert.Equal(t, model.String("db-f1-micro"), topo.Node("app-db").Attributes["tier"])
	assert.Equal(t, model.RoleRunInvoker, topo.Node("bind-invoker").Binding.Role)
}

func TestLoad_DirectoryResolvesTopologyFile(t *testing.T) {
	topo, err := Load("testdata")
	require.NoError(t, err)
	// topology.cue sorts before topology.yaml in the lookup order.
	assert.Equal(t, 4, topo.Len())
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_RejectsFloats(t *testing.T) {
	path := writeManifest(t, `
project: demo
resources:
  app-db:
    kind: SqlInstance
    attributes:
      name: app-db
      deletion_protection: true
      public_ip: false
      cpu: 1.5
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestLoad_RequiresSqlSafetyAttributes(t *testing.T) {
	path := writeManifest(t, `
project: demo
resources:
  app-db:
    kind: SqlInstance
    attributes:
      name: app-db
      region: us-central1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deletion_protection")
}

func TestLoad_RequiresBindingBlock(t *testing.T) {
	path := writeManifest(t, `
project: demo
resources:
  grant:
    kind: IamBinding
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binding block")
}

func TestLoad_RejectsUnknownKind(t *testing.T) {
	path := writeManifest(t, `
project: demo
resources:
  thing:
    kind: Bucket
    attributes:
      name: thing
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestLoad_MissingProject(t *testing.T) {
	path := writeManifest(t, `
resources:
  repo:
    kind: Registry
    attributes:
      name: repo
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project")
}
