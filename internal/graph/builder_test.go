package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-dev/terrane/internal/model"
)

// appTopology declares the canonical four-node shape used across tests:
// registry + service account + secret, with a compute service referencing
// all three.
func appTopology(t *testing.T) *model.Topology {
	t.Helper()
	topo, err := model.NewTopology("demo-project", []model.ResourceNode{
		{ID: "app-repo", Kind: model.KindRegistry,
			Attributes: model.Attributes{"location": model.String("us-central1")}},
		{ID: "app-sa", Kind: model.KindServiceAccount,
			Attributes: model.Attributes{"display_name": model.String("app runtime")}},
		{ID: "db-password", Kind: model.KindSecret},
		{ID: "app-svc", Kind: model.KindComputeService,
			Attributes: model.Attributes{"region": model.String("us-central1")},
			References: []model.NodeID{"app-repo", "app-sa", "db-password"}},
	})
	require.NoError(t, err)
	return topo
}

func mustBuild(t *testing.T, topo *model.Topology) *Graph {
	t.Helper()
	g, errs := Build(topo)
	require.Empty(t, errs)
	require.NotNil(t, g)
	return g
}

func TestBuild_Wavefronts(t *testing.T) {
	g := mustBuild(t, appTopology(t))

	assert.Equal(t, [][]model.NodeID{
		{"app-repo", "app-sa", "db-password"},
		{"app-svc"},
	}, g.Wavefronts())
}

func TestBuild_WavefrontOrderMatchesTopologyOrder(t *testing.T) {
	// IDs chosen so byte order and UTF-16 code-unit order disagree; the
	// wavefront tie-break and the topology's stable order must still agree.
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "\U0001F600-svc", Kind: model.KindComputeService},
		{ID: "ﬀ-repo", Kind: model.KindRegistry},
	})
	require.NoError(t, err)
	g := mustBuild(t, topo)

	var ids []model.NodeID
	for _, n := range topo.Nodes() {
		ids = append(ids, n.ID)
	}
	require.Len(t, g.Wavefronts(), 1)
	assert.Equal(t, ids, g.Wavefronts()[0])
}

func TestBuild_EveryNodeAfterItsReferences(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "apis", Kind: model.KindAPIEnablement},
		{ID: "repo", Kind: model.KindRegistry, References: []model.NodeID{"apis"}},
		{ID: "sa", Kind: model.KindServiceAccount, References: []model.NodeID{"apis"}},
		{ID: "secret", Kind: model.KindSecret, References: []model.NodeID{"apis"}},
		{ID: "secret-v1", Kind: model.KindSecretVersion,
			Attributes: model.Attributes{"secret": model.String("secret")}},
		{ID: "db", Kind: model.KindSQLInstance, References: []model.NodeID{"apis"}},
		{ID: "db-user", Kind: model.KindSQLUser,
			Attributes: model.Attributes{"instance": model.String("db")}},
		{ID: "db-app", Kind: model.KindSQLDatabase,
			Attributes: model.Attributes{"instance": model.String("db")}},
		{ID: "svc", Kind: model.KindComputeService,
			References: []model.NodeID{"repo", "sa", "secret", "db"}},
	})
	require.NoError(t, err)
	g := mustBuild(t, topo)

	position := make(map[model.NodeID]int)
	for wave, front := range g.Wavefronts() {
		for _, id := range front {
			position[id] = wave
		}
	}

	require.Len(t, position, topo.Len(), "every node sits in exactly one wavefront")
	for _, n := range topo.Nodes() {
		for _, dep := range g.Dependencies(n.ID) {
			assert.Less(t, position[dep], position[n.ID],
				"%s must be ordered strictly after %s", n.ID, dep)
		}
	}
}

func TestBuild_CycleRejected(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "a", Kind: model.KindRegistry, References: []model.NodeID{"b"}},
		{ID: "b", Kind: model.KindSecret, References: []model.NodeID{"c"}},
		{ID: "c", Kind: model.KindServiceAccount, References: []model.NodeID{"a"}},
	})
	require.NoError(t, err)

	g, errs := Build(topo)
	assert.Nil(t, g)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCyclicDependency, errs[0].Code)
	// Path starts and ends at the same node and involves all three.
	require.NotEmpty(t, errs[0].Nodes)
	assert.Equal(t, errs[0].Nodes[0], errs[0].Nodes[len(errs[0].Nodes)-1])
	assert.Len(t, errs[0].Nodes, 4)
	assert.True(t, IsCycleError(errs[0]))
}

func TestBuild_SelfReferenceRejected(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "repo", Kind: model.KindRegistry, References: []model.NodeID{"repo"}},
	})
	require.NoError(t, err)

	_, errs := Build(topo)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrSelfReference, errs[0].Code)
}

func TestBuild_UnresolvedReference(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "svc", Kind: model.KindComputeService, References: []model.NodeID{"ghost"}},
	})
	require.NoError(t, err)

	_, errs := Build(topo)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnresolvedReference, errs[0].Code)
	assert.Contains(t, errs[0].Error(), "ghost")
}

func TestBuild_CollectsAllErrors(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "svc", Kind: model.KindComputeService, References: []model.NodeID{"ghost", "svc"}},
		{ID: "v1", Kind: model.KindSecretVersion}, // missing anchor
	})
	require.NoError(t, err)

	_, errs := Build(topo)
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	assert.ElementsMatch(t, []string{ErrUnresolvedReference, ErrSelfReference, ErrMissingAnchor}, codes)
}

func TestBuild_SecretVersionAnchors(t *testing.T) {
	// Anchor names a node of the wrong kind.
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "repo", Kind: model.KindRegistry},
		{ID: "v1", Kind: model.KindSecretVersion,
			Attributes: model.Attributes{"secret": model.String("repo")}},
	})
	require.NoError(t, err)
	_, errs := Build(topo)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrAnchorKind, errs[0].Code)

	// Anchor names an undeclared secret.
	topo, err = model.NewTopology("demo", []model.ResourceNode{
		{ID: "v1", Kind: model.KindSecretVersion,
			Attributes: model.Attributes{"secret": model.String("nope")}},
	})
	require.NoError(t, err)
	_, errs = Build(topo)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnresolvedReference, errs[0].Code)
}

func TestBuild_OverBroadScopeRejected(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "db-password", Kind: model.KindSecret},
		{ID: "grant", Kind: model.KindIAMBinding,
			Binding: &model.Binding{
				Principal: "serviceAccount:app@demo.iam.example.com",
				Role:      model.RoleSecretAccessor,
				Scope:     model.ScopeProject,
			}},
	})
	require.NoError(t, err)

	_, errs := Build(topo)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrOverBroadScope, errs[0].Code)
}

func TestBuild_ProjectScopeAllowedWithoutResourceEquivalent(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "grant", Kind: model.KindIAMBinding,
			Binding: &model.Binding{
				Principal: "serviceAccount:app@demo.iam.example.com",
				Role:      model.RoleSQLClient,
				Scope:     model.ScopeProject,
			}},
	})
	require.NoError(t, err)

	g, errs := Build(topo)
	assert.Empty(t, errs, "sql.client has no resource scope; project-wide is the narrowest available")
	assert.NotNil(t, g)
}

func TestBuild_BindingScopeEdge(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "db-password", Kind: model.KindSecret},
		{ID: "app-sa", Kind: model.KindServiceAccount},
		{ID: "grant", Kind: model.KindIAMBinding,
			Binding: &model.Binding{
				Principal: "app-sa", // node reference, resolved after app-sa converges
				Role:      model.RoleSecretAccessor,
				Scope:     "db-password",
			}},
	})
	require.NoError(t, err)
	g := mustBuild(t, topo)

	assert.Equal(t, []model.NodeID{"app-sa", "db-password"}, g.Dependencies("grant"),
		"the grant must depend on both its scope and its principal")
}

func TestBuild_UnknownRole(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "grant", Kind: model.KindIAMBinding,
			Binding: &model.Binding{Principal: "x", Role: "owner", Scope: model.ScopeProject}},
	})
	require.NoError(t, err)

	_, errs := Build(topo)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownRole, errs[0].Code)
}

func TestTransitiveDependents(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "db", Kind: model.KindSQLInstance},
		{ID: "db-user", Kind: model.KindSQLUser,
			Attributes: model.Attributes{"instance": model.String("db")}},
		{ID: "svc", Kind: model.KindComputeService, References: []model.NodeID{"db-user"}},
		{ID: "repo", Kind: model.KindRegistry},
	})
	require.NoError(t, err)
	g := mustBuild(t, topo)

	assert.Equal(t, []model.NodeID{"db-user", "svc"}, g.TransitiveDependents("db"))
	assert.Empty(t, g.TransitiveDependents("repo"))
}

func TestBuild_TemplateReferenceEdges(t *testing.T) {
	topo, err := model.NewTopology("demo", []model.ResourceNode{
		{ID: "db", Kind: model.KindSQLInstance},
		{ID: "svc", Kind: model.KindComputeService,
			Attributes: model.Attributes{
				"env": model.Map{"DB": model.Ref("db", "connection_name")},
			}},
	})
	require.NoError(t, err)
	g := mustBuild(t, topo)

	assert.Equal(t, []model.NodeID{"db"}, g.Dependencies("svc"),
		"attribute templates imply dependency edges")

	// Template naming an undeclared node is a configuration error.
	topo, err = model.NewTopology("demo", []model.ResourceNode{
		{ID: "svc", Kind: model.KindComputeService,
			Attributes: model.Attributes{"image": model.Ref("ghost", "host")}},
	})
	require.NoError(t, err)
	_, errs := Build(topo)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnresolvedReference, errs[0].Code)
}
