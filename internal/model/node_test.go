package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopology_StableOrder(t *testing.T) {
	topo, err := NewTopology("demo", []ResourceNode{
		{ID: "svc", Kind: KindComputeService},
		{ID: "app-repo", Kind: KindRegistry},
		{ID: "db", Kind: KindSQLInstance},
	})
	require.NoError(t, err)

	var ids []NodeID
	for _, n := range topo.Nodes() {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []NodeID{"app-repo", "db", "svc"}, ids)
}

func TestNewTopology_OrderIsByteOrder(t *testing.T) {
	// U+FB00 encodes as EF AC 80 and U+1F600 as F0 9F 98 80, so byte order
	// puts the ligature first; UTF-16 code-unit order would reverse them.
	// Node ordering must agree with slices.Sort everywhere else.
	topo, err := NewTopology("demo", []ResourceNode{
		{ID: "\U0001F600-svc", Kind: KindComputeService},
		{ID: "ﬀ-repo", Kind: KindRegistry},
	})
	require.NoError(t, err)

	assert.Equal(t, NodeID("ﬀ-repo"), topo.Nodes()[0].ID)
	assert.Equal(t, NodeID("\U0001F600-svc"), topo.Nodes()[1].ID)
}

func TestNewTopology_Lookup(t *testing.T) {
	topo, err := NewTopology("demo", []ResourceNode{
		{ID: "repo", Kind: KindRegistry, Attributes: Attributes{"location": String("us")}},
	})
	require.NoError(t, err)

	n := topo.Node("repo")
	require.NotNil(t, n)
	assert.Equal(t, KindRegistry, n.Kind)
	assert.Nil(t, topo.Node("missing"))
}

func TestNewTopology_DuplicateID(t *testing.T) {
	_, err := NewTopology("demo", []ResourceNode{
		{ID: "repo", Kind: KindRegistry},
		{ID: "repo", Kind: KindSecret},
	})
	assert.ErrorContains(t, err, "duplicate node id")
}

func TestNewTopology_UnknownKind(t *testing.T) {
	_, err := NewTopology("demo", []ResourceNode{
		{ID: "x", Kind: Kind("Bucket")},
	})
	assert.ErrorContains(t, err, "unknown kind")
}

func TestNewTopology_BindingRules(t *testing.T) {
	// IamBinding nodes need a binding triple.
	_, err := NewTopology("demo", []ResourceNode{
		{ID: "grant", Kind: KindIAMBinding},
	})
	assert.ErrorContains(t, err, "without binding triple")

	// Non-binding nodes must not carry one.
	_, err = NewTopology("demo", []ResourceNode{
		{ID: "repo", Kind: KindRegistry, Binding: &Binding{Principal: "sa", Role: RoleRegistryReader, Scope: "repo"}},
	})
	assert.ErrorContains(t, err, "binding triple on non-binding kind")
}

func TestRoleScopeTable(t *testing.T) {
	assert.True(t, RoleHasResourceScope(RoleSecretAccessor))
	assert.True(t, RoleHasResourceScope(RoleRegistryReader))
	assert.False(t, RoleHasResourceScope(RoleSQLClient))
	assert.True(t, KnownRole(RoleRunInvoker))
	assert.False(t, KnownRole(Role("owner")))
}

func TestOutputSlot(t *testing.T) {
	p := PendingOutput()
	assert.False(t, p.Resolved())
	_, ok := p.Get("endpoint")
	assert.False(t, ok)

	r := ResolvedOutput(Map{"endpoint": String("https://svc.example.app")})
	assert.True(t, r.Resolved())
	assert.Equal(t, "https://svc.example.app", r.GetString("endpoint"))
	assert.Equal(t, "", r.GetString("missing"))
}

func TestObservedState_Matches(t *testing.T) {
	observed := ObservedState{
		Exists: true,
		Attributes: Attributes{
			"tier":      String("db-f1-micro"),
			"self_link": String("projects/demo/instances/db"), // server-populated
		},
	}

	assert.True(t, observed.Matches(Attributes{"tier": String("db-f1-micro")}),
		"server-populated extras must not force an update")
	assert.False(t, observed.Matches(Attributes{"tier": String("db-custom-2")}))
	assert.False(t, ObservedState{}.Matches(Attributes{}), "absent resource never matches")
}

func TestObservedState_MatchesAcrossNormalizationForms(t *testing.T) {
	// The control plane echoes NFD for what was declared NFC.
	observed := ObservedState{
		Exists:     true,
		Attributes: Attributes{"display_name": String("café service")},
	}

	assert.True(t, observed.Matches(Attributes{"display_name": String("café service")}),
		"normalization form differences are not drift")
	assert.False(t, observed.Matches(Attributes{"display_name": String("cafe service")}))
}
