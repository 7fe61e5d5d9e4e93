package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	node, key, ok := ParseRef("${ref:db.connection_name}")
	require.True(t, ok)
	assert.Equal(t, NodeID("db"), node)
	assert.Equal(t, "connection_name", key)

	for _, s := range []string{"plain", "${ref:db}", "${ref:.key}", "${ref:db.}", "ref:db.key"} {
		_, _, ok := ParseRef(s)
		assert.False(t, ok, "%q must not parse as a reference", s)
	}
}

func TestRef_RoundTrip(t *testing.T) {
	s := Ref("app-sa", "email")
	node, key, ok := ParseRef(string(s))
	require.True(t, ok)
	assert.Equal(t, NodeID("app-sa"), node)
	assert.Equal(t, "email", key)
}

func TestCollectRefs(t *testing.T) {
	attrs := Attributes{
		"image": Ref("repo", "host"),
		"env": Map{
			"DB":     Ref("db", "connection_name"),
			"REGION": String("us-central1"),
		},
		"mounts": List{Ref("db", "connection_name")}, // duplicate node
	}

	assert.ElementsMatch(t, []NodeID{"repo", "db"}, CollectRefs(attrs))
	assert.Empty(t, CollectRefs(Attributes{"plain": String("x")}))
}

func TestResolveAttributes(t *testing.T) {
	outputs := map[NodeID]Output{
		"db": ResolvedOutput(Map{"connection_name": String("demo:us:db")}),
	}
	lookup := func(id NodeID) (Output, bool) {
		o, ok := outputs[id]
		return o, ok
	}

	resolved, err := ResolveAttributes(Attributes{
		"env":    Map{"DB": Ref("db", "connection_name")},
		"region": String("us-central1"),
	}, lookup)
	require.NoError(t, err)
	assert.Equal(t, String("demo:us:db"), resolved["env"].(Map)["DB"])
	assert.Equal(t, String("us-central1"), resolved["region"])
}

func TestResolveAttributes_Errors(t *testing.T) {
	lookup := func(id NodeID) (Output, bool) {
		if id == "pending" {
			return PendingOutput(), true
		}
		return Output{}, false
	}

	_, err := ResolveAttributes(Attributes{"x": Ref("ghost", "k")}, lookup)
	assert.ErrorContains(t, err, "unknown node")

	_, err = ResolveAttributes(Attributes{"x": Ref("pending", "k")}, lookup)
	assert.ErrorContains(t, err, "before it converged")
}
