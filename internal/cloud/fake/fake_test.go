package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/model"
)

func repoID() cloud.Identity {
	return cloud.Identity{Project: "demo", Kind: model.KindRegistry, Name: "app-repo"}
}

func TestFake_CreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	f := New()
	id := repoID()

	_, err := f.Get(ctx, id)
	assert.True(t, cloud.IsNotFound(err))

	h, err := f.Create(ctx, id, model.Attributes{"location": model.String("us")})
	require.NoError(t, err)

	op, err := f.PollOperation(ctx, h)
	require.NoError(t, err)
	require.Equal(t, cloud.OpSucceeded, op.Status)
	assert.Equal(t, "projects/demo/repositories/app-repo", op.RemoteID)
	assert.Equal(t, "us-docker.example.dev", model.GoString(op.Output["host"]))

	observed, err := f.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, observed.Matches(model.Attributes{"location": model.String("us")}))

	_, err = f.Create(ctx, id, nil)
	assert.True(t, cloud.IsAlreadyExists(err))

	h, err = f.Update(ctx, id, op.RemoteID, model.Attributes{"location": model.String("eu")})
	require.NoError(t, err)
	op, err = f.PollOperation(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "eu-docker.example.dev", model.GoString(op.Output["host"]))

	assert.Equal(t, 2, f.Mutations())
}

func TestFake_PollDelay(t *testing.T) {
	ctx := context.Background()
	f := New()
	f.SetPollDelay(2)

	h, err := f.Create(ctx, repoID(), nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		op, err := f.PollOperation(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, cloud.OpPending, op.Status)
	}
	op, err := f.PollOperation(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, cloud.OpSucceeded, op.Status)
}

func TestFake_FaultInjection(t *testing.T) {
	ctx := context.Background()
	f := New()
	id := repoID()
	f.FailWith("create", id, cloud.ClassQuotaExceeded, 2)

	for i := 0; i < 2; i++ {
		_, err := f.Create(ctx, id, nil)
		require.Error(t, err)
		assert.True(t, cloud.IsRetryable(err))
	}
	_, err := f.Create(ctx, id, nil)
	assert.NoError(t, err, "fault budget exhausted; call succeeds")
}

func TestFake_SecretStore(t *testing.T) {
	ctx := context.Background()
	f := New()
	id := cloud.Identity{Project: "demo", Kind: model.KindSecret, Name: "db-password"}

	_, err := f.LatestVersion(ctx, id)
	assert.True(t, cloud.IsNotFound(err))

	require.NoError(t, f.CreateContainer(ctx, id))
	assert.True(t, cloud.IsAlreadyExists(f.CreateContainer(ctx, id)))

	v, err := f.AddVersion(ctx, id, []byte("hunter2"))
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	latest, err := f.LatestVersion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "v1", latest)

	plaintext, err := f.AccessLatest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), plaintext)

	assert.Equal(t, 2, f.Mutations(), "container + one version")
}

func TestFake_PolicyAdditive(t *testing.T) {
	ctx := context.Background()
	f := New()
	scope := cloud.Identity{Project: "demo", Kind: model.KindSecret, Name: "db-password"}
	external := cloud.PolicyBinding{Principal: "group:ops@example.com", Role: model.RoleSecretAccessor}
	f.SeedPolicy(scope, external)

	require.NoError(t, f.BindPolicy(ctx, scope, "app@demo.iam.example.com", model.RoleSecretAccessor))

	pairs, err := f.GetPolicy(ctx, scope)
	require.NoError(t, err)
	assert.Contains(t, pairs, external, "out-of-band grants survive")
	assert.Contains(t, pairs, cloud.PolicyBinding{Principal: "app@demo.iam.example.com", Role: model.RoleSecretAccessor})
}
