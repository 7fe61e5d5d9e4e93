package engine

import (
	"context"
	"fmt"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/model"
)

// Secret lifecycle.
//
// Secret material is confined to this file: plaintext enters through the
// node's "value" attribute, is compared against the latest stored version
// by domain-separated digest, and leaves only through AddVersion. It is
// never logged, never fingerprinted alongside other attributes, and never
// lands in a resolved output slot.

// convergeSecret ensures the secret container exists. A container has no
// mutable attributes; existence is the desired state, so there is no
// update path.
func (r *run) convergeSecret(ctx context.Context, node *model.ResourceNode, attrs model.Attributes) NodeResult {
	id := r.identityFor(node, attrs)

	var (
		action Action
		output model.Output
	)
	attempt := func() error {
		observed, err := r.e.cp.Get(ctx, id)
		switch {
		case cloud.IsNotFound(err):
			observed = model.ObservedState{}
		case err != nil:
			return err
		}

		if !observed.Exists {
			action = ActionCreate
			if err := r.e.cp.CreateContainer(ctx, id); err != nil {
				return err
			}
			observed, err = r.e.cp.Get(ctx, id)
			if err != nil {
				return err
			}
		} else {
			action = ActionNone
		}
		output = realizedOutput(observed.Attributes, nil, observed.RemoteID)
		return nil
	}

	if err := r.e.retry.retryTransient(ctx, attempt); err != nil {
		return failedResult(err)
	}
	return NodeResult{Status: StatusConverged, Action: action, Output: output}
}

// convergeSecretVersion ensures the latest stored version of the anchored
// container carries the desired material. If the incoming material's
// digest equals the latest version's, no new version is added; rotated
// material appends a version, never overwrites one.
func (r *run) convergeSecretVersion(ctx context.Context, node *model.ResourceNode, attrs model.Attributes) NodeResult {
	secretID := model.NodeID(model.GoString(attrs["secret"]))
	secretNode := r.topo.Node(secretID)
	if secretNode == nil {
		return failedResult(fmt.Errorf("node %s: anchor secret %q not in topology", node.ID, secretID))
	}
	containerID := r.identityFor(secretNode, secretNode.Attributes)

	value, ok := attrs["value"].(model.String)
	if !ok || value == "" {
		return failedResult(fmt.Errorf("node %s: missing secret material attribute \"value\"", node.ID))
	}
	plaintext := []byte(value)

	var (
		action  Action
		version string
	)
	attempt := func() error {
		latest, err := r.e.cp.LatestVersion(ctx, containerID)
		switch {
		case cloud.IsNotFound(err):
			// Empty container: first version.
		case err != nil:
			return err
		default:
			existing, err := r.e.cp.AccessLatest(ctx, containerID)
			if err != nil {
				return err
			}
			if model.SecretDigest(existing) == model.SecretDigest(plaintext) {
				action = ActionNone
				version = latest
				return nil
			}
		}

		action = ActionCreate
		version, err = r.e.cp.AddVersion(ctx, containerID, plaintext)
		return err
	}

	if err := r.e.retry.retryTransient(ctx, attempt); err != nil {
		return failedResult(err)
	}

	// The output slot carries version coordinates only, never material.
	return NodeResult{
		Status: StatusConverged,
		Action: action,
		Output: model.ResolvedOutput(model.Map{
			"secret":  model.String(secretID),
			"version": model.String(version),
		}),
	}
}
