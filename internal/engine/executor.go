package engine

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/model"
)

// convergeNode resolves the node's attribute templates, dispatches to the
// kind-specific path and records the terminal result.
func (r *run) convergeNode(ctx context.Context, node *model.ResourceNode) {
	attrs, err := model.ResolveAttributes(node.Attributes, r.lookupOutput)
	if err != nil {
		// The graph guarantees every referenced node sits in an earlier
		// wavefront, so an unresolvable template here means the upstream
		// did not converge; the blocked check should have caught it.
		r.finish(node.ID, failedResult(err))
		return
	}

	r.e.log.Debug("converging node", "run_id", r.id, "node", string(node.ID), "kind", string(node.Kind))

	var nr NodeResult
	switch node.Kind {
	case model.KindSecret:
		nr = r.convergeSecret(ctx, node, attrs)
	case model.KindSecretVersion:
		nr = r.convergeSecretVersion(ctx, node, attrs)
	case model.KindIAMBinding:
		nr = r.convergeBinding(ctx, node)
	default:
		nr = r.convergeGeneric(ctx, node, attrs)
	}
	r.finish(node.ID, nr)
}

func failedResult(err error) NodeResult {
	return NodeResult{
		Status: StatusFailed,
		Output: model.PendingOutput(),
		Err:    err,
		Class:  cloud.ClassOf(err),
	}
}

// identityFor derives the remote identity of a node. The resource name
// comes from the "name" attribute when present, else the node ID.
func (r *run) identityFor(node *model.ResourceNode, attrs model.Attributes) cloud.Identity {
	name := string(node.ID)
	if v, ok := attrs["name"]; ok {
		if s, isStr := v.(model.String); isStr && s != "" {
			name = string(s)
		}
	}
	return cloud.Identity{
		Project: r.topo.Project,
		Kind:    node.Kind,
		Name:    name,
	}
}

// convergeGeneric is the observe / diff / mutate / poll path shared by
// every plain resource kind.
//
// The whole attempt retries as a unit on transient failures: a retry
// re-observes before deciding, so a create that raced another actor
// (ALREADY_EXISTS) lands on the update or no-op path the next time
// around instead of failing the node.
func (r *run) convergeGeneric(ctx context.Context, node *model.ResourceNode, attrs model.Attributes) NodeResult {
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
			h, err := r.e.cp.Create(ctx, id, attrs)
			if err != nil {
				return err
			}
			op, err := r.waitOperation(ctx, id, h)
			if err != nil {
				return err
			}
			output = realizedOutput(attrs, op.Output, op.RemoteID)
			return nil
		}

		if observed.Matches(attrs) {
			action = ActionNone
			output = realizedOutput(observed.Attributes, nil, observed.RemoteID)
			return nil
		}

		action = ActionUpdate
		h, err := r.e.cp.Update(ctx, id, observed.RemoteID, attrs)
		if err != nil {
			return err
		}
		op, err := r.waitOperation(ctx, id, h)
		if err != nil {
			return err
		}
		output = realizedOutput(attrs, op.Output, op.RemoteID)
		return nil
	}

	if err := r.e.retry.retryTransient(ctx, attempt); err != nil {
		return failedResult(err)
	}
	return NodeResult{Status: StatusConverged, Action: action, Output: output}
}

// realizedOutput merges the desired attributes with whatever the control
// plane reported back (server-populated fields like emails, connection
// names, endpoints) into one resolved output slot. Remote fields win on
// key collision; the remote identity lands under "remote_id".
func realizedOutput(attrs model.Attributes, remote model.Map, remoteID string) model.Output {
	values := make(model.Map, len(attrs)+len(remote)+1)
	for k, v := range attrs {
		values[k] = v
	}
	for k, v := range remote {
		values[k] = v
	}
	if remoteID != "" {
		values["remote_id"] = model.String(remoteID)
	}
	return model.ResolvedOutput(values)
}

// waitOperation polls a mutation handle to a terminal status.
//
// Polling deliberately ignores run cancellation: the mutation is already
// in flight, and abandoning it would leave the remote state unknown. The
// backoff schedule bounds how long we wait instead.
func (r *run) waitOperation(ctx context.Context, id cloud.Identity, h cloud.OperationHandle) (cloud.Operation, error) {
	pollCtx := context.WithoutCancel(ctx)
	b := r.e.retry.newBackOff(pollCtx)
	for {
		op, err := r.e.cp.PollOperation(pollCtx, h)
		if err != nil {
			return cloud.Operation{}, err
		}
		switch op.Status {
		case cloud.OpSucceeded:
			return op, nil
		case cloud.OpFailed:
			class := op.Class
			if class == "" {
				class = cloud.ClassTransient
			}
			return op, cloud.NewRemoteError(class, "poll", id, errors.New(op.Message))
		}
		d := b.NextBackOff()
		if d == backoff.Stop {
			return op, cloud.NewRemoteError(cloud.ClassTransient, "poll", id,
				errors.New("operation did not reach a terminal status within the poll budget"))
		}
		time.Sleep(d)
	}
}
