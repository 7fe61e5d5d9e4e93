package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/model"
)

// convergeBinding reconciles one desired principal/role grant against the
// current policy on its scope.
//
// Reconciliation is strictly additive: the current pairs are read, and a
// grant is issued only when the desired pair is missing. Pairs granted
// out of band are never touched, so re-running after a manual grant
// performs zero mutating calls.
func (r *run) convergeBinding(ctx context.Context, node *model.ResourceNode) NodeResult {
	b := node.Binding

	principal, err := r.resolvePrincipal(b.Principal)
	if err != nil {
		return failedResult(err)
	}

	scope, err := r.scopeIdentity(b)
	if err != nil {
		return failedResult(err)
	}

	action := ActionNone
	attempt := func() error {
		pairs, err := r.e.cp.GetPolicy(ctx, scope)
		if err != nil {
			return err
		}
		pair := cloud.PolicyBinding{Principal: principal, Role: b.Role}
		if slices.Contains(pairs, pair) {
			action = ActionNone
			return nil
		}
		action = ActionCreate
		return r.e.cp.BindPolicy(ctx, scope, principal, b.Role)
	}

	if err := r.e.retry.retryTransient(ctx, attempt); err != nil {
		return failedResult(err)
	}
	return NodeResult{
		Status: StatusConverged,
		Action: action,
		Output: model.ResolvedOutput(model.Map{
			"principal": model.String(principal),
			"role":      model.String(b.Role),
			"scope":     model.String(b.Scope),
		}),
	}
}

// resolvePrincipal turns a binding principal into a platform principal
// string. When it names a ServiceAccount node, the realized email from
// that node's output slot is used (the graph made the account a
// dependency, so the slot is resolved by now); anything else passes
// through as a literal platform principal.
func (r *run) resolvePrincipal(principal string) (string, error) {
	node := r.topo.Node(model.NodeID(principal))
	if node == nil || node.Kind != model.KindServiceAccount {
		return principal, nil
	}
	out, ok := r.lookupOutput(node.ID)
	if !ok || !out.Resolved() {
		return "", fmt.Errorf("principal %s: service account output not resolved", principal)
	}
	email := out.GetString("email")
	if email == "" {
		return "", fmt.Errorf("principal %s: service account output has no email", principal)
	}
	return "serviceAccount:" + email, nil
}

// scopeIdentity maps a binding scope onto the remote identity the policy
// attaches to: either the project itself or the scoped resource node.
func (r *run) scopeIdentity(b *model.Binding) (cloud.Identity, error) {
	if b.ProjectScoped() {
		return cloud.ProjectScope(r.topo.Project), nil
	}
	node := r.topo.Node(b.Scope)
	if node == nil {
		return cloud.Identity{}, fmt.Errorf("binding scope %s: not in topology", b.Scope)
	}
	return r.identityFor(node, node.Attributes), nil
}
