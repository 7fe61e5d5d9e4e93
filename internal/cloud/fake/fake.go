// Package fake provides a deterministic in-memory control plane.
//
// The fake stands in for the remote platform in tests and dry runs: it
// completes operations synchronously (while still requiring polling),
// synthesizes platform-shaped realized outputs per resource kind, counts
// mutating calls, and supports per-call fault injection.
package fake

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/terrane-dev/terrane/internal/cloud"
	"github.com/terrane-dev/terrane/internal/model"
)

type resource struct {
	attrs    model.Attributes
	remoteID string
	output   model.Map
}

type fault struct {
	class cloud.ErrorClass
	times int // remaining injections; negative means permanent
}

// Fake is an in-memory cloud.ControlPlane.
// Safe for concurrent use: the engine's worker pool hits it in parallel.
type Fake struct {
	mu sync.Mutex

	resources map[string]*resource
	ops       map[cloud.OperationHandle]cloud.Operation
	pending   map[cloud.OperationHandle]int // remaining polls before terminal
	secrets   map[string][][]byte
	policies  map[string][]cloud.PolicyBinding
	faults    map[string]*fault

	opSeq     int
	mutations int
	pollDelay int
}

// New creates an empty fake control plane.
func New() *Fake {
	return &Fake{
		resources: make(map[string]*resource),
		ops:       make(map[cloud.OperationHandle]cloud.Operation),
		pending:   make(map[cloud.OperationHandle]int),
		secrets:   make(map[string][][]byte),
		policies:  make(map[string][]cloud.PolicyBinding),
		faults:    make(map[string]*fault),
	}
}

// FailWith injects a classified failure for the next `times` calls of op
// against id. Negative times means every call fails. op is one of
// "get", "create", "update", "bind", "container", "addversion".
func (f *Fake) FailWith(op string, id cloud.Identity, class cloud.ErrorClass, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[op+":"+id.String()] = &fault{class: class, times: times}
}

// SetPollDelay makes each subsequent operation stay Pending for n polls
// before reaching its terminal status.
func (f *Fake) SetPollDelay(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pollDelay = n
}

// Seed registers an already-existing remote resource with the given desired
// attributes, as if a previous run had converged it.
func (f *Fake) Seed(id cloud.Identity, attrs model.Attributes) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[id.String()] = &resource{
		attrs:    cloneAttrs(attrs),
		remoteID: remoteID(id),
		output:   synthesizeOutput(id, attrs),
	}
}

// SeedSecret registers an existing secret container with versions.
func (f *Fake) SeedSecret(id cloud.Identity, versions ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resources[id.String()] = &resource{remoteID: remoteID(id), attrs: model.Attributes{}, output: model.Map{}}
	for _, v := range versions {
		f.secrets[id.String()] = append(f.secrets[id.String()], slices.Clone(v))
	}
}

// SeedPolicy registers pre-existing policy pairs on a scope, as if granted
// out of band. Used to verify additive reconciliation never clobbers them.
func (f *Fake) SeedPolicy(scope cloud.Identity, pairs ...cloud.PolicyBinding) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policies[scope.String()] = append(f.policies[scope.String()], pairs...)
}

// Mutations returns how many mutating calls (create/update/bind/addversion/
// container-create) the fake has served.
func (f *Fake) Mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

// ResetMutations zeroes the mutating-call counter between convergence runs.
func (f *Fake) ResetMutations() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations = 0
}

// SecretVersionCount returns the number of versions stored for a secret.
func (f *Fake) SecretVersionCount(id cloud.Identity) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.secrets[id.String()])
}

// Policy returns the current policy pairs on a scope.
func (f *Fake) Policy(scope cloud.Identity) []cloud.PolicyBinding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.policies[scope.String()])
}

// Exists reports whether a resource is registered.
func (f *Fake) Exists(id cloud.Identity) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.resources[id.String()]
	return ok
}

// checkFault consumes one injected failure if configured. Caller holds mu.
func (f *Fake) checkFault(op string, id cloud.Identity) error {
	key := op + ":" + id.String()
	fl, ok := f.faults[key]
	if !ok || fl.times == 0 {
		return nil
	}
	if fl.times > 0 {
		fl.times--
	}
	return cloud.NewRemoteError(fl.class, op, id, nil)
}

// Get implements cloud.API.
func (f *Fake) Get(ctx context.Context, id cloud.Identity) (model.ObservedState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkFault("get", id); err != nil {
		return model.ObservedState{}, err
	}
	r, ok := f.resources[id.String()]
	if !ok {
		return model.ObservedState{}, cloud.NewRemoteError(cloud.ClassNotFound, "get", id, nil)
	}

	// Observed attributes include server-populated output fields, the way a
	// real control plane reports more than was declared.
	attrs := cloneAttrs(r.attrs)
	for k, v := range r.output {
		if _, declared := attrs[k]; !declared {
			attrs[k] = v
		}
	}
	return model.ObservedState{Exists: true, Attributes: attrs, RemoteID: r.remoteID}, nil
}

// Create implements cloud.API.
func (f *Fake) Create(ctx context.Context, id cloud.Identity, attrs model.Attributes) (cloud.OperationHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkFault("create", id); err != nil {
		return "", err
	}
	if _, ok := f.resources[id.String()]; ok {
		return "", cloud.NewRemoteError(cloud.ClassAlreadyExists, "create", id, nil)
	}

	f.mutations++
	r := &resource{
		attrs:    cloneAttrs(attrs),
		remoteID: remoteID(id),
		output:   synthesizeOutput(id, attrs),
	}
	f.resources[id.String()] = r
	return f.finishOp(cloud.Operation{
		Status:   cloud.OpSucceeded,
		RemoteID: r.remoteID,
		Output:   r.output,
	}), nil
}

// Update implements cloud.API.
func (f *Fake) Update(ctx context.Context, id cloud.Identity, rid string, attrs model.Attributes) (cloud.OperationHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkFault("update", id); err != nil {
		return "", err
	}
	r, ok := f.resources[id.String()]
	if !ok {
		return "", cloud.NewRemoteError(cloud.ClassNotFound, "update", id, nil)
	}

	f.mutations++
	for k, v := range attrs {
		r.attrs[k] = v
	}
	r.output = synthesizeOutput(id, r.attrs)
	return f.finishOp(cloud.Operation{
		Status:   cloud.OpSucceeded,
		RemoteID: r.remoteID,
		Output:   r.output,
	}), nil
}

// PollOperation implements cloud.API.
func (f *Fake) PollOperation(ctx context.Context, h cloud.OperationHandle) (cloud.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	op, ok := f.ops[h]
	if !ok {
		return cloud.Operation{}, cloud.NewRemoteError(cloud.ClassNotFound, "poll", cloud.Identity{}, fmt.Errorf("unknown operation %s", h))
	}
	if f.pending[h] > 0 {
		f.pending[h]--
		return cloud.Operation{Handle: h, Status: cloud.OpPending}, nil
	}
	return op, nil
}

// GetPolicy implements cloud.API.
func (f *Fake) GetPolicy(ctx context.Context, scope cloud.Identity) ([]cloud.PolicyBinding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkFault("getpolicy", scope); err != nil {
		return nil, err
	}
	return slices.Clone(f.policies[scope.String()]), nil
}

// BindPolicy implements cloud.API. Additive: existing pairs are preserved,
// and re-binding an existing pair is a served (counted) no-op mutation.
func (f *Fake) BindPolicy(ctx context.Context, scope cloud.Identity, principal string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkFault("bind", scope); err != nil {
		return err
	}

	f.mutations++
	pair := cloud.PolicyBinding{Principal: principal, Role: role}
	if !slices.Contains(f.policies[scope.String()], pair) {
		f.policies[scope.String()] = append(f.policies[scope.String()], pair)
	}
	return nil
}

// CreateContainer implements cloud.SecretStore.
func (f *Fake) CreateContainer(ctx context.Context, id cloud.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkFault("container", id); err != nil {
		return err
	}
	if _, ok := f.resources[id.String()]; ok {
		return cloud.NewRemoteError(cloud.ClassAlreadyExists, "container", id, nil)
	}

	f.mutations++
	f.resources[id.String()] = &resource{
		attrs:    model.Attributes{},
		remoteID: remoteID(id),
		output:   model.Map{"name": model.String(remoteID(id))},
	}
	return nil
}

// AddVersion implements cloud.SecretStore.
func (f *Fake) AddVersion(ctx context.Context, id cloud.Identity, plaintext []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkFault("addversion", id); err != nil {
		return "", err
	}
	if _, ok := f.resources[id.String()]; !ok {
		return "", cloud.NewRemoteError(cloud.ClassNotFound, "addversion", id, nil)
	}

	f.mutations++
	f.secrets[id.String()] = append(f.secrets[id.String()], slices.Clone(plaintext))
	return fmt.Sprintf("v%d", len(f.secrets[id.String()])), nil
}

// LatestVersion implements cloud.SecretStore.
func (f *Fake) LatestVersion(ctx context.Context, id cloud.Identity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	versions := f.secrets[id.String()]
	if len(versions) == 0 {
		return "", cloud.NewRemoteError(cloud.ClassNotFound, "latest", id, nil)
	}
	return fmt.Sprintf("v%d", len(versions)), nil
}

// AccessLatest implements cloud.SecretStore.
func (f *Fake) AccessLatest(ctx context.Context, id cloud.Identity) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	versions := f.secrets[id.String()]
	if len(versions) == 0 {
		return nil, cloud.NewRemoteError(cloud.ClassNotFound, "access", id, nil)
	}
	return slices.Clone(versions[len(versions)-1]), nil
}

// finishOp registers a terminal operation and returns its handle.
// Caller holds mu.
func (f *Fake) finishOp(op cloud.Operation) cloud.OperationHandle {
	f.opSeq++
	h := cloud.OperationHandle(fmt.Sprintf("op-%d", f.opSeq))
	op.Handle = h
	f.ops[h] = op
	if f.pollDelay > 0 {
		f.pending[h] = f.pollDelay
	}
	return h
}

// remoteID synthesizes the platform identifier for a resource.
func remoteID(id cloud.Identity) string {
	return fmt.Sprintf("projects/%s/%s/%s", id.Project, kindPath(id.Kind), id.Name)
}

func kindPath(k model.Kind) string {
	switch k {
	case model.KindRegistry:
		return "repositories"
	case model.KindServiceAccount:
		return "serviceAccounts"
	case model.KindSecret:
		return "secrets"
	case model.KindSQLInstance:
		return "instances"
	case model.KindSQLUser:
		return "users"
	case model.KindSQLDatabase:
		return "databases"
	case model.KindComputeService:
		return "services"
	case model.KindAPIEnablement:
		return "services"
	default:
		return "resources"
	}
}

// synthesizeOutput produces the realized attributes a real platform would
// report for the kind: service account emails, SQL connection names, service
// URIs, registry hosts. Deterministic given identity and attributes.
func synthesizeOutput(id cloud.Identity, attrs model.Attributes) model.Map {
	out := model.Map{"name": model.String(remoteID(id))}
	switch id.Kind {
	case model.KindServiceAccount:
		out["email"] = model.String(fmt.Sprintf("%s@%s.iam.example.com", id.Name, id.Project))
	case model.KindSQLInstance:
		region := model.GoString(attrs["region"])
		if region == "" {
			region = "us-central1"
		}
		out["connection_name"] = model.String(fmt.Sprintf("%s:%s:%s", id.Project, region, id.Name))
	case model.KindComputeService:
		region := model.GoString(attrs["region"])
		if region == "" {
			region = "us-central1"
		}
		out["uri"] = model.String(fmt.Sprintf("https://%s-%s.%s.example.app", id.Name, id.Project, region))
	case model.KindRegistry:
		location := model.GoString(attrs["location"])
		if location == "" {
			location = "us"
		}
		out["host"] = model.String(fmt.Sprintf("%s-docker.example.dev", location))
	}
	return out
}

func cloneAttrs(attrs model.Attributes) model.Attributes {
	out := make(model.Attributes, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
