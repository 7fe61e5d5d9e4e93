package cloud

import (
	"context"
	"fmt"

	"github.com/terrane-dev/terrane/internal/model"
)

// Identity names one remote resource: which project it lives in, what kind
// it is, and its name within that kind's namespace.
type Identity struct {
	Project string
	Kind    model.Kind
	Name    string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s/%s/%s", id.Project, id.Kind, id.Name)
}

// OperationHandle identifies an in-flight remote operation.
type OperationHandle string

// OpStatus is the remote operation lifecycle.
type OpStatus int

const (
	OpPending OpStatus = iota
	OpSucceeded
	OpFailed
)

// Operation is one poll result. On success, RemoteID and Output carry the
// realized identity and attributes (connection names, endpoints, emails)
// the executor records into the node's resolved-output slot. On failure,
// Class and Message describe the terminal error.
type Operation struct {
	Handle   OperationHandle
	Status   OpStatus
	RemoteID string
	Output   model.Map
	Class    ErrorClass
	Message  string
}

// API is the per-resource-kind control-plane surface the executor consumes.
//
// Get returns the current remote state; an absent resource surfaces as a
// RemoteError with ClassNotFound, which the state observer translates into
// ObservedState{Exists: false}.
//
// Create and Update start mutations and return a handle; PollOperation
// drives the handle to a terminal status. Implementations may complete
// operations synchronously (the fake does) but callers must always poll.
type API interface {
	Get(ctx context.Context, id Identity) (model.ObservedState, error)
	Create(ctx context.Context, id Identity, attrs model.Attributes) (OperationHandle, error)
	Update(ctx context.Context, id Identity, remoteID string, attrs model.Attributes) (OperationHandle, error)
	PollOperation(ctx context.Context, h OperationHandle) (Operation, error)

	// GetPolicy reads the current principal/role pairs on scope. The
	// reconciler diffs against this to stay additive: it only ever issues
	// grants that are missing, never removals.
	GetPolicy(ctx context.Context, scope Identity) ([]PolicyBinding, error)

	// BindPolicy adds one principal/role pair to the policy on scope.
	// Additive: implementations never drop pairs they did not add.
	BindPolicy(ctx context.Context, scope Identity, principal string, role model.Role) error
}

// ProjectScope is the policy scope of grants that have no resource-level
// equivalent and must attach to the project itself.
func ProjectScope(project string) Identity {
	return Identity{Project: project, Kind: "Project", Name: project}
}

// PolicyBinding is one principal/role pair on a policy.
type PolicyBinding struct {
	Principal string
	Role      model.Role
}

// SecretStore is the secret-material subset of the control plane.
//
// Plaintext crosses this boundary in exactly two places: AddVersion (write)
// and AccessLatest (read). AccessLatest exists solely so the secret
// lifecycle manager can compare incoming material against the latest stored
// version; no other component may call it.
type SecretStore interface {
	CreateContainer(ctx context.Context, id Identity) error
	AddVersion(ctx context.Context, id Identity, plaintext []byte) (string, error)
	LatestVersion(ctx context.Context, id Identity) (string, error)
	AccessLatest(ctx context.Context, id Identity) ([]byte, error)
}

// ControlPlane bundles the two consumed surfaces. Real adapters implement
// both against the platform SDK; the fake implements both in memory.
type ControlPlane interface {
	API
	SecretStore
}
