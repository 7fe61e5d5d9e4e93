package model

// Role names a grantable role in the target platform's vocabulary.
type Role string

// The roles this engine grants. The set is closed on purpose: an unknown
// role cannot be checked for scope narrowness, so it cannot be declared.
const (
	RoleRegistryReader Role = "registry.reader"
	RoleRegistryWriter Role = "registry.writer"
	RoleSecretAccessor Role = "secret.accessor"
	RoleSQLClient      Role = "sql.client"
	RoleRunInvoker     Role = "run.invoker"
)

// ScopeProject is the sentinel scope for grants that have no resource-level
// equivalent in the target platform.
const ScopeProject NodeID = "project"

// resourceScoped records, per role, whether the platform offers a
// resource-level policy for it. Roles marked true MUST be granted on a
// specific resource; declaring them project-wide is a modeling error
// (least privilege, rejected at build time).
var resourceScoped = map[Role]bool{
	RoleRegistryReader: true,
	RoleRegistryWriter: true,
	RoleSecretAccessor: true,
	RoleRunInvoker:     true,
	// sql.client has no finer-grained scope on the target platform.
	RoleSQLClient: false,
}

// KnownRole reports whether the role is part of the closed grant vocabulary.
func KnownRole(r Role) bool {
	_, ok := resourceScoped[r]
	return ok
}

// RoleHasResourceScope reports whether the role can be granted on a specific
// resource rather than project-wide.
func RoleHasResourceScope(r Role) bool {
	return resourceScoped[r]
}

// Binding is one desired principal/role grant, tagged with the narrowest
// scope available for the role. Scope is either a resource node ID or
// ScopeProject; the scope field disambiguates blast radius for auditing.
type Binding struct {
	Principal string
	Role      Role
	Scope     NodeID
}

// ProjectScoped reports whether the binding targets the whole project.
func (b Binding) ProjectScoped() bool {
	return b.Scope == ScopeProject
}
