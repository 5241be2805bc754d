package authz

import "sync"

// Built-in role names.
const (
	RoleAdmin     = "admin"
	RoleODataUser = "odata-user"
	RoleMCPUser   = "mcp-user"
	RoleReadonly  = "readonly"
)

// Registry holds the canonical role -> permission-set mapping. It is the only
// mutable shared state in the engine; the RWMutex guarantees readers always
// observe fully registered roles while writers swap entries.
type Registry struct {
	mu    sync.RWMutex
	roles map[string]Role
	order []string
}

// NewRegistry returns a registry seeded with the built-in roles.
func NewRegistry() *Registry {
	r := &Registry{roles: make(map[string]Role)}
	for _, role := range builtinRoles() {
		r.Register(role)
	}
	return r
}

// Register upserts a role by name. Re-registering an existing name replaces
// the role in place; its position in List is kept.
func (r *Registry) Register(role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.roles[role.Name]; !exists {
		r.order = append(r.order, role.Name)
	}
	r.roles[role.Name] = role
}

// Unregister removes a role by name, reporting whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.roles[name]; !exists {
		return false
	}
	delete(r.roles, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Lookup returns the role registered under name.
func (r *Registry) Lookup(name string) (Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[name]
	return role, ok
}

// List returns a snapshot of all roles in registration order.
func (r *Registry) List() []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Role, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.roles[name])
	}
	return out
}

func builtinRoles() []Role {
	return []Role{
		{
			Name:        RoleAdmin,
			Description: "Full administrative access",
			Permissions: []Permission{
				{Resource: "*", Action: "*"},
			},
		},
		{
			Name:        RoleODataUser,
			Description: "Read, discover and query OData services",
			Permissions: []Permission{
				{Resource: "odata", Action: "read"},
				{Resource: "odata", Action: "discover"},
				{Resource: "odata", Action: "query"},
			},
		},
		{
			Name:        RoleMCPUser,
			Description: "Read and invoke MCP tools",
			Permissions: []Permission{
				{Resource: "mcp", Action: "read"},
				{Resource: "mcp", Action: "call"},
			},
		},
		{
			Name:        RoleReadonly,
			Description: "Read-only access to OData and MCP resources",
			Permissions: []Permission{
				{Resource: "odata", Action: "read"},
				{Resource: "mcp", Action: "read"},
			},
		},
	}
}
