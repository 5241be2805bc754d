package authz

import "strings"

// Conditions narrows when a permission applies. Keys are dispatched by the
// condition evaluator; unknown keys are ignored so that policies written for
// newer engine versions still load.
type Conditions map[string]interface{}

// Permission is an atomic (resource, action) capability. A "*" in either
// field is interpreted as a wildcard at evaluation time only; for identity,
// equality and deduplication it is just another string.
type Permission struct {
	Resource   string     `json:"resource"`
	Action     string     `json:"action"`
	Conditions Conditions `json:"conditions,omitempty"`
}

// Key returns the permission identity: the exact, case-sensitive
// (resource, action) pair joined with a dot.
func (p Permission) Key() string {
	return p.Resource + "." + p.Action
}

// Role is a named, reusable bundle of permissions. Names are unique within
// a registry; registering a role under an existing name replaces it.
type Role struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// Principal is the caller-owned identity input: an opaque subject ID plus the
// raw scope and group claims extracted upstream. The engine treats it as
// read-only and never validates or fetches tokens itself.
type Principal struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes"`
	Groups []string `json:"groups"`
}

// ParseScope decomposes a hierarchical scope string into a permission: the
// final dot-segment becomes the action and the remainder the resource.
// Scopes without a dot carry no (resource, action) pair and report ok=false.
func ParseScope(scope string) (Permission, bool) {
	idx := strings.LastIndex(scope, ".")
	if idx < 0 {
		return Permission{}, false
	}
	return Permission{Resource: scope[:idx], Action: scope[idx+1:]}, true
}
