// Package authz implements the scope/role-based authorization decision
// engine: it decides whether a principal identified by opaque scope and group
// claims may perform an action on a resource, synthesizes roles from those
// claims, and evaluates conditional grants against a caller-supplied context.
//
// Every decision method is a pure, synchronous, in-memory computation and is
// fail-closed: missing claims, missing context and internal faults all
// resolve to a deny, never to an implicit allow.
package authz

import (
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Decision reasons reported alongside an allow or deny verdict.
const (
	ReasonExactScope       = "exact_scope"
	ReasonWildcardScope    = "wildcard_scope"
	ReasonAdminScope       = "admin_scope"
	ReasonRolePermission   = "role_permission"
	ReasonNoMatch          = "no_match"
	ReasonConditionsFailed = "conditions_failed"
	ReasonMissingContext   = "missing_context"
	ReasonInternalFault    = "internal_fault"
)

// Decision is the outcome of a permission check together with the rule that
// produced it. Callers that only need the verdict use HasPermission.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Engine evaluates authorization decisions for principals against a role
// registry. The registry is injected so callers own its lifecycle; the
// engine itself carries no other state.
type Engine struct {
	registry *Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine returns an engine backed by the given registry. A nil logger
// disables fault logging.
func NewEngine(registry *Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{registry: registry, logger: logger, now: time.Now}
}

// Registry exposes the engine's role registry for mutation by the owner.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// HasPermission reports whether the principal may perform action on resource.
func (e *Engine) HasPermission(p Principal, resource, action string) bool {
	return e.Decide(p, resource, action).Allowed
}

// Decide evaluates the permission sources in strict order: exact scope,
// wildcard scope, admin override, then role-derived permissions. The first
// matching source wins.
func (e *Engine) Decide(p Principal, resource, action string) (d Decision) {
	defer e.failClosed(&d, "decide")

	if slices.Contains(p.Scopes, resource+"."+action) {
		return Decision{Allowed: true, Reason: ReasonExactScope}
	}
	if slices.Contains(p.Scopes, resource+".*") {
		return Decision{Allowed: true, Reason: ReasonWildcardScope}
	}
	if slices.Contains(p.Scopes, "admin") || slices.Contains(p.Scopes, "*.admin") {
		return Decision{Allowed: true, Reason: ReasonAdminScope}
	}

	for _, role := range e.rolesFor(p) {
		for _, perm := range role.Permissions {
			if perm.Resource == resource && (perm.Action == action || perm.Action == "*") {
				return Decision{Allowed: true, Reason: ReasonRolePermission}
			}
		}
	}
	return Decision{Allowed: false, Reason: ReasonNoMatch}
}

// GetPermissions returns the union of every scope decomposed into a
// (resource, action) pair and every permission on every derived role,
// deduplicated by exact key with first occurrence winning.
func (e *Engine) GetPermissions(p Principal) (perms []Permission) {
	defer e.failClosedList(&perms, "get_permissions")

	out := make([]Permission, 0, len(p.Scopes))
	for _, scope := range p.Scopes {
		if perm, ok := ParseScope(scope); ok {
			out = append(out, perm)
		}
	}
	for _, role := range e.rolesFor(p) {
		out = append(out, role.Permissions...)
	}
	return dedupePermissions(out)
}

// GetRoles returns the roles derived from the principal's scope and group
// claims, deduplicated by name.
func (e *Engine) GetRoles(p Principal) []Role {
	return e.rolesFor(p)
}

// HasRole reports whether the principal's claims derive the named role.
func (e *Engine) HasRole(p Principal, name string) bool {
	for _, role := range e.rolesFor(p) {
		if role.Name == name {
			return true
		}
	}
	return false
}

// HasScope reports whether the principal satisfies any of the required
// scopes: either an exact member of the held scopes, or a held scope ending
// in ".*" whose prefix covers the required scope. The rule is deliberately
// asymmetric: only held wildcards expand, a wildcard in the required set is
// never expanded against concrete held scopes.
func (e *Engine) HasScope(p Principal, required ...string) bool {
	for _, want := range required {
		for _, held := range p.Scopes {
			if held == want {
				return true
			}
			if !strings.HasSuffix(held, ".*") {
				continue
			}
			base := strings.TrimSuffix(held, ".*") + "."
			if idx := strings.LastIndex(want, "."); idx >= 0 && want[:idx+1] == base {
				return true
			}
		}
	}
	return false
}

// EvaluatePermission checks the base permission and then its conditions
// against the supplied context. Conditions without a context deny; all
// present conditions must pass.
func (e *Engine) EvaluatePermission(p Principal, perm Permission, ctx *EvalContext) (d Decision) {
	defer e.failClosed(&d, "evaluate_permission")

	base := e.Decide(p, perm.Resource, perm.Action)
	if !base.Allowed {
		return base
	}
	if len(perm.Conditions) == 0 {
		return base
	}
	if ctx == nil {
		return Decision{Allowed: false, Reason: ReasonMissingContext}
	}
	if !evaluateConditions(perm.Conditions, p, ctx, e.now()) {
		return Decision{Allowed: false, Reason: ReasonConditionsFailed}
	}
	return base
}

// rolesFor resolves the principal's candidate role names through the
// registry, deduplicated by name with first occurrence winning. Names
// without a registered role are skipped.
func (e *Engine) rolesFor(p Principal) []Role {
	names := roleNamesFor(p)
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		if role, ok := e.registry.Lookup(name); ok {
			roles = append(roles, role)
		}
	}
	return dedupeRoles(roles)
}

// failClosed converts a panic during evaluation into a deny. The engine
// never surfaces internal faults to callers.
func (e *Engine) failClosed(d *Decision, op string) {
	if r := recover(); r != nil {
		e.logger.Error("authorization evaluation fault",
			zap.String("op", op), zap.Any("panic", r))
		*d = Decision{Allowed: false, Reason: ReasonInternalFault}
	}
}

func (e *Engine) failClosedList(perms *[]Permission, op string) {
	if r := recover(); r != nil {
		e.logger.Error("authorization evaluation fault",
			zap.String("op", op), zap.Any("panic", r))
		*perms = nil
	}
}
