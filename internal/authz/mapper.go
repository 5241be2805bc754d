package authz

import "strings"

// groupRoles maps directory group names, compared case-insensitively, to
// registry role names. Unmatched groups contribute nothing.
var groupRoles = map[string]string{
	"administrators": RoleAdmin,
	"odata-users":    RoleODataUser,
	"mcp-users":      RoleMCPUser,
	"readonly-users": RoleReadonly,
}

// roleFromScope derives a candidate role name from a raw scope claim. The
// first matching rule wins. A scope that matches no rule contributes no role
// here; it may still match directly during a permission check.
func roleFromScope(scope string) (string, bool) {
	switch {
	case strings.Contains(scope, "admin"):
		return RoleAdmin, true
	case strings.HasPrefix(scope, "odata."):
		return RoleODataUser, true
	case strings.HasPrefix(scope, "mcp."):
		return RoleMCPUser, true
	}
	return "", false
}

// roleFromGroup resolves a group claim through the fixed group table.
func roleFromGroup(group string) (string, bool) {
	name, ok := groupRoles[strings.ToLower(group)]
	return name, ok
}

// roleNamesFor derives the candidate role names for a principal from both
// claim paths, in claim order. Duplicates are kept here; role resolution
// collapses them.
func roleNamesFor(p Principal) []string {
	names := make([]string, 0, len(p.Scopes)+len(p.Groups))
	for _, scope := range p.Scopes {
		if name, ok := roleFromScope(scope); ok {
			names = append(names, name)
		}
	}
	for _, group := range p.Groups {
		if name, ok := roleFromGroup(group); ok {
			names = append(names, name)
		}
	}
	return names
}
