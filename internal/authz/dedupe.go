package authz

// dedupeBy filters items so that only the first occurrence of each key
// survives, preserving input order.
func dedupeBy[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// dedupePermissions removes duplicate permissions by their exact
// (resource, action) key.
func dedupePermissions(perms []Permission) []Permission {
	return dedupeBy(perms, Permission.Key)
}

// dedupeRoles removes duplicate roles by name.
func dedupeRoles(roles []Role) []Role {
	return dedupeBy(roles, func(r Role) string { return r.Name })
}
