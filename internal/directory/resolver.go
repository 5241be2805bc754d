// Package directory resolves a subject's directory groups when the incoming
// token carries no group claim. The engine itself never performs lookups;
// resolution happens at the transport boundary before a principal is built.
package directory

import "context"

// StaticResolver serves groups from a fixed in-memory table. Used in tests
// and for deployments that provision group membership out of band.
type StaticResolver struct {
	groups map[string][]string
}

// NewStaticResolver creates a resolver over the given subject -> groups map.
func NewStaticResolver(groups map[string][]string) *StaticResolver {
	return &StaticResolver{groups: groups}
}

// Groups returns the configured groups for the subject.
func (r *StaticResolver) Groups(_ context.Context, subject string) ([]string, error) {
	return r.groups[subject], nil
}
