package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ldap/ldap/v3"
)

// LDAPConfig holds the settings for the LDAP group resolver.
type LDAPConfig struct {
	URL          string // e.g. "ldaps://directory.example.com:636"
	BindDN       string
	BindPassword string
	BaseDN       string
	// UserAttribute is the attribute the subject is matched against,
	// defaulting to "uid".
	UserAttribute string
}

// LDAPResolver resolves group membership from an LDAP directory. The
// connection is established lazily and re-established after failures.
type LDAPResolver struct {
	config LDAPConfig

	mu   sync.Mutex
	conn *ldap.Conn
}

// NewLDAPResolver creates an LDAP-backed group resolver.
func NewLDAPResolver(config LDAPConfig) *LDAPResolver {
	if config.UserAttribute == "" {
		config.UserAttribute = "uid"
	}
	return &LDAPResolver{config: config}
}

// Groups returns the common names of the groups the subject is a member of.
func (r *LDAPResolver) Groups(ctx context.Context, subject string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == nil {
		if err := r.connect(); err != nil {
			return nil, err
		}
	}

	groups, err := r.search(subject)
	if err != nil {
		// Stale connections surface here; reconnect once before giving up.
		r.close()
		if err := r.connect(); err != nil {
			return nil, err
		}
		return r.search(subject)
	}
	return groups, nil
}

// Close releases the directory connection.
func (r *LDAPResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.close()
	return nil
}

func (r *LDAPResolver) connect() error {
	conn, err := ldap.DialURL(r.config.URL)
	if err != nil {
		return fmt.Errorf("connect to directory: %w", err)
	}
	if err := conn.Bind(r.config.BindDN, r.config.BindPassword); err != nil {
		conn.Close()
		return fmt.Errorf("bind to directory: %w", err)
	}
	r.conn = conn
	return nil
}

func (r *LDAPResolver) close() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

func (r *LDAPResolver) search(subject string) ([]string, error) {
	filter := fmt.Sprintf("(&(objectClass=groupOfNames)(member=%s=%s,%s))",
		r.config.UserAttribute, ldap.EscapeFilter(subject), r.config.BaseDN)

	result, err := r.conn.Search(&ldap.SearchRequest{
		BaseDN:     r.config.BaseDN,
		Scope:      ldap.ScopeWholeSubtree,
		Filter:     filter,
		Attributes: []string{"cn"},
	})
	if err != nil {
		return nil, fmt.Errorf("search groups: %w", err)
	}

	groups := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		if cn := entry.GetAttributeValue("cn"); cn != "" {
			groups = append(groups, cn)
		}
	}
	return groups, nil
}
