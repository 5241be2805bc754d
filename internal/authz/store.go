package authz

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store persists custom roles so registry mutations survive restarts.
// Built-in roles are seeded in code and never written here.
type Store interface {
	SaveRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, name string) (bool, error)
	ListRoles(ctx context.Context) ([]Role, error)
}

type sqlStore struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed role store.
func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

type roleRow struct {
	Name        string `db:"name"`
	Description string `db:"description"`
	Permissions []byte `db:"permissions"`
}

func (s *sqlStore) SaveRole(ctx context.Context, role Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO roles (name, description, permissions)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET description = $2, permissions = $3, updated_at = NOW()`,
		role.Name, role.Description, perms)
	if err != nil {
		return fmt.Errorf("save role: %w", err)
	}
	return nil
}

func (s *sqlStore) DeleteRole(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("delete role: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqlStore) ListRoles(ctx context.Context) ([]Role, error) {
	var rows []roleRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT name, description, permissions FROM roles ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	roles := make([]Role, 0, len(rows))
	for _, row := range rows {
		role := Role{Name: row.Name, Description: row.Description}
		if len(row.Permissions) > 0 {
			if err := json.Unmarshal(row.Permissions, &role.Permissions); err != nil {
				return nil, fmt.Errorf("unmarshal permissions for role %s: %w", row.Name, err)
			}
		}
		roles = append(roles, role)
	}
	return roles, nil
}
