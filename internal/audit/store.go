package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// Entry is a recorded authorization decision or role mutation.
type Entry struct {
	ID        string          `json:"id" db:"id"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	ActorID   *string         `json:"actor_id,omitempty" db:"actor_id"`
	Action    string          `json:"action" db:"action"`     // authz.decide, role.add, role.remove
	Resource  string          `json:"resource" db:"resource"` // permission key or role name
	Outcome   string          `json:"outcome" db:"outcome"`   // allow, deny, success, failure
	Reason    *string         `json:"reason,omitempty" db:"reason"`
	ClientIP  *string         `json:"client_ip,omitempty" db:"client_ip"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
}

// QueryParams filters audit queries. Nil pointers mean no filter.
type QueryParams struct {
	ActorID   *string
	Action    *string
	Resource  *string
	Outcome   *string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Store defines audit log storage operations.
type Store interface {
	Log(ctx context.Context, e Entry) (string, error)
	Query(ctx context.Context, params QueryParams) ([]Entry, int, error)
}

type store struct {
	db *sqlx.DB
}

// NewStore creates a new audit store.
func NewStore(db *sqlx.DB) Store {
	return &store{db: db}
}

func (s *store) Log(ctx context.Context, e Entry) (string, error) {
	var id string
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO audit_entries (actor_id, action, resource, outcome, reason, client_ip, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		e.ActorID, e.Action, e.Resource, e.Outcome, e.Reason, e.ClientIP, e.Details,
	).Scan(&id)
	return id, err
}

func (s *store) Query(ctx context.Context, params QueryParams) ([]Entry, int, error) {
	query := `SELECT * FROM audit_entries WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM audit_entries WHERE 1=1`
	var args []interface{}
	argIdx := 1

	addFilter := func(clause string, value interface{}) {
		placeholder := "$" + strconv.Itoa(argIdx)
		query += " AND " + clause + " " + placeholder
		countQuery += " AND " + clause + " " + placeholder
		args = append(args, value)
		argIdx++
	}

	if params.ActorID != nil {
		addFilter("actor_id =", *params.ActorID)
	}
	if params.Action != nil {
		addFilter("action =", *params.Action)
	}
	if params.Resource != nil {
		addFilter("resource =", *params.Resource)
	}
	if params.Outcome != nil {
		addFilter("outcome =", *params.Outcome)
	}
	if params.StartTime != nil {
		addFilter("timestamp >=", *params.StartTime)
	}
	if params.EndTime != nil {
		addFilter("timestamp <=", *params.EndTime)
	}

	var total int
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query += ` ORDER BY timestamp DESC`
	if params.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argIdx)
		args = append(args, params.Limit)
		argIdx++
	}
	if params.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(argIdx)
		args = append(args, params.Offset)
	}

	var entries []Entry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	return entries, total, nil
}
