package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// LogInput holds the fields for a new audit entry. Empty optional fields are
// stored as NULL.
type LogInput struct {
	ActorID  string
	Action   string
	Resource string
	Outcome  string
	Reason   string
	ClientIP string
	Details  interface{}
}

// Service defines audit service operations.
type Service interface {
	// Log records an audit entry.
	Log(ctx context.Context, input LogInput) error

	// Query retrieves audit entries with filtering, returning the page and
	// the total match count.
	Query(ctx context.Context, params QueryParams) ([]Entry, int, error)
}

type service struct {
	store Store
}

// NewService creates a new audit service.
func NewService(store Store) Service {
	return &service{store: store}
}

func (s *service) Log(ctx context.Context, input LogInput) error {
	if input.Action == "" {
		return fmt.Errorf("action is required")
	}
	if input.Outcome == "" {
		input.Outcome = "success"
	}

	entry := Entry{
		Action:   input.Action,
		Resource: input.Resource,
		Outcome:  input.Outcome,
		ActorID:  optional(input.ActorID),
		Reason:   optional(input.Reason),
		ClientIP: optional(input.ClientIP),
	}
	if input.Details != nil {
		b, err := json.Marshal(input.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		entry.Details = b
	}

	if _, err := s.store.Log(ctx, entry); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

func (s *service) Query(ctx context.Context, params QueryParams) ([]Entry, int, error) {
	if params.Limit <= 0 || params.Limit > 1000 {
		params.Limit = 100
	}
	return s.store.Query(ctx, params)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
