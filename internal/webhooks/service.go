package webhooks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned when no webhook exists under the requested ID.
var ErrNotFound = errors.New("webhook not found")

// Service manages webhook subscriptions.
type Service interface {
	CreateWebhook(ctx context.Context, url, secret string, events []string) (string, error)
	GetWebhook(ctx context.Context, id string) (Webhook, error)
	ListWebhooks(ctx context.Context) ([]Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error

	// GetWebhooksForEvent returns the active webhooks subscribed to the
	// given event type.
	GetWebhooksForEvent(ctx context.Context, event string) ([]Webhook, error)
}

type service struct {
	db *sqlx.DB
}

// NewService creates a new webhooks service.
func NewService(db *sqlx.DB) Service {
	return &service{db: db}
}

func (s *service) CreateWebhook(ctx context.Context, url, secret string, events []string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO webhooks (url, secret, events, active)
		 VALUES ($1, $2, $3, true) RETURNING id`,
		url, secret, pq.Array(events)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create webhook: %w", err)
	}
	return id, nil
}

func (s *service) GetWebhook(ctx context.Context, id string) (Webhook, error) {
	var w Webhook
	err := s.db.GetContext(ctx, &w, `SELECT * FROM webhooks WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Webhook{}, ErrNotFound
		}
		return Webhook{}, fmt.Errorf("get webhook: %w", err)
	}
	return w, nil
}

func (s *service) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var hooks []Webhook
	err := s.db.SelectContext(ctx, &hooks, `SELECT * FROM webhooks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return hooks, nil
}

func (s *service) DeleteWebhook(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

func (s *service) GetWebhooksForEvent(ctx context.Context, event string) ([]Webhook, error) {
	var hooks []Webhook
	err := s.db.SelectContext(ctx, &hooks,
		`SELECT * FROM webhooks WHERE active = true AND $1 = ANY(events)`, event)
	if err != nil {
		return nil, fmt.Errorf("get webhooks for event: %w", err)
	}
	return hooks, nil
}
