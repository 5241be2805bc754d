package webhooks

import (
	"time"

	"github.com/lib/pq"
)

// Webhook is a registered HTTP endpoint interested in role lifecycle events.
type Webhook struct {
	ID        string         `json:"id" db:"id"`
	URL       string         `json:"url" db:"url"`
	Secret    string         `json:"-" db:"secret"`
	Events    pq.StringArray `json:"events" db:"events"`
	Active    bool           `json:"active" db:"active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}
