package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dhawalhost/authgate/internal/webhooks"
)

// Role lifecycle event types.
const (
	TypeRoleCreated = "role.created"
	TypeRoleUpdated = "role.updated"
	TypeRoleDeleted = "role.deleted"
)

// Event represents a role lifecycle event.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// New builds an event with a fresh ID and timestamp.
func New(eventType string, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Dispatcher delivers events to subscribed webhooks.
type Dispatcher struct {
	webhookSvc webhooks.Service
	logger     *zap.Logger
	httpClient *http.Client
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher(webhookSvc webhooks.Service, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		webhookSvc: webhookSvc,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish fires an event asynchronously. Delivery is best effort; failures
// are logged and never surface to the caller.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	go d.processEvent(context.Background(), event)
}

func (d *Dispatcher) processEvent(ctx context.Context, event Event) {
	hooks, err := d.webhookSvc.GetWebhooksForEvent(ctx, event.Type)
	if err != nil {
		d.logger.Error("Failed to fetch webhooks for event", zap.Error(err))
		return
	}
	if len(hooks) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("Failed to marshal event payload", zap.Error(err))
		return
	}

	for _, hook := range hooks {
		go d.deliver(ctx, hook, payload, event.ID)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, hook webhooks.Webhook, payload []byte, eventID string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
	if err != nil {
		d.logger.Error("Failed to build webhook request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-ID", eventID)
	req.Header.Set("X-Signature", Sign(hook.Secret, payload))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("Webhook delivery failed",
			zap.String("url", hook.URL), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		d.logger.Warn("Webhook delivery rejected",
			zap.String("url", hook.URL), zap.Int("status", resp.StatusCode))
	}
}

// Sign computes the hex-encoded HMAC-SHA256 signature receivers use to
// verify payload authenticity.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
