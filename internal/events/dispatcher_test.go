package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dhawalhost/authgate/internal/webhooks"
)

type fakeWebhookService struct {
	hooks []webhooks.Webhook
}

func (f *fakeWebhookService) CreateWebhook(context.Context, string, string, []string) (string, error) {
	return "", nil
}
func (f *fakeWebhookService) GetWebhook(context.Context, string) (webhooks.Webhook, error) {
	return webhooks.Webhook{}, nil
}
func (f *fakeWebhookService) ListWebhooks(context.Context) ([]webhooks.Webhook, error) {
	return f.hooks, nil
}
func (f *fakeWebhookService) DeleteWebhook(context.Context, string) error { return nil }
func (f *fakeWebhookService) GetWebhooksForEvent(_ context.Context, event string) ([]webhooks.Webhook, error) {
	var out []webhooks.Webhook
	for _, h := range f.hooks {
		for _, e := range h.Events {
			if e == event {
				out = append(out, h)
			}
		}
	}
	return out, nil
}

type delivery struct {
	body      []byte
	eventID   string
	signature string
}

func TestPublishDeliversSignedPayload(t *testing.T) {
	received := make(chan delivery, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- delivery{
			body:      body,
			eventID:   r.Header.Get("X-Event-ID"),
			signature: r.Header.Get("X-Signature"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := &fakeWebhookService{hooks: []webhooks.Webhook{
		{ID: "wh1", URL: srv.URL, Secret: "s3cret", Events: []string{TypeRoleCreated}, Active: true},
	}}
	d := NewDispatcher(svc, zap.NewNop())

	event := New(TypeRoleCreated, map[string]string{"name": "billing-user"})
	d.Publish(context.Background(), event)

	select {
	case got := <-received:
		if got.eventID != event.ID {
			t.Fatalf("event ID = %q, want %q", got.eventID, event.ID)
		}
		if got.signature != Sign("s3cret", got.body) {
			t.Fatal("signature does not verify against the delivered payload")
		}
		var decoded Event
		if err := json.Unmarshal(got.body, &decoded); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if decoded.Type != TypeRoleCreated {
			t.Fatalf("payload type = %q", decoded.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was not delivered")
	}
}

func TestPublishSkipsUnsubscribedEvents(t *testing.T) {
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
	}))
	defer srv.Close()

	svc := &fakeWebhookService{hooks: []webhooks.Webhook{
		{ID: "wh1", URL: srv.URL, Secret: "s3cret", Events: []string{TypeRoleDeleted}, Active: true},
	}}
	d := NewDispatcher(svc, zap.NewNop())
	d.Publish(context.Background(), New(TypeRoleCreated, nil))

	select {
	case <-received:
		t.Fatal("webhook must not receive events it is not subscribed to")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSignIsDeterministic(t *testing.T) {
	payload := []byte(`{"id":"e1"}`)
	a := Sign("secret", payload)
	b := Sign("secret", payload)
	if a != b {
		t.Fatal("same secret and payload must produce the same signature")
	}
	if a == Sign("other", payload) {
		t.Fatal("different secrets must produce different signatures")
	}
}

func TestNewPopulatesIDAndTimestamp(t *testing.T) {
	e := New(TypeRoleUpdated, nil)
	if e.ID == "" {
		t.Fatal("event ID must be set")
	}
	if e.Timestamp.IsZero() {
		t.Fatal("event timestamp must be set")
	}
	if e.ID == New(TypeRoleUpdated, nil).ID {
		t.Fatal("event IDs must be unique")
	}
}
