package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type fakeService struct {
	hooks   []Webhook
	nextID  string
	created struct {
		url    string
		secret string
		events []string
	}
	deleted []string
	err     error
}

func (f *fakeService) CreateWebhook(_ context.Context, url, secret string, events []string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created.url = url
	f.created.secret = secret
	f.created.events = events
	return f.nextID, nil
}

func (f *fakeService) GetWebhook(_ context.Context, id string) (Webhook, error) {
	for _, h := range f.hooks {
		if h.ID == id {
			return h, nil
		}
	}
	return Webhook{}, ErrNotFound
}

func (f *fakeService) ListWebhooks(_ context.Context) ([]Webhook, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hooks, nil
}

func (f *fakeService) DeleteWebhook(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeService) GetWebhooksForEvent(context.Context, string) ([]Webhook, error) {
	return nil, nil
}

func newWebhookRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHTTPHandler(svc, zap.NewNop()).RegisterRoutes(router.Group("/v1"))
	return router
}

func TestCreateWebhook(t *testing.T) {
	svc := &fakeService{nextID: "wh1"}
	router := newWebhookRouter(svc)

	body, _ := json.Marshal(map[string]interface{}{
		"url":    "https://receiver.example/hook",
		"secret": "s3cret-long-enough",
		"events": []string{"role.created", "role.deleted"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create returned %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "wh1" {
		t.Fatalf("id = %q", resp.ID)
	}
	if svc.created.url != "https://receiver.example/hook" || len(svc.created.events) != 2 {
		t.Fatalf("subscription not passed through: %+v", svc.created)
	}
}

func TestCreateWebhookValidation(t *testing.T) {
	router := newWebhookRouter(&fakeService{})

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing url", map[string]interface{}{"secret": "s3cret-long-enough", "events": []string{"role.created"}}},
		{"invalid url", map[string]interface{}{"url": "not a url", "secret": "s3cret-long-enough", "events": []string{"role.created"}}},
		{"short secret", map[string]interface{}{"url": "https://x.example", "secret": "short", "events": []string{"role.created"}}},
		{"no events", map[string]interface{}{"url": "https://x.example", "secret": "s3cret-long-enough", "events": []string{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/v1/webhooks", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", w.Code)
			}
		})
	}
}

func TestListWebhooksRedactsSecret(t *testing.T) {
	svc := &fakeService{hooks: []Webhook{
		{ID: "wh1", URL: "https://receiver.example/hook", Secret: "s3cret", Events: []string{"role.created"}, Active: true},
	}}
	router := newWebhookRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/webhooks", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list returned %d", w.Code)
	}
	var resp struct {
		Webhooks []map[string]interface{} `json:"webhooks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Webhooks) != 1 {
		t.Fatalf("webhooks = %+v", resp.Webhooks)
	}
	if _, present := resp.Webhooks[0]["secret"]; present {
		t.Fatal("secret must never be serialized")
	}
}

func TestGetWebhook(t *testing.T) {
	svc := &fakeService{hooks: []Webhook{{ID: "wh1", URL: "https://receiver.example/hook"}}}
	router := newWebhookRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/webhooks/wh1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get returned %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/webhooks/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing webhook must return 404, got %d", w.Code)
	}
}

func TestDeleteWebhook(t *testing.T) {
	svc := &fakeService{}
	router := newWebhookRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/webhooks/wh1", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete returned %d", w.Code)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != "wh1" {
		t.Fatalf("delete not passed through: %+v", svc.deleted)
	}
}

func TestCreateWebhookServiceError(t *testing.T) {
	router := newWebhookRouter(&fakeService{err: errors.New("db down")})

	body, _ := json.Marshal(map[string]interface{}{
		"url":    "https://receiver.example/hook",
		"secret": "s3cret-long-enough",
		"events": []string{"role.created"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("service error must return 500, got %d", w.Code)
	}
}
