// Package client provides a typed HTTP client for the AuthGate API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Principal mirrors the engine's principal input.
type Principal struct {
	ID     string   `json:"id"`
	Scopes []string `json:"scopes"`
	Groups []string `json:"groups"`
}

// Permission mirrors the engine's permission value.
type Permission struct {
	Resource   string                 `json:"resource"`
	Action     string                 `json:"action"`
	Conditions map[string]interface{} `json:"conditions,omitempty"`
}

// Role mirrors the engine's role value.
type Role struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// Decision is a verdict with its matching reason.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// EvalContext carries request attributes for conditional evaluation.
type EvalContext struct {
	UserID      string `json:"user_id,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// Webhook mirrors a webhook subscription. The secret is write-only and never
// returned by the API.
type Webhook struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Active bool     `json:"active"`
}

// Client is a client for the AuthGate API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	AdminKey   string
}

// Config holds configuration for the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// New creates a new Client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: cfg.BaseURL,
		HTTPClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SetAdminKey sets the admin key sent with role-mutation requests.
func (c *Client) SetAdminKey(key string) {
	c.AdminKey = key
}

// Decide asks whether the principal may perform action on resource.
func (c *Client) Decide(ctx context.Context, p Principal, resource, action string) (Decision, error) {
	var d Decision
	err := c.doRequest(ctx, http.MethodPost, "/v1/decision", map[string]interface{}{
		"principal": p,
		"resource":  resource,
		"action":    action,
	}, &d)
	return d, err
}

// EvaluatePermission checks a conditional permission against a context.
func (c *Client) EvaluatePermission(ctx context.Context, p Principal, perm Permission, evalCtx *EvalContext) (Decision, error) {
	body := map[string]interface{}{
		"principal":  p,
		"permission": perm,
	}
	if evalCtx != nil {
		body["context"] = evalCtx
	}
	var d Decision
	err := c.doRequest(ctx, http.MethodPost, "/v1/decision/evaluate", body, &d)
	return d, err
}

// HasScope reports whether the principal satisfies any of the required scopes.
func (c *Client) HasScope(ctx context.Context, p Principal, scopes ...string) (bool, error) {
	var res struct {
		Allowed bool `json:"allowed"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/v1/decision/scopes", map[string]interface{}{
		"principal": p,
		"scopes":    scopes,
	}, &res)
	return res.Allowed, err
}

// ListRoles returns all registered roles.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var res struct {
		Roles []Role `json:"roles"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/roles", nil, &res); err != nil {
		return nil, err
	}
	return res.Roles, nil
}

// AddRole registers or replaces a role.
func (c *Client) AddRole(ctx context.Context, role Role) error {
	return c.doRequest(ctx, http.MethodPut, "/v1/roles", role, nil)
}

// RemoveRole unregisters a role by name.
func (c *Client) RemoveRole(ctx context.Context, name string) error {
	return c.doRequest(ctx, http.MethodDelete, "/v1/roles/"+url.PathEscape(name), nil, nil)
}

// CreateWebhook subscribes an endpoint to the given event types and returns
// the new subscription ID.
func (c *Client) CreateWebhook(ctx context.Context, hookURL, secret string, events []string) (string, error) {
	var res struct {
		ID string `json:"id"`
	}
	err := c.doRequest(ctx, http.MethodPost, "/v1/webhooks", map[string]interface{}{
		"url":    hookURL,
		"secret": secret,
		"events": events,
	}, &res)
	return res.ID, err
}

// ListWebhooks returns all webhook subscriptions.
func (c *Client) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	var res struct {
		Webhooks []Webhook `json:"webhooks"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/v1/webhooks", nil, &res); err != nil {
		return nil, err
	}
	return res.Webhooks, nil
}

// RemoveWebhook deletes a webhook subscription by ID.
func (c *Client) RemoveWebhook(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/v1/webhooks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.AdminKey != "" {
		req.Header.Set("X-Admin-Key", c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
