//go:build integration

package integration

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dhawalhost/authgate/internal/authz"
	"github.com/dhawalhost/authgate/pkg/client"
)

// TestEnv holds the in-process service and a typed client pointed at it.
type TestEnv struct {
	Server *httptest.Server
	Client *client.Client
}

// SetupTestEnv starts the full HTTP surface over the in-memory engine. No
// database, authentication or admin guard: the integration suite exercises
// the wire contract, not the deployment wiring.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	registry := authz.NewRegistry()
	engine := authz.NewEngine(registry, logger)
	svc := authz.NewService(engine, logger, authz.Options{})

	router := gin.New()
	authz.NewHTTPHandler(svc, logger).RegisterRoutes(router, nil, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &TestEnv{
		Server: srv,
		Client: client.New(client.Config{BaseURL: srv.URL}),
	}
}

func TestDecisionOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := SetupTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		principal client.Principal
		resource  string
		action    string
		allowed   bool
		reason    string
	}{
		{
			name:      "exact scope",
			principal: client.Principal{ID: "u1", Scopes: []string{"odata.read"}},
			resource:  "odata", action: "read",
			allowed: true, reason: "exact_scope",
		},
		{
			name:      "wildcard scope",
			principal: client.Principal{ID: "u1", Scopes: []string{"odata.*"}},
			resource:  "odata", action: "query",
			allowed: true, reason: "wildcard_scope",
		},
		{
			name:      "admin scope",
			principal: client.Principal{ID: "u1", Scopes: []string{"admin"}},
			resource:  "anything", action: "whatever",
			allowed: true, reason: "admin_scope",
		},
		{
			name:      "role via group",
			principal: client.Principal{ID: "u1", Groups: []string{"mcp-users"}},
			resource:  "mcp", action: "call",
			allowed: true, reason: "role_permission",
		},
		{
			name:      "no match",
			principal: client.Principal{ID: "u1", Scopes: []string{"billing.read"}},
			resource:  "odata", action: "read",
			allowed: false, reason: "no_match",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := env.Client.Decide(ctx, tt.principal, tt.resource, tt.action)
			if err != nil {
				t.Fatalf("Decide: %v", err)
			}
			if d.Allowed != tt.allowed || d.Reason != tt.reason {
				t.Fatalf("got %+v, want allowed=%v reason=%s", d, tt.allowed, tt.reason)
			}
		})
	}
}

func TestConditionalEvaluationOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := SetupTestEnv(t)
	ctx := context.Background()

	p := client.Principal{ID: "u1", Scopes: []string{"doc.read"}}
	perm := client.Permission{
		Resource:   "doc",
		Action:     "read",
		Conditions: map[string]interface{}{"owner": true},
	}

	d, err := env.Client.EvaluatePermission(ctx, p, perm, &client.EvalContext{UserID: "u1"})
	if err != nil {
		t.Fatalf("EvaluatePermission: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("owner match must allow, got %+v", d)
	}

	d, err = env.Client.EvaluatePermission(ctx, p, perm, nil)
	if err != nil {
		t.Fatalf("EvaluatePermission: %v", err)
	}
	if d.Allowed || d.Reason != "missing_context" {
		t.Fatalf("conditions without context must deny, got %+v", d)
	}
}

func TestRoleLifecycleOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := SetupTestEnv(t)
	ctx := context.Background()

	role := client.Role{
		Name:        "billing-user",
		Description: "Read billing data",
		Permissions: []client.Permission{{Resource: "billing", Action: "read"}},
	}
	if err := env.Client.AddRole(ctx, role); err != nil {
		t.Fatalf("AddRole: %v", err)
	}

	roles, err := env.Client.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	found := false
	for _, r := range roles {
		if r.Name == "billing-user" {
			found = true
		}
	}
	if !found {
		t.Fatalf("registered role missing from listing: %+v", roles)
	}

	if err := env.Client.RemoveRole(ctx, "billing-user"); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if err := env.Client.RemoveRole(ctx, "billing-user"); err == nil {
		t.Fatal("removing a missing role must fail over HTTP")
	}
}

func TestScopeCheckOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	env := SetupTestEnv(t)
	ctx := context.Background()

	p := client.Principal{ID: "u1", Scopes: []string{"odata.*"}}
	ok, err := env.Client.HasScope(ctx, p, "odata.query")
	if err != nil {
		t.Fatalf("HasScope: %v", err)
	}
	if !ok {
		t.Fatal("held wildcard must satisfy odata.query")
	}

	ok, err = env.Client.HasScope(ctx, p, "mcp.call", "odata.read")
	if err != nil {
		t.Fatalf("HasScope: %v", err)
	}
	if !ok {
		t.Fatal("any-of semantics: one satisfied scope suffices")
	}

	ok, err = env.Client.HasScope(ctx, p, "mcp.call")
	if err != nil {
		t.Fatalf("HasScope: %v", err)
	}
	if ok {
		t.Fatal("unrelated scope must not be satisfied")
	}
}
