package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dhawalhost/authgate/pkg/client"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "roles":
		err = runRoles(os.Args[2:])
	case "add-role":
		err = runAddRole(os.Args[2:])
	case "remove-role":
		err = runRemoveRole(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	case "webhooks":
		err = runWebhooks(os.Args[2:])
	case "add-webhook":
		err = runAddWebhook(os.Args[2:])
	case "remove-webhook":
		err = runRemoveWebhook(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`Usage: admincli <command> [flags]

Commands:
  roles           List all registered roles
  add-role        Register or replace a role from a JSON definition
  remove-role     Unregister a role by name
  check           Evaluate a permission for a principal
  webhooks        List webhook subscriptions
  add-webhook     Subscribe an endpoint to role lifecycle events
  remove-webhook  Delete a webhook subscription by ID`)
}

func newClient(fs *flag.FlagSet) (baseURL, adminKey *string) {
	baseURL = fs.String("url", defaultBaseURL, "Base URL of the authorization service")
	adminKey = fs.String("admin-key", os.Getenv("AUTHGATE_ADMIN_KEY"), "Admin key for mutations")
	return
}

func buildClient(baseURL, adminKey string) *client.Client {
	c := client.New(client.Config{BaseURL: baseURL, Timeout: 10 * time.Second})
	if adminKey != "" {
		c.SetAdminKey(adminKey)
	}
	return c
}

func runRoles(args []string) error {
	fs := flag.NewFlagSet("roles", flag.ExitOnError)
	baseURL, adminKey := newClient(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	roles, err := buildClient(*baseURL, *adminKey).ListRoles(context.Background())
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		fmt.Println("No roles registered")
		return nil
	}
	for _, r := range roles {
		fmt.Printf("- %s", r.Name)
		if r.Description != "" {
			fmt.Printf(" (%s)", r.Description)
		}
		fmt.Println()
		for _, p := range r.Permissions {
			fmt.Printf("    %s.%s\n", p.Resource, p.Action)
		}
	}
	return nil
}

func runAddRole(args []string) error {
	fs := flag.NewFlagSet("add-role", flag.ExitOnError)
	baseURL, adminKey := newClient(fs)
	file := fs.String("file", "", "Path to a JSON role definition (- for stdin)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return fmt.Errorf("file is required")
	}

	var data []byte
	var err error
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return err
	}

	var role client.Role
	if err := json.Unmarshal(data, &role); err != nil {
		return fmt.Errorf("failed to parse role definition: %w", err)
	}

	if err := buildClient(*baseURL, *adminKey).AddRole(context.Background(), role); err != nil {
		return err
	}
	fmt.Printf("Role %s registered\n", role.Name)
	return nil
}

func runRemoveRole(args []string) error {
	fs := flag.NewFlagSet("remove-role", flag.ExitOnError)
	baseURL, adminKey := newClient(fs)
	name := fs.String("name", "", "Role name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return fmt.Errorf("name is required")
	}

	if err := buildClient(*baseURL, *adminKey).RemoveRole(context.Background(), *name); err != nil {
		return err
	}
	fmt.Printf("Role %s removed\n", *name)
	return nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	baseURL, adminKey := newClient(fs)
	principalID := fs.String("principal", "", "Principal ID")
	scopes := fs.String("scopes", "", "Comma-separated scope claims")
	groups := fs.String("groups", "", "Comma-separated group claims")
	resource := fs.String("resource", "", "Resource to check")
	action := fs.String("action", "", "Action to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *resource == "" || *action == "" {
		return fmt.Errorf("resource and action are required")
	}

	p := client.Principal{
		ID:     *principalID,
		Scopes: splitList(*scopes),
		Groups: splitList(*groups),
	}
	d, err := buildClient(*baseURL, *adminKey).Decide(context.Background(), p, *resource, *action)
	if err != nil {
		return err
	}
	if d.Allowed {
		fmt.Printf("ALLOW (%s)\n", d.Reason)
	} else {
		fmt.Printf("DENY (%s)\n", d.Reason)
	}
	return nil
}

func runWebhooks(args []string) error {
	fs := flag.NewFlagSet("webhooks", flag.ExitOnError)
	baseURL, adminKey := newClient(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	hooks, err := buildClient(*baseURL, *adminKey).ListWebhooks(context.Background())
	if err != nil {
		return err
	}
	if len(hooks) == 0 {
		fmt.Println("No webhooks registered")
		return nil
	}
	for _, h := range hooks {
		state := "inactive"
		if h.Active {
			state = "active"
		}
		fmt.Printf("- %s %s (%s)\n", h.ID, h.URL, state)
		for _, e := range h.Events {
			fmt.Printf("    %s\n", e)
		}
	}
	return nil
}

func runAddWebhook(args []string) error {
	fs := flag.NewFlagSet("add-webhook", flag.ExitOnError)
	baseURL, adminKey := newClient(fs)
	hookURL := fs.String("url", "", "Endpoint the events are delivered to")
	secret := fs.String("secret", "", "Shared secret used to sign deliveries")
	eventList := fs.String("events", "", "Comma-separated event types to subscribe to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	events := splitList(*eventList)
	if *hookURL == "" || *secret == "" || len(events) == 0 {
		return fmt.Errorf("url, secret and events are required")
	}

	id, err := buildClient(*baseURL, *adminKey).CreateWebhook(context.Background(), *hookURL, *secret, events)
	if err != nil {
		return err
	}
	fmt.Printf("Webhook %s registered\n", id)
	return nil
}

func runRemoveWebhook(args []string) error {
	fs := flag.NewFlagSet("remove-webhook", flag.ExitOnError)
	baseURL, adminKey := newClient(fs)
	id := fs.String("id", "", "Webhook ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("id is required")
	}

	if err := buildClient(*baseURL, *adminKey).RemoveWebhook(context.Background(), *id); err != nil {
		return err
	}
	fmt.Printf("Webhook %s removed\n", *id)
	return nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
