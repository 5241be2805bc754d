package authz

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dhawalhost/authgate/internal/audit"
	"github.com/dhawalhost/authgate/internal/events"
	"github.com/dhawalhost/authgate/pkg/observability"
)

// Publisher dispatches role lifecycle events to interested subscribers.
// *events.Dispatcher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Service is the decision surface exposed to transports. Decision queries
// never return errors: they are fail-closed booleans. Role mutations are the
// only operations with an observable failure mode.
type Service interface {
	Decide(ctx context.Context, p Principal, resource, action string) Decision
	EvaluatePermission(ctx context.Context, p Principal, perm Permission, evalCtx *EvalContext) Decision
	GetPermissions(ctx context.Context, p Principal) []Permission
	GetRoles(ctx context.Context, p Principal) []Role
	HasRole(ctx context.Context, p Principal, name string) bool
	HasScope(ctx context.Context, p Principal, scopes ...string) bool

	AddRole(ctx context.Context, role Role) error
	RemoveRole(ctx context.Context, name string) (bool, error)
	GetAllRoles(ctx context.Context) []Role
}

// Options carries the optional collaborators of the service. Any field may
// be nil; the service degrades to the bare in-memory engine.
type Options struct {
	Store   Store
	Audit   audit.Service
	Events  Publisher
	Metrics *observability.Metrics
}

type service struct {
	engine  *Engine
	store   Store
	audit   audit.Service
	events  Publisher
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService wraps an engine with persistence, auditing, metrics and event
// dispatch.
func NewService(engine *Engine, logger *zap.Logger, opts Options) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		engine:  engine,
		store:   opts.Store,
		audit:   opts.Audit,
		events:  opts.Events,
		metrics: opts.Metrics,
		logger:  logger,
	}
}

// LoadStoredRoles reads persisted custom roles into the registry. Called
// once at startup, before the engine serves decisions.
func LoadStoredRoles(ctx context.Context, store Store, registry *Registry) error {
	roles, err := store.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("load stored roles: %w", err)
	}
	for _, role := range roles {
		registry.Register(role)
	}
	return nil
}

func (s *service) Decide(ctx context.Context, p Principal, resource, action string) Decision {
	d := s.engine.Decide(p, resource, action)
	s.observe(d)
	s.recordDecision(ctx, p, resource+"."+action, d, "")
	return d
}

func (s *service) EvaluatePermission(ctx context.Context, p Principal, perm Permission, evalCtx *EvalContext) Decision {
	d := s.engine.EvaluatePermission(p, perm, evalCtx)
	s.observe(d)
	clientIP := ""
	if evalCtx != nil {
		clientIP = evalCtx.ClientIP
	}
	s.recordDecision(ctx, p, perm.Key(), d, clientIP)
	return d
}

func (s *service) GetPermissions(ctx context.Context, p Principal) []Permission {
	return s.engine.GetPermissions(p)
}

func (s *service) GetRoles(ctx context.Context, p Principal) []Role {
	return s.engine.GetRoles(p)
}

func (s *service) HasRole(ctx context.Context, p Principal, name string) bool {
	return s.engine.HasRole(p, name)
}

func (s *service) HasScope(ctx context.Context, p Principal, scopes ...string) bool {
	return s.engine.HasScope(p, scopes...)
}

func (s *service) AddRole(ctx context.Context, role Role) error {
	if role.Name == "" {
		return fmt.Errorf("role name is required")
	}
	for _, perm := range role.Permissions {
		if perm.Resource == "" || perm.Action == "" {
			return fmt.Errorf("permission resource and action are required")
		}
	}

	_, existed := s.engine.Registry().Lookup(role.Name)
	if s.store != nil {
		if err := s.store.SaveRole(ctx, role); err != nil {
			return err
		}
	}
	s.engine.Registry().Register(role)

	eventType := events.TypeRoleCreated
	if existed {
		eventType = events.TypeRoleUpdated
	}
	s.publish(ctx, eventType, role)
	s.recordMutation(ctx, "role.add", role.Name, "success")
	return nil
}

func (s *service) RemoveRole(ctx context.Context, name string) (bool, error) {
	if s.store != nil {
		if _, err := s.store.DeleteRole(ctx, name); err != nil {
			return false, err
		}
	}
	removed := s.engine.Registry().Unregister(name)
	if removed {
		s.publish(ctx, events.TypeRoleDeleted, Role{Name: name})
		s.recordMutation(ctx, "role.remove", name, "success")
	}
	return removed, nil
}

func (s *service) GetAllRoles(ctx context.Context) []Role {
	return s.engine.Registry().List()
}

func (s *service) observe(d Decision) {
	if s.metrics == nil {
		return
	}
	outcome := "deny"
	if d.Allowed {
		outcome = "allow"
	}
	s.metrics.DecisionsTotal.WithLabelValues(outcome, d.Reason).Inc()
}

func (s *service) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, events.New(eventType, payload))
}

// recordDecision writes the decision to the audit log asynchronously, so the
// decision path never waits on storage. Best effort: a failed write is logged
// and never alters the decision.
func (s *service) recordDecision(_ context.Context, p Principal, permissionKey string, d Decision, clientIP string) {
	if s.audit == nil {
		return
	}
	outcome := "deny"
	if d.Allowed {
		outcome = "allow"
	}
	go func() {
		if err := s.audit.Log(context.Background(), audit.LogInput{
			ActorID:  p.ID,
			Action:   "authz.decide",
			Resource: permissionKey,
			Outcome:  outcome,
			Reason:   d.Reason,
			ClientIP: clientIP,
		}); err != nil {
			s.logger.Warn("audit write failed", zap.Error(err))
		}
	}()
}

func (s *service) recordMutation(ctx context.Context, action, roleName, outcome string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, audit.LogInput{
		Action:   action,
		Resource: roleName,
		Outcome:  outcome,
	}); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}
}
