package authz

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dhawalhost/authgate/pkg/middleware"
)

// HTTPHandler exposes the decision engine over HTTP.
type HTTPHandler struct {
	svc      Service
	logger   *zap.Logger
	validate *validator.Validate
}

// NewHTTPHandler creates a new authorization HTTP handler.
func NewHTTPHandler(svc Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger, validate: validator.New()}
}

// RegisterRoutes registers the decision and role-management routes. authn
// guards the caller-identity endpoints, admin the role mutations; either may
// be nil to leave the group open (tests, trusted networks).
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine, authn, admin gin.HandlerFunc) {
	router.GET("/health", h.health)

	v1 := router.Group("/v1")

	decision := v1.Group("/decision")
	{
		decision.POST("", h.decide)
		decision.POST("/evaluate", h.evaluate)
		decision.POST("/scopes", h.checkScopes)
	}

	me := v1.Group("/me")
	if authn != nil {
		me.Use(authn)
	}
	{
		me.GET("/permissions", h.myPermissions)
		me.GET("/roles", h.myRoles)
	}

	roles := v1.Group("/roles")
	roles.GET("", h.listRoles)
	mutations := roles.Group("")
	if admin != nil {
		mutations.Use(admin)
	}
	{
		mutations.PUT("", h.putRole)
		mutations.DELETE("/:name", h.deleteRole)
	}
}

type principalRequest struct {
	ID     string   `json:"id" validate:"required"`
	Scopes []string `json:"scopes"`
	Groups []string `json:"groups"`
}

func (p principalRequest) principal() Principal {
	return Principal{ID: p.ID, Scopes: p.Scopes, Groups: p.Groups}
}

type decideRequest struct {
	Principal principalRequest `json:"principal" validate:"required"`
	Resource  string           `json:"resource" validate:"required"`
	Action    string           `json:"action" validate:"required"`
}

type evaluateRequest struct {
	Principal  principalRequest `json:"principal" validate:"required"`
	Permission Permission       `json:"permission" validate:"required"`
	Context    *EvalContext     `json:"context,omitempty"`
}

type checkScopesRequest struct {
	Principal principalRequest `json:"principal" validate:"required"`
	Scopes    []string         `json:"scopes" validate:"required,min=1"`
}

func (h *HTTPHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) decide(c *gin.Context) {
	var req decideRequest
	if !h.bind(c, &req) {
		return
	}
	d := h.svc.Decide(c.Request.Context(), req.Principal.principal(), req.Resource, req.Action)
	c.JSON(http.StatusOK, d)
}

func (h *HTTPHandler) evaluate(c *gin.Context) {
	var req evaluateRequest
	if !h.bind(c, &req) {
		return
	}
	d := h.svc.EvaluatePermission(c.Request.Context(), req.Principal.principal(), req.Permission, req.Context)
	c.JSON(http.StatusOK, d)
}

func (h *HTTPHandler) checkScopes(c *gin.Context) {
	var req checkScopesRequest
	if !h.bind(c, &req) {
		return
	}
	allowed := h.svc.HasScope(c.Request.Context(), req.Principal.principal(), req.Scopes...)
	c.JSON(http.StatusOK, gin.H{"allowed": allowed})
}

func (h *HTTPHandler) myPermissions(c *gin.Context) {
	p, ok := h.callerPrincipal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"permissions": h.svc.GetPermissions(c.Request.Context(), p)})
}

func (h *HTTPHandler) myRoles(c *gin.Context) {
	p, ok := h.callerPrincipal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": h.svc.GetRoles(c.Request.Context(), p)})
}

func (h *HTTPHandler) listRoles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"roles": h.svc.GetAllRoles(c.Request.Context())})
}

func (h *HTTPHandler) putRole(c *gin.Context) {
	var role Role
	if err := c.ShouldBindJSON(&role); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.AddRole(c.Request.Context(), role); err != nil {
		h.logger.Error("Failed to add role", zap.String("role", role.Name), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, role)
}

func (h *HTTPHandler) deleteRole(c *gin.Context) {
	name := c.Param("name")
	removed, err := h.svc.RemoveRole(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("Failed to remove role", zap.String("role", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove role"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "role not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func (h *HTTPHandler) callerPrincipal(c *gin.Context) (Principal, bool) {
	identity, ok := middleware.IdentityFromGinContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "caller identity required"})
		return Principal{}, false
	}
	return Principal{ID: identity.Subject, Scopes: identity.Scopes, Groups: identity.Groups}, true
}
