package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	jose "gopkg.in/go-jose/go-jose.v2"
)

// Identity is the authenticated caller extracted from a bearer token. It
// carries the raw claims the decision engine consumes; the middleware never
// interprets them.
type Identity struct {
	Subject string
	Scopes  []string
	Groups  []string
}

// GroupResolver supplies directory groups for subjects whose tokens carry no
// group claim.
type GroupResolver interface {
	Groups(ctx context.Context, subject string) ([]string, error)
}

type identityContextKey string

const identityKey identityContextKey = "identity"

// ClaimsConfig configures bearer-token claim extraction.
type ClaimsConfig struct {
	// JWKSURL is the endpoint the signing keys are fetched from.
	JWKSURL string
	// Issuer and Audience are enforced when non-empty.
	Issuer   string
	Audience string
	// GroupResolver, when set, fills in groups for tokens without a groups
	// claim. Resolution failures are logged and leave groups empty.
	GroupResolver GroupResolver
	// RefreshInterval bounds how often the JWKS is re-fetched. Defaults to
	// 5 minutes.
	RefreshInterval time.Duration
	Logger          *zap.Logger
}

// ClaimsExtractor returns a middleware that authenticates the bearer token
// and stores the resulting Identity on the context for downstream handlers.
func ClaimsExtractor(cfg ClaimsConfig) gin.HandlerFunc {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	keys := &keyCache{
		url:    cfg.JWKSURL,
		ttl:    cfg.RefreshInterval,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	parseOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"})}
	if cfg.Issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(cfg.Audience))
	}

	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		token, err := jwt.Parse(raw, keys.keyFunc, parseOpts...)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		identity := identityFromClaims(claims)
		if len(identity.Groups) == 0 && cfg.GroupResolver != nil && identity.Subject != "" {
			groups, err := cfg.GroupResolver.Groups(c.Request.Context(), identity.Subject)
			if err != nil {
				cfg.Logger.Warn("group resolution failed",
					zap.String("subject", identity.Subject), zap.Error(err))
			} else {
				identity.Groups = groups
			}
		}

		c.Set(string(identityKey), identity)
		c.Next()
	}
}

// IdentityFromGinContext extracts the Identity stored by ClaimsExtractor.
func IdentityFromGinContext(c *gin.Context) (Identity, bool) {
	if value, ok := c.Get(string(identityKey)); ok {
		if identity, ok := value.(Identity); ok {
			return identity, true
		}
	}
	return Identity{}, false
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func identityFromClaims(claims jwt.MapClaims) Identity {
	identity := Identity{}
	if sub, ok := claims["sub"].(string); ok {
		identity.Subject = sub
	}
	// OAuth "scope" is a space-delimited string; some issuers emit a
	// "scopes" array instead.
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		identity.Scopes = strings.Fields(scope)
	} else if scopes, ok := claims["scopes"].([]interface{}); ok {
		identity.Scopes = toStrings(scopes)
	}
	if groups, ok := claims["groups"].([]interface{}); ok {
		identity.Groups = toStrings(groups)
	}
	return identity
}

func toStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// keyCache fetches and caches the JWKS, refreshing at most once per TTL.
type keyCache struct {
	url    string
	ttl    time.Duration
	client *http.Client

	mu        sync.RWMutex
	keys      jose.JSONWebKeySet
	fetchedAt time.Time
}

func (k *keyCache) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if key, ok := k.lookup(kid); ok {
		return key, nil
	}
	if err := k.refresh(); err != nil {
		return nil, err
	}
	if key, ok := k.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("no signing key for kid %q", kid)
}

func (k *keyCache) lookup(kid string) (interface{}, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if time.Since(k.fetchedAt) > k.ttl {
		return nil, false
	}
	for _, key := range k.keys.Keys {
		if key.KeyID == kid || kid == "" {
			return key.Key, true
		}
	}
	return nil, false
}

func (k *keyCache) refresh() error {
	resp, err := k.client.Get(k.url)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var jwks jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	k.mu.Lock()
	k.keys = jwks
	k.fetchedAt = time.Now()
	k.mu.Unlock()
	return nil
}
