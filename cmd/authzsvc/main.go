package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dhawalhost/authgate/internal/audit"
	"github.com/dhawalhost/authgate/internal/authz"
	"github.com/dhawalhost/authgate/internal/directory"
	"github.com/dhawalhost/authgate/internal/events"
	"github.com/dhawalhost/authgate/internal/webhooks"
	"github.com/dhawalhost/authgate/pkg/database"
	"github.com/dhawalhost/authgate/pkg/logger"
	"github.com/dhawalhost/authgate/pkg/middleware"
	"github.com/dhawalhost/authgate/pkg/observability"
)

const serviceName = "authzsvc"

func main() {
	log := logger.New(logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Error("Failed to create logger", "err", err)
		os.Exit(1)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: envOr("SERVICE_VERSION", "dev"),
		Environment:    envOr("ENVIRONMENT", "development"),
	}, zlog)
	if err != nil {
		log.Error("Failed to initialize tracing", "err", err)
		os.Exit(1)
	}
	defer shutdownTracer(context.Background())

	registry := authz.NewRegistry()
	engine := authz.NewEngine(registry, zlog)
	metrics := observability.NewMetrics()

	opts := authz.Options{Metrics: metrics}
	var auditHandler *audit.HTTPHandler
	var webhookHandler *webhooks.HTTPHandler
	if os.Getenv("DB_HOST") != "" {
		db, err := database.NewConnection(database.ConfigFromEnv())
		if err != nil {
			log.Error("Failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		store := authz.NewStore(db)
		if err := authz.LoadStoredRoles(ctx, store, registry); err != nil {
			log.Error("Failed to load stored roles", "err", err)
			os.Exit(1)
		}
		opts.Store = store

		auditSvc := audit.NewService(audit.NewStore(db))
		opts.Audit = auditSvc
		auditHandler = audit.NewHTTPHandler(auditSvc, zlog)

		webhookSvc := webhooks.NewService(db)
		webhookHandler = webhooks.NewHTTPHandler(webhookSvc, zlog)
		opts.Events = events.NewDispatcher(webhookSvc, zlog)
	}

	svc := authz.NewService(engine, zlog, opts)

	gin.SetMode(envOr("GIN_MODE", gin.ReleaseMode))
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.PrometheusMiddleware(metrics))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware(rate.Limit(100), 50))
	router.Use(cors.Default())
	router.GET("/metrics", gin.WrapH(observability.PrometheusHandler()))

	var authn gin.HandlerFunc
	if jwksURL := os.Getenv("JWKS_URL"); jwksURL != "" {
		cfg := middleware.ClaimsConfig{
			JWKSURL:  jwksURL,
			Issuer:   os.Getenv("TOKEN_ISSUER"),
			Audience: os.Getenv("TOKEN_AUDIENCE"),
			Logger:   zlog,
		}
		if ldapURL := os.Getenv("LDAP_URL"); ldapURL != "" {
			cfg.GroupResolver = directory.NewLDAPResolver(directory.LDAPConfig{
				URL:          ldapURL,
				BindDN:       os.Getenv("LDAP_BIND_DN"),
				BindPassword: os.Getenv("LDAP_BIND_PASSWORD"),
				BaseDN:       os.Getenv("LDAP_BASE_DN"),
			})
		}
		authn = middleware.ClaimsExtractor(cfg)
	}

	var admin gin.HandlerFunc
	if keyHash := os.Getenv("ADMIN_KEY_HASH"); keyHash != "" {
		admin = middleware.RequireAdminKey(keyHash)
	}

	handler := authz.NewHTTPHandler(svc, zlog)
	handler.RegisterRoutes(router, authn, admin)
	if auditHandler != nil {
		adminGroup := router.Group("/v1")
		if admin != nil {
			adminGroup.Use(admin)
		}
		auditHandler.RegisterRoutes(adminGroup)
		webhookHandler.RegisterRoutes(adminGroup)
	}

	addr := envOr("LISTEN_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", "err", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
