package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/cache"
	"github.com/relaydesk/tenantguard/internal/crypto"
	"github.com/relaydesk/tenantguard/internal/dbpool"
	"github.com/relaydesk/tenantguard/internal/middleware"
	"github.com/relaydesk/tenantguard/internal/quota"
	"github.com/relaydesk/tenantguard/internal/sanitize"
	"github.com/relaydesk/tenantguard/internal/tenant"
	"github.com/relaydesk/tenantguard/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log            *logrus.Logger
	Pool           *dbpool.Pool
	Cache          cache.Cache
	Enforcer       *tenant.Enforcer
	IsolationCfg   middleware.IsolationConfig
	Quota          *quota.Guard
	Audit          AuditRepository
	Feed           *ws.Feed
	Crypto         *crypto.Service
	Keys           crypto.KeyProvider
	EncryptionCfg  middleware.EncryptionConfig
	Sanitizer      *sanitize.Sanitizer
	CORSOrigins    []string
	QuotaResources []string
	Version        string
}

// maxBodySize bounds request bodies. The authorize endpoint only ever
// inspects the first megabyte, but oversized bodies are rejected before
// any handler runs.
const maxBodySize = 10 << 20 // 10 MB

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.Prometheus())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Cache, log, deps.Version)
	authorize := NewAuthorizeHandler(deps.Enforcer, deps.Quota, deps.QuotaResources, log)
	audit := NewAuditHandler(deps.Audit, deps.Feed, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// Everything else trusts the ingress to have authenticated the
	// caller and attached the X-Auth-* principal headers.
	api.Use(middleware.PrincipalFromHeaders())

	api.POST("/authorize", authorize.Authorize)

	api.GET("/audit", audit.Query)
	api.DELETE("/audit", audit.Purge)
	api.GET("/audit/stream", audit.Stream(ctx))

	// Envelope encryption, scoped to the caller's verified tenant. The
	// full in-process pipeline runs here: isolation, encryption scope,
	// body sanitization.
	cryptoAPI := NewCryptoHandler(log)
	scoped := api.Group("/crypto",
		middleware.Isolation(deps.IsolationCfg, deps.Enforcer, log),
		middleware.EncryptionScope(deps.EncryptionCfg, deps.Crypto, deps.Keys, log),
		middleware.SanitizeBody(deps.Sanitizer, log),
	)
	scoped.POST("/encrypt", cryptoAPI.Encrypt)
	scoped.POST("/decrypt", cryptoAPI.Decrypt)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		if tid := c.GetString(middleware.TenantIDKey); tid != "" {
			fields["tenant_id"] = tid
		}
		log.WithFields(fields).Info("request")
	}
}
