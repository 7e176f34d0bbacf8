package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/metrics"
	"github.com/relaydesk/tenantguard/internal/tenant"
)

// Gin context keys set by the isolation middleware.
const (
	// PrincipalKey holds the *tenant.Principal attached by upstream auth.
	PrincipalKey = "principal"

	// TenantContextKey holds the *tenant.Context on the success path.
	TenantContextKey = "tenant_context"

	// TenantIDKey holds the verified tenant id string.
	TenantIDKey = "tenant_id"

	// UnsafeNoTenantKey marks requests that passed permissively without
	// any tenant context. Downstream defenses own the risk.
	UnsafeNoTenantKey = "tenant_unsafe"
)

// Request headers consumed by the isolation middleware.
const (
	// HeaderCacheBypass requests a fresh tenant-store lookup for this
	// request, honored only when the enforcer allows cache bypass.
	HeaderCacheBypass = "X-Tenant-Cache-Bypass"
)

// HeaderIsolationVerified is set to "true" on responses whose isolation
// decision succeeded.
const HeaderIsolationVerified = "X-Tenant-Isolation-Verified"

// CacheBypassRequested reports whether the request carries the cache
// bypass signal. Matching is case-insensitive so the in-process and
// forward-auth surfaces behave identically.
func CacheBypassRequested(c *gin.Context) bool {
	return strings.EqualFold(c.GetHeader(HeaderCacheBypass), "true")
}

// maxInspectedBody bounds how much request body the resolver will decode.
const maxInspectedBody = 1 << 20 // 1 MB

// IsolationConfig wraps the enforcer config with middleware-only options.
type IsolationConfig struct {
	tenant.Config

	// PerformanceMonitoring attaches the pipeline's elapsed time to the
	// request and the isolation duration histogram.
	PerformanceMonitoring bool
}

// Isolation returns gin middleware that runs the tenant isolation
// pipeline. Denials abort with 403; everything else proceeds with the
// verified tenant context attached.
//
// The middleware is fail-closed end to end: a panic anywhere below it
// resolves to a deny, never a pass.
func Isolation(cfg IsolationConfig, enforcer *tenant.Enforcer, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"request_id": c.GetString(RequestIDKey),
					"panic":      r,
				}).Error("isolation pipeline panicked, denying request")
				metrics.IsolationDecisions.WithLabelValues("panic").Inc()
				respondDenied(c, tenant.NewViolationError(
					tenant.ViolationInternalFault, tenant.CodeIsolationInternal, "access denied"))
			}
		}()

		req := buildRequest(c)
		decision := enforcer.Evaluate(c.Request.Context(), req)

		elapsed := time.Since(start)
		if cfg.PerformanceMonitoring {
			metrics.IsolationDuration.Observe(elapsed.Seconds())
			c.Set("isolation_elapsed", elapsed)
		}
		metrics.IsolationDecisions.WithLabelValues(string(decision.Outcome)).Inc()

		switch decision.Outcome {
		case tenant.OutcomeDenied:
			var violation *tenant.ViolationError
			if errors.As(decision.Reason, &violation) {
				metrics.ViolationsTotal.WithLabelValues(violation.ViolationType).Inc()
				log.WithFields(logrus.Fields{
					"request_id":         req.RequestID,
					"caller_tenant_id":   callerTenant(req),
					"resource_tenant_id": decision.ResourceTenantID,
					"path":               req.Path,
					"client_ip":          req.IP,
				}).Warn("tenant isolation violation")
			}
			respondDenied(c, decision.Reason)

		case tenant.OutcomeExcluded:
			c.Next()

		case tenant.OutcomeUnsafeNoTenant:
			c.Set(UnsafeNoTenantKey, true)
			c.Next()

		default:
			// Granted, assumed, or admin bypass.
			if decision.Context != nil {
				c.Set(TenantContextKey, decision.Context)
				c.Set(TenantIDKey, decision.Context.TenantID)
				c.Header(HeaderIsolationVerified, "true")
			}
			c.Next()
		}
	}
}

// buildRequest assembles the enforcer's view of the current request from
// the gin context.
func buildRequest(c *gin.Context) tenant.Request {
	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}

	return tenant.Request{
		Principal: GetPrincipal(c),
		RequestID: c.GetString(RequestIDKey),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Surfaces: tenant.Surfaces{
			Params:  params,
			Query:   c.Request.URL.Query(),
			Body:    snapshotBody(c),
			Headers: c.Request.Header,
		},
		CacheBypass: CacheBypassRequested(c),
	}
}

// GetPrincipal returns the authenticated principal attached by the
// upstream auth layer, or nil.
func GetPrincipal(c *gin.Context) *tenant.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}

	p, ok := v.(*tenant.Principal)
	if !ok {
		return nil
	}

	return p
}

// GetTenantContext returns the verified tenant context, or nil when the
// decision did not produce one.
func GetTenantContext(c *gin.Context) *tenant.Context {
	v, ok := c.Get(TenantContextKey)
	if !ok {
		return nil
	}

	tc, ok := v.(*tenant.Context)
	if !ok {
		return nil
	}

	return tc
}

// snapshotBody decodes a JSON request body for surface inspection and
// restores it for downstream handlers. Non-JSON, oversized, or malformed
// bodies yield a nil surface and the resolver simply finds nothing there.
func snapshotBody(c *gin.Context) any {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}

	switch c.Request.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil
	}

	mediaType, _, err := mime.ParseMediaType(c.GetHeader("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInspectedBody+1))
	if err != nil {
		return nil
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	if len(raw) > maxInspectedBody {
		return nil
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}

	return body
}

func callerTenant(req tenant.Request) string {
	if req.Principal == nil {
		return ""
	}

	return req.Principal.TenantID
}
