package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/metrics"
	"github.com/relaydesk/tenantguard/internal/middleware"
	"github.com/relaydesk/tenantguard/internal/quota"
	"github.com/relaydesk/tenantguard/internal/tenant"
)

// Forward-auth headers describing the original request being authorized.
const (
	HeaderForwardedMethod = "X-Forwarded-Method"
	HeaderForwardedURI    = "X-Forwarded-Uri"
	HeaderForwardedFor    = "X-Forwarded-For"
	HeaderResourceType    = "X-Resource-Type"
)

// HeaderVerifiedTenant carries the verified tenant id back to the ingress
// on an allow, for upstream services to consume.
const HeaderVerifiedTenant = "X-Verified-Tenant"

// maxAuthorizeBody bounds how much of the original request body the
// authorize endpoint will inspect.
const maxAuthorizeBody = 1 << 20 // 1 MB

// AuthorizeHandler evaluates isolation and quota for requests described
// by an ingress (forward-auth). The ingress forwards the original
// method, URI and body; the upstream auth layer's principal arrives in
// the X-Auth-* headers.
type AuthorizeHandler struct {
	enforcer  *tenant.Enforcer
	guard     *quota.Guard
	resources map[string]bool
	log       *logrus.Logger
}

// NewAuthorizeHandler creates an AuthorizeHandler. guard may be nil to
// skip quota checks. resources is the allowlist of resource types
// accepted in the X-Resource-Type header; anything else is ignored so a
// caller-controlled header cannot inflate metric label cardinality.
func NewAuthorizeHandler(enforcer *tenant.Enforcer, guard *quota.Guard, resources []string, log *logrus.Logger) *AuthorizeHandler {
	allowed := make(map[string]bool, len(resources))
	for _, r := range resources {
		allowed[r] = true
	}

	return &AuthorizeHandler{enforcer: enforcer, guard: guard, resources: allowed, log: log}
}

// Authorize handles POST /api/v1/authorize: 204 on allow, 403 on deny,
// 429 on quota exceedance.
func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	req := h.buildRequest(c)

	decision := h.enforcer.Evaluate(c.Request.Context(), req)
	metrics.IsolationDecisions.WithLabelValues(string(decision.Outcome)).Inc()

	if !decision.Allowed() {
		h.log.WithFields(logrus.Fields{
			"request_id":         req.RequestID,
			"resource_tenant_id": decision.ResourceTenantID,
			"path":               req.Path,
		}).Warn("authorization denied")
		respondError(c, http.StatusForbidden, deniedCode(decision.Reason), "access denied")

		return
	}

	if verified := decision.Context; verified != nil {
		c.Header(middleware.HeaderIsolationVerified, "true")
		c.Header(HeaderVerifiedTenant, verified.TenantID)

		if !h.checkQuota(c, verified.TenantID) {
			return
		}
	}

	c.Status(http.StatusNoContent)
}

// checkQuota enforces the resource type tagged by the ingress, if any.
// Returns false when the response has been written.
func (h *AuthorizeHandler) checkQuota(c *gin.Context, tenantID string) bool {
	resourceType := c.GetHeader(HeaderResourceType)
	if h.guard == nil || !h.resources[resourceType] {
		return true
	}

	result, err := h.guard.Check(c.Request.Context(), tenantID, resourceType)
	if err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"tenant_id":     tenantID,
			"resource_type": resourceType,
		}).Error("quota check failed")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "quota check failed")

		return false
	}

	if !result.Allowed {
		metrics.QuotaDenials.WithLabelValues(resourceType).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code":    "quota_exceeded",
			"message": "resource quota exceeded",
			"limit":   result.Limit,
			"usage":   result.Usage,
		})

		return false
	}

	return true
}

// buildRequest reconstructs the original request from the forward-auth
// headers and the passed-through body. Route params are not available in
// forward-auth mode; the resolver falls through to query, body and
// header surfaces.
func (h *AuthorizeHandler) buildRequest(c *gin.Context) tenant.Request {
	method := c.GetHeader(HeaderForwardedMethod)
	if method == "" {
		method = c.Request.Method
	}

	path := c.Request.URL.Path
	query := url.Values{}
	if fwd := c.GetHeader(HeaderForwardedURI); fwd != "" {
		if u, err := url.Parse(fwd); err == nil {
			path = u.Path
			query = u.Query()
		}
	}

	return tenant.Request{
		Principal: middleware.GetPrincipal(c),
		RequestID: c.GetString(middleware.RequestIDKey),
		Path:      path,
		Method:    method,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Surfaces: tenant.Surfaces{
			Query:   query,
			Body:    decodeForwardedBody(c),
			Headers: c.Request.Header,
		},
		CacheBypass: middleware.CacheBypassRequested(c),
	}
}

// decodeForwardedBody decodes the passed-through original body, if it is
// JSON. Anything else is simply not a surface.
func decodeForwardedBody(c *gin.Context) any {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuthorizeBody))
	if err != nil || len(raw) == 0 {
		return nil
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}

	return body
}

// deniedCode extracts the machine-readable code from a typed denial.
func deniedCode(err error) string {
	switch e := err.(type) {
	case *tenant.AccessError:
		return e.Code
	case *tenant.ViolationError:
		return e.Code
	default:
		return ErrCodeForbidden
	}
}
