package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/relaydesk/tenantguard/internal/tenant"
)

// Trusted upstream headers carrying the authenticated principal in
// forward-auth deployments. The ingress must strip these from client
// traffic; the guard trusts them as the authentication layer's output.
const (
	HeaderAuthUser   = "X-Auth-User"
	HeaderAuthTenant = "X-Auth-Tenant"
	HeaderAuthRole   = "X-Auth-Role"
)

// PrincipalFromHeaders returns gin middleware that attaches the principal
// asserted by the upstream authentication layer. No headers means no
// principal; the isolation pipeline decides what that implies per mode.
func PrincipalFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderAuthUser)
		tenantID := c.GetHeader(HeaderAuthTenant)

		if userID == "" && tenantID == "" {
			c.Next()

			return
		}

		c.Set(PrincipalKey, &tenant.Principal{
			ID:       userID,
			TenantID: tenantID,
			Role:     c.GetHeader(HeaderAuthRole),
		})
		c.Next()
	}
}

// WithPrincipal returns middleware that attaches a fixed principal, for
// in-process mounting where the embedding service already authenticated
// the caller.
func WithPrincipal(p *tenant.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			c.Set(PrincipalKey, p)
		}
		c.Next()
	}
}
