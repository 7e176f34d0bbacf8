package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/metrics"
	"github.com/relaydesk/tenantguard/internal/quota"
)

// Quota returns gin middleware that enforces the tenant's ceiling on the
// given resource type. It must run after Isolation so the verified tenant
// id is available; requests with no verified tenant pass through, since
// quota is not a security boundary.
func Quota(guard *quota.Guard, resourceType string, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString(TenantIDKey)
		if tenantID == "" {
			c.Next()

			return
		}

		result, err := guard.Check(c.Request.Context(), tenantID, resourceType)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"request_id":    c.GetString(RequestIDKey),
				"tenant_id":     tenantID,
				"resource_type": resourceType,
			}).Error("quota check failed")
			respondError(c, http.StatusInternalServerError, "quota_check_failed", "quota check failed")

			return
		}

		if !result.Allowed {
			metrics.QuotaDenials.WithLabelValues(resourceType).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    "quota_exceeded",
				"message": "resource quota exceeded",
				"limit":   result.Limit,
				"usage":   result.Usage,
			})

			return
		}

		c.Next()
	}
}
