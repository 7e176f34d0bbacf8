package api

import (
	"github.com/gin-gonic/gin"

	"github.com/relaydesk/tenantguard/internal/httputil"
	"github.com/relaydesk/tenantguard/internal/metrics"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInternalError  = "internal_error"
	ErrCodeForbidden      = "forbidden"
)

// respondError writes a standardized JSON error response, pulling the
// request ID from the gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
