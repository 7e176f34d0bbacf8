package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/relaydesk/tenantguard/internal/httputil"
	"github.com/relaydesk/tenantguard/internal/tenant"
)

// respondError delegates to the shared httputil.RespondError helper.
func respondError(c *gin.Context, code int, errCode, message string) {
	httputil.RespondError(c, code, errCode, message)
}

// respondDenied maps a typed isolation error to its transport response.
// Both error kinds are 403; the code field carries the distinction. An
// unrecognized error is still a deny, never a pass, with a generic body
// so internal detail is not echoed to clients.
func respondDenied(c *gin.Context, err error) {
	var accessErr *tenant.AccessError
	if errors.As(err, &accessErr) {
		respondError(c, http.StatusForbidden, accessErr.Code, accessErr.Message)

		return
	}

	var violationErr *tenant.ViolationError
	if errors.As(err, &violationErr) {
		respondError(c, http.StatusForbidden, violationErr.Code, violationErr.Message)

		return
	}

	respondError(c, http.StatusForbidden, tenant.CodeIsolationInternal, "access denied")
}
