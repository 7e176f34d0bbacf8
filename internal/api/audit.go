package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/audit"
	"github.com/relaydesk/tenantguard/internal/middleware"
	"github.com/relaydesk/tenantguard/internal/tenant"
	"github.com/relaydesk/tenantguard/internal/ws"
)

// AuditRepository reads and prunes the audit log.
type AuditRepository interface {
	Query(ctx context.Context, opts audit.QueryOpts) ([]audit.Entry, bool, error)
	PurgeOldEntries(ctx context.Context, retentionDays int) (int, error)
}

// AuditHandler serves the audit administration endpoints. All of them
// require a superadmin principal: the audit log spans tenants, so it is
// itself cross-tenant data.
type AuditHandler struct {
	repo AuditRepository
	feed *ws.Feed
	log  *logrus.Logger
}

// NewAuditHandler creates an AuditHandler. feed may be nil to disable
// streaming.
func NewAuditHandler(repo AuditRepository, feed *ws.Feed, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{repo: repo, feed: feed, log: log}
}

// requireSuperAdmin aborts with 403 unless the principal is a superadmin.
func requireSuperAdmin(c *gin.Context) bool {
	p := middleware.GetPrincipal(c)
	if p == nil || p.Role != tenant.RoleSuperAdmin {
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "superadmin role required")

		return false
	}

	return true
}

// Query handles GET /api/v1/audit.
func (h *AuditHandler) Query(c *gin.Context) {
	if !requireSuperAdmin(c) {
		return
	}

	opts := audit.QueryOpts{
		Action:   c.Query("action"),
		TenantID: c.Query("tenant_id"),
		Limit:    parseInt(c.Query("limit"), 50),
		Offset:   parseInt(c.Query("offset"), 0),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid since format, use RFC3339")

			return
		}
		opts.Since = &t
	}

	entries, hasMore, err := h.repo.Query(c.Request.Context(), opts)
	if err != nil {
		h.log.WithError(err).Error("failed to query audit log")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to query audit log")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     entries,
		"has_more": hasMore,
	})
}

// Purge handles DELETE /api/v1/audit.
func (h *AuditHandler) Purge(c *gin.Context) {
	if !requireSuperAdmin(c) {
		return
	}

	retentionDays := 90
	if rd := c.Query("retention_days"); rd != "" {
		v, err := strconv.Atoi(rd)
		if err != nil || v < 1 {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "retention_days must be a positive integer")

			return
		}
		retentionDays = v
	}

	deleted, err := h.repo.PurgeOldEntries(c.Request.Context(), retentionDays)
	if err != nil {
		h.log.WithError(err).Error("failed to purge audit entries")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to purge audit entries")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":        deleted,
		"retention_days": retentionDays,
	})
}

// Stream handles GET /api/v1/audit/stream, upgrading to a WebSocket that
// receives audit events as they are recorded.
func (h *AuditHandler) Stream(appCtx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireSuperAdmin(c) {
			return
		}

		if h.feed == nil {
			respondError(c, http.StatusNotFound, ErrCodeInvalidRequest, "audit streaming is not enabled")

			return
		}

		conn, err := websocket.Accept(c.Writer, c.Request, nil)
		if err != nil {
			h.log.WithError(err).Debug("websocket accept failed")

			return
		}

		// Tie the pump to the server lifetime, not just this request.
		ws.ServeSubscriber(appCtx, conn, h.feed, h.log)
	}
}

// parseInt parses s as a non-negative int, returning fallback when s is
// empty or invalid.
func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}

	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fallback
	}

	return v
}
