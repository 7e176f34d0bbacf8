package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/sanitize"
)

// SanitizeBody returns gin middleware that stamps and corrects tenant id
// fields on mutating request bodies before handlers see them. Read-only
// methods pass through untouched.
//
// It must run after Isolation: the caller-scoped tenant id comes from the
// verified tenant context.
func SanitizeBody(s *sanitize.Sanitizer, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()

			return
		}

		tenantID := c.GetString(TenantIDKey)
		if tenantID == "" {
			c.Next()

			return
		}

		body, raw, ok := decodeBody(c)
		if !ok {
			c.Next()

			return
		}

		if err := s.Apply(tenantID, body); err != nil {
			log.WithFields(logrus.Fields{
				"request_id": c.GetString(RequestIDKey),
				"tenant_id":  tenantID,
				"path":       c.Request.URL.Path,
			}).Warn("rejected payload carrying foreign tenant id")
			respondDenied(c, err)

			return
		}

		sanitized, err := json.Marshal(body)
		if err != nil {
			// Marshal of a decoded document cannot realistically fail;
			// restore the original rather than passing a half-written body.
			c.Request.Body = io.NopCloser(bytes.NewReader(raw))
			c.Next()

			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(sanitized))
		c.Request.ContentLength = int64(len(sanitized))
		c.Next()
	}
}

// decodeBody reads and decodes a JSON body, returning the document, the
// original bytes, and whether there is anything to sanitize.
func decodeBody(c *gin.Context) (any, []byte, bool) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil, false
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInspectedBody))
	if err != nil {
		return nil, nil, false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, nil, false
	}

	switch body.(type) {
	case map[string]any, []any:
		return body, raw, true
	default:
		return nil, nil, false
	}
}
