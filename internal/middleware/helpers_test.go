package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/middleware"
	"github.com/relaydesk/tenantguard/internal/tenant"
)

const (
	testTenantID    = "11111111-1111-1111-1111-111111111111"
	foreignTenantID = "22222222-2222-2222-2222-222222222222"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

// member returns middleware attaching an ordinary authenticated principal.
func member() gin.HandlerFunc {
	return middleware.WithPrincipal(&tenant.Principal{
		ID:       "user-1",
		TenantID: testTenantID,
		Role:     "member",
	})
}

// verified returns middleware that plants a verified tenant id, standing in
// for the isolation pipeline in tests of downstream middleware.
func verified(tenantID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.TenantIDKey, tenantID)
		c.Next()
	}
}

// doRequest performs an HTTP request against the engine and returns the recorder.
func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	return doRequestHeaders(r, method, path, body, nil)
}

func doRequestHeaders(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}
