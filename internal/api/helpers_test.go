package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/middleware"
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

// newTestRouter creates a gin engine with the ambient request middleware
// the real router mounts ahead of the handlers.
func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(testLogger()))
	r.Use(middleware.PrincipalFromHeaders())

	return r
}

// memberHeaders asserts an ordinary authenticated principal the way the
// ingress would.
func memberHeaders() map[string]string {
	return map[string]string{
		middleware.HeaderAuthUser:   "user-1",
		middleware.HeaderAuthTenant: testTenantID,
		middleware.HeaderAuthRole:   "member",
	}
}

func adminHeaders() map[string]string {
	return map[string]string{
		middleware.HeaderAuthUser:   "admin-1",
		middleware.HeaderAuthTenant: testTenantID,
		middleware.HeaderAuthRole:   "superadmin",
	}
}

// doRequest performs an HTTP request against the engine and returns the recorder.
func doRequest(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
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
