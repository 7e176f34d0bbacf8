package middleware_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relaydesk/tenantguard/internal/middleware"
)

func requestIDRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(testLogger()))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(middleware.RequestIDKey))
	})

	return r
}

func TestRequestIDGenerated(t *testing.T) {
	t.Parallel()

	r := requestIDRouter()

	w := doRequest(r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	id := w.Body.String()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request id %q is not a UUID: %v", id, err)
	}
	if w.Header().Get(middleware.RequestIDHeader) != id {
		t.Errorf("response header id %q != context id %q",
			w.Header().Get(middleware.RequestIDHeader), id)
	}
}

func TestRequestIDIgnoresClientValue(t *testing.T) {
	t.Parallel()

	r := requestIDRouter()

	w := doRequestHeaders(r, http.MethodGet, "/", "", map[string]string{
		middleware.RequestIDHeader: "spoofed-id",
	})

	if w.Body.String() == "spoofed-id" {
		t.Error("client-supplied request id used as canonical")
	}
	if w.Header().Get(middleware.RequestIDHeader) == "spoofed-id" {
		t.Error("client-supplied request id echoed as canonical")
	}
}

func TestPrincipalFromHeaders(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(middleware.PrincipalFromHeaders())
	r.GET("/", func(c *gin.Context) {
		p := middleware.GetPrincipal(c)
		if p == nil {
			c.String(http.StatusOK, "none")

			return
		}
		c.String(http.StatusOK, "%s/%s/%s", p.ID, p.TenantID, p.Role)
	})

	t.Run("headers present", func(t *testing.T) {
		t.Parallel()

		w := doRequestHeaders(r, http.MethodGet, "/", "", map[string]string{
			middleware.HeaderAuthUser:   "user-1",
			middleware.HeaderAuthTenant: testTenantID,
			middleware.HeaderAuthRole:   "member",
		})
		want := "user-1/" + testTenantID + "/member"
		if w.Body.String() != want {
			t.Errorf("principal = %q, want %q", w.Body.String(), want)
		}
	})

	t.Run("headers absent", func(t *testing.T) {
		t.Parallel()

		w := doRequest(r, http.MethodGet, "/", "")
		if w.Body.String() != "none" {
			t.Errorf("expected no principal, got %q", w.Body.String())
		}
	})
}
