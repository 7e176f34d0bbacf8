package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/relaydesk/tenantguard/internal/api"
	"github.com/relaydesk/tenantguard/internal/audit"
)

// mockAuditRepo implements api.AuditRepository.
type mockAuditRepo struct {
	queryFn func(ctx context.Context, opts audit.QueryOpts) ([]audit.Entry, bool, error)
	purgeFn func(ctx context.Context, retentionDays int) (int, error)
}

func (m *mockAuditRepo) Query(ctx context.Context, opts audit.QueryOpts) ([]audit.Entry, bool, error) {
	return m.queryFn(ctx, opts)
}

func (m *mockAuditRepo) PurgeOldEntries(ctx context.Context, retentionDays int) (int, error) {
	return m.purgeFn(ctx, retentionDays)
}

func TestAuditQueryRequiresSuperAdmin(t *testing.T) {
	t.Parallel()

	h := api.NewAuditHandler(&mockAuditRepo{}, nil, testLogger())
	r := newTestRouter()
	r.GET("/audit", h.Query)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no principal", nil},
		{"ordinary member", memberHeaders()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := doRequest(r, http.MethodGet, "/audit", "", tt.headers)
			if w.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAuditQueryPassesFilters(t *testing.T) {
	t.Parallel()

	var seen audit.QueryOpts
	repo := &mockAuditRepo{
		queryFn: func(_ context.Context, opts audit.QueryOpts) ([]audit.Entry, bool, error) {
			seen = opts

			return []audit.Entry{{Action: audit.ActionViolation}}, true, nil
		},
	}

	h := api.NewAuditHandler(repo, nil, testLogger())
	r := newTestRouter()
	r.GET("/audit", h.Query)

	path := "/audit?action=VIOLATION&tenant_id=" + testTenantID +
		"&since=2025-06-01T00:00:00Z&limit=10&offset=20"

	w := doRequest(r, http.MethodGet, path, "", adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if seen.Action != audit.ActionViolation || seen.TenantID != testTenantID {
		t.Errorf("filters = %+v", seen)
	}
	if seen.Limit != 10 || seen.Offset != 20 {
		t.Errorf("pagination = %d/%d", seen.Limit, seen.Offset)
	}
	if seen.Since == nil || !seen.Since.Equal(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("since = %v", seen.Since)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["has_more"] != true {
		t.Errorf("has_more = %v", body["has_more"])
	}
}

func TestAuditQueryRejectsBadSince(t *testing.T) {
	t.Parallel()

	h := api.NewAuditHandler(&mockAuditRepo{}, nil, testLogger())
	r := newTestRouter()
	r.GET("/audit", h.Query)

	w := doRequest(r, http.MethodGet, "/audit?since=yesterday", "", adminHeaders())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditPurge(t *testing.T) {
	t.Parallel()

	var seenRetention int
	repo := &mockAuditRepo{
		purgeFn: func(_ context.Context, retentionDays int) (int, error) {
			seenRetention = retentionDays

			return 42, nil
		},
	}

	h := api.NewAuditHandler(repo, nil, testLogger())
	r := newTestRouter()
	r.DELETE("/audit", h.Purge)

	w := doRequest(r, http.MethodDelete, "/audit?retention_days=30", "", adminHeaders())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if seenRetention != 30 {
		t.Errorf("retention = %d, want 30", seenRetention)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["deleted"] != float64(42) {
		t.Errorf("deleted = %v", body["deleted"])
	}
}

func TestAuditPurgeRejectsBadRetention(t *testing.T) {
	t.Parallel()

	h := api.NewAuditHandler(&mockAuditRepo{}, nil, testLogger())
	r := newTestRouter()
	r.DELETE("/audit", h.Purge)

	for _, v := range []string{"0", "-1", "soon"} {
		w := doRequest(r, http.MethodDelete, "/audit?retention_days="+v, "", adminHeaders())
		if w.Code != http.StatusBadRequest {
			t.Errorf("retention_days=%s: expected 400, got %d", v, w.Code)
		}
	}
}

func TestAuditStreamDisabled(t *testing.T) {
	t.Parallel()

	h := api.NewAuditHandler(&mockAuditRepo{}, nil, testLogger())
	r := newTestRouter()
	r.GET("/audit/stream", h.Stream(t.Context()))

	w := doRequest(r, http.MethodGet, "/audit/stream", "", adminHeaders())
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when streaming is disabled, got %d", w.Code)
	}
}
