package tenant_test

import (
	"net/http"
	"testing"

	"github.com/relaydesk/tenantguard/internal/tenant"
)

func TestResolvePrecedence(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set(tenant.HeaderTenantID, "from-header")

	full := tenant.Surfaces{
		Params:  map[string]string{"tenantId": "from-param"},
		Query:   map[string][]string{"tenantId": {"from-query"}},
		Body:    map[string]any{"tenantId": "from-body"},
		Headers: headers,
	}

	tests := []struct {
		name       string
		surfaces   tenant.Surfaces
		want       string
		wantSource tenant.Source
	}{
		{"param wins over everything", full, "from-param", tenant.SourceParam},
		{
			"query wins over body and header",
			tenant.Surfaces{Query: full.Query, Body: full.Body, Headers: full.Headers},
			"from-query", tenant.SourceQuery,
		},
		{
			"body wins over header",
			tenant.Surfaces{Body: full.Body, Headers: full.Headers},
			"from-body", tenant.SourceBody,
		},
		{
			"header is the last resort",
			tenant.Surfaces{Headers: full.Headers},
			"from-header", tenant.SourceHeader,
		},
		{
			"empty param falls through to query",
			tenant.Surfaces{Params: map[string]string{"tenantId": ""}, Query: full.Query},
			"from-query", tenant.SourceQuery,
		},
	}

	r := tenant.NewResolver("", 0)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, source, found := r.Resolve(tt.surfaces)
			if !found {
				t.Fatal("expected a resolution")
			}
			if got != tt.want || source != tt.wantSource {
				t.Errorf("got (%q, %q), want (%q, %q)", got, source, tt.want, tt.wantSource)
			}
		})
	}
}

func TestResolveUnresolved(t *testing.T) {
	t.Parallel()

	r := tenant.NewResolver("", 0)

	got, source, found := r.Resolve(tenant.Surfaces{
		Body: map[string]any{"name": "acme", "count": float64(3)},
	})
	if found {
		t.Fatalf("expected no resolution, got %q from %q", got, source)
	}
	if source != tenant.SourceNone {
		t.Errorf("expected SourceNone, got %q", source)
	}
}

func TestResolveBodyDepthBound(t *testing.T) {
	t.Parallel()

	// Top-level keys sit at depth 1, each nesting level adds one.
	nested := func(levels int) map[string]any {
		body := map[string]any{"tenantId": "deep"}
		for i := 0; i < levels-1; i++ {
			body = map[string]any{"wrap": body}
		}

		return body
	}

	tests := []struct {
		name      string
		maxDepth  int
		body      any
		wantFound bool
	}{
		{"found at exactly maxDepth", 3, nested(3), true},
		{"not found one past maxDepth", 3, nested(4), false},
		{"top level with depth 1", 1, nested(1), true},
		{"nested rejected with depth 1", 1, nested(2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tenant.NewResolver("tenantId", tt.maxDepth)

			got, _, found := r.Resolve(tenant.Surfaces{Body: tt.body})
			if found != tt.wantFound {
				t.Fatalf("found=%v, want %v (got %q)", found, tt.wantFound, got)
			}
			if found && got != "deep" {
				t.Errorf("got %q, want \"deep\"", got)
			}
		})
	}
}

func TestResolveDeepBodyFallsBackToHeader(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set(tenant.HeaderTenantID, "from-header")

	body := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"level3": map[string]any{"tenantId": "too-deep"},
			},
		},
	}

	r := tenant.NewResolver("tenantId", 2)

	got, source, found := r.Resolve(tenant.Surfaces{Body: body, Headers: headers})
	if !found {
		t.Fatal("expected header fallback")
	}
	if got != "from-header" || source != tenant.SourceHeader {
		t.Errorf("got (%q, %q), want (\"from-header\", header)", got, source)
	}
}

func TestResolveBodyArrays(t *testing.T) {
	t.Parallel()

	r := tenant.NewResolver("tenantId", 2)

	// Array elements count at their parent's child depth, the array itself
	// adds no level.
	got, source, found := r.Resolve(tenant.Surfaces{
		Body: map[string]any{
			"items": []any{
				"noise",
				map[string]any{"tenantId": "tenant-from-array"},
			},
		},
	})
	if !found {
		t.Fatal("expected resolution from array element")
	}
	if got != "tenant-from-array" || source != tenant.SourceBody {
		t.Errorf("got (%q, %q)", got, source)
	}

	// A top-level array of records is also searchable.
	got, _, found = r.Resolve(tenant.Surfaces{
		Body: []any{map[string]any{"tenantId": "batch-tenant"}},
	})
	if !found || got != "batch-tenant" {
		t.Errorf("top-level array: found=%v got=%q", found, got)
	}
}

func TestResolveBodyShallowBeatsDeep(t *testing.T) {
	t.Parallel()

	r := tenant.NewResolver("tenantId", 10)

	got, _, found := r.Resolve(tenant.Surfaces{
		Body: map[string]any{
			"nested":   map[string]any{"tenantId": "deep-tenant"},
			"tenantId": "shallow-tenant",
		},
	})
	if !found || got != "shallow-tenant" {
		t.Errorf("found=%v got=%q, want shallow-tenant", found, got)
	}
}

func TestResolveBodySameLevelTieIsLexical(t *testing.T) {
	t.Parallel()

	r := tenant.NewResolver("tenantId", 10)

	// Two siblings both carry the key at depth 2; the parent's lexically
	// smaller key wins regardless of JSON declaration order.
	got, _, found := r.Resolve(tenant.Surfaces{
		Body: map[string]any{
			"zebra": map[string]any{"tenantId": "tenant-z"},
			"alpha": map[string]any{"tenantId": "tenant-a"},
		},
	})
	if !found || got != "tenant-a" {
		t.Errorf("found=%v got=%q, want tenant-a", found, got)
	}
}

func TestResolveIgnoresNonStringValues(t *testing.T) {
	t.Parallel()

	r := tenant.NewResolver("tenantId", 10)

	got, _, found := r.Resolve(tenant.Surfaces{
		Body: map[string]any{
			"tenantId": float64(42),
			"nested":   map[string]any{"tenantId": "real-tenant"},
		},
	})
	if !found || got != "real-tenant" {
		t.Errorf("found=%v got=%q, want real-tenant", found, got)
	}
}

func TestResolveCustomParamName(t *testing.T) {
	t.Parallel()

	r := tenant.NewResolver("orgId", 10)

	got, source, found := r.Resolve(tenant.Surfaces{
		Params: map[string]string{"tenantId": "wrong-key"},
		Body:   map[string]any{"orgId": "org-1"},
	})
	if !found || got != "org-1" || source != tenant.SourceBody {
		t.Errorf("got (%q, %q, %v), want (org-1, body, true)", got, source, found)
	}
}
