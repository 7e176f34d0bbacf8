package tenant

import (
	"net/http"
	"sort"
)

// Source identifies which request surface a resource tenant id came from.
type Source string

const (
	SourceParam  Source = "param"
	SourceQuery  Source = "query"
	SourceBody   Source = "body"
	SourceHeader Source = "header"
	SourceNone   Source = ""
)

// HeaderTenantID is the fallback header surface, checked last.
const HeaderTenantID = "X-Tenant-Id"

// Surfaces bundles the untrusted request surfaces a resource tenant id may
// be read from. Body is the decoded JSON document (map/slice/primitive),
// not raw bytes.
type Surfaces struct {
	Params  map[string]string
	Query   map[string][]string
	Body    any
	Headers http.Header
}

const (
	// DefaultTenantIDParam is the key searched across all surfaces.
	DefaultTenantIDParam = "tenantId"

	// DefaultMaxDepth bounds the recursive body search.
	DefaultMaxDepth = 10
)

// Resolver extracts a candidate resource tenant id from request surfaces.
//
// Precedence is fixed: route param, query param, depth-bounded search of
// the body, then the X-Tenant-Id header. An empty result is "unresolved",
// not an error; the enforcer decides what that means per mode.
type Resolver struct {
	param    string
	maxDepth int
}

// NewResolver creates a Resolver for the given key name. Zero values fall
// back to DefaultTenantIDParam and DefaultMaxDepth.
func NewResolver(param string, maxDepth int) *Resolver {
	if param == "" {
		param = DefaultTenantIDParam
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	return &Resolver{param: param, maxDepth: maxDepth}
}

// Resolve returns the first non-empty match in precedence order, the
// surface it came from, and whether anything was found.
func (r *Resolver) Resolve(s Surfaces) (string, Source, bool) {
	if v, ok := s.Params[r.param]; ok && v != "" {
		return v, SourceParam, true
	}

	if vs, ok := s.Query[r.param]; ok && len(vs) > 0 && vs[0] != "" {
		return vs[0], SourceQuery, true
	}

	if v, ok := r.searchBody(s.Body); ok {
		return v, SourceBody, true
	}

	if s.Headers != nil {
		if v := s.Headers.Get(HeaderTenantID); v != "" {
			return v, SourceHeader, true
		}
	}

	return "", SourceNone, false
}

// searchBody walks the decoded body breadth-first, level by level, up to
// maxDepth object levels. Only JSON objects are containers; arrays are not
// descended themselves, but their object elements join the next level.
//
// The walk is bounded strictly by the depth counter, not a visited set, so
// traversal cost stays predictable. A truly cyclic structure could be
// re-walked up to the depth bound; JSON-decoded bodies cannot be cyclic,
// so this is only reachable with hand-built payloads.
//
// Go maps do not preserve JSON key order, so ties between sibling objects
// at the same level resolve by the lexical order of the parent's keys.
func (r *Resolver) searchBody(body any) (string, bool) {
	level := collectObjects(body)

	for depth := 1; depth <= r.maxDepth && len(level) > 0; depth++ {
		for _, obj := range level {
			if v, ok := obj[r.param]; ok {
				if s, ok := v.(string); ok && s != "" {
					return s, true
				}
			}
		}

		var next []map[string]any
		for _, obj := range level {
			keys := make([]string, 0, len(obj))
			for k := range obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				next = append(next, collectObjects(obj[k])...)
			}
		}
		level = next
	}

	return "", false
}

// collectObjects returns the objects reachable from v without descending:
// v itself if it is an object, or the object elements of v if it is an
// array. Primitives and nested arrays are leaves.
func collectObjects(v any) []map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return []map[string]any{t}
	case []any:
		var objs []map[string]any
		for _, el := range t {
			if obj, ok := el.(map[string]any); ok {
				objs = append(objs, obj)
			}
		}

		return objs
	default:
		return nil
	}
}
