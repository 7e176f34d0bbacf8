// Package sanitize normalizes tenant id fields on outbound payloads
// before they reach persistence. It is the write-side complement of the
// resolver: where the resolver only reads tenant ids out of a body, the
// sanitizer stamps and corrects them, descending into arrays because a
// batch write must have every record scoped.
package sanitize

import (
	"github.com/relaydesk/tenantguard/internal/tenant"
)

// Config is the sanitizer option surface.
type Config struct {
	// Field is the tenant id key. Defaults to tenant.DefaultTenantIDParam.
	Field string

	// MaxDepth bounds deep inspection. Defaults to tenant.DefaultMaxDepth.
	MaxDepth int

	// DeepInspection extends conflict handling to nested objects and
	// array elements, not just the top level.
	DeepInspection bool

	// SanitizeBody silently overwrites foreign tenant ids with the
	// caller's instead of rejecting the payload.
	SanitizeBody bool
}

// Sanitizer enforces tenant id fields on decoded JSON payloads.
type Sanitizer struct {
	cfg Config
}

// New creates a Sanitizer, applying defaults for zero config values.
func New(cfg Config) *Sanitizer {
	if cfg.Field == "" {
		cfg.Field = tenant.DefaultTenantIDParam
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = tenant.DefaultMaxDepth
	}

	return &Sanitizer{cfg: cfg}
}

// Apply enforces tenantID on body, mutating it in place. Body is a
// decoded JSON document: an object, or an array of records for batch
// writes. Applying twice is a no-op after the first pass.
//
// A top-level record missing the field is stamped with tenantID. A record
// carrying a different tenant id is rejected with a tenant.AccessError,
// unless SanitizeBody is set, in which case the foreign id is overwritten.
func (s *Sanitizer) Apply(tenantID string, body any) error {
	if tenantID == "" {
		return nil
	}

	switch t := body.(type) {
	case map[string]any:
		return s.applyRecord(tenantID, t, 1)
	case []any:
		for _, el := range t {
			if obj, ok := el.(map[string]any); ok {
				if err := s.applyRecord(tenantID, obj, 1); err != nil {
					return err
				}
			}
		}

		return nil
	default:
		return nil
	}
}

// applyRecord stamps and enforces one record, then optionally walks its
// children. Stamping happens only at depth 1; deeper levels correct or
// reject conflicts but never invent tenant ids on unrelated sub-objects.
func (s *Sanitizer) applyRecord(tenantID string, obj map[string]any, depth int) error {
	existing, present := obj[s.cfg.Field]

	switch {
	case !present, existing == nil, existing == "":
		if depth == 1 {
			obj[s.cfg.Field] = tenantID
		}
	case existing != tenantID:
		if !s.cfg.SanitizeBody {
			return tenant.NewAccessError(tenant.CodeCrossTenant,
				"payload tenant id does not match caller tenant")
		}
		obj[s.cfg.Field] = tenantID
	}

	if !s.cfg.DeepInspection || depth >= s.cfg.MaxDepth {
		return nil
	}

	for _, v := range obj {
		if err := s.applyChild(tenantID, v, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// applyChild dispatches one child value: objects are records at the next
// depth, arrays are walked element-wise at the same depth cost.
func (s *Sanitizer) applyChild(tenantID string, v any, depth int) error {
	switch t := v.(type) {
	case map[string]any:
		return s.applyRecord(tenantID, t, depth)
	case []any:
		for _, el := range t {
			if err := s.applyChild(tenantID, el, depth); err != nil {
				return err
			}
		}

		return nil
	default:
		return nil
	}
}
