// Package quota enforces per-tenant numeric ceilings on named resource
// types. Quota is an optimization, not a security boundary: a tenant with
// no configured limit is allowed through.
package quota

import (
	"context"
	"errors"
	"fmt"
)

// LimitsFunc returns the configured limits for a tenant, keyed by
// resource type. A nil map means the tenant has no limits configured.
type LimitsFunc func(ctx context.Context, tenantID string) (map[string]int64, error)

// UsageFunc returns the tenant's current usage for one resource type.
// Usage counters are owned entirely by the caller; the guard only
// compares.
type UsageFunc func(ctx context.Context, tenantID, resourceType string) (int64, error)

// ErrMissingLookup is returned at construction time when a lookup
// function is absent. Failing fast here beats failing open later.
var ErrMissingLookup = errors.New("quota: both limits and usage lookups are required")

// Result is the outcome of one quota check. Limit and Usage are populated
// whenever a configured limit was consulted, so denial payloads can show
// the client where it stands.
type Result struct {
	Allowed bool  `json:"allowed"`
	Limit   int64 `json:"limit"`
	Usage   int64 `json:"usage"`
}

// Guard checks per-tenant resource ceilings via injected lookups.
type Guard struct {
	getLimits LimitsFunc
	getUsage  UsageFunc
}

// NewGuard creates a Guard. Both lookups are mandatory.
func NewGuard(getLimits LimitsFunc, getUsage UsageFunc) (*Guard, error) {
	if getLimits == nil || getUsage == nil {
		return nil, ErrMissingLookup
	}

	return &Guard{getLimits: getLimits, getUsage: getUsage}, nil
}

// Check compares the tenant's usage of resourceType against its limit.
//
// No limits map, or no entry for resourceType, allows the request without
// consulting usage. A limit of zero or less is treated as unlimited.
// Lookup errors propagate; the guard neither invents an allow nor a deny
// on a store fault.
func (g *Guard) Check(ctx context.Context, tenantID, resourceType string) (Result, error) {
	limits, err := g.getLimits(ctx, tenantID)
	if err != nil {
		return Result{}, fmt.Errorf("quota: limits lookup: %w", err)
	}

	limit, ok := limits[resourceType]
	if !ok || limit <= 0 {
		return Result{Allowed: true}, nil
	}

	usage, err := g.getUsage(ctx, tenantID, resourceType)
	if err != nil {
		return Result{}, fmt.Errorf("quota: usage lookup: %w", err)
	}

	return Result{
		Allowed: usage < limit,
		Limit:   limit,
		Usage:   usage,
	}, nil
}
