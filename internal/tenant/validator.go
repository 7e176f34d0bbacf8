package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/cache"
)

// ErrTenantNotFound is returned by Store implementations when no record
// exists for the given id.
var ErrTenantNotFound = errors.New("tenant: not found")

// Store is the read-only port to the tenant management store.
type Store interface {
	// GetTenant returns the record for id, or ErrTenantNotFound.
	GetTenant(ctx context.Context, id string) (*Record, error)
}

// DefaultValidationTTL is how long a validation result stays cached.
const DefaultValidationTTL = 5 * time.Minute

const validationKeyPrefix = "tenant:"

// Validator confirms that a tenant id denotes an existing tenant, caching
// results to keep the hot path off the tenant store.
//
// Concurrent requests for the same uncached tenant may each miss and issue
// parallel lookups; the store is the source of truth and identical cache
// writes are idempotent, so no coordination is taken.
type Validator struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

// NewValidator creates a Validator. A zero ttl falls back to
// DefaultValidationTTL.
func NewValidator(store Store, c cache.Cache, ttl time.Duration, log *logrus.Logger) *Validator {
	if ttl <= 0 {
		ttl = DefaultValidationTTL
	}

	return &Validator{store: store, cache: c, ttl: ttl, log: log}
}

// Validate returns the tenant record for id, reading through the cache
// unless bypassCache is set. A bypass always performs a fresh store lookup
// and rewrites the cache entry, so the one request that asked for strong
// consistency also repairs staleness for everyone else.
func (v *Validator) Validate(ctx context.Context, id string, bypassCache bool) (*Record, error) {
	key := validationKeyPrefix + id

	if !bypassCache {
		if rec := v.cachedRecord(ctx, key); rec != nil {
			return rec, nil
		}
	}

	rec, err := v.store.GetTenant(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}

		return nil, fmt.Errorf("tenant: store lookup: %w", err)
	}

	if data, err := json.Marshal(rec); err == nil {
		if err := v.cache.Set(ctx, key, data, v.ttl); err != nil {
			v.log.WithError(err).WithField("tenant_id", id).Warn("failed to cache tenant record")
		}
	}

	return rec, nil
}

// Invalidate drops the cached record for id.
func (v *Validator) Invalidate(ctx context.Context, id string) error {
	return v.cache.Delete(ctx, validationKeyPrefix+id)
}

// cachedRecord returns the cached record for key, or nil on miss or any
// cache fault. Cache faults degrade to a store lookup rather than failing
// the request.
func (v *Validator) cachedRecord(ctx context.Context, key string) *Record {
	data, err := v.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			v.log.WithError(err).Warn("tenant cache read failed, falling through to store")
		}

		return nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		v.log.WithError(err).Warn("corrupt tenant cache entry, falling through to store")

		return nil
	}

	return &rec
}
