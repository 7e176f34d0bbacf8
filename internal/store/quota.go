package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// QuotaStore reads per-tenant resource limits and usage counters. Usage
// counters are written by the platform's metering pipeline; the guard
// only compares them against limits.
type QuotaStore struct {
	Base
}

// NewQuotaStore creates a QuotaStore.
func NewQuotaStore(base Base) *QuotaStore {
	return &QuotaStore{Base: base}
}

// GetLimits returns the tenant's limits map from the tenants.limits jsonb
// column. A tenant without limits (or an unknown tenant) yields nil,
// which the quota guard treats as unlimited.
func (s *QuotaStore) GetLimits(ctx context.Context, tenantID string) (map[string]int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var raw []byte

	err := s.Pool.QueryRow(ctx,
		"SELECT limits FROM tenants WHERE id = $1", tenantID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading tenant limits: %w", err)
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var limits map[string]int64
	if err := json.Unmarshal(raw, &limits); err != nil {
		return nil, fmt.Errorf("decoding tenant limits: %w", err)
	}

	return limits, nil
}

// GetUsage returns the tenant's current usage counter for resourceType.
// No counter row means zero usage.
func (s *QuotaStore) GetUsage(ctx context.Context, tenantID, resourceType string) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var used int64

	err := s.Pool.QueryRow(ctx,
		"SELECT used FROM tenant_usage WHERE tenant_id = $1 AND resource_type = $2",
		tenantID, resourceType,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading tenant usage: %w", err)
	}

	return used, nil
}
