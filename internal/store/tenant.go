package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/relaydesk/tenantguard/internal/tenant"
)

// TenantStore reads tenant records from the tenants table. The guard only
// ever reads; tenant lifecycle is owned by the platform's admin service.
type TenantStore struct {
	Base
}

// NewTenantStore creates a TenantStore.
func NewTenantStore(base Base) *TenantStore {
	return &TenantStore{Base: base}
}

// GetTenant returns the record for id, or tenant.ErrTenantNotFound.
func (s *TenantStore) GetTenant(ctx context.Context, id string) (*tenant.Record, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		// Not a valid id, so certainly not a tenant. Avoids sending
		// attacker-shaped strings to the database.
		return nil, tenant.ErrTenantNotFound
	}

	var rec tenant.Record

	err := s.Pool.QueryRow(ctx,
		"SELECT id, status FROM tenants WHERE id = $1", id,
	).Scan(&rec.ID, &rec.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up tenant: %w", err)
	}

	return &rec, nil
}
