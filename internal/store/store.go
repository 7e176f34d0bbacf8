// Package store provides focused, single-concern data access stores for
// the tenant guard: tenant records, per-tenant quota limits and usage,
// and the append-only audit log.
//
// Each store owns one table and embeds shared helpers via the Base
// struct. Stores never import each other.
package store

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/dbpool"
)

const defaultQueryTimeout = 10 * time.Second

// Base contains shared dependencies for all stores.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}
