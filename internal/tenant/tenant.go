// Package tenant implements the tenant isolation core: resolving which
// tenant a request targets, validating that tenant against the tenant
// store, and deciding whether the authenticated caller may touch it.
//
// The decision engine is pure: it speaks in values, not HTTP. The gin
// bindings live in internal/middleware.
package tenant

import "time"

// Status is the lifecycle state of a tenant record.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// Principal is the authenticated caller, attached to the request by the
// upstream authentication layer before this pipeline runs.
type Principal struct {
	ID       string
	TenantID string
	Role     string
}

// RoleSuperAdmin is the only role eligible for isolation bypass.
const RoleSuperAdmin = "superadmin"

// Record is a tenant as read from the tenant store. This layer never
// writes records.
type Record struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Context is the proof of a successful isolation decision. It is created
// once per request and never mutated.
type Context struct {
	TenantID          string
	RequestID         string
	IsolationVerified bool
	VerificationTime  time.Time
}
