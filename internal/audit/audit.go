// Package audit records isolation pipeline decisions as append-only
// entries. Recording is a best-effort side channel: it never blocks or
// fails the request it describes, but its own failures are observable
// through logs and metrics.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Actions recorded at pipeline decision points.
const (
	ActionAccessGranted = "ACCESS_GRANTED"
	ActionAdminBypass   = "ADMIN_BYPASS"
	ActionViolation     = "VIOLATION"
	ActionAssumedTenant = "ASSUMED_TENANT"
)

// Entry is one append-only audit record. Entries are never updated or
// deleted by this layer.
type Entry struct {
	ID               int64     `json:"id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	RequestID        string    `json:"request_id"`
	Action           string    `json:"action"`
	ActorID          string    `json:"actor_id,omitempty"`
	CallerTenantID   string    `json:"caller_tenant_id,omitempty"`
	ResourceTenantID string    `json:"resource_tenant_id,omitempty"`
	Path             string    `json:"path"`
	Method           string    `json:"method"`
	IP               string    `json:"ip,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	ViolationType    string    `json:"violation_type,omitempty"`
	Fingerprint      string    `json:"fingerprint,omitempty"`
}

// Fingerprint derives a stable, non-reversible digest for audit
// correlation. The serialization is positional so the same request facts
// always hash the same way.
func Fingerprint(ip, path, method string, ts time.Time, userID, tenantID string) string {
	canonical := fmt.Sprintf("%s|%s|%s|%d|%s|%s",
		ip, path, method, ts.UnixMilli(), userID, tenantID)
	sum := sha256.Sum256([]byte(canonical))

	return hex.EncodeToString(sum[:])
}

// QueryOpts holds filters for reading the audit log back.
type QueryOpts struct {
	Action   string
	TenantID string
	Since    *time.Time
	Limit    int
	Offset   int
}
