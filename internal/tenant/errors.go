package tenant

import "fmt"

// Violation type labels recorded on audit entries and error payloads.
const (
	ViolationCrossTenant   = "cross_tenant_access"
	ViolationKeyIntegrity  = "key_integrity"
	ViolationInternalFault = "internal_fault"
)

// AccessError is a context or configuration problem: missing tenant info,
// a nonexistent or disallowed-status tenant, or an unresolvable resource
// tenant in strict mode. The caller can recover by supplying correct
// context; it is not necessarily malicious.
type AccessError struct {
	Code    string
	Message string
}

func (e *AccessError) Error() string {
	return "tenant: access denied: " + e.Message
}

// NewAccessError creates an AccessError with a machine-readable code.
func NewAccessError(code, format string, args ...any) *AccessError {
	return &AccessError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ViolationError is an observed mismatch between the caller's tenant and a
// resource's tenant, or an encryption integrity failure. Repeated
// occurrences suggest probing and are worth alerting on.
type ViolationError struct {
	Code          string
	Message       string
	ViolationType string
}

func (e *ViolationError) Error() string {
	return "tenant: security violation: " + e.Message
}

// NewViolationError creates a ViolationError with the given violation type.
func NewViolationError(violationType, code, format string, args ...any) *ViolationError {
	return &ViolationError{
		Code:          code,
		Message:       fmt.Sprintf(format, args...),
		ViolationType: violationType,
	}
}

// Error codes surfaced in JSON error responses. The boundary maps both
// error kinds to 403; the codes let clients and alerting distinguish them.
const (
	CodeNoTenantContext   = "no_tenant_context"
	CodeTenantNotFound    = "tenant_not_found"
	CodeTenantStatus      = "tenant_status_not_allowed"
	CodeResourceTenant    = "resource_tenant_unresolved"
	CodeCrossTenant       = "cross_tenant_access"
	CodeEncryptionKey     = "encryption_key_unavailable"
	CodeTenantMismatch    = "tenant_mismatch"
	CodeIsolationInternal = "isolation_internal_error"
)
