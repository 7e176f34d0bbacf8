package tenant

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relaydesk/tenantguard/internal/audit"
)

// Outcome is the terminal state of one pipeline evaluation.
type Outcome string

const (
	OutcomeExcluded       Outcome = "excluded"
	OutcomeUnsafeNoTenant Outcome = "unsafe_no_tenant"
	OutcomeAdminBypass    Outcome = "admin_bypass"
	OutcomeAssumedTenant  Outcome = "assumed_tenant"
	OutcomeGranted        Outcome = "granted"
	OutcomeDenied         Outcome = "denied"
)

// Decision is the tagged result of an evaluation. Exactly one of the
// pass outcomes or OutcomeDenied applies; Reason is set only when denied
// and is always an *AccessError or *ViolationError.
type Decision struct {
	Outcome          Outcome
	Context          *Context
	ResourceTenantID string
	ResourceSource   Source
	Reason           error
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.Outcome != OutcomeDenied }

// Request carries everything the enforcer needs about one inbound request.
// Principal is nil when the upstream authentication layer attached none.
type Request struct {
	Principal   *Principal
	RequestID   string
	Path        string
	Method      string
	IP          string
	UserAgent   string
	Surfaces    Surfaces
	CacheBypass bool
}

// Config is the fully-enumerated option surface for one enforcer
// instance. The zero value is a permissive enforcer with defaults.
type Config struct {
	// TenantIDParam is the key searched across request surfaces.
	// Defaults to DefaultTenantIDParam.
	TenantIDParam string

	// AllowSuperAdmin lets principals with RoleSuperAdmin bypass
	// isolation entirely. Every bypass is audited.
	AllowSuperAdmin bool

	// ExcludePaths are path prefixes skipped by the pipeline.
	ExcludePaths []string

	// StrictMode rejects requests whose tenant context cannot be
	// established instead of assuming the caller's own tenant.
	StrictMode bool

	// AuditTrail enables audit entry emission.
	AuditTrail bool

	// MaxDepth bounds the recursive body search. Defaults to
	// DefaultMaxDepth.
	MaxDepth int

	// ValidateTenantExists looks the caller's tenant up in the tenant
	// store (through the cache) before any comparison.
	ValidateTenantExists bool

	// ValidateTenantStatus additionally requires the tenant's status to
	// be in AllowedStatuses.
	ValidateTenantStatus bool

	// AllowedStatuses defaults to {active}.
	AllowedStatuses []Status

	// AllowCacheBypass honors the per-request cache bypass signal,
	// forcing a fresh tenant-store lookup.
	AllowCacheBypass bool
}

// recorder is the slice of audit.Recorder the enforcer needs. Narrow so
// tests can capture entries without a queue.
type recorder interface {
	Record(e audit.Entry)
}

// Enforcer combines the caller's tenant, the resolved resource tenant and
// the configured policy into a single isolation decision.
//
// Evaluate never panics and never returns a Go error: every failure mode,
// including internal faults, resolves to OutcomeDenied. The deny path is
// the default; nothing passes without matching an explicit rule.
type Enforcer struct {
	cfg       Config
	resolver  *Resolver
	validator *Validator
	audit     recorder
	log       *logrus.Logger
	now       func() time.Time
}

// NewEnforcer creates an Enforcer. A validator is required when
// ValidateTenantExists or ValidateTenantStatus is set; rec may be nil
// when AuditTrail is off.
func NewEnforcer(cfg Config, validator *Validator, rec recorder, log *logrus.Logger) (*Enforcer, error) {
	if (cfg.ValidateTenantExists || cfg.ValidateTenantStatus) && validator == nil {
		return nil, errors.New("tenant validation is enabled but no validator is configured")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}

	if len(cfg.AllowedStatuses) == 0 {
		cfg.AllowedStatuses = []Status{StatusActive}
	}

	return &Enforcer{
		cfg:       cfg,
		resolver:  NewResolver(cfg.TenantIDParam, cfg.MaxDepth),
		validator: validator,
		audit:     rec,
		log:       log,
		now:       time.Now,
	}, nil
}

// Evaluate runs the isolation state machine for one request.
func (e *Enforcer) Evaluate(ctx context.Context, req Request) Decision {
	if e.excluded(req.Path) {
		return Decision{Outcome: OutcomeExcluded}
	}

	if req.Principal == nil || req.Principal.TenantID == "" {
		if e.cfg.StrictMode {
			return e.deny(req, NewAccessError(CodeNoTenantContext,
				"no tenant context on authenticated principal"))
		}

		// Permissive: pass, but downstream defenses own the risk.
		return Decision{Outcome: OutcomeUnsafeNoTenant}
	}

	caller := req.Principal

	if e.cfg.ValidateTenantExists || e.cfg.ValidateTenantStatus {
		if reason := e.validateCallerTenant(ctx, req); reason != nil {
			return e.deny(req, reason)
		}
	}

	if e.cfg.AllowSuperAdmin && caller.Role == RoleSuperAdmin {
		e.record(req, audit.Entry{
			Action:  audit.ActionAdminBypass,
			ActorID: caller.ID,
		})

		return Decision{
			Outcome: OutcomeAdminBypass,
			Context: e.newContext(caller.TenantID, req.RequestID),
		}
	}

	resourceTenant, source, found := e.resolver.Resolve(req.Surfaces)
	if !found {
		if e.cfg.StrictMode {
			return e.deny(req, NewAccessError(CodeResourceTenant,
				"resource tenant id not found in request"))
		}

		e.record(req, audit.Entry{
			Action:  audit.ActionAssumedTenant,
			ActorID: caller.ID,
		})

		return Decision{
			Outcome:          OutcomeAssumedTenant,
			ResourceTenantID: caller.TenantID,
			Context:          e.newContext(caller.TenantID, req.RequestID),
		}
	}

	if resourceTenant != caller.TenantID {
		e.record(req, audit.Entry{
			Action:           audit.ActionViolation,
			ActorID:          caller.ID,
			ResourceTenantID: resourceTenant,
			ViolationType:    ViolationCrossTenant,
		})

		return Decision{
			Outcome:          OutcomeDenied,
			ResourceTenantID: resourceTenant,
			ResourceSource:   source,
			Reason: NewViolationError(ViolationCrossTenant, CodeCrossTenant,
				"caller tenant does not match resource tenant"),
		}
	}

	e.record(req, audit.Entry{
		Action:  audit.ActionAccessGranted,
		ActorID: caller.ID,
	})

	return Decision{
		Outcome:          OutcomeGranted,
		ResourceTenantID: resourceTenant,
		ResourceSource:   source,
		Context:          e.newContext(caller.TenantID, req.RequestID),
	}
}

// validateCallerTenant checks existence and, if configured, status of the
// caller's tenant. Store or cache faults resolve to a ViolationError so an
// infrastructure failure can never widen access.
func (e *Enforcer) validateCallerTenant(ctx context.Context, req Request) error {
	bypass := e.cfg.AllowCacheBypass && req.CacheBypass

	rec, err := e.validator.Validate(ctx, req.Principal.TenantID, bypass)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return NewAccessError(CodeTenantNotFound,
				"tenant %q does not exist", req.Principal.TenantID)
		}

		e.log.WithError(err).WithFields(logrus.Fields{
			"request_id": req.RequestID,
			"tenant_id":  req.Principal.TenantID,
		}).Error("tenant validation failed, denying request")

		return NewViolationError(ViolationInternalFault, CodeIsolationInternal,
			"tenant validation unavailable")
	}

	if e.cfg.ValidateTenantStatus && !e.statusAllowed(rec.Status) {
		return NewAccessError(CodeTenantStatus,
			"tenant status %q is not allowed", rec.Status)
	}

	return nil
}

func (e *Enforcer) statusAllowed(s Status) bool {
	for _, allowed := range e.cfg.AllowedStatuses {
		if s == allowed {
			return true
		}
	}

	return false
}

func (e *Enforcer) excluded(path string) bool {
	for _, prefix := range e.cfg.ExcludePaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func (e *Enforcer) deny(req Request, reason error) Decision {
	return Decision{Outcome: OutcomeDenied, Reason: reason}
}

func (e *Enforcer) newContext(tenantID, requestID string) *Context {
	return &Context{
		TenantID:          tenantID,
		RequestID:         requestID,
		IsolationVerified: true,
		VerificationTime:  e.now(),
	}
}

// record fills the request-derived fields and emits one audit entry, if
// the audit trail is enabled.
func (e *Enforcer) record(req Request, entry audit.Entry) {
	if !e.cfg.AuditTrail || e.audit == nil {
		return
	}

	now := e.now().UTC()
	entry.Timestamp = now
	entry.RequestID = req.RequestID
	entry.Path = req.Path
	entry.Method = req.Method
	entry.IP = req.IP
	entry.UserAgent = req.UserAgent

	if req.Principal != nil {
		entry.CallerTenantID = req.Principal.TenantID
		entry.Fingerprint = audit.Fingerprint(
			req.IP, req.Path, req.Method, now, req.Principal.ID, req.Principal.TenantID)
	}

	e.audit.Record(entry)
}
