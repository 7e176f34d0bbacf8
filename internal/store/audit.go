package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/relaydesk/tenantguard/internal/audit"
)

// AuditStore persists and queries the guard_audit_log table.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

// Append inserts one audit entry. Implements audit.Sink.
func (s *AuditStore) Append(ctx context.Context, e audit.Entry) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `
		INSERT INTO guard_audit_log
			(request_id, action, actor, caller_tenant_id, resource_tenant_id,
			 path, method, ip, user_agent, violation_type, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`,
		e.RequestID, e.Action, e.ActorID, e.CallerTenantID, e.ResourceTenantID,
		e.Path, e.Method, e.IP, e.UserAgent, e.ViolationType, e.Fingerprint, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// buildAuditFilter builds the WHERE clause and args from QueryOpts.
func buildAuditFilter(opts audit.QueryOpts) (where string, args []any, nextArg int) {
	var conditions []string
	argIdx := 1

	if opts.Action != "" {
		conditions = append(conditions, "action = $"+strconv.Itoa(argIdx))
		args = append(args, opts.Action)
		argIdx++
	}
	if opts.TenantID != "" {
		conditions = append(conditions, "(caller_tenant_id = $"+strconv.Itoa(argIdx)+" OR resource_tenant_id = $"+strconv.Itoa(argIdx)+")")
		args = append(args, opts.TenantID)
		argIdx++
	}
	if opts.Since != nil {
		conditions = append(conditions, "created_at >= $"+strconv.Itoa(argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return where, args, argIdx
}

// Query returns audit entries matching the filters, newest first.
// The second return reports whether more entries exist past the limit.
func (s *AuditStore) Query(ctx context.Context, opts audit.QueryOpts) ([]audit.Entry, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	where, args, argIdx := buildAuditFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, request_id, action, actor, caller_tenant_id,
		       COALESCE(resource_tenant_id, ''), path, method, ip, user_agent,
		       COALESCE(violation_type, ''), fingerprint, created_at
		FROM guard_audit_log %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, opts.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		if err := rows.Scan(
			&e.ID, &e.RequestID, &e.Action, &e.ActorID, &e.CallerTenantID,
			&e.ResourceTenantID, &e.Path, &e.Method, &e.IP, &e.UserAgent,
			&e.ViolationType, &e.Fingerprint, &e.Timestamp,
		); err != nil {
			return nil, false, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// purgeBatchSize limits rows deleted per statement to avoid holding long
// locks on guard_audit_log.
const purgeBatchSize = 5000

// PurgeOldEntries deletes audit entries older than retentionDays in
// batches. Returns the number of deleted entries.
func (s *AuditStore) PurgeOldEntries(ctx context.Context, retentionDays int) (int, error) {
	var totalDeleted int

	for {
		batchCtx, cancel := withTimeout(ctx)

		tag, err := s.Pool.Exec(batchCtx,
			`DELETE FROM guard_audit_log WHERE ctid IN (
				SELECT ctid FROM guard_audit_log
				WHERE created_at < NOW() - make_interval(days => $1)
				LIMIT $2
			)`,
			retentionDays, purgeBatchSize,
		)
		cancel()

		if err != nil {
			return totalDeleted, fmt.Errorf("purging audit entries: %w", err)
		}

		deleted := int(tag.RowsAffected())
		totalDeleted += deleted
		if deleted < purgeBatchSize {
			break
		}
	}

	return totalDeleted, nil
}
