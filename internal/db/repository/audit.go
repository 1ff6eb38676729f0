package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"aida/internal/domain"
)

// AuditRepo implements domain.AuditRepository.
type AuditRepo struct {
	db *sql.DB
}

var _ domain.AuditRepository = (*AuditRepo)(nil)

// NewAuditRepo creates an AuditRepo.
func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert appends e to the audit log.
func (r *AuditRepo) Insert(ctx context.Context, e *domain.AuditEntry) error {
	id := e.ID
	if id == "" {
		id = domain.NewID()
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, principal_id, action, resource_type, resource_id, status, detail, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.PrincipalID, e.Action, e.ResourceType, e.ResourceID, e.Status,
		nullString(e.Detail), nullInt64(e.DurationMs), formatTime(created))
	return mapDBError(err, "audit entry")
}

// List returns entries matching filter, newest first.
func (r *AuditRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, int64, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PrincipalID != nil {
		conds = append(conds, "principal_id = ?")
		args = append(args, *filter.PrincipalID)
	}
	if filter.Action != nil {
		conds = append(conds, "action = ?")
		args = append(args, *filter.Action)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTime(*filter.Since))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, principal_id, action, resource_type, resource_id, status, detail, duration_ms, created_at
		 FROM audit_log`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Page.Limit(), filter.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e         domain.AuditEntry
			detail    sql.NullString
			duration  sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.PrincipalID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Status, &detail, &duration, &createdAt); err != nil {
			return nil, 0, err
		}
		e.Detail = stringPtr(detail)
		e.DurationMs = int64Ptr(duration)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
