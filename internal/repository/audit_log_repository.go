package repository

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// AuditLogRepository is append-only; no update or delete path is exposed.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *domain.AuditLog) error
	ListByEntity(ctx context.Context, entity, entityID string) ([]domain.AuditLog, error)
}

type auditLogRepository struct {
	q Querier
}

// NewAuditLogRepository builds repository.
func NewAuditLogRepository(q Querier) AuditLogRepository {
	return &auditLogRepository{q: q}
}

func (r *auditLogRepository) Append(ctx context.Context, entry *domain.AuditLog) error {
	const query = `
        INSERT INTO audit_logs (tenant_id, entity, entity_id, action, actor_id, details)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.q.QueryRow(ctx, query,
		entry.TenantID,
		entry.Entity,
		entry.EntityID,
		entry.Action,
		entry.ActorID,
		entry.Details,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditLogRepository) ListByEntity(ctx context.Context, entity, entityID string) ([]domain.AuditLog, error) {
	const query = `
        SELECT id, tenant_id, entity, entity_id, action, actor_id, details, created_at
        FROM audit_logs WHERE entity=$1 AND entity_id=$2 ORDER BY created_at ASC`
	rows, err := r.q.Query(ctx, query, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditLog
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.Entity,
			&entry.EntityID,
			&entry.Action,
			&entry.ActorID,
			&entry.Details,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
