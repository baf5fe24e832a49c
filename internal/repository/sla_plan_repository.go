package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// SLAPlanRepository reads SLA plans and their business-hours calendars.
type SLAPlanRepository interface {
	GetByID(ctx context.Context, id string) (*domain.SLAPlan, error)
}

type slaPlanRepository struct {
	q Querier
}

// NewSLAPlanRepository builds repository.
func NewSLAPlanRepository(q Querier) SLAPlanRepository {
	return &slaPlanRepository{q: q}
}

func (r *slaPlanRepository) GetByID(ctx context.Context, id string) (*domain.SLAPlan, error) {
	const query = `
        SELECT id, tenant_id, name, response_target_minutes, resolution_target_minutes,
               business_hours, created_at, updated_at
        FROM sla_plans WHERE id=$1`
	var plan domain.SLAPlan
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&plan.ID,
		&plan.TenantID,
		&plan.Name,
		&plan.ResponseTargetMinutes,
		&plan.ResolutionTargetMinutes,
		&plan.BusinessHours,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("sla plan", map[string]any{"plan_id": id})
		}
		return nil, err
	}
	return &plan, nil
}
