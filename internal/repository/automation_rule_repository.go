package repository

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// AutomationRuleRepository reads automation rules for evaluation.
type AutomationRuleRepository interface {
	ListForTrigger(ctx context.Context, tenantID string, trigger domain.AutomationTrigger) ([]domain.AutomationRule, error)
}

type automationRuleRepository struct {
	q Querier
}

// NewAutomationRuleRepository builds repository.
func NewAutomationRuleRepository(q Querier) AutomationRuleRepository {
	return &automationRuleRepository{q: q}
}

// ListForTrigger returns enabled rules for the tenant and trigger in evaluation
// order: ascending priority, then id as the stable tie-break.
func (r *automationRuleRepository) ListForTrigger(ctx context.Context, tenantID string, trigger domain.AutomationTrigger) ([]domain.AutomationRule, error) {
	const query = `
        SELECT id, tenant_id, name, trigger, conditions, actions, enabled, priority, created_at, updated_at
        FROM automation_rules
        WHERE tenant_id=$1 AND trigger=$2 AND enabled=TRUE
        ORDER BY priority ASC, id ASC`
	rows, err := r.q.Query(ctx, query, tenantID, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutomationRule
	for rows.Next() {
		var rule domain.AutomationRule
		if err := rows.Scan(
			&rule.ID,
			&rule.TenantID,
			&rule.Name,
			&rule.Trigger,
			&rule.Conditions,
			&rule.Actions,
			&rule.Enabled,
			&rule.Priority,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
