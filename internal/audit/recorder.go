// Package audit records every state-changing operation. Recording is
// fail-closed: when the audit write fails, the surrounding transaction fails
// with it, so an unaudited change never commits.
package audit

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// Appender is the write side of audit storage, bound to the caller's
// transaction.
type Appender interface {
	Append(ctx context.Context, entry *domain.AuditLog) error
}

// Recorder validates and persists audit entries.
type Recorder struct {
	appender Appender
}

// NewRecorder constructs a recorder over the given appender.
func NewRecorder(appender Appender) *Recorder {
	return &Recorder{appender: appender}
}

// Record writes one audit entry for a mutation. Must be called within the same
// transactional boundary as the mutation it documents.
func (r *Recorder) Record(ctx context.Context, tenantID, entity, entityID, action string, actorID *string, details map[string]any) (*domain.AuditLog, error) {
	if tenantID == "" || entity == "" || entityID == "" || action == "" {
		return nil, util.NewValidationError("audit entry requires tenant, entity, entity id and action", map[string]any{
			"entity": entity,
			"action": action,
		})
	}
	entry := &domain.AuditLog{
		TenantID: tenantID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		ActorID:  actorID,
		Details:  details,
	}
	if err := r.appender.Append(ctx, entry); err != nil {
		return nil, util.NewTransient("audit write failed", err)
	}
	return entry, nil
}
