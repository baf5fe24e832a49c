package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// TicketRepository encapsulates ticket persistence. Updates carry an optimistic
// concurrency guard on the version column.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error
	ListActiveIDs(ctx context.Context, tenantID string) ([]string, error)
}

type ticketRepository struct {
	q Querier
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(q Querier) TicketRepository {
	return &ticketRepository{q: q}
}

const ticketColumns = `id, tenant_id, department_id, external_key, requester_user_id, assignee_id,
               title, description, status, priority, category, tags, sla_plan_id,
               response_deadline, resolution_deadline, first_response_at, status_changed_at,
               version, created_at, updated_at, closed_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (tenant_id, department_id, external_key, requester_user_id, assignee_id,
                             title, description, status, priority, category, tags, sla_plan_id,
                             status_changed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW())
        RETURNING id, version, status_changed_at, created_at, updated_at`
	return r.q.QueryRow(ctx, query,
		ticket.TenantID,
		ticket.DepartmentID,
		ticket.ExternalKey,
		ticket.RequesterID,
		ticket.AssigneeID,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.Tags,
		ticket.SLAPlanID,
	).Scan(&ticket.ID, &ticket.Version, &ticket.StatusChangedAt, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update persists the ticket if the version is still expectedVersion, bumping
// the version. A lost race surfaces as a Conflict error.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	const query = `
        UPDATE tickets SET department_id=$1, assignee_id=$2, status=$3, priority=$4, category=$5,
            tags=$6, sla_plan_id=$7, response_deadline=$8, resolution_deadline=$9,
            first_response_at=$10, status_changed_at=$11, closed_at=$12,
            version=version+1, updated_at=NOW()
        WHERE id=$13 AND version=$14`
	cmd, err := r.q.Exec(ctx, query,
		ticket.DepartmentID,
		ticket.AssigneeID,
		ticket.Status,
		ticket.Priority,
		ticket.Category,
		ticket.Tags,
		ticket.SLAPlanID,
		ticket.ResponseDeadline,
		ticket.ResolutionDeadline,
		ticket.FirstResponseAt,
		ticket.StatusChangedAt,
		ticket.ClosedAt,
		ticket.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return util.NewConflict("ticket was modified concurrently", map[string]any{
			"ticket_id":        ticket.ID,
			"expected_version": expectedVersion,
		})
	}
	ticket.Version = expectedVersion + 1
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.q.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.TenantID,
		&ticket.DepartmentID,
		&ticket.ExternalKey,
		&ticket.RequesterID,
		&ticket.AssigneeID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Tags,
		&ticket.SLAPlanID,
		&ticket.ResponseDeadline,
		&ticket.ResolutionDeadline,
		&ticket.FirstResponseAt,
		&ticket.StatusChangedAt,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, err
	}
	return &ticket, nil
}

// ListActiveIDs returns ids of tickets not in the terminal state, optionally
// scoped to one tenant. The periodic passes iterate this set.
func (r *ticketRepository) ListActiveIDs(ctx context.Context, tenantID string) ([]string, error) {
	query := `SELECT id FROM tickets WHERE status <> $1`
	args := []any{domain.TicketStatusClosed}
	if tenantID != "" {
		query += ` AND tenant_id = $2`
		args = append(args, tenantID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
