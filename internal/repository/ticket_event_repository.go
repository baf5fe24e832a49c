package repository

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// TicketEventRepository stores the append-only event log. Events are never
// updated or deleted.
type TicketEventRepository interface {
	Append(ctx context.Context, event *domain.TicketEvent) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error)
}

type ticketEventRepository struct {
	q Querier
}

// NewTicketEventRepository builds repository.
func NewTicketEventRepository(q Querier) TicketEventRepository {
	return &ticketEventRepository{q: q}
}

// Append assigns the next per-ticket sequence number and inserts the event.
// Callers run inside the same transaction as the ticket mutation, which the
// version guard on tickets serializes, so the MAX(seq)+1 read cannot race.
func (r *ticketEventRepository) Append(ctx context.Context, event *domain.TicketEvent) error {
	const query = `
        INSERT INTO ticket_events (ticket_id, seq, event_type, payload, actor_id)
        VALUES ($1, (SELECT COALESCE(MAX(seq),0)+1 FROM ticket_events WHERE ticket_id=$1), $2, $3, $4)
        RETURNING id, seq, created_at`
	return r.q.QueryRow(ctx, query,
		event.TicketID,
		event.Type,
		event.Payload,
		event.ActorID,
	).Scan(&event.ID, &event.Seq, &event.CreatedAt)
}

func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketEvent, error) {
	const query = `
        SELECT id, ticket_id, seq, event_type, payload, actor_id, created_at
        FROM ticket_events WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.q.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketEvent
	for rows.Next() {
		var event domain.TicketEvent
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.Seq,
			&event.Type,
			&event.Payload,
			&event.ActorID,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
