package workflow

import (
	"context"

	"github.com/spec-kit/ticket-engine/internal/audit"
	"github.com/spec-kit/ticket-engine/internal/domain"
)

// StoreOps is the transactional view of the store the engine mutates through.
// All writes issued via one StoreOps commit or roll back together, which is
// what enforces the one-event-one-audit-per-mutation invariant.
type StoreOps interface {
	audit.Appender

	GetTicket(ctx context.Context, id string) (*domain.Ticket, error)
	CreateTicket(ctx context.Context, ticket *domain.Ticket) error
	// UpdateTicket persists the ticket guarded by expectedVersion and bumps the
	// version; a lost race returns a Conflict error.
	UpdateTicket(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error

	AppendEvent(ctx context.Context, event *domain.TicketEvent) error
	ListEvents(ctx context.Context, ticketID string) ([]domain.TicketEvent, error)

	GetPlan(ctx context.Context, id string) (*domain.SLAPlan, error)
	ListRules(ctx context.Context, tenantID string, trigger domain.AutomationTrigger) ([]domain.AutomationRule, error)
}

// Store runs engine operations inside one atomic unit of work.
type Store interface {
	WithTx(ctx context.Context, fn func(ops StoreOps) error) error
	// ListActiveTicketIDs returns ids of tickets not in the terminal state.
	ListActiveTicketIDs(ctx context.Context) ([]string, error)
}
