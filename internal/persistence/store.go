package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/workflow"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// Store is the pgx-backed implementation of workflow.Store. Each unit of work
// runs the per-entity repositories over one transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs the store over a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn inside a transaction; commit and rollback errors surface as
// transient failures for the scheduler's retry path.
func (s *Store) WithTx(ctx context.Context, fn func(ops workflow.StoreOps) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return util.NewTransient("begin transaction", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(newStoreOps(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return util.NewTransient("commit transaction", err)
	}
	return nil
}

// ListActiveTicketIDs returns ids of tickets not in the terminal state.
func (s *Store) ListActiveTicketIDs(ctx context.Context) ([]string, error) {
	ids, err := repository.NewTicketRepository(s.pool).ListActiveIDs(ctx, "")
	if err != nil {
		return nil, util.NewTransient("list active tickets", err)
	}
	return ids, nil
}

type storeOps struct {
	tickets repository.TicketRepository
	events  repository.TicketEventRepository
	plans   repository.SLAPlanRepository
	rules   repository.AutomationRuleRepository
	audits  repository.AuditLogRepository
}

func newStoreOps(tx pgx.Tx) *storeOps {
	return &storeOps{
		tickets: repository.NewTicketRepository(tx),
		events:  repository.NewTicketEventRepository(tx),
		plans:   repository.NewSLAPlanRepository(tx),
		rules:   repository.NewAutomationRuleRepository(tx),
		audits:  repository.NewAuditLogRepository(tx),
	}
}

func (o *storeOps) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	return o.tickets.GetByID(ctx, id)
}

func (o *storeOps) CreateTicket(ctx context.Context, ticket *domain.Ticket) error {
	return o.tickets.Create(ctx, ticket)
}

func (o *storeOps) UpdateTicket(ctx context.Context, ticket *domain.Ticket, expectedVersion int64) error {
	return o.tickets.Update(ctx, ticket, expectedVersion)
}

func (o *storeOps) AppendEvent(ctx context.Context, event *domain.TicketEvent) error {
	return o.events.Append(ctx, event)
}

func (o *storeOps) ListEvents(ctx context.Context, ticketID string) ([]domain.TicketEvent, error) {
	return o.events.ListByTicket(ctx, ticketID)
}

func (o *storeOps) GetPlan(ctx context.Context, id string) (*domain.SLAPlan, error) {
	return o.plans.GetByID(ctx, id)
}

func (o *storeOps) ListRules(ctx context.Context, tenantID string, trigger domain.AutomationTrigger) ([]domain.AutomationRule, error) {
	return o.rules.ListForTrigger(ctx, tenantID, trigger)
}

func (o *storeOps) Append(ctx context.Context, entry *domain.AuditLog) error {
	return o.audits.Append(ctx, entry)
}
