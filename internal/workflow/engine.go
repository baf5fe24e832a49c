package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/audit"
	"github.com/spec-kit/ticket-engine/internal/automation"
	"github.com/spec-kit/ticket-engine/internal/dispatch"
	"github.com/spec-kit/ticket-engine/internal/domain"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/sla"
	"github.com/spec-kit/ticket-engine/pkg/util"
)

// SystemActorID marks mutations applied by automation rather than a person.
const SystemActorID = "system:automation"

// Authorizer is the external authorization collaborator.
type Authorizer interface {
	CanTransition(ctx context.Context, actorID string, ticket *domain.Ticket, target domain.TicketStatus) bool
}

// Engine coordinates the ticket lifecycle: it validates transitions, appends
// events, records audit entries, runs automation and keeps SLA deadlines
// current, all within one atomic unit of work per operation.
type Engine struct {
	store      Store
	authorizer Authorizer
	dispatcher dispatch.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewEngine constructs the engine. A nil authorizer allows every actor; a nil
// dispatcher drops external actions.
func NewEngine(store Store, authorizer Authorizer, dispatcher dispatch.Dispatcher, logger *zap.Logger) *Engine {
	return &Engine{
		store:      store,
		authorizer: authorizer,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the clock source. Periodic passes inject their tick time
// so pure computations never read the ambient clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithMetrics attaches the counter set reported by the health endpoint.
func (e *Engine) WithMetrics(metrics *observability.Metrics) *Engine {
	e.metrics = metrics
	return e
}

// CreateInput describes ticket creation payload.
type CreateInput struct {
	TenantID     string
	DepartmentID string
	RequesterID  string
	Title        string
	Description  string
	Priority     domain.TicketPriority
	Category     string
	Tags         []string
	SLAPlanID    *string
}

// TransitionInput describes a requested lifecycle transition.
type TransitionInput struct {
	TicketID string
	Target   domain.TicketStatus
	ActorID  string
	Comment  string
}

// CreateTicket registers a new ticket in status New, appends the creation
// event, audits it, computes initial SLA deadlines and runs on-created rules.
func (e *Engine) CreateTicket(ctx context.Context, input CreateInput) (*domain.Ticket, error) {
	if strings.TrimSpace(input.TenantID) == "" || strings.TrimSpace(input.RequesterID) == "" {
		return nil, util.NewValidationError("tenant and requester are required", nil)
	}
	now := e.now()
	var ticket *domain.Ticket
	var external []automation.Action

	err := e.store.WithTx(ctx, func(ops StoreOps) error {
		ticket = &domain.Ticket{
			TenantID:     input.TenantID,
			DepartmentID: input.DepartmentID,
			ExternalKey:  generateTicketKey(),
			RequesterID:  input.RequesterID,
			Title:        strings.TrimSpace(input.Title),
			Description:  strings.TrimSpace(input.Description),
			Status:       domain.TicketStatusNew,
			Priority:     input.Priority,
			Category:     input.Category,
			Tags:         input.Tags,
			SLAPlanID:    input.SLAPlanID,
		}
		if ticket.Priority == "" {
			ticket.Priority = domain.TicketPriorityMedium
		}
		if err := ops.CreateTicket(ctx, ticket); err != nil {
			return err
		}

		actorID := input.RequesterID
		event := &domain.TicketEvent{
			TicketID: ticket.ID,
			Type:     domain.EventTicketCreated,
			ActorID:  &actorID,
			Payload: map[string]any{
				"status":   string(ticket.Status),
				"priority": string(ticket.Priority),
			},
		}
		if err := ops.AppendEvent(ctx, event); err != nil {
			return err
		}
		recorder := audit.NewRecorder(ops)
		if _, err := recorder.Record(ctx, ticket.TenantID, "ticket", ticket.ID, "created", &actorID, map[string]any{
			"status":   string(ticket.Status),
			"priority": string(ticket.Priority),
		}); err != nil {
			return err
		}

		if err := e.refreshDeadlines(ctx, ops, ticket); err != nil {
			return err
		}

		rules, err := ops.ListRules(ctx, ticket.TenantID, domain.TriggerOnCreated)
		if err != nil {
			return err
		}
		actions := automation.Evaluate(domain.TriggerOnCreated, ticket, event, rules, now)
		ext, err := e.applyActions(ctx, ops, ticket, actions, now)
		if err != nil {
			return err
		}
		external = ext
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.enqueueExternal(ctx, ticket, external)
	return ticket, nil
}

// ApplyTransition validates and applies one lifecycle transition. Side effects
// run in order inside one transaction: status persisted, event appended, audit
// written, on-status-change automation evaluated, SLA deadlines recomputed.
// Any failure rolls the whole operation back.
func (e *Engine) ApplyTransition(ctx context.Context, input TransitionInput) (*domain.Ticket, *domain.TicketEvent, error) {
	now := e.now()
	var ticket *domain.Ticket
	var event *domain.TicketEvent
	var external []automation.Action

	err := e.store.WithTx(ctx, func(ops StoreOps) error {
		current, err := ops.GetTicket(ctx, input.TicketID)
		if err != nil {
			return err
		}
		if e.authorizer != nil && !e.authorizer.CanTransition(ctx, input.ActorID, current, input.Target) {
			return util.NewForbidden("actor may not transition this ticket")
		}
		ticket = current
		var ext []automation.Action
		event, ext, err = e.transition(ctx, ops, current, input.Target, input.ActorID, input.Comment, now, true)
		if err != nil {
			return err
		}
		external = ext
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	e.enqueueExternal(ctx, ticket, external)
	return ticket, event, nil
}

// EvaluateSLA recomputes deadlines for one ticket and emits breach events plus
// on-breach automation. Idempotent: a breach already recorded for the same
// deadline value is never emitted again.
func (e *Engine) EvaluateSLA(ctx context.Context, ticketID string) error {
	now := e.now()
	var ticket *domain.Ticket
	var external []automation.Action

	err := e.store.WithTx(ctx, func(ops StoreOps) error {
		current, err := ops.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		ticket = current
		if current.Terminal() || current.SLAPlanID == nil {
			return nil
		}
		plan, err := ops.GetPlan(ctx, *current.SLAPlanID)
		if err != nil {
			return err
		}
		events, err := ops.ListEvents(ctx, current.ID)
		if err != nil {
			return err
		}
		deadlines := sla.ComputeDeadlines(current, events, plan, plan.BusinessHours)
		if deadlinesChanged(current, deadlines) {
			current.ResponseDeadline = deadlines.ResponseDeadline
			current.ResolutionDeadline = deadlines.ResolutionDeadline
			if err := ops.UpdateTicket(ctx, current, current.Version); err != nil {
				return err
			}
		}

		recorder := audit.NewRecorder(ops)
		for _, breach := range sla.FindBreaches(current, events, deadlines, now) {
			actorID := SystemActorID
			event := &domain.TicketEvent{
				TicketID: current.ID,
				Type:     domain.EventSLABreached,
				ActorID:  &actorID,
				Payload:  sla.BreachPayload(breach),
			}
			if err := ops.AppendEvent(ctx, event); err != nil {
				return err
			}
			if _, err := recorder.Record(ctx, current.TenantID, "ticket", current.ID, "sla_breached", &actorID, sla.BreachPayload(breach)); err != nil {
				return err
			}
			e.metrics.RecordBreach()
			e.logger.Warn("sla breached",
				zap.String("ticket_id", current.ID),
				zap.String("kind", breach.Kind),
				zap.Time("deadline", breach.Deadline))

			rules, err := ops.ListRules(ctx, current.TenantID, domain.TriggerOnSLABreach)
			if err != nil {
				return err
			}
			actions := automation.Evaluate(domain.TriggerOnSLABreach, current, event, rules, now)
			ext, err := e.applyActions(ctx, ops, current, actions, now)
			if err != nil {
				return err
			}
			external = append(external, ext...)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.enqueueExternal(ctx, ticket, external)
	return nil
}

// EvaluateIdleRules runs time-based on-idle-timeout rules for one ticket.
func (e *Engine) EvaluateIdleRules(ctx context.Context, ticketID string) error {
	now := e.now()
	var ticket *domain.Ticket
	var external []automation.Action

	err := e.store.WithTx(ctx, func(ops StoreOps) error {
		current, err := ops.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		ticket = current
		if current.Terminal() {
			return nil
		}
		rules, err := ops.ListRules(ctx, current.TenantID, domain.TriggerOnIdleTimeout)
		if err != nil {
			return err
		}
		if len(rules) == 0 {
			return nil
		}
		events, err := ops.ListEvents(ctx, current.ID)
		if err != nil {
			return err
		}
		var latest *domain.TicketEvent
		if len(events) > 0 {
			latest = &events[len(events)-1]
		}
		actions := automation.Evaluate(domain.TriggerOnIdleTimeout, current, latest, rules, now)
		ext, err := e.applyActions(ctx, ops, current, actions, now)
		if err != nil {
			return err
		}
		external = ext
		return nil
	})
	if err != nil {
		return err
	}
	e.enqueueExternal(ctx, ticket, external)
	return nil
}

// ActiveTicketIDs lists tickets the periodic passes should visit.
func (e *Engine) ActiveTicketIDs(ctx context.Context) ([]string, error) {
	return e.store.ListActiveTicketIDs(ctx)
}

// transition applies one validated edge. Nested transitions triggered by
// automation run with runAutomation=false so rules cannot recurse.
func (e *Engine) transition(ctx context.Context, ops StoreOps, ticket *domain.Ticket, target domain.TicketStatus, actorID, comment string, now time.Time, runAutomation bool) (*domain.TicketEvent, []automation.Action, error) {
	if !ValidTransition(ticket.Status, target) {
		return nil, nil, util.NewInvalidTransition(string(ticket.Status), string(target))
	}

	oldStatus := ticket.Status
	ticket.Status = target
	ticket.StatusChangedAt = now
	if target == domain.TicketStatusClosed {
		closedAt := now
		ticket.ClosedAt = &closedAt
	} else if ticket.ClosedAt != nil {
		ticket.ClosedAt = nil
	}
	if oldStatus == domain.TicketStatusNew && ticket.FirstResponseAt == nil &&
		actorID != ticket.RequesterID && actorID != SystemActorID {
		firstResponse := now
		ticket.FirstResponseAt = &firstResponse
	}
	if err := ops.UpdateTicket(ctx, ticket, ticket.Version); err != nil {
		return nil, nil, err
	}

	event := &domain.TicketEvent{
		TicketID: ticket.ID,
		Type:     domain.EventStatusChanged,
		ActorID:  &actorID,
		Payload: map[string]any{
			"old_status": string(oldStatus),
			"new_status": string(target),
			"comment":    comment,
		},
	}
	if err := ops.AppendEvent(ctx, event); err != nil {
		return nil, nil, err
	}

	recorder := audit.NewRecorder(ops)
	if _, err := recorder.Record(ctx, ticket.TenantID, "ticket", ticket.ID, "status_changed", &actorID, map[string]any{
		"old_status": string(oldStatus),
		"new_status": string(target),
		"comment":    comment,
	}); err != nil {
		return nil, nil, err
	}

	var external []automation.Action
	if runAutomation {
		rules, err := ops.ListRules(ctx, ticket.TenantID, domain.TriggerOnStatusChange)
		if err != nil {
			return nil, nil, err
		}
		actions := automation.Evaluate(domain.TriggerOnStatusChange, ticket, event, rules, now)
		external, err = e.applyActions(ctx, ops, ticket, actions, now)
		if err != nil {
			return nil, nil, err
		}
	}

	// The transition may have started or stopped an SLA clock.
	if err := e.refreshDeadlines(ctx, ops, ticket); err != nil {
		return nil, nil, err
	}
	return event, external, nil
}

// applyActions applies state actions to the ticket inside the transaction and
// returns external ones for post-commit dispatch. An action whose target field
// already holds the value is a no-op, and a notification already recorded for
// the rule in the current state is not sent again, so repeating a pass over an
// unchanged ticket applies nothing.
func (e *Engine) applyActions(ctx context.Context, ops StoreOps, ticket *domain.Ticket, actions []automation.Action, now time.Time) ([]automation.Action, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	var history []domain.TicketEvent
	for _, action := range actions {
		if action.Type == domain.ActionNotify {
			events, err := ops.ListEvents(ctx, ticket.ID)
			if err != nil {
				return nil, err
			}
			history = events
			break
		}
	}

	var external []automation.Action
	var transitions []automation.Action
	var applied []map[string]any
	changed := false
	record := func(action automation.Action) {
		applied = append(applied, map[string]any{
			"rule_id": action.RuleID,
			"type":    string(action.Type),
			"value":   action.Value,
		})
	}

	for _, action := range actions {
		switch action.Type {
		case domain.ActionAssign:
			if ticket.AssigneeID != nil && *ticket.AssigneeID == action.Value {
				continue
			}
			assignee := action.Value
			ticket.AssigneeID = &assignee
			changed = true
			record(action)
		case domain.ActionSetPriority:
			if ticket.Priority == domain.TicketPriority(action.Value) {
				continue
			}
			ticket.Priority = domain.TicketPriority(action.Value)
			changed = true
			record(action)
		case domain.ActionAddTag:
			if ticket.HasTag(action.Value) {
				continue
			}
			ticket.Tags = append(ticket.Tags, action.Value)
			changed = true
			record(action)
		case domain.ActionNotify:
			if actionRecorded(history, ticket.StatusChangedAt, action.RuleID, string(action.Type), action.Value) {
				continue
			}
			external = append(external, action)
			record(action)
		case domain.ActionTransition:
			transitions = append(transitions, action)
		}
	}

	if len(applied) > 0 {
		if changed {
			if err := ops.UpdateTicket(ctx, ticket, ticket.Version); err != nil {
				return nil, err
			}
		}
		actorID := SystemActorID
		event := &domain.TicketEvent{
			TicketID: ticket.ID,
			Type:     domain.EventAutomationApplied,
			ActorID:  &actorID,
			Payload:  map[string]any{"actions": applied},
		}
		if err := ops.AppendEvent(ctx, event); err != nil {
			return nil, err
		}
		recorder := audit.NewRecorder(ops)
		if _, err := recorder.Record(ctx, ticket.TenantID, "ticket", ticket.ID, "automation_applied", &actorID, map[string]any{"actions": applied}); err != nil {
			return nil, err
		}
	}

	for _, action := range transitions {
		target := domain.TicketStatus(action.Value)
		if !ValidTransition(ticket.Status, target) {
			e.logger.Warn("automation transition skipped",
				zap.String("ticket_id", ticket.ID),
				zap.String("rule_id", action.RuleID),
				zap.String("current_status", string(ticket.Status)),
				zap.String("target_status", string(target)))
			continue
		}
		if _, _, err := e.transition(ctx, ops, ticket, target, SystemActorID, "automation:"+action.RuleID, now, false); err != nil {
			return nil, err
		}
	}
	return external, nil
}

func (e *Engine) refreshDeadlines(ctx context.Context, ops StoreOps, ticket *domain.Ticket) error {
	if ticket.SLAPlanID == nil {
		return nil
	}
	plan, err := ops.GetPlan(ctx, *ticket.SLAPlanID)
	if err != nil {
		return err
	}
	events, err := ops.ListEvents(ctx, ticket.ID)
	if err != nil {
		return err
	}
	deadlines := sla.ComputeDeadlines(ticket, events, plan, plan.BusinessHours)
	if !deadlinesChanged(ticket, deadlines) {
		return nil
	}
	ticket.ResponseDeadline = deadlines.ResponseDeadline
	ticket.ResolutionDeadline = deadlines.ResolutionDeadline
	return ops.UpdateTicket(ctx, ticket, ticket.Version)
}

// enqueueExternal hands notify actions to the dispatcher after the transaction
// committed so a rollback never leaks notifications. Enqueue failures are
// logged; delivery retries belong to the dispatch system.
func (e *Engine) enqueueExternal(ctx context.Context, ticket *domain.Ticket, actions []automation.Action) {
	if e.dispatcher == nil || ticket == nil {
		return
	}
	for _, action := range actions {
		if _, err := e.dispatcher.Enqueue(ctx, dispatch.Envelope{
			TenantID: ticket.TenantID,
			TicketID: ticket.ID,
			RuleID:   action.RuleID,
			Type:     string(action.Type),
			Target:   action.Value,
		}); err != nil {
			e.logger.Error("dispatch enqueue failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("rule_id", action.RuleID),
				zap.Error(err))
		}
	}
}

// actionRecorded reports whether an automation_applied event since the ticket
// entered its current state already lists the action. Payload entries survive
// a jsonb round-trip as []any of maps.
func actionRecorded(events []domain.TicketEvent, since time.Time, ruleID, actionType, value string) bool {
	for i := range events {
		event := &events[i]
		if event.Type != domain.EventAutomationApplied || event.CreatedAt.Before(since) {
			continue
		}
		for _, entry := range actionEntries(event.Payload) {
			if entry["rule_id"] == ruleID && entry["type"] == actionType && entry["value"] == value {
				return true
			}
		}
	}
	return false
}

func actionEntries(payload map[string]any) []map[string]any {
	if payload == nil {
		return nil
	}
	switch list := payload["actions"].(type) {
	case []map[string]any:
		return list
	case []any:
		var entries []map[string]any
		for _, item := range list {
			if entry, ok := item.(map[string]any); ok {
				entries = append(entries, entry)
			}
		}
		return entries
	default:
		return nil
	}
}

func deadlinesChanged(ticket *domain.Ticket, deadlines sla.Deadlines) bool {
	return !equalTime(ticket.ResponseDeadline, deadlines.ResponseDeadline) ||
		!equalTime(ticket.ResolutionDeadline, deadlines.ResolutionDeadline)
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func generateTicketKey() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
