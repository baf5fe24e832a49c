// Package automation evaluates trigger + condition rules against a ticket
// snapshot and produces an ordered action list. Evaluation is deterministic
// and side-effect-free; applying state actions and dispatching external ones
// is the caller's job.
//
// Known limitation: conditions within a rule combine with logical AND only.
// There is no OR or grouping; callers needing richer predicates must create
// one rule per branch.
package automation

import (
	"sort"
	"strconv"
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// Action is a matched rule's action ready to apply or dispatch.
type Action struct {
	RuleID   string
	RuleName string
	Type     domain.RuleActionType
	Value    string
}

// Field names the slot an action writes, used for first-writer-wins conflict
// skipping within one evaluation pass.
func (a Action) Field() string {
	switch a.Type {
	case domain.ActionAssign:
		return "assignee"
	case domain.ActionSetPriority:
		return "priority"
	case domain.ActionTransition:
		return "status"
	case domain.ActionAddTag:
		return "tag:" + a.Value
	case domain.ActionNotify:
		return "notify:" + a.Value
	default:
		return string(a.Type) + ":" + a.Value
	}
}

// External reports whether the action is executed by the dispatch collaborator
// rather than applied to ticket state.
func (a Action) External() bool {
	return a.Type == domain.ActionNotify
}

// Evaluate returns actions from enabled rules matching the trigger, in
// ascending priority order (id as the stable tie-break). An action targeting a
// field already claimed by an earlier rule in the same pass is skipped, so
// repeated calls over the same snapshot return the same list.
func Evaluate(trigger domain.AutomationTrigger, ticket *domain.Ticket, latest *domain.TicketEvent, rules []domain.AutomationRule, now time.Time) []Action {
	if ticket == nil {
		return nil
	}
	ordered := make([]domain.AutomationRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled || rule.Trigger != trigger || rule.TenantID != ticket.TenantID {
			continue
		}
		ordered = append(ordered, rule)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})

	claimed := map[string]bool{}
	var actions []Action
	for _, rule := range ordered {
		if !matches(rule, ticket, latest, now) {
			continue
		}
		for _, declared := range rule.Actions {
			action := Action{
				RuleID:   rule.ID,
				RuleName: rule.Name,
				Type:     declared.Type,
				Value:    declared.Value,
			}
			field := action.Field()
			if claimed[field] {
				continue
			}
			claimed[field] = true
			actions = append(actions, action)
		}
	}
	return actions
}

func matches(rule domain.AutomationRule, ticket *domain.Ticket, latest *domain.TicketEvent, now time.Time) bool {
	for _, cond := range rule.Conditions {
		if !matchCondition(cond, ticket, latest, now) {
			return false
		}
	}
	return true
}

func matchCondition(cond domain.RuleCondition, ticket *domain.Ticket, latest *domain.TicketEvent, now time.Time) bool {
	switch cond.Field {
	case domain.ConditionFieldStatus:
		return compareString(string(ticket.Status), cond.Op, cond.Value)
	case domain.ConditionFieldPriority:
		return compareString(string(ticket.Priority), cond.Op, cond.Value)
	case domain.ConditionFieldCategory:
		return compareString(ticket.Category, cond.Op, cond.Value)
	case domain.ConditionFieldAssignee:
		assignee := ""
		if ticket.AssigneeID != nil {
			assignee = *ticket.AssigneeID
		}
		return compareString(assignee, cond.Op, cond.Value)
	case domain.ConditionFieldAgeInState:
		minutes := now.Sub(ticket.StatusChangedAt).Minutes()
		threshold, err := strconv.ParseFloat(cond.Value, 64)
		if err != nil {
			return false
		}
		return compareNumber(minutes, cond.Op, threshold)
	default:
		return false
	}
}

func compareString(actual, op, expected string) bool {
	switch op {
	case domain.OpEquals:
		return actual == expected
	case domain.OpNotEquals:
		return actual != expected
	default:
		return false
	}
}

func compareNumber(actual float64, op string, expected float64) bool {
	switch op {
	case domain.OpEquals:
		return actual == expected
	case domain.OpNotEquals:
		return actual != expected
	case domain.OpGreaterThan:
		return actual > expected
	case domain.OpLessThan:
		return actual < expected
	default:
		return false
	}
}
