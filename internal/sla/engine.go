// Package sla computes response and resolution deadlines and detects breaches.
// Everything here is a pure function of the inputs; callers pass time and the
// business-hours calendar explicitly, and only the scheduler reads the clock.
package sla

import (
	"time"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// Breach kinds.
const (
	BreachResponse   = "response"
	BreachResolution = "resolution"
)

// Deadlines is the derived SLA state for one ticket.
type Deadlines struct {
	ResponseDeadline   *time.Time
	ResolutionDeadline *time.Time
	// Paused is the cumulative business time spent in Pending across completed
	// pause intervals.
	Paused time.Duration
}

// Breach describes a deadline passed without the corresponding milestone.
type Breach struct {
	Kind     string
	Deadline time.Time
}

// ComputeDeadlines derives deadlines from the ticket, its event history, the
// SLA plan it was created under and the plan's business-hours calendar.
//
// Pausing is modeled by accumulating the business time of every completed
// Pending interval and pushing both deadlines out by that total, rather than
// adjusting a stored deadline on each resume. Repeated pause/resume cycles
// therefore cannot drift.
func ComputeDeadlines(ticket *domain.Ticket, events []domain.TicketEvent, plan *domain.SLAPlan, cal domain.BusinessCalendar) Deadlines {
	if ticket == nil || plan == nil {
		return Deadlines{}
	}
	paused := pausedDuration(events, cal)

	response := cal.Add(ticket.CreatedAt, plan.ResponseTarget()+paused)
	resolution := cal.Add(ticket.CreatedAt, plan.ResolutionTarget()+paused)
	return Deadlines{
		ResponseDeadline:   &response,
		ResolutionDeadline: &resolution,
		Paused:             paused,
	}
}

// FindBreaches returns deadlines passed as of now whose milestone was not met
// and for which no breach event was recorded yet for that deadline value.
// Re-running against the same ticket and deadline yields nothing, which makes
// the SLA pass idempotent.
func FindBreaches(ticket *domain.Ticket, events []domain.TicketEvent, deadlines Deadlines, now time.Time) []Breach {
	if ticket == nil || ticket.Terminal() {
		return nil
	}
	// The clock is frozen while the ticket waits on the requester.
	if ticket.Status == domain.TicketStatusPending {
		return nil
	}

	var breaches []Breach
	if deadlines.ResponseDeadline != nil && ticket.FirstResponseAt == nil &&
		now.After(*deadlines.ResponseDeadline) &&
		!breachRecorded(events, BreachResponse, *deadlines.ResponseDeadline) {
		breaches = append(breaches, Breach{Kind: BreachResponse, Deadline: *deadlines.ResponseDeadline})
	}
	resolved := ticket.Status == domain.TicketStatusResolved
	if deadlines.ResolutionDeadline != nil && !resolved &&
		now.After(*deadlines.ResolutionDeadline) &&
		!breachRecorded(events, BreachResolution, *deadlines.ResolutionDeadline) {
		breaches = append(breaches, Breach{Kind: BreachResolution, Deadline: *deadlines.ResolutionDeadline})
	}
	return breaches
}

// BreachPayload is the event payload shape for sla_breached events. The
// deadline value keys idempotence checks.
func BreachPayload(b Breach) map[string]any {
	return map[string]any{
		"kind":     b.Kind,
		"deadline": b.Deadline.UTC().Format(time.RFC3339Nano),
	}
}

func breachRecorded(events []domain.TicketEvent, kind string, deadline time.Time) bool {
	want := deadline.UTC().Format(time.RFC3339Nano)
	for i := range events {
		event := &events[i]
		if event.Type != domain.EventSLABreached {
			continue
		}
		if event.PayloadString("kind") == kind && event.PayloadString("deadline") == want {
			return true
		}
	}
	return false
}

func pausedDuration(events []domain.TicketEvent, cal domain.BusinessCalendar) time.Duration {
	var total time.Duration
	var pendingSince *time.Time
	for i := range events {
		event := &events[i]
		if event.Type != domain.EventStatusChanged {
			continue
		}
		if event.PayloadString("new_status") == string(domain.TicketStatusPending) {
			at := event.CreatedAt
			pendingSince = &at
			continue
		}
		if event.PayloadString("old_status") == string(domain.TicketStatusPending) && pendingSince != nil {
			total += cal.Between(*pendingSince, event.CreatedAt)
			pendingSince = nil
		}
	}
	return total
}
