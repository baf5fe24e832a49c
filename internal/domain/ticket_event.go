package domain

import "time"

// TicketEventType enumerates event identifiers in the append-only log.
type TicketEventType string

const (
	EventTicketCreated     TicketEventType = "ticket_created"
	EventStatusChanged     TicketEventType = "status_changed"
	EventSLABreached       TicketEventType = "sla_breached"
	EventAutomationApplied TicketEventType = "automation_applied"
)

// TicketEvent is an immutable state-change record. Seq is a per-ticket
// monotonic sequence assigned at append time; ordering by (ticket_id, seq) is
// the authoritative history and avoids wall-clock ties.
type TicketEvent struct {
	ID        string
	TicketID  string
	Seq       int64
	Type      TicketEventType
	Payload   map[string]any
	ActorID   *string
	CreatedAt time.Time
}

// PayloadString reads a string payload field, tolerating jsonb round-trips.
func (e *TicketEvent) PayloadString(key string) string {
	if e == nil || e.Payload == nil {
		return ""
	}
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}
