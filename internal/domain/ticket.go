package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew      TicketStatus = "NEW"
	TicketStatusOpen     TicketStatus = "OPEN"
	TicketStatusPending  TicketStatus = "PENDING"
	TicketStatusResolved TicketStatus = "RESOLVED"
	TicketStatusClosed   TicketStatus = "CLOSED"
	TicketStatusReopened TicketStatus = "REOPENED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// Ticket is the aggregate for support requests. Status is mutated only through
// the workflow engine; tickets are soft-closed, never deleted.
type Ticket struct {
	ID                 string
	TenantID           string
	DepartmentID       string
	ExternalKey        string
	RequesterID        string
	AssigneeID         *string
	Title              string
	Description        string
	Status             TicketStatus
	Priority           TicketPriority
	Category           string
	Tags               []string
	SLAPlanID          *string
	ResponseDeadline   *time.Time
	ResolutionDeadline *time.Time
	FirstResponseAt    *time.Time
	StatusChangedAt    time.Time
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ClosedAt           *time.Time
}

// Terminal reports whether the ticket reached its terminal state. A closed
// ticket can only be reopened; no other edge leaves it.
func (t *Ticket) Terminal() bool {
	return t.Status == TicketStatusClosed
}

// HasTag reports whether the tag is already present.
func (t *Ticket) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}
