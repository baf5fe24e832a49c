package workflow

import (
	"github.com/spec-kit/ticket-engine/internal/domain"
)

// allowedTransitions is the explicit lifecycle graph. Closed is terminal:
// the only edge out is Reopened, which returns the ticket to Open.
var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusNew:      {domain.TicketStatusOpen},
	domain.TicketStatusOpen:     {domain.TicketStatusPending, domain.TicketStatusResolved},
	domain.TicketStatusPending:  {domain.TicketStatusOpen, domain.TicketStatusResolved},
	domain.TicketStatusResolved: {domain.TicketStatusClosed, domain.TicketStatusReopened},
	domain.TicketStatusClosed:   {domain.TicketStatusReopened},
	domain.TicketStatusReopened: {domain.TicketStatusOpen},
}

// ValidTransition reports whether the edge exists in the transition table.
func ValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
