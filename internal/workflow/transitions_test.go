package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from    domain.TicketStatus
		to      domain.TicketStatus
		allowed bool
	}{
		{domain.TicketStatusNew, domain.TicketStatusOpen, true},
		{domain.TicketStatusNew, domain.TicketStatusResolved, false},
		{domain.TicketStatusNew, domain.TicketStatusClosed, false},
		{domain.TicketStatusOpen, domain.TicketStatusPending, true},
		{domain.TicketStatusOpen, domain.TicketStatusResolved, true},
		{domain.TicketStatusOpen, domain.TicketStatusClosed, false},
		{domain.TicketStatusPending, domain.TicketStatusOpen, true},
		{domain.TicketStatusPending, domain.TicketStatusResolved, true},
		{domain.TicketStatusPending, domain.TicketStatusClosed, false},
		{domain.TicketStatusResolved, domain.TicketStatusClosed, true},
		{domain.TicketStatusResolved, domain.TicketStatusReopened, true},
		{domain.TicketStatusResolved, domain.TicketStatusOpen, false},
		{domain.TicketStatusClosed, domain.TicketStatusReopened, true},
		{domain.TicketStatusClosed, domain.TicketStatusOpen, false},
		{domain.TicketStatusClosed, domain.TicketStatusResolved, false},
		{domain.TicketStatusReopened, domain.TicketStatusOpen, true},
		{domain.TicketStatusReopened, domain.TicketStatusClosed, false},
		{domain.TicketStatusOpen, domain.TicketStatusOpen, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, ValidTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestValidTransitionUnknownStatus(t *testing.T) {
	assert.False(t, ValidTransition(domain.TicketStatus("ARCHIVED"), domain.TicketStatusOpen))
}
