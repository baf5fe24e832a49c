package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

func businessWeek() domain.BusinessCalendar {
	window := []domain.BusinessWindow{{StartMinute: 9 * 60, EndMinute: 17 * 60}}
	return domain.BusinessCalendar{
		time.Monday:    window,
		time.Tuesday:   window,
		time.Wednesday: window,
		time.Thursday:  window,
		time.Friday:    window,
	}
}

func mondayAt(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	ts := time.Date(2026, time.January, 5, hour, minute, 0, 0, time.UTC)
	require.Equal(t, time.Monday, ts.Weekday())
	return ts
}

func testPlan() *domain.SLAPlan {
	return &domain.SLAPlan{
		ID:                      "plan-1",
		TenantID:                "tenant-1",
		Name:                    "standard",
		ResponseTargetMinutes:   60,
		ResolutionTargetMinutes: 480,
		BusinessHours:           businessWeek(),
	}
}

func testTicket(createdAt time.Time, status domain.TicketStatus) *domain.Ticket {
	planID := "plan-1"
	return &domain.Ticket{
		ID:              "ticket-1",
		TenantID:        "tenant-1",
		Status:          status,
		Priority:        domain.TicketPriorityMedium,
		SLAPlanID:       &planID,
		StatusChangedAt: createdAt,
		CreatedAt:       createdAt,
	}
}

func statusChange(at time.Time, from, to domain.TicketStatus) domain.TicketEvent {
	return domain.TicketEvent{
		TicketID:  "ticket-1",
		Type:      domain.EventStatusChanged,
		CreatedAt: at,
		Payload: map[string]any{
			"old_status": string(from),
			"new_status": string(to),
		},
	}
}

func TestComputeDeadlinesNoPauses(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusOpen)

	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)

	require.NotNil(t, deadlines.ResponseDeadline)
	require.NotNil(t, deadlines.ResolutionDeadline)
	assert.Equal(t, mondayAt(t, 10, 0), *deadlines.ResponseDeadline)
	assert.Equal(t, mondayAt(t, 17, 0), *deadlines.ResolutionDeadline)
	assert.Equal(t, time.Duration(0), deadlines.Paused)
}

func TestComputeDeadlinesShiftByPausedTime(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusOpen)
	events := []domain.TicketEvent{
		statusChange(mondayAt(t, 9, 5), domain.TicketStatusNew, domain.TicketStatusOpen),
		statusChange(mondayAt(t, 9, 30), domain.TicketStatusOpen, domain.TicketStatusPending),
		statusChange(mondayAt(t, 11, 0), domain.TicketStatusPending, domain.TicketStatusOpen),
	}

	deadlines := ComputeDeadlines(ticket, events, plan, plan.BusinessHours)

	assert.Equal(t, 90*time.Minute, deadlines.Paused)
	// 60 target + 90 paused business minutes from creation.
	require.NotNil(t, deadlines.ResponseDeadline)
	assert.Equal(t, mondayAt(t, 11, 30), *deadlines.ResponseDeadline)
	// 480 + 90 overflows Monday's window into Tuesday.
	require.NotNil(t, deadlines.ResolutionDeadline)
	assert.Equal(t, time.Date(2026, time.January, 6, 10, 30, 0, 0, time.UTC), *deadlines.ResolutionDeadline)
}

func TestComputeDeadlinesIgnoresOpenPauseInterval(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusPending)
	events := []domain.TicketEvent{
		statusChange(mondayAt(t, 9, 30), domain.TicketStatusOpen, domain.TicketStatusPending),
	}

	deadlines := ComputeDeadlines(ticket, events, plan, plan.BusinessHours)
	assert.Equal(t, time.Duration(0), deadlines.Paused)
}

func TestComputeDeadlinesRepeatedPausesAccumulate(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusOpen)
	events := []domain.TicketEvent{
		statusChange(mondayAt(t, 9, 10), domain.TicketStatusOpen, domain.TicketStatusPending),
		statusChange(mondayAt(t, 9, 40), domain.TicketStatusPending, domain.TicketStatusOpen),
		statusChange(mondayAt(t, 10, 0), domain.TicketStatusOpen, domain.TicketStatusPending),
		statusChange(mondayAt(t, 10, 30), domain.TicketStatusPending, domain.TicketStatusOpen),
	}

	deadlines := ComputeDeadlines(ticket, events, plan, plan.BusinessHours)
	assert.Equal(t, time.Hour, deadlines.Paused)
	assert.Equal(t, mondayAt(t, 11, 0), *deadlines.ResponseDeadline)
}

func TestComputeDeadlinesNilInputs(t *testing.T) {
	deadlines := ComputeDeadlines(nil, nil, nil, nil)
	assert.Nil(t, deadlines.ResponseDeadline)
	assert.Nil(t, deadlines.ResolutionDeadline)
}

func TestFindBreachesResponse(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusOpen)
	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)

	breaches := FindBreaches(ticket, nil, deadlines, mondayAt(t, 10, 30))
	require.Len(t, breaches, 1)
	assert.Equal(t, BreachResponse, breaches[0].Kind)
	assert.Equal(t, mondayAt(t, 10, 0), breaches[0].Deadline)
}

func TestFindBreachesRespectsFirstResponse(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusOpen)
	responded := mondayAt(t, 9, 45)
	ticket.FirstResponseAt = &responded
	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)

	breaches := FindBreaches(ticket, nil, deadlines, mondayAt(t, 10, 30))
	assert.Empty(t, breaches)
}

func TestFindBreachesIdempotentPerDeadline(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusOpen)
	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)
	now := mondayAt(t, 10, 30)

	first := FindBreaches(ticket, nil, deadlines, now)
	require.Len(t, first, 1)

	events := []domain.TicketEvent{{
		TicketID:  ticket.ID,
		Type:      domain.EventSLABreached,
		CreatedAt: now,
		Payload:   BreachPayload(first[0]),
	}}
	assert.Empty(t, FindBreaches(ticket, events, deadlines, now))
}

func TestFindBreachesNewDeadlineValueBreachesAgain(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusOpen)
	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)
	now := mondayAt(t, 10, 30)

	recorded := FindBreaches(ticket, nil, deadlines, now)
	require.Len(t, recorded, 1)
	events := []domain.TicketEvent{{
		Type:    domain.EventSLABreached,
		Payload: BreachPayload(recorded[0]),
	}}

	// A pause pushed the deadline out; when the shifted deadline also passes
	// it breaches independently of the earlier one.
	shifted := mondayAt(t, 11, 30)
	deadlines.ResponseDeadline = &shifted
	breaches := FindBreaches(ticket, events, deadlines, mondayAt(t, 12, 0))
	require.Len(t, breaches, 1)
	assert.Equal(t, shifted, breaches[0].Deadline)
}

func TestFindBreachesFrozenWhilePending(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusPending)
	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)

	assert.Nil(t, FindBreaches(ticket, nil, deadlines, mondayAt(t, 12, 0)))
}

func TestFindBreachesTerminalTicket(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusClosed)
	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)

	assert.Nil(t, FindBreaches(ticket, nil, deadlines, mondayAt(t, 18, 0)))
}

func TestFindBreachesResolvedSkipsResolution(t *testing.T) {
	created := mondayAt(t, 9, 0)
	plan := testPlan()
	ticket := testTicket(created, domain.TicketStatusResolved)
	responded := mondayAt(t, 9, 10)
	ticket.FirstResponseAt = &responded
	deadlines := ComputeDeadlines(ticket, nil, plan, plan.BusinessHours)

	// Past both deadlines, but the ticket is resolved and responded to.
	assert.Empty(t, FindBreaches(ticket, nil, deadlines, time.Date(2026, time.January, 6, 12, 0, 0, 0, time.UTC)))
}
