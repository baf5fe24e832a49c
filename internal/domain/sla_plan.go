package domain

import "time"

// SLAPlan defines response and resolution targets for a tenant. A plan is
// treated as immutable once an active ticket's deadline was computed from it;
// edits apply only to deadlines computed afterwards.
type SLAPlan struct {
	ID                      string
	TenantID                string
	Name                    string
	ResponseTargetMinutes   int
	ResolutionTargetMinutes int
	BusinessHours           BusinessCalendar
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ResponseTarget returns the response target as a duration.
func (p *SLAPlan) ResponseTarget() time.Duration {
	return time.Duration(p.ResponseTargetMinutes) * time.Minute
}

// ResolutionTarget returns the resolution target as a duration.
func (p *SLAPlan) ResolutionTarget() time.Duration {
	return time.Duration(p.ResolutionTargetMinutes) * time.Minute
}
