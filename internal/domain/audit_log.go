package domain

import "time"

// AuditLog is an immutable record of who changed what and when. One entry is
// written per state-changing operation, inside the same transaction as the
// mutation it documents.
type AuditLog struct {
	ID        string
	TenantID  string
	Entity    string
	EntityID  string
	Action    string
	ActorID   *string
	Details   map[string]any
	CreatedAt time.Time
}
