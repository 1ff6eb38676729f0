package domain

import "time"

// Audit statuses.
const (
	AuditAllowed = "ALLOWED"
	AuditDenied  = "DENIED"
	AuditError   = "ERROR"
)

// AuditEntry records one security-relevant action.
type AuditEntry struct {
	ID           string
	PrincipalID  string
	Action       string
	ResourceType string
	ResourceID   string
	Status       string
	Detail       *string
	DurationMs   *int64
	CreatedAt    time.Time
}

// AuditFilter narrows an audit listing.
type AuditFilter struct {
	PrincipalID *string
	Action      *string
	Status      *string
	Since       *time.Time
	Page        PageRequest
}
