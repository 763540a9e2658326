package models

import "time"

// SessionStatus is the lifecycle state of a parking session.
type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

// Session is a metering interval for one principal at one zone.
type Session struct {
	ID          string        `db:"id" json:"id"`
	PrincipalID string        `db:"principal_id" json:"principal_id"`
	ZoneID      string        `db:"zone_id" json:"zone_id"`
	Status      SessionStatus `db:"status" json:"status"`
	StartedAt   time.Time     `db:"started_at" json:"started_at"`
	ClosedAt    *time.Time    `db:"closed_at" json:"closed_at,omitempty"`

	// Zone is joined for display and may be nil when the lookup failed.
	Zone *Zone `db:"-" json:"zone,omitempty"`
}

// Open reports whether the session is still metering.
func (s Session) Open() bool {
	return s.Status == SessionStatusOpen
}
