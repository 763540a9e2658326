package models

import (
	"time"

	"sparkpark/backend/services/parking-service/internal/billing"
)

// UnknownZoneName is recorded when a receipt's zone could not be resolved at close time.
const UnknownZoneName = "Okänd plats"

// Receipt is the immutable record of a closed session. Zone name and code are snapshots taken
// when the session closed.
type Receipt struct {
	ID              string         `db:"id" json:"id"`
	PrincipalID     string         `db:"principal_id" json:"principal_id"`
	SessionID       string         `db:"session_id" json:"session_id"`
	ZoneID          string         `db:"zone_id" json:"zone_id"`
	ZoneName        string         `db:"zone_name" json:"zone_name"`
	ZoneCode        string         `db:"zone_code" json:"zone_code"`
	StartedAt       time.Time      `db:"started_at" json:"started_at"`
	EndedAt         time.Time      `db:"ended_at" json:"ended_at"`
	DurationSeconds int64          `db:"duration_seconds" json:"duration_seconds"`
	RatePerMinute   billing.Amount `db:"rate_minor" json:"rate_per_minute"`
	TotalCost       billing.Amount `db:"total_cost_minor" json:"total_cost"`
	Currency        string         `db:"currency" json:"currency"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}
