package models

import "time"

// Zone is read-only reference data describing a parking area.
type Zone struct {
	ID        string    `db:"id" json:"id" yaml:"id"`
	ZoneCode  string    `db:"zone_code" json:"zone_code" yaml:"zone_code"`
	Name      string    `db:"name" json:"name" yaml:"name"`
	City      string    `db:"city" json:"city" yaml:"city"`
	Type      string    `db:"type" json:"type" yaml:"type"`
	Latitude  float64   `db:"latitude" json:"latitude" yaml:"latitude"`
	Longitude float64   `db:"longitude" json:"longitude" yaml:"longitude"`
	CreatedAt time.Time `db:"created_at" json:"created_at,omitempty" yaml:"-"`
}

// ZoneWithDistance annotates a zone with its distance from the caller, when known.
type ZoneWithDistance struct {
	Zone
	DistanceMeters *float64 `json:"distance_meters,omitempty"`
	DistanceLabel  string   `json:"distance_label"`
}
