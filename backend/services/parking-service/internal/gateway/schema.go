package gateway

import (
	"fmt"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
)

// Logical tables.
const (
	TableZones      = "zones"
	TablePrincipals = "principals"
	TableSessions   = "sessions"
	TableReceipts   = "receipts"
)

// Table describes the columns a gateway accepts for one table.
type Table struct {
	Name    string
	Columns []string
	// Unique lists single columns with a uniqueness constraint besides id.
	Unique []string
	// References maps a column to the table whose id it must name.
	References map[string]string
	// Defaults are applied by in-process gateways for columns missing on insert.
	Defaults Record
}

// HasColumn reports whether column belongs to the table.
func (t Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// Schema is the set of tables a gateway serves.
type Schema map[string]Table

// DefaultSchema describes the parking tables.
func DefaultSchema() Schema {
	return Schema{
		TableZones: {
			Name:    TableZones,
			Columns: []string{"id", "zone_code", "name", "city", "type", "latitude", "longitude", "created_at"},
			Unique:  []string{"zone_code"},
		},
		TablePrincipals: {
			Name:     TablePrincipals,
			Columns:  []string{"id", "email", "password_hash", "anonymous", "created_at"},
			Unique:   []string{"email"},
			Defaults: Record{"anonymous": false},
		},
		TableSessions: {
			Name:       TableSessions,
			Columns:    []string{"id", "principal_id", "zone_id", "status", "started_at", "closed_at", "created_at"},
			References: map[string]string{"principal_id": TablePrincipals, "zone_id": TableZones},
			Defaults:   Record{"status": "open"},
		},
		TableReceipts: {
			Name: TableReceipts,
			Columns: []string{
				"id", "principal_id", "session_id", "zone_id", "zone_name", "zone_code",
				"started_at", "ended_at", "duration_seconds", "rate_minor", "total_cost_minor",
				"currency", "created_at",
			},
			Unique:     []string{"session_id"},
			References: map[string]string{"principal_id": TablePrincipals},
		},
	}
}

// Table returns the table definition or a ValidationError for an unknown table.
func (s Schema) Table(name string) (Table, error) {
	t, ok := s[name]
	if !ok {
		return Table{}, apperrors.Validation(fmt.Sprintf("unknown table %q", name))
	}
	return t, nil
}

// checkColumns rejects columns the table does not have.
func (t Table) checkColumns(columns ...string) error {
	for _, c := range columns {
		if !t.HasColumn(c) {
			return apperrors.Validation(fmt.Sprintf("unknown column %q on %s", c, t.Name))
		}
	}
	return nil
}

func (t Table) checkQuery(q Query) error {
	for _, f := range q.Filters {
		if err := t.checkColumns(f.Column); err != nil {
			return err
		}
	}
	for _, o := range q.Order {
		if err := t.checkColumns(o.Column); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return apperrors.Validation("limit must not be negative")
	}
	return nil
}

func (t Table) checkFilters(filters []Filter) error {
	return t.checkQuery(Query{Filters: filters})
}

func (t Table) checkRecord(rec Record) error {
	for c := range rec {
		if err := t.checkColumns(c); err != nil {
			return err
		}
	}
	return nil
}
