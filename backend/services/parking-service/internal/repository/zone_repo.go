package repository

import (
	"context"
	"strings"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/models"
)

// ZoneRepository reads the zone catalogue.
type ZoneRepository struct {
	gw gateway.Gateway
}

// NewZoneRepository returns repository.
func NewZoneRepository(gw gateway.Gateway) *ZoneRepository {
	return &ZoneRepository{gw: gw}
}

// List returns all zones ordered by name.
func (r *ZoneRepository) List(ctx context.Context) ([]models.Zone, error) {
	rows, err := r.gw.Query(ctx, gateway.TableZones, gateway.Query{
		Order: []gateway.Order{gateway.Asc("name"), gateway.Asc("zone_code")},
	})
	if err != nil {
		return nil, err
	}
	zones := make([]models.Zone, 0, len(rows))
	for _, row := range rows {
		zones = append(zones, zoneFromRecord(row))
	}
	return zones, nil
}

// Get returns a zone by id.
func (r *ZoneRepository) Get(ctx context.Context, id string) (*models.Zone, error) {
	row, err := r.gw.GetByID(ctx, gateway.TableZones, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperrors.NotFound("zone")
	}
	zone := zoneFromRecord(row)
	return &zone, nil
}

// Search returns zones whose code, name or city contain query, ignoring case.
// An empty query matches every zone.
func (r *ZoneRepository) Search(ctx context.Context, query string) ([]models.Zone, error) {
	zones, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	return FilterZones(zones, query), nil
}

// FilterZones keeps the zones matching query the way Search does.
func FilterZones(zones []models.Zone, query string) []models.Zone {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return zones
	}
	out := make([]models.Zone, 0, len(zones))
	for _, z := range zones {
		if strings.Contains(strings.ToLower(z.ZoneCode), q) ||
			strings.Contains(strings.ToLower(z.Name), q) ||
			strings.Contains(strings.ToLower(z.City), q) {
			out = append(out, z)
		}
	}
	return out
}

// Upsert inserts zone or updates the zone with the same zone code. It reports whether a row
// was created.
func (r *ZoneRepository) Upsert(ctx context.Context, zone models.Zone) (*models.Zone, bool, error) {
	if strings.TrimSpace(zone.ZoneCode) == "" {
		return nil, false, apperrors.Validation("zone_code is required")
	}
	if strings.TrimSpace(zone.Name) == "" {
		return nil, false, apperrors.Validation("name is required")
	}

	existing, err := r.gw.Query(ctx, gateway.TableZones, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("zone_code", zone.ZoneCode)},
		Limit:   1,
	})
	if err != nil {
		return nil, false, err
	}

	fields := gateway.Record{
		"zone_code": zone.ZoneCode,
		"name":      zone.Name,
		"city":      zone.City,
		"type":      zone.Type,
		"latitude":  zone.Latitude,
		"longitude": zone.Longitude,
	}

	if len(existing) > 0 {
		row, err := r.gw.Update(ctx, gateway.TableZones, existing[0].String("id"), fields)
		if err != nil {
			return nil, false, err
		}
		updated := zoneFromRecord(row)
		return &updated, false, nil
	}

	if zone.ID != "" {
		fields["id"] = zone.ID
	}
	row, err := r.gw.Insert(ctx, gateway.TableZones, fields)
	if err != nil {
		return nil, false, err
	}
	created := zoneFromRecord(row)
	return &created, true, nil
}

func zoneFromRecord(row gateway.Record) models.Zone {
	return models.Zone{
		ID:        row.String("id"),
		ZoneCode:  row.String("zone_code"),
		Name:      row.String("name"),
		City:      row.String("city"),
		Type:      row.String("type"),
		Latitude:  row.Float64("latitude"),
		Longitude: row.Float64("longitude"),
		CreatedAt: row.Time("created_at"),
	}
}
