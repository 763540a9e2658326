package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/geo"
	"sparkpark/backend/services/parking-service/internal/service"
)

// ZonesHandlers serves the zone catalogue.
type ZonesHandlers struct {
	svc    *service.ParkingService
	logger *zap.Logger
}

// NewZonesHandlers returns handler.
func NewZonesHandlers(svc *service.ParkingService, logger *zap.Logger) *ZonesHandlers {
	return &ZonesHandlers{svc: svc, logger: logger}
}

// List handles GET /zones?q=&lat=&lon=.
func (h *ZonesHandlers) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	near, err := parsePoint(query.Get("lat"), query.Get("lon"))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}

	zones, err := h.svc.ListZones(r.Context(), service.ZoneQuery{Search: query.Get("q"), Near: near})
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, zones)
}

// Get handles GET /zones/{id}.
func (h *ZonesHandlers) Get(w http.ResponseWriter, r *http.Request) {
	zone, err := h.svc.GetZone(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAppError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

// parsePoint returns nil when neither coordinate is given.
func parsePoint(lat, lon string) (*geo.Point, error) {
	if lat == "" && lon == "" {
		return nil, nil
	}
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, apperrors.Validation("lat must be a number")
	}
	longitude, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, apperrors.Validation("lon must be a number")
	}
	p := geo.Point{Latitude: latitude, Longitude: longitude}
	if !p.Valid() {
		return nil, apperrors.Validation("coordinates out of range")
	}
	return &p, nil
}
