package geo

import "sparkpark/backend/services/parking-service/internal/models"

// WithDistances annotates zones with their distance from origin and, when origin is known, orders
// them nearest first. A nil origin keeps the input order and labels every distance unknown.
func WithDistances(zones []models.Zone, origin *Point) []models.ZoneWithDistance {
	out := make([]models.ZoneWithDistance, len(zones))
	for i, z := range zones {
		out[i] = models.ZoneWithDistance{Zone: z}
		if origin != nil {
			d := DistanceMeters(origin.Latitude, origin.Longitude, z.Latitude, z.Longitude)
			out[i].DistanceMeters = &d
		}
		out[i].DistanceLabel = FormatDistance(out[i].DistanceMeters)
	}
	if origin != nil {
		SortByDistance(out, func(z models.ZoneWithDistance) (float64, bool) {
			if z.DistanceMeters == nil {
				return 0, false
			}
			return *z.DistanceMeters, true
		})
	}
	return out
}
