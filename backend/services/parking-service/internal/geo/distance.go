// Package geo contains pure geographic helpers used to order and label parking zones.
package geo

import (
	"fmt"
	"math"
	"sort"
)

const earthRadiusMeters = 6371e3

// DistanceMeters returns the great-circle (haversine) distance between two points given in
// decimal degrees.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := degreesToRadians(lat1)
	phi2 := degreesToRadians(lat2)
	dPhi := degreesToRadians(lat2 - lat1)
	dLambda := degreesToRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// Point is a coordinate pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether p lies within latitude/longitude bounds.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// SortByDistance orders items nearest first. Items without a known distance (dist returns ok=false)
// go last, keeping their relative order.
func SortByDistance[T any](items []T, dist func(T) (float64, bool)) {
	sort.SliceStable(items, func(i, j int) bool {
		di, iok := dist(items[i])
		dj, jok := dist(items[j])
		switch {
		case iok && jok:
			return di < dj
		case iok:
			return true
		default:
			return false
		}
	})
}

// FormatDistance labels a distance the way the zone list shows it: "~850 m", "~1.2 km", or "–"
// when unknown.
func FormatDistance(meters *float64) string {
	if meters == nil {
		return "–"
	}
	if *meters < 1000 {
		return fmt.Sprintf("~%d m", int64(math.Round(*meters)))
	}
	return fmt.Sprintf("~%.1f km", *meters/1000)
}
